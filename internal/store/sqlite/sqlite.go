// Package sqlite provides a Store backed by SQLite via the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens the database at dsn and creates the schema when missing.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; per-session ordering is handled above the store.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			resume_text TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			questions TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL DEFAULT '',
			job_id TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			questions TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			current_index INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			call_ref TEXT NOT NULL DEFAULT '',
			call_duration INTEGER NOT NULL DEFAULT 0,
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP,
			call_ended_at TIMESTAMP,
			ended_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS responses (
			session_id TEXT NOT NULL,
			question_index INTEGER NOT NULL,
			question TEXT NOT NULL,
			audio_ref TEXT NOT NULL DEFAULT '',
			recording_ref TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL,
			transcript TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			feedback TEXT NOT NULL DEFAULT '',
			evaluated INTEGER NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			attempt INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (session_id, question_index),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			session_id TEXT PRIMARY KEY,
			overall_score REAL NOT NULL,
			recommendation TEXT NOT NULL,
			strengths TEXT NOT NULL,
			improvements TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			evaluated INTEGER NOT NULL DEFAULT 0,
			not_evaluated TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_call_ref ON sessions(call_ref)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

const sessionColumns = `id, candidate_id, job_id, phone, questions, context, current_index, status,
	call_ref, call_duration, failure_reason, created_at, started_at, call_ended_at, ended_at`

func (s *Store) CreateSession(ctx context.Context, sess *interview.Session) error {
	questions, err := json.Marshal(sess.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sess.ID, sess.CandidateID, sess.JobID, sess.Phone, string(questions), sess.Context,
		sess.Index, string(sess.Status), sess.CallRef, sess.CallDuration, sess.FailureReason,
		sess.CreatedAt, nullTime(sess.StartedAt), nullTime(sess.CallEndedAt), nullTime(sess.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, interview.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, interview.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *interview.Session) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET
		current_index = ?, status = ?, call_ref = ?, call_duration = ?, failure_reason = ?,
		started_at = ?, call_ended_at = ?, ended_at = ?
		WHERE id = ?`,
		sess.Index, string(sess.Status), sess.CallRef, sess.CallDuration, sess.FailureReason,
		nullTime(sess.StartedAt), nullTime(sess.CallEndedAt), nullTime(sess.EndedAt), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, interview.ErrNotFound)
	}
	return nil
}

func (s *Store) FindSessionByCallRef(ctx context.Context, callRef string) (*interview.Session, error) {
	if callRef == "" {
		return nil, fmt.Errorf("empty call reference: %w", interview.ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE call_ref = ?`, callRef)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("call %s: %w", callRef, interview.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session by call: %w", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, status interview.Status) ([]*interview.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*interview.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*interview.Session, error) {
	var (
		sess      interview.Session
		questions string
		status    string
		started   sql.NullTime
		callEnded sql.NullTime
		ended     sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.CandidateID, &sess.JobID, &sess.Phone, &questions, &sess.Context,
		&sess.Index, &status, &sess.CallRef, &sess.CallDuration, &sess.FailureReason,
		&sess.CreatedAt, &started, &callEnded, &ended)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &sess.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	sess.Status = interview.Status(status)
	sess.StartedAt = timePtr(started)
	sess.CallEndedAt = timePtr(callEnded)
	sess.EndedAt = timePtr(ended)
	return &sess, nil
}

const responseColumns = `session_id, question_index, question, audio_ref, recording_ref, stage,
	transcript, score, feedback, evaluated, note, attempt, created_at, updated_at`

func (s *Store) CreateResponse(ctx context.Context, r *interview.Response) (*interview.Response, bool, error) {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO responses (`+responseColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)
		ON CONFLICT(session_id, question_index) DO NOTHING`,
		r.SessionID, r.Index, r.Question, r.AudioRef, r.RecordingRef, string(r.Stage),
		r.Transcript, r.Score, r.Feedback, r.Evaluated, r.Note, r.Attempt, r.CreatedAt, r.UpdatedAt,
		r.SessionID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("create response: %w", err)
	}
	created := false
	if n, _ := res.RowsAffected(); n > 0 {
		created = true
	}

	stored, err := s.GetResponse(ctx, r.Key())
	if err != nil {
		if errors.Is(err, interview.ErrNotFound) {
			return nil, false, fmt.Errorf("session %s: %w", r.SessionID, interview.ErrNotFound)
		}
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) GetResponse(ctx context.Context, key interview.Key) (*interview.Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses
		WHERE session_id = ? AND question_index = ?`, key.SessionID, key.Index)
	r, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("response %s/%d: %w", key.SessionID, key.Index, interview.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateResponse(ctx context.Context, r *interview.Response) error {
	r.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE responses SET
		audio_ref = ?, recording_ref = ?, stage = ?, transcript = ?, score = ?, feedback = ?,
		evaluated = ?, note = ?, attempt = ?, updated_at = ?
		WHERE session_id = ? AND question_index = ?`,
		r.AudioRef, r.RecordingRef, string(r.Stage), r.Transcript, r.Score, r.Feedback,
		r.Evaluated, r.Note, r.Attempt, r.UpdatedAt, r.SessionID, r.Index,
	)
	if err != nil {
		return fmt.Errorf("update response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("response %s/%d: %w", r.SessionID, r.Index, interview.ErrNotFound)
	}
	return nil
}

func (s *Store) ListResponses(ctx context.Context, sessionID string) ([]*interview.Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+responseColumns+` FROM responses
		WHERE session_id = ? ORDER BY question_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []*interview.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanResponse(row scanner) (*interview.Response, error) {
	var (
		r     interview.Response
		stage string
	)
	err := row.Scan(&r.SessionID, &r.Index, &r.Question, &r.AudioRef, &r.RecordingRef, &stage,
		&r.Transcript, &r.Score, &r.Feedback, &r.Evaluated, &r.Note, &r.Attempt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Stage = interview.Stage(stage)
	return &r, nil
}

func (s *Store) SaveResult(ctx context.Context, r *interview.Result) error {
	strengths, err := json.Marshal(nonNil(r.Strengths))
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	improvements, err := json.Marshal(nonNil(r.Improvements))
	if err != nil {
		return fmt.Errorf("marshal improvements: %w", err)
	}
	notEvaluated := r.NotEvaluated
	if notEvaluated == nil {
		notEvaluated = []int{}
	}
	skipped, err := json.Marshal(notEvaluated)
	if err != nil {
		return fmt.Errorf("marshal not evaluated: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO results (session_id, overall_score, recommendation,
		strengths, improvements, summary, evaluated, not_evaluated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		r.SessionID, r.OverallScore, string(r.Recommendation), string(strengths), string(improvements),
		r.Summary, r.Evaluated, string(skipped), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("result %s: %w", r.SessionID, interview.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, sessionID string) (*interview.Result, error) {
	var (
		r                                interview.Result
		recommendation                   string
		strengths, improvements, skipped string
	)
	err := s.db.QueryRowContext(ctx, `SELECT session_id, overall_score, recommendation, strengths,
		improvements, summary, evaluated, not_evaluated, created_at
		FROM results WHERE session_id = ?`, sessionID).Scan(
		&r.SessionID, &r.OverallScore, &recommendation, &strengths, &improvements,
		&r.Summary, &r.Evaluated, &skipped, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", sessionID, interview.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	r.Recommendation = interview.Recommendation(recommendation)
	if err := json.Unmarshal([]byte(strengths), &r.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(improvements), &r.Improvements); err != nil {
		return nil, fmt.Errorf("unmarshal improvements: %w", err)
	}
	if err := json.Unmarshal([]byte(skipped), &r.NotEvaluated); err != nil {
		return nil, fmt.Errorf("unmarshal not evaluated: %w", err)
	}
	if len(r.NotEvaluated) == 0 {
		r.NotEvaluated = nil
	}
	return &r, nil
}

func (s *Store) CreateCandidate(ctx context.Context, c *interview.Candidate) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO candidates (id, name, email, phone, resume_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		c.ID, c.Name, c.Email, c.Phone, c.ResumeText, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("candidate %s: %w", c.ID, interview.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*interview.Candidate, error) {
	var c interview.Candidate
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, phone, resume_text, created_at
		FROM candidates WHERE id = ?`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.ResumeText, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("candidate %s: %w", id, interview.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return &c, nil
}

func (s *Store) ListCandidates(ctx context.Context) ([]*interview.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, phone, resume_text, created_at
		FROM candidates ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []*interview.Candidate
	for rows.Next() {
		var c interview.Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.ResumeText, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) CreateJob(ctx context.Context, j *interview.Job) error {
	questions, err := json.Marshal(nonNil(j.Questions))
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO jobs (id, title, description, questions, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		j.ID, j.Title, j.Description, string(questions), j.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", j.ID, interview.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*interview.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, description, questions, created_at
		FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, interview.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]*interview.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, questions, created_at
		FROM jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*interview.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row scanner) (*interview.Job, error) {
	var (
		j         interview.Job
		questions string
	)
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &questions, &j.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &j.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return &j, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
