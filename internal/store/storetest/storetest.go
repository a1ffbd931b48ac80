// Package storetest holds behaviour checks shared by every Store implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/store"
)

// Run exercises s against the Store contract. s must be empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("session lifecycle", func(t *testing.T) {
		sess := &interview.Session{
			ID:        "sess-1",
			Phone:     "+15550000001",
			Questions: []string{"q1", "q2"},
			Status:    interview.StatusPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
		if err := s.CreateSession(ctx, sess); !errors.Is(err, interview.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}

		got, err := s.GetSession(ctx, "sess-1")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if len(got.Questions) != 2 || got.Status != interview.StatusPending {
			t.Fatalf("unexpected session: %+v", got)
		}

		now := time.Now().UTC()
		got.Status = interview.StatusInProgress
		got.CallRef = "CA123"
		got.StartedAt = &now
		got.Index = 1
		if err := s.UpdateSession(ctx, got); err != nil {
			t.Fatalf("UpdateSession() error = %v", err)
		}

		byRef, err := s.FindSessionByCallRef(ctx, "CA123")
		if err != nil {
			t.Fatalf("FindSessionByCallRef() error = %v", err)
		}
		if byRef.ID != "sess-1" || byRef.Index != 1 || byRef.StartedAt == nil {
			t.Fatalf("unexpected session by call ref: %+v", byRef)
		}

		if _, err := s.FindSessionByCallRef(ctx, "CA-missing"); !errors.Is(err, interview.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		active, err := s.ListSessions(ctx, interview.StatusInProgress)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(active) != 1 {
			t.Fatalf("expected 1 in-progress session, got %d", len(active))
		}
	})

	t.Run("missing session", func(t *testing.T) {
		if _, err := s.GetSession(ctx, "nope"); !errors.Is(err, interview.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		err := s.UpdateSession(ctx, &interview.Session{ID: "nope"})
		if !errors.Is(err, interview.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("response created once", func(t *testing.T) {
		r := &interview.Response{
			SessionID: "sess-1",
			Index:     0,
			Question:  "q1",
			AudioRef:  "https://example.com/a.mp3",
			Stage:     interview.StageRecordingReady,
		}

		stored, created, err := s.CreateResponse(ctx, r)
		if err != nil {
			t.Fatalf("CreateResponse() error = %v", err)
		}
		if !created || stored.AudioRef != r.AudioRef {
			t.Fatalf("expected fresh response, got created=%v %+v", created, stored)
		}

		dup := r.Clone()
		dup.AudioRef = "https://example.com/other.mp3"
		again, created, err := s.CreateResponse(ctx, dup)
		if err != nil {
			t.Fatalf("CreateResponse() duplicate error = %v", err)
		}
		if created {
			t.Fatalf("expected duplicate create to be a no-op")
		}
		if again.AudioRef != r.AudioRef {
			t.Fatalf("expected existing audio ref %q, got %q", r.AudioRef, again.AudioRef)
		}

		again.Stage = interview.StageScored
		again.Score = 8.5
		again.Evaluated = true
		again.Transcript = "answer"
		if err := s.UpdateResponse(ctx, again); err != nil {
			t.Fatalf("UpdateResponse() error = %v", err)
		}

		got, err := s.GetResponse(ctx, interview.Key{SessionID: "sess-1", Index: 0})
		if err != nil {
			t.Fatalf("GetResponse() error = %v", err)
		}
		if got.Stage != interview.StageScored || got.Score != 8.5 || !got.Evaluated {
			t.Fatalf("unexpected response: %+v", got)
		}
	})

	t.Run("response requires session", func(t *testing.T) {
		_, _, err := s.CreateResponse(ctx, &interview.Response{SessionID: "ghost", Index: 0, Stage: interview.StageRecordingReady})
		if !errors.Is(err, interview.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("concurrent response creation", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := s.CreateResponse(ctx, &interview.Response{
					SessionID: "sess-1", Index: 1, Question: "q2", Stage: interview.StageRecordingReady,
				})
				if err != nil {
					t.Errorf("CreateResponse() error = %v", err)
					return
				}
				if ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if created != 1 {
			t.Fatalf("expected exactly 1 creation, got %d", created)
		}

		list, err := s.ListResponses(ctx, "sess-1")
		if err != nil {
			t.Fatalf("ListResponses() error = %v", err)
		}
		if len(list) != 2 || list[0].Index != 0 || list[1].Index != 1 {
			t.Fatalf("unexpected responses: %+v", list)
		}
	})

	t.Run("result saved once", func(t *testing.T) {
		res := &interview.Result{
			SessionID:      "sess-1",
			OverallScore:   7.5,
			Recommendation: interview.RecommendationHire,
			Strengths:      []string{"clear"},
			Improvements:   []string{"depth"},
			Evaluated:      1,
			NotEvaluated:   []int{1},
		}
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult() error = %v", err)
		}
		if err := s.SaveResult(ctx, res); !errors.Is(err, interview.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}

		got, err := s.GetResult(ctx, "sess-1")
		if err != nil {
			t.Fatalf("GetResult() error = %v", err)
		}
		if got.Recommendation != interview.RecommendationHire || len(got.NotEvaluated) != 1 || got.NotEvaluated[0] != 1 {
			t.Fatalf("unexpected result: %+v", got)
		}

		if _, err := s.GetResult(ctx, "missing"); !errors.Is(err, interview.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("candidates and jobs", func(t *testing.T) {
		c := &interview.Candidate{ID: "c1", Name: "Ann", Email: "ann@example.com", Phone: "+15550000002"}
		if err := s.CreateCandidate(ctx, c); err != nil {
			t.Fatalf("CreateCandidate() error = %v", err)
		}
		gotC, err := s.GetCandidate(ctx, "c1")
		if err != nil || gotC.Name != "Ann" {
			t.Fatalf("GetCandidate() = %+v, %v", gotC, err)
		}

		j := &interview.Job{ID: "j1", Title: "Go developer", Questions: []string{"a", "b", "c"}}
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		gotJ, err := s.GetJob(ctx, "j1")
		if err != nil || len(gotJ.Questions) != 3 {
			t.Fatalf("GetJob() = %+v, %v", gotJ, err)
		}

		cs, err := s.ListCandidates(ctx)
		if err != nil || len(cs) != 1 {
			t.Fatalf("ListCandidates() = %d, %v", len(cs), err)
		}
		js, err := s.ListJobs(ctx)
		if err != nil || len(js) != 1 {
			t.Fatalf("ListJobs() = %d, %v", len(js), err)
		}
		if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, interview.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
