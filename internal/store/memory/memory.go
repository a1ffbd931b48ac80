// Package memory provides an in-memory Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spigell/ai-screener/internal/interview"
)

type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*interview.Session
	callRefs   map[string]string
	responses  map[interview.Key]*interview.Response
	results    map[string]*interview.Result
	candidates map[string]*interview.Candidate
	jobs       map[string]*interview.Job
}

func New() *Store {
	return &Store{
		sessions:   make(map[string]*interview.Session),
		callRefs:   make(map[string]string),
		responses:  make(map[interview.Key]*interview.Response),
		results:    make(map[string]*interview.Result),
		candidates: make(map[string]*interview.Candidate),
		jobs:       make(map[string]*interview.Job),
	}
}

func (s *Store) CreateSession(_ context.Context, sess *interview.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s: %w", sess.ID, interview.ErrAlreadyExists)
	}
	s.sessions[sess.ID] = sess.Clone()
	if sess.CallRef != "" {
		s.callRefs[sess.CallRef] = sess.ID
	}
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*interview.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, interview.ErrNotFound)
	}
	return sess.Clone(), nil
}

func (s *Store) UpdateSession(_ context.Context, sess *interview.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return fmt.Errorf("session %s: %w", sess.ID, interview.ErrNotFound)
	}
	s.sessions[sess.ID] = sess.Clone()
	if sess.CallRef != "" {
		s.callRefs[sess.CallRef] = sess.ID
	}
	return nil
}

func (s *Store) FindSessionByCallRef(_ context.Context, callRef string) (*interview.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.callRefs[callRef]
	if !ok {
		return nil, fmt.Errorf("call %s: %w", callRef, interview.ErrNotFound)
	}
	return s.sessions[id].Clone(), nil
}

// ListSessions returns sessions with the given status, or all sessions when status is empty.
func (s *Store) ListSessions(_ context.Context, status interview.Status) ([]*interview.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*interview.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if status != "" && sess.Status != status {
			continue
		}
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateResponse(_ context.Context, r *interview.Response) (*interview.Response, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.responses[r.Key()]; ok {
		return existing.Clone(), false, nil
	}
	if _, ok := s.sessions[r.SessionID]; !ok {
		return nil, false, fmt.Errorf("session %s: %w", r.SessionID, interview.ErrNotFound)
	}
	s.responses[r.Key()] = r.Clone()
	return r.Clone(), true, nil
}

func (s *Store) GetResponse(_ context.Context, key interview.Key) (*interview.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.responses[key]
	if !ok {
		return nil, fmt.Errorf("response %s/%d: %w", key.SessionID, key.Index, interview.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) UpdateResponse(_ context.Context, r *interview.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.responses[r.Key()]; !ok {
		return fmt.Errorf("response %s/%d: %w", r.SessionID, r.Index, interview.ErrNotFound)
	}
	s.responses[r.Key()] = r.Clone()
	return nil
}

func (s *Store) ListResponses(_ context.Context, sessionID string) ([]*interview.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*interview.Response
	for key, r := range s.responses {
		if key.SessionID == sessionID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) SaveResult(_ context.Context, r *interview.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[r.SessionID]; ok {
		return fmt.Errorf("result %s: %w", r.SessionID, interview.ErrAlreadyExists)
	}
	c := *r
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.results[r.SessionID] = &c
	return nil
}

func (s *Store) GetResult(_ context.Context, sessionID string) (*interview.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[sessionID]
	if !ok {
		return nil, fmt.Errorf("result %s: %w", sessionID, interview.ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (s *Store) CreateCandidate(_ context.Context, c *interview.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.candidates[c.ID]; ok {
		return fmt.Errorf("candidate %s: %w", c.ID, interview.ErrAlreadyExists)
	}
	cp := *c
	s.candidates[c.ID] = &cp
	return nil
}

func (s *Store) GetCandidate(_ context.Context, id string) (*interview.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, interview.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListCandidates(_ context.Context) ([]*interview.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*interview.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateJob(_ context.Context, j *interview.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s: %w", j.ID, interview.ErrAlreadyExists)
	}
	cp := *j
	cp.Questions = append([]string(nil), j.Questions...)
	s.jobs[j.ID] = &cp
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*interview.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, interview.ErrNotFound)
	}
	cp := *j
	cp.Questions = append([]string(nil), j.Questions...)
	return &cp, nil
}

func (s *Store) ListJobs(_ context.Context) ([]*interview.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*interview.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		cp.Questions = append([]string(nil), j.Questions...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Close() error { return nil }
