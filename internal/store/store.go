// Package store defines persistence for interview sessions, responses and results.
package store

import (
	"context"

	"github.com/spigell/ai-screener/internal/interview"
)

// Store persists interview state. Implementations return copies; mutating a
// returned value never changes stored state until it is written back.
type Store interface {
	CreateSession(ctx context.Context, s *interview.Session) error
	GetSession(ctx context.Context, id string) (*interview.Session, error)
	UpdateSession(ctx context.Context, s *interview.Session) error
	FindSessionByCallRef(ctx context.Context, callRef string) (*interview.Session, error)
	ListSessions(ctx context.Context, status interview.Status) ([]*interview.Session, error)

	// CreateResponse inserts r unless a response with the same key exists.
	// It returns the stored response and whether it was created by this call.
	CreateResponse(ctx context.Context, r *interview.Response) (*interview.Response, bool, error)
	GetResponse(ctx context.Context, key interview.Key) (*interview.Response, error)
	UpdateResponse(ctx context.Context, r *interview.Response) error
	ListResponses(ctx context.Context, sessionID string) ([]*interview.Response, error)

	// SaveResult writes the aggregate once; a second write returns ErrAlreadyExists.
	SaveResult(ctx context.Context, r *interview.Result) error
	GetResult(ctx context.Context, sessionID string) (*interview.Result, error)

	CreateCandidate(ctx context.Context, c *interview.Candidate) error
	GetCandidate(ctx context.Context, id string) (*interview.Candidate, error)
	ListCandidates(ctx context.Context) ([]*interview.Candidate, error)

	CreateJob(ctx context.Context, j *interview.Job) error
	GetJob(ctx context.Context, id string) (*interview.Job, error)
	ListJobs(ctx context.Context) ([]*interview.Job, error)

	Close() error
}
