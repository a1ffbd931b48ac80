// Package orchestrator drives interview sessions from call placement to the
// aggregate result. Every state change of a session runs on that session's
// mailbox; provider and model calls run outside of it.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/dialguard"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/metrics"
	"github.com/spigell/ai-screener/internal/pipeline"
	"github.com/spigell/ai-screener/internal/store"
	"github.com/spigell/ai-screener/internal/telephony"
)

const (
	defaultStuckAfter       = 10 * time.Minute
	defaultStaleAfter       = 15 * time.Minute
	defaultCallEndGrace     = 2 * time.Minute
	defaultAggregateTimeout = time.Minute
)

// CallPlacer places outbound calls.
type CallPlacer interface {
	PlaceCall(ctx context.Context, req telephony.CallRequest) (string, error)
}

type Config struct {
	StuckAfter       time.Duration   `mapstructure:"stuck-after"`
	StaleAfter       time.Duration   `mapstructure:"stale-after"`
	CallEndGrace     time.Duration   `mapstructure:"call-end-grace"`
	AggregateTimeout time.Duration   `mapstructure:"aggregate-timeout"`
	Pipeline         pipeline.Config `mapstructure:"pipeline"`
}

func (c Config) withDefaults() Config {
	if c.StuckAfter <= 0 {
		c.StuckAfter = defaultStuckAfter
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaultStaleAfter
	}
	if c.CallEndGrace <= 0 {
		c.CallEndGrace = defaultCallEndGrace
	}
	if c.AggregateTimeout <= 0 {
		c.AggregateTimeout = defaultAggregateTimeout
	}
	return c
}

// Deps are the adapters the orchestrator drives.
type Deps struct {
	Store       store.Store
	Calls       CallPlacer
	URLs        telephony.CallbackURLs
	Guards      []dialguard.Guard
	Transcriber pipeline.Transcriber
	Scorer      ai.Scorer
	Logger      *zap.Logger
}

type Orchestrator struct {
	store    store.Store
	calls    CallPlacer
	urls     telephony.CallbackURLs
	guards   []dialguard.Guard
	scorer   ai.Scorer
	pipeline *pipeline.Pipeline
	cfg      Config
	logger   *zap.Logger

	actors *actors
	// claims holds the sessions whose aggregation is in flight in this process.
	claims sync.Map
	now    func() time.Time
}

// New wires the orchestrator and its response pipeline. ctx bounds the
// pipeline workers.
func New(ctx context.Context, deps Deps, cfg Config) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	o := &Orchestrator{
		store:  deps.Store,
		calls:  deps.Calls,
		urls:   deps.URLs,
		guards: deps.Guards,
		scorer: deps.Scorer,
		cfg:    cfg.withDefaults(),
		logger: log,
		actors: newActors(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	o.pipeline = pipeline.New(ctx, deps.Transcriber, deps.Scorer, o, o.cfg.Pipeline, log.Named("pipeline"))
	return o
}

// Wait blocks until dispatched pipeline work, including the completion
// checks it triggers, has finished.
func (o *Orchestrator) Wait() {
	o.pipeline.Wait()
}

// CreateInterview creates a Pending session with the job questions and the
// candidate background.
func (o *Orchestrator) CreateInterview(ctx context.Context, candidateID, jobID string) (*interview.Session, error) {
	candidate, err := o.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if len(job.Questions) == 0 {
		return nil, fmt.Errorf("%w: job %s has no questions", interview.ErrInvalidState, job.ID)
	}

	s := &interview.Session{
		ID:          uuid.NewString(),
		CandidateID: candidate.ID,
		JobID:       job.ID,
		Phone:       candidate.Phone,
		Questions:   append([]string(nil), job.Questions...),
		Context:     buildContext(candidate, job),
		Status:      interview.StatusPending,
		CreatedAt:   o.now(),
	}
	if err := o.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	logger.ForSession(o.logger, s.ID).Info("interview created",
		zap.String("candidate_id", candidate.ID),
		zap.String("job_id", job.ID),
		zap.Int("questions", len(s.Questions)),
	)
	return s.Clone(), nil
}

// StartInterview places the call for a Pending session. Any refusal, from a
// dial guard or the provider, fails the session; no retry is attempted on top
// of the adapter's own bounded retries.
func (o *Orchestrator) StartInterview(ctx context.Context, sessionID string) (*interview.Session, error) {
	var out *interview.Session

	err := o.actors.do(ctx, sessionID, func() error {
		s, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status != interview.StatusPending {
			return fmt.Errorf("%w: session %s is %s", interview.ErrInvalidState, s.ID, s.Status)
		}
		log := logger.ForSession(o.logger, s.ID)

		if err := dialguard.Run(ctx, log, o.guards, s); err != nil {
			if ferr := o.fail(ctx, s, fmt.Sprintf("call not placed: %v", err)); ferr != nil {
				return ferr
			}
			out = s.Clone()
			return err
		}

		ref, err := o.calls.PlaceCall(ctx, telephony.CallRequest{
			To:                s.Phone,
			PromptURL:         o.urls.Prompt(s.ID),
			StatusCallbackURL: o.urls.CallStatus(s.ID),
		})
		if err != nil {
			if ferr := o.fail(ctx, s, fmt.Sprintf("call not placed: %v", err)); ferr != nil {
				return ferr
			}
			out = s.Clone()
			return fmt.Errorf("place call: %w", err)
		}

		now := o.now()
		s.Status = interview.StatusInProgress
		s.Index = 0
		s.CallRef = ref
		s.StartedAt = &now
		if err := o.store.UpdateSession(ctx, s); err != nil {
			return err
		}

		metrics.SessionsActive.Inc()
		metrics.SessionTransitions.WithLabelValues(string(interview.StatusInProgress)).Inc()
		log.Info("call placed", zap.String(logger.FieldCallRef, ref))

		out = s.Clone()
		return nil
	})
	return out, err
}

// fail moves s to Failed. Callers run on the session mailbox.
func (o *Orchestrator) fail(ctx context.Context, s *interview.Session, reason string) error {
	wasActive := s.Status == interview.StatusInProgress
	now := o.now()

	s.Status = interview.StatusFailed
	s.FailureReason = reason
	s.EndedAt = &now
	if err := o.store.UpdateSession(ctx, s); err != nil {
		return fmt.Errorf("fail session: %w", err)
	}

	if wasActive {
		metrics.SessionsActive.Dec()
	}
	metrics.SessionTransitions.WithLabelValues(string(interview.StatusFailed)).Inc()
	logger.ForSession(o.logger, s.ID).Warn("session failed", zap.String("reason", reason))
	return nil
}

// UpdateResponse applies fn to the stored record on the session mailbox.
// fn errors abort the write.
func (o *Orchestrator) UpdateResponse(ctx context.Context, key interview.Key, fn func(*interview.Response) error) (*interview.Response, error) {
	var out *interview.Response

	err := o.actors.do(ctx, key.SessionID, func() error {
		r, err := o.store.GetResponse(ctx, key)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		r.UpdatedAt = o.now()
		if err := o.store.UpdateResponse(ctx, r); err != nil {
			return err
		}
		out = r.Clone()
		return nil
	})
	return out, err
}

func (o *Orchestrator) dispatch(s *interview.Session, r *interview.Response) {
	o.pipeline.Dispatch(pipeline.Job{
		Key:      r.Key(),
		Question: r.Question,
		AudioRef: r.AudioRef,
		Context:  s.Context,
		Attempt:  r.Attempt,
	})
}

func buildContext(c *interview.Candidate, j *interview.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Position: %s\n", j.Title)
	if j.Description != "" {
		fmt.Fprintf(&b, "Job description: %s\n", j.Description)
	}
	if c.ResumeText != "" {
		fmt.Fprintf(&b, "Candidate resume: %s\n", c.ResumeText)
	}
	return strings.TrimSpace(b.String())
}
