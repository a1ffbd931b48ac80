// Package pipeline moves recorded answers through transcription and scoring.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/metrics"
	"github.com/spigell/ai-screener/internal/utils"
)

const (
	defaultRetries    = 2
	defaultTimeout    = 20 * time.Second
	defaultBackoff    = time.Second
	defaultMaxBackoff = 10 * time.Second
	defaultWorkers    = 4
)

// Transcriber turns a recorded answer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (string, error)
}

// Tracker owns the stored records. Every record mutation goes through
// UpdateResponse so it is serialized with the rest of the session.
type Tracker interface {
	UpdateResponse(ctx context.Context, key interview.Key, fn func(*interview.Response) error) (*interview.Response, error)
	CheckCompletion(ctx context.Context, sessionID string) error
}

type Config struct {
	// Retries is the number of attempts after the first one. Zero selects
	// the default and a negative value disables retries.
	Retries    int           `mapstructure:"retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Backoff    time.Duration `mapstructure:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max-backoff"`
	Workers    int           `mapstructure:"workers"`
}

func (c Config) withDefaults() Config {
	if c.Retries < 0 {
		c.Retries = 0
	} else if c.Retries == 0 {
		c.Retries = defaultRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	return c
}

// Job identifies one record to process.
type Job struct {
	Key      interview.Key
	Question string
	AudioRef string
	// Context is the candidate background passed to the scorer.
	Context string
	// Attempt must match the stored record; a newer attempt supersedes this job.
	Attempt int
}

// Pipeline processes jobs on a bounded pool of workers.
type Pipeline struct {
	ctx         context.Context
	transcriber Transcriber
	scorer      ai.Scorer
	tracker     Tracker
	cfg         Config
	logger      *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

var errSuperseded = errors.New("record superseded")

// New builds a pipeline. ctx bounds every job started through Dispatch.
func New(ctx context.Context, transcriber Transcriber, scorer ai.Scorer, tracker Tracker, cfg Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Pipeline{
		ctx:         ctx,
		transcriber: transcriber,
		scorer:      scorer,
		tracker:     tracker,
		cfg:         cfg,
		logger:      log,
		sem:         make(chan struct{}, cfg.Workers),
	}
}

// Dispatch schedules job without blocking the caller.
func (p *Pipeline) Dispatch(job Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
		case <-p.ctx.Done():
			return
		}
		defer func() { <-p.sem }()

		p.Process(p.ctx, job)
	}()
}

// ScheduleCompletion runs a completion check for the session in the
// background on the pipeline context. Callers on a request path use it so a
// model call never holds up their response.
func (p *Pipeline) ScheduleCompletion(sessionID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.tracker.CheckCompletion(p.ctx, sessionID); err != nil {
			logger.ForSession(p.logger, sessionID).Warn("completion check failed", zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched job and scheduled completion check has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Process runs the record through transcription and scoring and then asks
// the tracker to check for session completion. Every outcome ends in a
// terminal stage unless the record was superseded or already taken.
func (p *Pipeline) Process(ctx context.Context, job Job) {
	log := logger.ForResponse(p.logger, job.Key.SessionID, job.Key.Index).With(zap.Int("attempt", job.Attempt))

	metrics.PipelineInFlight.Inc()
	defer metrics.PipelineInFlight.Dec()

	_, err := p.update(ctx, job, func(r *interview.Response) error {
		return r.Advance(interview.StageTranscribing)
	})
	if err != nil {
		log.Debug("record not ready for processing", zap.Error(err))
		return
	}

	if err := p.run(ctx, job, log); err != nil {
		if errors.Is(err, errSuperseded) {
			log.Info("record superseded, dropping result")
			return
		}
		log.Error("pipeline step failed", zap.Error(err))
	}

	if err := p.tracker.CheckCompletion(ctx, job.Key.SessionID); err != nil {
		log.Warn("completion check failed", zap.Error(err))
	}
}

func (p *Pipeline) run(ctx context.Context, job Job, log *zap.Logger) error {
	log = log.With(zap.String(logger.FieldStage, "transcribe"))

	var transcript string
	err := p.retry(ctx, "transcribe", log, func(ctx context.Context) error {
		text, err := p.transcriber.Transcribe(ctx, job.AudioRef)
		transcript = text
		return err
	})
	if err != nil {
		metrics.Errors.WithLabelValues("transcribe", "exhausted").Inc()
		_, uerr := p.update(ctx, job, func(r *interview.Response) error {
			r.Transcript = interview.UnableToTranscribe
			return r.MarkUnscorable(fmt.Sprintf("transcription failed: %v", err))
		})
		return uerr
	}

	if transcript == "" {
		log.Info("no speech detected")
		_, uerr := p.update(ctx, job, func(r *interview.Response) error {
			r.Transcript = ""
			return r.MarkUnscorable("no speech detected")
		})
		return uerr
	}

	_, err = p.update(ctx, job, func(r *interview.Response) error {
		r.Transcript = transcript
		if err := r.Advance(interview.StageTranscribed); err != nil {
			return err
		}
		return r.Advance(interview.StageScoring)
	})
	if err != nil {
		return err
	}

	log = log.With(zap.String(logger.FieldStage, "score"))

	var score *ai.ResponseScore
	err = p.retry(ctx, "score", log, func(ctx context.Context) error {
		s, err := p.scorer.ScoreResponse(ctx, job.Question, transcript, job.Context)
		score = s
		return err
	})
	if err != nil {
		metrics.Errors.WithLabelValues("score", "exhausted").Inc()
		_, uerr := p.update(ctx, job, func(r *interview.Response) error {
			return r.MarkUnscorable(fmt.Sprintf("scoring failed: %v", err))
		})
		return uerr
	}

	_, err = p.update(ctx, job, func(r *interview.Response) error {
		if err := r.Advance(interview.StageScored); err != nil {
			return err
		}
		r.Score = interview.ClampScore(score.Score)
		r.Feedback = score.Feedback
		r.Evaluated = true
		return nil
	})
	if err == nil {
		log.Info("response scored", zap.Float64("score", score.Score))
	}
	return err
}

// retry runs fn with a per-attempt timeout and exponential backoff between attempts.
func (p *Pipeline) retry(ctx context.Context, stage string, log *zap.Logger, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + p.cfg.Retries

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := utils.WaitFor(ctx, utils.Backoff(p.cfg.Backoff, p.cfg.MaxBackoff, attempt-1)); err != nil {
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		start := time.Now()
		err := fn(attemptCtx)
		cancel()
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

		if err == nil {
			return nil
		}
		lastErr = err
		metrics.Errors.WithLabelValues(stage, errorType(err)).Inc()
		log.Warn("attempt failed",
			zap.Int("try", attempt),
			zap.Int("of", attempts),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (p *Pipeline) update(ctx context.Context, job Job, fn func(*interview.Response) error) (*interview.Response, error) {
	return p.tracker.UpdateResponse(ctx, job.Key, func(r *interview.Response) error {
		if r.Attempt != job.Attempt {
			return errSuperseded
		}
		return fn(r)
	})
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, interview.ErrTranscriptionFailed):
		return "transcription"
	case errors.Is(err, interview.ErrScoringFailed):
		return "scoring"
	default:
		return "other"
	}
}
