package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/metrics"
)

const (
	sourceModel    = "model"
	sourceFallback = "fallback"
	sourceNone     = "none_evaluated"
)

// CheckCompletion aggregates and completes the session once the question
// loop has ended and every record is terminal. Concurrent calls aggregate at
// most once: the first caller claims the session, the rest return. Once a
// result is computed it is written even if ctx is cancelled meanwhile.
func (o *Orchestrator) CheckCompletion(ctx context.Context, sessionID string) error {
	var (
		session   *interview.Session
		responses []*interview.Response
	)

	err := o.actors.do(ctx, sessionID, func() error {
		s, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status != interview.StatusInProgress || !s.LoopDone() {
			return nil
		}

		rs, err := o.store.ListResponses(ctx, sessionID)
		if err != nil {
			return err
		}
		if !allTerminal(s, rs) {
			return nil
		}

		if _, loaded := o.claims.LoadOrStore(sessionID, struct{}{}); loaded {
			return nil
		}
		session, responses = s, rs
		return nil
	})
	if err != nil || session == nil {
		return err
	}
	defer o.claims.Delete(sessionID)

	result := o.aggregate(ctx, session, responses)

	ctx = context.WithoutCancel(ctx)
	return o.actors.do(ctx, sessionID, func() error {
		s, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		log := logger.ForSession(o.logger, s.ID)
		if s.Status != interview.StatusInProgress {
			log.Info("session left progress during aggregation, result dropped", zap.String("status", string(s.Status)))
			return nil
		}

		if err := o.store.SaveResult(ctx, result); err != nil && !errors.Is(err, interview.ErrAlreadyExists) {
			return err
		}

		now := o.now()
		s.Status = interview.StatusCompleted
		s.EndedAt = &now
		if err := o.store.UpdateSession(ctx, s); err != nil {
			return err
		}

		metrics.SessionsActive.Dec()
		metrics.SessionTransitions.WithLabelValues(string(interview.StatusCompleted)).Inc()
		log.Info("interview completed",
			zap.Float64("overall_score", result.OverallScore),
			zap.String("recommendation", string(result.Recommendation)),
			zap.Int("evaluated", result.Evaluated),
		)
		return nil
	})
}

func allTerminal(s *interview.Session, rs []*interview.Response) bool {
	done := make(map[int]bool, len(rs))
	for _, r := range rs {
		if !r.Stage.Terminal() {
			return false
		}
		done[r.Index] = true
	}
	for i := range s.Questions {
		if !done[i] {
			return false
		}
	}
	return true
}

// aggregate builds the result outside the session mailbox. Unscorable
// answers are passed as not evaluated and never count as zero.
func (o *Orchestrator) aggregate(ctx context.Context, s *interview.Session, rs []*interview.Response) *interview.Result {
	log := logger.ForSession(o.logger, s.ID)
	answers := ai.AnswersFrom(rs)
	evaluated, skipped := ai.Evaluated(answers)

	var (
		assessment *ai.Assessment
		source     string
	)
	switch {
	case evaluated == 0:
		assessment, source = ai.NoneEvaluated(), sourceNone

	default:
		actx, cancel := context.WithTimeout(ctx, o.cfg.AggregateTimeout)
		a, err := o.scorer.Aggregate(actx, answers, s.Context)
		cancel()
		if err != nil {
			log.Warn("aggregation failed, using local fallback", zap.Error(err))
			assessment, source = ai.Fallback(answers), sourceFallback
		} else {
			assessment, source = a, sourceModel
		}
	}
	metrics.Aggregations.WithLabelValues(source).Inc()

	return &interview.Result{
		SessionID:      s.ID,
		OverallScore:   interview.ClampScore(assessment.OverallScore),
		Recommendation: assessment.Recommendation,
		Strengths:      nonNil(assessment.Strengths),
		Improvements:   nonNil(assessment.Improvements),
		Summary:        assessment.Summary,
		Evaluated:      evaluated,
		NotEvaluated:   skipped,
		CreatedAt:      o.now(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
