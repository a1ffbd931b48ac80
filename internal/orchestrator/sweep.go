package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
)

// SweepReport counts what a sweep changed.
type SweepReport struct {
	Sessions   int `json:"sessions"`
	Failed     int `json:"failed"`
	Unscorable int `json:"unscorable"`
}

// Sweep closes out sessions and answers whose callbacks never arrived.
// In-progress sessions without any answer after stuck-after fail, sessions
// whose call ended without finishing the loop fail after call-end-grace, and
// answers stuck in a non-terminal stage for stale-after become unscorable.
func (o *Orchestrator) Sweep(ctx context.Context) (*SweepReport, error) {
	sessions, err := o.store.ListSessions(ctx, interview.StatusInProgress)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Sessions: len(sessions)}
	for _, s := range sessions {
		if err := o.sweepSession(ctx, s.ID, report); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			logger.ForSession(o.logger, s.ID).Warn("sweep failed", zap.Error(err))
		}
	}
	return report, nil
}

func (o *Orchestrator) sweepSession(ctx context.Context, sessionID string, report *SweepReport) error {
	check := false

	err := o.actors.do(ctx, sessionID, func() error {
		s, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status != interview.StatusInProgress {
			return nil
		}
		rs, err := o.store.ListResponses(ctx, sessionID)
		if err != nil {
			return err
		}
		now := o.now()

		if len(rs) == 0 && s.StartedAt != nil && now.Sub(*s.StartedAt) > o.cfg.StuckAfter {
			report.Failed++
			return o.fail(ctx, s, "no responses received")
		}
		if s.CallEndedAt != nil && !s.LoopDone() && now.Sub(*s.CallEndedAt) > o.cfg.CallEndGrace {
			report.Failed++
			return o.fail(ctx, s, "call ended before all questions were answered")
		}

		log := logger.ForSession(o.logger, s.ID)
		for _, r := range rs {
			if r.Stage.Terminal() || now.Sub(r.UpdatedAt) <= o.cfg.StaleAfter {
				continue
			}
			idle := now.Sub(r.UpdatedAt)
			if err := r.MarkUnscorable(staleNote(r.Stage)); err != nil {
				return err
			}
			r.UpdatedAt = now
			if err := o.store.UpdateResponse(ctx, r); err != nil {
				return err
			}
			report.Unscorable++
			log.Warn("stale answer marked unscorable",
				zap.Int(logger.FieldQuestion, r.Index),
				zap.Duration("idle", idle),
			)
		}

		check = s.LoopDone()
		return nil
	})
	if err != nil || !check {
		return err
	}
	return o.CheckCompletion(ctx, sessionID)
}

func staleNote(stage interview.Stage) string {
	if stage == interview.StageAwaitingRecording {
		return "recording never arrived"
	}
	return "processing timed out"
}

// RunSweeper sweeps every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := o.Sweep(ctx)
			if err != nil {
				o.logger.Warn("sweep stopped", zap.Error(err))
				continue
			}
			if report.Failed > 0 || report.Unscorable > 0 {
				o.logger.Info("sweep finished",
					zap.Int("sessions", report.Sessions),
					zap.Int("failed", report.Failed),
					zap.Int("unscorable", report.Unscorable),
				)
			}
		}
	}
}
