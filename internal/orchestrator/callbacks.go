package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/telephony"
)

// CallEvent is a call progress callback.
type CallEvent struct {
	// SessionID comes from the callback URL and may be empty.
	SessionID string
	CallRef   string
	Status    string
	Duration  int
}

// RecordingEvent is a recording-ready or recording-status callback.
type RecordingEvent struct {
	SessionID    string
	Index        int
	CallRef      string
	AudioRef     string
	RecordingRef string
	// Status is the provider recording status; empty for recording-ready.
	Status string
}

// Advance is the outcome of a recording callback.
type Advance struct {
	Session *interview.Session
	// Duplicate is set when the callback changed nothing.
	Duplicate bool
}

// HandleCallStatus applies a call progress event. Terminal sessions absorb
// every event as a duplicate. Failure statuses fail the session unless the
// question loop already finished; an early completed status is left to the
// sweeper so late recording callbacks can still land.
func (o *Orchestrator) HandleCallStatus(ctx context.Context, ev CallEvent) error {
	sessionID, err := o.resolveSession(ctx, ev.SessionID, ev.CallRef)
	if err != nil {
		return err
	}

	return o.actors.do(ctx, sessionID, func() error {
		s, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status == interview.StatusPending || (ev.CallRef != "" && s.CallRef != ev.CallRef) {
			return fmt.Errorf("%w: call %s for session %s", interview.ErrUnknownReference, ev.CallRef, s.ID)
		}
		log := logger.ForSession(o.logger, s.ID).With(zap.String("call_status", ev.Status))

		if s.Status.Terminal() {
			if ev.Status == telephony.CallCompleted && s.CallEndedAt == nil {
				o.markCallEnded(s, ev.Duration)
				return o.store.UpdateSession(ctx, s)
			}
			return fmt.Errorf("%w: session %s is %s", interview.ErrDuplicateCallback, s.ID, s.Status)
		}

		switch {
		case telephony.IsCallFailure(ev.Status):
			o.markCallEnded(s, ev.Duration)
			if s.LoopDone() {
				log.Info("call ended with failure status after the last answer")
				return o.store.UpdateSession(ctx, s)
			}
			return o.fail(ctx, s, "call "+ev.Status)

		case ev.Status == telephony.CallCompleted:
			if s.CallEndedAt != nil {
				return fmt.Errorf("%w: call %s already completed", interview.ErrDuplicateCallback, s.CallRef)
			}
			o.markCallEnded(s, ev.Duration)
			if !s.LoopDone() {
				log.Info("call ended before the last answer was confirmed",
					zap.Int("current_index", s.Index),
					zap.Int("questions", len(s.Questions)),
				)
			}
			return o.store.UpdateSession(ctx, s)

		default:
			log.Debug("call progress")
			return nil
		}
	})
}

func (o *Orchestrator) markCallEnded(s *interview.Session, duration int) {
	now := o.now()
	s.CallEndedAt = &now
	if duration > 0 {
		s.CallDuration = duration
	}
}

// resolveSession finds the session for a callback. The session id from the
// callback URL is authoritative: a call reference that belongs to another
// session is unknown. Without a URL id the call reference alone decides.
func (o *Orchestrator) resolveSession(ctx context.Context, sessionID, callRef string) (string, error) {
	if callRef != "" {
		s, err := o.store.FindSessionByCallRef(ctx, callRef)
		if err == nil {
			if sessionID != "" && s.ID != sessionID {
				return "", fmt.Errorf("%w: call %s belongs to session %s, not %s", interview.ErrUnknownReference, callRef, s.ID, sessionID)
			}
			return s.ID, nil
		}
		if !errors.Is(err, interview.ErrNotFound) {
			return "", err
		}
	}
	if sessionID == "" {
		return "", fmt.Errorf("%w: call %s", interview.ErrUnknownReference, callRef)
	}
	if _, err := o.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, interview.ErrNotFound) {
			return "", fmt.Errorf("%w: session %s", interview.ErrUnknownReference, sessionID)
		}
		return "", err
	}
	return sessionID, nil
}

// AdvanceOnRecordingReady records the answer for ev.Index and moves the
// current index over every contiguous confirmed answer. A record is created
// and dispatched at most once per (session, index); lower indices are routed
// to their record and never move the index back.
func (o *Orchestrator) AdvanceOnRecordingReady(ctx context.Context, ev RecordingEvent) (*Advance, error) {
	return o.recordAnswer(ctx, ev, func(s *interview.Session, existing *interview.Response) (*interview.Response, bool) {
		switch {
		case existing == nil:
			r := o.newResponse(s, ev)
			switch {
			case ev.AudioRef != "":
				r.Stage = interview.StageRecordingReady
			case ev.RecordingRef != "":
				r.Stage = interview.StageAwaitingRecording
			default:
				r.Stage = interview.StageUnscorable
				r.Note = "no answer recorded"
			}
			return r, true

		case existing.Stage == interview.StageAwaitingRecording && ev.AudioRef != "":
			existing.AudioRef = ev.AudioRef
			if ev.RecordingRef != "" {
				existing.RecordingRef = ev.RecordingRef
			}
			existing.Stage = interview.StageRecordingReady
			return existing, true

		default:
			return existing, false
		}
	})
}

// RecordingStatus applies a recording-status callback. Completed recordings
// behave like recording-ready; failed or absent recordings make the answer
// unscorable so completion is never blocked on them.
func (o *Orchestrator) RecordingStatus(ctx context.Context, ev RecordingEvent) (*Advance, error) {
	switch ev.Status {
	case telephony.RecordingCompleted:
		return o.AdvanceOnRecordingReady(ctx, ev)
	case telephony.RecordingFailed, telephony.RecordingAbsent:
	default:
		return &Advance{Duplicate: true}, nil
	}

	return o.recordAnswer(ctx, ev, func(s *interview.Session, existing *interview.Response) (*interview.Response, bool) {
		switch {
		case existing == nil:
			r := o.newResponse(s, ev)
			r.Stage = interview.StageUnscorable
			r.Note = "recording unavailable"
			return r, true

		case existing.Stage == interview.StageAwaitingRecording:
			_ = existing.MarkUnscorable("recording unavailable")
			return existing, true

		default:
			return existing, false
		}
	})
}

func (o *Orchestrator) newResponse(s *interview.Session, ev RecordingEvent) *interview.Response {
	now := o.now()
	return &interview.Response{
		SessionID:    s.ID,
		Index:        ev.Index,
		Question:     s.Questions[ev.Index],
		AudioRef:     ev.AudioRef,
		RecordingRef: ev.RecordingRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// apply decides how a callback changes the record for its index. existing is
// nil when no record exists yet. It returns the record and whether it must be
// written.
type apply func(s *interview.Session, existing *interview.Response) (*interview.Response, bool)

func (o *Orchestrator) recordAnswer(ctx context.Context, ev RecordingEvent, fn apply) (*Advance, error) {
	var (
		out       = &Advance{}
		toProcess *interview.Response
		check     bool
		session   *interview.Session
	)

	err := o.actors.do(ctx, ev.SessionID, func() error {
		s, err := o.store.GetSession(ctx, ev.SessionID)
		if errors.Is(err, interview.ErrNotFound) {
			return fmt.Errorf("%w: session %s", interview.ErrUnknownReference, ev.SessionID)
		}
		if err != nil {
			return err
		}
		if ev.CallRef != "" && s.CallRef != "" && ev.CallRef != s.CallRef {
			return fmt.Errorf("%w: call %s for session %s", interview.ErrUnknownReference, ev.CallRef, s.ID)
		}
		if !s.ValidIndex(ev.Index) {
			return fmt.Errorf("%w: %d of %d", interview.ErrInvalidIndex, ev.Index, len(s.Questions))
		}
		out.Session = s.Clone()

		switch s.Status {
		case interview.StatusPending:
			return fmt.Errorf("%w: session %s has no call", interview.ErrInvalidState, s.ID)
		case interview.StatusCompleted, interview.StatusFailed:
			out.Duplicate = true
			return nil
		}

		log := logger.ForResponse(o.logger, s.ID, ev.Index)

		existing, err := o.store.GetResponse(ctx, interview.Key{SessionID: s.ID, Index: ev.Index})
		if err != nil && !errors.Is(err, interview.ErrNotFound) {
			return err
		}
		if err != nil {
			existing = nil
		}

		r, write := fn(s, existing)
		switch {
		case !write:
			out.Duplicate = true
			log.Debug("duplicate recording callback", zap.String(logger.FieldStage, string(r.Stage)))
		case existing == nil:
			stored, created, err := o.store.CreateResponse(ctx, r)
			if err != nil {
				return err
			}
			if !created {
				out.Duplicate = true
			}
			r = stored
		default:
			r.UpdatedAt = o.now()
			if err := o.store.UpdateResponse(ctx, r); err != nil {
				return err
			}
		}

		if write && !out.Duplicate {
			log.Info("answer recorded", zap.String(logger.FieldStage, string(r.Stage)))
			if r.Stage == interview.StageRecordingReady {
				toProcess = r
			}
			if r.Stage.Terminal() {
				check = true
			}
		}

		advanced, err := o.catchUp(ctx, s)
		if err != nil {
			return err
		}
		if advanced && s.LoopDone() {
			check = true
		}

		session = s
		out.Session = s.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if toProcess != nil {
		o.dispatch(session, toProcess)
	}
	if check {
		o.pipeline.ScheduleCompletion(ev.SessionID)
	}
	return out, nil
}

// catchUp moves the current index over the contiguous run of existing
// records. Callers run on the session mailbox.
func (o *Orchestrator) catchUp(ctx context.Context, s *interview.Session) (bool, error) {
	start := s.Index
	for !s.LoopDone() {
		_, err := o.store.GetResponse(ctx, interview.Key{SessionID: s.ID, Index: s.Index})
		if errors.Is(err, interview.ErrNotFound) {
			break
		}
		if err != nil {
			return false, err
		}
		s.Index++
	}
	if s.Index == start {
		return false, nil
	}

	if err := o.store.UpdateSession(ctx, s); err != nil {
		return false, err
	}
	logger.ForSession(o.logger, s.ID).Debug("question index advanced",
		zap.Int("from", start),
		zap.Int("to", s.Index),
	)
	return true, nil
}
