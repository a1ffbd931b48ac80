package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
)

// Result availability reported by GetResult.
const (
	ResultReady    = "ready"
	ResultNotReady = "not_ready"
	ResultFailed   = "failed"
)

// State is a snapshot of a session and its answers.
type State struct {
	Session   *interview.Session    `json:"session"`
	Responses []*interview.Response `json:"responses"`
}

// ResultView never hides a failed session behind an empty result.
type ResultView struct {
	Status string            `json:"status"`
	Result *interview.Result `json:"result,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

// Prompt is the next thing the caller hears.
type Prompt struct {
	Index    int
	Question string
	Greeting bool
	// Closing ends the call.
	Closing bool
}

func (o *Orchestrator) GetSessionState(ctx context.Context, sessionID string) (*State, error) {
	s, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rs, err := o.store.ListResponses(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []*interview.Response{}
	}
	return &State{Session: s, Responses: rs}, nil
}

func (o *Orchestrator) GetResult(ctx context.Context, sessionID string) (*ResultView, error) {
	s, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch s.Status {
	case interview.StatusFailed:
		return &ResultView{Status: ResultFailed, Reason: s.FailureReason}, nil
	case interview.StatusCompleted:
		res, err := o.store.GetResult(ctx, sessionID)
		if errors.Is(err, interview.ErrNotFound) {
			return &ResultView{Status: ResultNotReady}, nil
		}
		if err != nil {
			return nil, err
		}
		return &ResultView{Status: ResultReady, Result: res}, nil
	default:
		return &ResultView{Status: ResultNotReady}, nil
	}
}

// NextPrompt returns the prompt for the current index. It does not change state.
func (o *Orchestrator) NextPrompt(ctx context.Context, sessionID string) (*Prompt, error) {
	s, err := o.store.GetSession(ctx, sessionID)
	if errors.Is(err, interview.ErrNotFound) {
		return nil, fmt.Errorf("%w: session %s", interview.ErrUnknownReference, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return promptAt(s, s.Index), nil
}

// PromptAfter returns what follows the answer to question answered. The
// call never goes back to a question it already asked.
func PromptAfter(s *interview.Session, answered int) *Prompt {
	return promptAt(s, max(s.Index, answered+1))
}

func promptAt(s *interview.Session, i int) *Prompt {
	if s.Status.Terminal() || i >= len(s.Questions) {
		return &Prompt{Index: len(s.Questions), Closing: true}
	}
	return &Prompt{Index: i, Question: s.Questions[i], Greeting: i == 0}
}

// Retranscribe reruns the pipeline for an answer that has audio. The
// record restarts at RecordingReady with a new attempt number; a result
// already written for the session is not recomputed.
func (o *Orchestrator) Retranscribe(ctx context.Context, sessionID string, index int) (*interview.Response, error) {
	var (
		out     *interview.Response
		session *interview.Session
	)

	err := o.actors.do(ctx, sessionID, func() error {
		s, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status == interview.StatusFailed {
			return fmt.Errorf("%w: session %s failed", interview.ErrInvalidState, s.ID)
		}
		if !s.ValidIndex(index) {
			return fmt.Errorf("%w: %d of %d", interview.ErrInvalidIndex, index, len(s.Questions))
		}

		r, err := o.store.GetResponse(ctx, interview.Key{SessionID: s.ID, Index: index})
		if err != nil {
			return err
		}
		if r.AudioRef == "" {
			return fmt.Errorf("%w: answer %d has no recording", interview.ErrInvalidState, index)
		}
		now := o.now()
		if !r.Stage.Terminal() && now.Sub(r.UpdatedAt) < o.cfg.StaleAfter {
			return fmt.Errorf("%w: answer %d is still processing", interview.ErrInvalidState, index)
		}

		r.Attempt++
		r.Stage = interview.StageRecordingReady
		r.Transcript = ""
		r.Score = 0
		r.Feedback = ""
		r.Evaluated = false
		r.Note = ""
		r.UpdatedAt = now
		if err := o.store.UpdateResponse(ctx, r); err != nil {
			return err
		}

		logger.ForResponse(o.logger, s.ID, index).Info("re-transcription requested", zap.Int("attempt", r.Attempt))
		out, session = r.Clone(), s
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.dispatch(session, out)
	return out, nil
}
