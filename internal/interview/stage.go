package interview

import (
	"fmt"
	"strings"
)

// Stage is the pipeline position of a response.
type Stage string

const (
	StageAwaitingRecording Stage = "awaiting_recording"
	StageRecordingReady    Stage = "recording_ready"
	StageTranscribing      Stage = "transcribing"
	StageTranscribed       Stage = "transcribed"
	StageScoring           Stage = "scoring"
	StageScored            Stage = "scored"
	StageUnscorable        Stage = "unscorable"
)

// UnableToTranscribe is stored as the transcript when every attempt failed.
const UnableToTranscribe = "Unable to transcribe audio"

var stageOrder = map[Stage]int{
	StageAwaitingRecording: 0,
	StageRecordingReady:    1,
	StageTranscribing:      2,
	StageTranscribed:       3,
	StageScoring:           4,
	StageScored:            5,
	StageUnscorable:        5,
}

// Terminal reports whether no further pipeline work happens for the stage.
func (s Stage) Terminal() bool {
	return s == StageScored || s == StageUnscorable
}

func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// CanAdvance reports whether moving from s to next keeps stages forward-only.
// Unscorable is reachable from every non-terminal stage.
func (s Stage) CanAdvance(next Stage) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == StageUnscorable {
		return true
	}
	return stageOrder[next] > stageOrder[s]
}

// Advance moves the response to next or returns ErrInvalidState.
func (r *Response) Advance(next Stage) error {
	if !r.Stage.CanAdvance(next) {
		return fmt.Errorf("%w: response %d stage %s -> %s", ErrInvalidState, r.Index, r.Stage, next)
	}
	r.Stage = next
	return nil
}

// MarkUnscorable moves the response to the terminal failure branch.
func (r *Response) MarkUnscorable(note string) error {
	if err := r.Advance(StageUnscorable); err != nil {
		return err
	}
	r.Score = 0
	r.Evaluated = false
	r.Note = note
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
