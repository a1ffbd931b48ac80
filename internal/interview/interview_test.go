package interview

import (
	"errors"
	"math"
	"testing"
)

func TestStageCanAdvance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from Stage
		to   Stage
		want bool
	}{
		{StageAwaitingRecording, StageRecordingReady, true},
		{StageRecordingReady, StageTranscribing, true},
		{StageTranscribing, StageTranscribed, true},
		{StageTranscribed, StageScoring, true},
		{StageScoring, StageScored, true},
		{StageTranscribing, StageUnscorable, true},
		{StageAwaitingRecording, StageUnscorable, true},
		{StageTranscribed, StageTranscribing, false},
		{StageScored, StageUnscorable, false},
		{StageUnscorable, StageScored, false},
		{StageScoring, Stage("bogus"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			t.Parallel()
			if got := tc.from.CanAdvance(tc.to); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestResponseMarkUnscorable(t *testing.T) {
	r := &Response{Index: 1, Stage: StageScoring, Score: 7, Evaluated: true}

	if err := r.MarkUnscorable("scoring failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Stage != StageUnscorable || r.Score != 0 || r.Evaluated {
		t.Fatalf("unexpected response after mark: %+v", r)
	}

	err := r.MarkUnscorable("again")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestClampScore(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{
		-3:         0,
		4.5:        4.5,
		12:         10,
		math.NaN(): 0,
	}
	for in, want := range cases {
		if got := ClampScore(in); got != want {
			t.Fatalf("ClampScore(%v): expected %v, got %v", in, want, got)
		}
	}
}

func TestParseRecommendation(t *testing.T) {
	t.Parallel()

	cases := map[string]Recommendation{
		"Hire":     RecommendationHire,
		" hire ":   RecommendationHire,
		"REJECT":   RecommendationReject,
		"Consider": RecommendationConsider,
		"maybe":    RecommendationConsider,
		"":         RecommendationConsider,
	}
	for in, want := range cases {
		if got := ParseRecommendation(in); got != want {
			t.Fatalf("ParseRecommendation(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := &Session{ID: "s1", Questions: []string{"a", "b"}}
	c := s.Clone()
	c.Questions[0] = "changed"

	if s.Questions[0] != "a" {
		t.Fatalf("expected original questions to be untouched, got %v", s.Questions)
	}
}
