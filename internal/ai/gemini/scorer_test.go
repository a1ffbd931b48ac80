package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/interview"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, _ string, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestScoreResponse(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"score\": \"12\", \"feedback\": \"Very thorough\"}\n```"}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	got, err := scorer.ScoreResponse(context.Background(), "Why Go?", "Because of goroutines", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Score != 10 {
		t.Fatalf("expected clamped score 10, got %v", got.Score)
	}
	if got.Feedback != "Very thorough" {
		t.Fatalf("unexpected feedback: %q", got.Feedback)
	}
	for _, want := range []string{"Why Go?", "Because of goroutines", noContext} {
		if !strings.Contains(stub.lastPrompt, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
}

func TestScoreResponseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		stub       *stubGenerator
		transcript string
	}{
		{name: "empty transcript", stub: &stubGenerator{response: `{"score": 5}`}, transcript: " "},
		{name: "generator error", stub: &stubGenerator{err: errors.New("boom")}, transcript: "answer"},
		{name: "not json", stub: &stubGenerator{response: "great answer"}, transcript: "answer"},
		{name: "no score", stub: &stubGenerator{response: `{"feedback": "ok"}`}, transcript: "answer"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			scorer := NewScorer(tt.stub, zap.NewNop(), 0)
			_, err := scorer.ScoreResponse(context.Background(), "q", tt.transcript, "")
			if !errors.Is(err, interview.ErrScoringFailed) {
				t.Fatalf("expected ErrScoringFailed, got %v", err)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	stub := &stubGenerator{response: `{
		"overall_score": 6.5,
		"recommendation": "consider",
		"strengths": ["Concurrency knowledge"],
		"areas_for_improvement": "- Testing\n- Profiling",
		"summary": "Solid fundamentals."
	}`}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	got, err := scorer.Aggregate(context.Background(), []ai.Answer{
		{Index: 0, Question: "q0", Transcript: "a0", Score: 8, Evaluated: true},
		{Index: 1, Question: "q1", Transcript: interview.UnableToTranscribe},
	}, "Five years of Go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.OverallScore != 6.5 || got.Recommendation != interview.RecommendationConsider {
		t.Fatalf("unexpected assessment: %+v", got)
	}
	if len(got.Strengths) != 1 || len(got.Improvements) != 2 {
		t.Fatalf("unexpected lists: %v / %v", got.Strengths, got.Improvements)
	}
	if strings.Contains(stub.lastPrompt, interview.UnableToTranscribe) {
		t.Fatalf("unevaluated transcript must not be sent to the model")
	}
	if !strings.Contains(stub.lastPrompt, `"evaluated": false`) {
		t.Fatalf("expected unevaluated marker in prompt")
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"```json\n{\"a\":1}\n```":       `{"a":1}`,
		"Here you go: {\"a\":1} thanks": `{"a":1}`,
		`{"a":1}`:                       `{"a":1}`,
	}
	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Fatalf("extractJSON(%q): expected %q, got %q", in, want, got)
		}
	}
}
