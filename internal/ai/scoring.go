// Package ai describes the answer scoring adapter and its local fallback.
package ai

import (
	"context"

	"github.com/spigell/ai-screener/internal/interview"
)

// ResponseScore is the evaluation of a single answer.
type ResponseScore struct {
	Score    float64
	Feedback string
	Raw      string
}

// Answer is one response as seen by aggregation.
type Answer struct {
	Index      int
	Question   string
	Transcript string
	Score      float64
	Feedback   string
	// Evaluated is false for unscorable answers; their Score carries no meaning.
	Evaluated bool
}

// Assessment is the cross-answer evaluation.
type Assessment struct {
	OverallScore   float64
	Recommendation interview.Recommendation
	Strengths      []string
	Improvements   []string
	Summary        string
	Raw            string
}

type Scorer interface {
	ScoreResponse(ctx context.Context, question, transcript, context string) (*ResponseScore, error)
	Aggregate(ctx context.Context, answers []Answer, context string) (*Assessment, error)
}

// AnswersFrom converts stored responses into aggregation input.
func AnswersFrom(responses []*interview.Response) []Answer {
	out := make([]Answer, 0, len(responses))
	for _, r := range responses {
		out = append(out, Answer{
			Index:      r.Index,
			Question:   r.Question,
			Transcript: r.Transcript,
			Score:      r.Score,
			Feedback:   r.Feedback,
			Evaluated:  r.Stage == interview.StageScored && r.Evaluated,
		})
	}
	return out
}
