package ai

import (
	"fmt"

	"github.com/spigell/ai-screener/internal/interview"
)

const (
	hireThreshold     = 7.0
	considerThreshold = 5.0
	strongAnswer      = 7.0
	weakAnswer        = 5.0
	noneEvaluated     = "No answer could be evaluated; a human review of the recordings is needed."
)

// Recommend maps an overall score to a category.
func Recommend(score float64) interview.Recommendation {
	switch {
	case score >= hireThreshold:
		return interview.RecommendationHire
	case score >= considerThreshold:
		return interview.RecommendationConsider
	default:
		return interview.RecommendationReject
	}
}

// Fallback builds an assessment without a model from evaluated answers only.
func Fallback(answers []Answer) *Assessment {
	var (
		sum   float64
		count int
		a     = &Assessment{Strengths: []string{}, Improvements: []string{}}
	)

	for _, ans := range answers {
		if !ans.Evaluated {
			continue
		}
		sum += ans.Score
		count++

		note := fmt.Sprintf("Question %d: %s", ans.Index+1, feedbackOrScore(ans))
		switch {
		case ans.Score >= strongAnswer:
			a.Strengths = append(a.Strengths, note)
		case ans.Score < weakAnswer:
			a.Improvements = append(a.Improvements, note)
		}
	}

	if count == 0 {
		a.Recommendation = interview.RecommendationConsider
		a.Summary = noneEvaluated
		return a
	}

	a.OverallScore = interview.ClampScore(sum / float64(count))
	a.Recommendation = Recommend(a.OverallScore)
	a.Summary = fmt.Sprintf("Average of %d evaluated answers.", count)
	return a
}

// Evaluated counts answers that carry a real score.
func Evaluated(answers []Answer) (evaluated int, skipped []int) {
	for _, ans := range answers {
		if ans.Evaluated {
			evaluated++
			continue
		}
		skipped = append(skipped, ans.Index)
	}
	return evaluated, skipped
}

// NoneEvaluated is the assessment used when every answer was unscorable.
func NoneEvaluated() *Assessment {
	return &Assessment{
		Recommendation: interview.RecommendationConsider,
		Strengths:      []string{},
		Improvements:   []string{},
		Summary:        noneEvaluated,
	}
}

func feedbackOrScore(ans Answer) string {
	if ans.Feedback != "" {
		return ans.Feedback
	}
	return fmt.Sprintf("scored %.1f", ans.Score)
}
