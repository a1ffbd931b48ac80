package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/utils"
)

const (
	systemInstruction   = "You evaluate job interview answers. Always answer with a single JSON object."
	defaultMaxLogLength = 200
	noContext           = "not provided"
)

//go:embed score_prompt.md
var scoreTemplate string

//go:embed aggregate_prompt.md
var aggregateTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Scorer implements ai.Scorer on top of a Gemini generator.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Scorer = (*Scorer)(nil)

func NewScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		logger:    logger.WithProvider(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

// ScoreResponse grades one answer. Scores are clamped to [0,10].
func (s *Scorer) ScoreResponse(ctx context.Context, question, transcript, candidateContext string) (*ai.ResponseScore, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is empty", interview.ErrScoringFailed)
	}

	prompt := fill(scoreTemplate, map[string]string{
		"{{CONTEXT}}":    orDefault(candidateContext),
		"{{QUESTION}}":   question,
		"{{TRANSCRIPT}}": transcript,
	})

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	data, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interview.ErrScoringFailed, err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("%w: response has no numeric score", interview.ErrScoringFailed)
	}

	return &ai.ResponseScore{
		Score:    interview.ClampScore(score),
		Feedback: coerceString(data["feedback"]),
		Raw:      raw,
	}, nil
}

type answerPayload struct {
	Question   string   `json:"question"`
	Transcript string   `json:"transcript,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Feedback   string   `json:"feedback,omitempty"`
	Evaluated  bool     `json:"evaluated"`
}

// Aggregate produces the overall assessment. Unevaluated answers are sent
// without score so the model can not mistake them for zeros.
func (s *Scorer) Aggregate(ctx context.Context, answers []ai.Answer, candidateContext string) (*ai.Assessment, error) {
	payload := make([]answerPayload, 0, len(answers))
	for _, a := range answers {
		p := answerPayload{Question: a.Question, Evaluated: a.Evaluated}
		if a.Evaluated {
			score := a.Score
			p.Score = &score
			p.Transcript = a.Transcript
			p.Feedback = a.Feedback
		}
		payload = append(payload, p)
	}

	answersJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}

	prompt := fill(aggregateTemplate, map[string]string{
		"{{CONTEXT}}":      orDefault(candidateContext),
		"{{ANSWERS_JSON}}": string(answersJSON),
	})

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	data, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interview.ErrScoringFailed, err)
	}

	overall := coerceFloat(data["overall_score"])
	if math.IsNaN(overall) {
		return nil, fmt.Errorf("%w: response has no overall score", interview.ErrScoringFailed)
	}

	return &ai.Assessment{
		OverallScore:   interview.ClampScore(overall),
		Recommendation: interview.ParseRecommendation(coerceString(data["recommendation"])),
		Strengths:      coerceStrings(data["strengths"]),
		Improvements:   coerceStrings(data["areas_for_improvement"]),
		Summary:        coerceString(data["summary"]),
		Raw:            raw,
	}, nil
}

func (s *Scorer) generate(ctx context.Context, prompt string) (string, error) {
	s.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interview.ErrScoringFailed, err)
	}

	s.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)
	return raw, nil
}

func fill(template string, values map[string]string) string {
	out := template
	for placeholder, value := range values {
		out = strings.ReplaceAll(out, placeholder, strings.TrimSpace(value))
	}
	return out
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return noContext
	}
	return s
}

func parseObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	return data, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, line := range strings.Split(val, "\n") {
			if s := strings.TrimSpace(strings.TrimLeft(line, "-* ")); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
