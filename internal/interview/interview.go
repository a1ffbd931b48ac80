package interview

import (
	"time"
)

// Status is the lifecycle state of an interview session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Recommendation is the final hiring category.
type Recommendation string

const (
	RecommendationHire     Recommendation = "Hire"
	RecommendationConsider Recommendation = "Consider"
	RecommendationReject   Recommendation = "Reject"
)

// ParseRecommendation maps free-form model output to a known category.
// Anything unrecognised falls back to Consider.
func ParseRecommendation(s string) Recommendation {
	switch normalize(s) {
	case "hire", "strong hire", "yes":
		return RecommendationHire
	case "reject", "no hire", "no":
		return RecommendationReject
	default:
		return RecommendationConsider
	}
}

// Session is one end-to-end interview attempt for a candidate and a job.
type Session struct {
	ID            string     `json:"id"`
	CandidateID   string     `json:"candidate_id"`
	JobID         string     `json:"job_id"`
	Phone         string     `json:"phone"`
	Questions     []string   `json:"questions"`
	Context       string     `json:"-"`
	Index         int        `json:"current_index"`
	Status        Status     `json:"status"`
	CallRef       string     `json:"call_ref,omitempty"`
	CallDuration  int        `json:"call_duration,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	// CallEndedAt is set when the provider reports the call finished.
	CallEndedAt *time.Time `json:"call_ended_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// LoopDone reports whether every question prompt has been answered.
func (s *Session) LoopDone() bool {
	return s.Index >= len(s.Questions)
}

// ValidIndex reports whether i addresses one of the session questions.
func (s *Session) ValidIndex(i int) bool {
	return i >= 0 && i < len(s.Questions)
}

// Clone returns a deep copy so callers can not mutate store-owned state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Questions = append([]string(nil), s.Questions...)
	c.StartedAt = copyTime(s.StartedAt)
	c.CallEndedAt = copyTime(s.CallEndedAt)
	c.EndedAt = copyTime(s.EndedAt)
	return &c
}

// Response tracks one question answer through recording, transcription and scoring.
type Response struct {
	SessionID    string    `json:"session_id"`
	Index        int       `json:"index"`
	Question     string    `json:"question"`
	AudioRef     string    `json:"audio_ref,omitempty"`
	RecordingRef string    `json:"recording_ref,omitempty"`
	Stage        Stage     `json:"stage"`
	Transcript   string    `json:"transcript,omitempty"`
	Score        float64   `json:"score"`
	Feedback     string    `json:"feedback,omitempty"`
	Evaluated    bool      `json:"evaluated"`
	Note         string    `json:"note,omitempty"`
	Attempt      int       `json:"attempt"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Key is the idempotency key of a response.
type Key struct {
	SessionID string
	Index     int
}

func (r *Response) Key() Key {
	return Key{SessionID: r.SessionID, Index: r.Index}
}

func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Result is the aggregate evaluation written once per completed session.
type Result struct {
	SessionID      string         `json:"session_id"`
	OverallScore   float64        `json:"overall_score"`
	Recommendation Recommendation `json:"recommendation"`
	Strengths      []string       `json:"strengths"`
	Improvements   []string       `json:"areas_for_improvement"`
	Summary        string         `json:"summary,omitempty"`
	Evaluated      int            `json:"evaluated"`
	NotEvaluated   []int          `json:"not_evaluated,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Candidate is the interviewed person.
type Candidate struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	ResumeText string    `json:"resume_text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Job is a position with the ordered interview questions.
type Job struct {
	ID          string    `json:"id"              yaml:"id"`
	Title       string    `json:"title"           yaml:"title"`
	Description string    `json:"description"     yaml:"description"`
	Questions   []string  `json:"questions"       yaml:"questions"`
	CreatedAt   time.Time `json:"created_at"      yaml:"-"`
}

// ClampScore keeps a score inside [0,10].
func ClampScore(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
