package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/dialguard"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/pipeline"
	"github.com/spigell/ai-screener/internal/store/memory"
	"github.com/spigell/ai-screener/internal/telephony"
)

type fakeCalls struct {
	mu       sync.Mutex
	requests []telephony.CallRequest
	err      error
}

func (f *fakeCalls) PlaceCall(_ context.Context, req telephony.CallRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("CA%d", len(f.requests)), nil
}

func (f *fakeCalls) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeTranscriber struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, ref string) (string, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, ref string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[ref]++
	fn := f.fn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, ref)
	}
	return "answer for " + ref, nil
}

func (f *fakeTranscriber) callsFor(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ref]
}

type fakeScorer struct {
	score        float64
	aggregateErr error
	delay        time.Duration

	mu         sync.Mutex
	aggregates int
	answers    []ai.Answer
}

func (f *fakeScorer) ScoreResponse(context.Context, string, string, string) (*ai.ResponseScore, error) {
	return &ai.ResponseScore{Score: f.score, Feedback: "solid answer"}, nil
}

func (f *fakeScorer) Aggregate(_ context.Context, answers []ai.Answer, _ string) (*ai.Assessment, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.aggregates++
	f.answers = answers
	f.mu.Unlock()

	if f.aggregateErr != nil {
		return nil, f.aggregateErr
	}
	return &ai.Assessment{
		OverallScore:   f.score,
		Recommendation: ai.Recommend(f.score),
		Strengths:      []string{"communication"},
		Summary:        "model summary",
	}, nil
}

func (f *fakeScorer) aggregateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aggregates
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	o           *Orchestrator
	store       *memory.Store
	calls       *fakeCalls
	transcriber *fakeTranscriber
	scorer      *fakeScorer
	clock       *clock
	seq         int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:       memory.New(),
		calls:       &fakeCalls{},
		transcriber: &fakeTranscriber{},
		scorer:      &fakeScorer{score: 8},
		clock:       &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.o = New(ctx, Deps{
		Store:       h.store,
		Calls:       h.calls,
		URLs:        telephony.CallbackURLs{Base: "https://screener.example.com"},
		Guards:      dialguard.Defaults(dialguard.Config{}),
		Transcriber: h.transcriber,
		Scorer:      h.scorer,
		Logger:      zaptest.NewLogger(t),
	}, Config{
		Pipeline: pipeline.Config{
			Timeout:    50 * time.Millisecond,
			Backoff:    time.Millisecond,
			MaxBackoff: time.Millisecond,
		},
	})
	h.o.now = h.clock.Now

	t.Cleanup(func() {
		h.o.Wait()
		cancel()
	})
	return h
}

// session creates a Pending interview with the given questions.
func (h *harness) session(t *testing.T, phone string, questions ...string) *interview.Session {
	t.Helper()
	ctx := context.Background()

	h.seq++
	id := fmt.Sprintf("%d", h.seq)
	if err := h.store.CreateCandidate(ctx, &interview.Candidate{ID: "c" + id, Name: "Ada", Phone: phone, ResumeText: "Go developer"}); err != nil {
		t.Fatalf("create candidate: %v", err)
	}
	if err := h.store.CreateJob(ctx, &interview.Job{ID: "j" + id, Title: "Backend engineer", Questions: questions}); err != nil {
		t.Fatalf("create job: %v", err)
	}

	s, err := h.o.CreateInterview(ctx, "c"+id, "j"+id)
	if err != nil {
		t.Fatalf("CreateInterview() error = %v", err)
	}
	return s
}

// started creates and starts an interview.
func (h *harness) started(t *testing.T, questions ...string) *interview.Session {
	t.Helper()

	s := h.session(t, "+15550002222", questions...)
	started, err := h.o.StartInterview(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("StartInterview() error = %v", err)
	}
	return started
}

func (h *harness) get(t *testing.T, id string) *interview.Session {
	t.Helper()
	s, err := h.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	return s
}

func (h *harness) responses(t *testing.T, id string) []*interview.Response {
	t.Helper()
	rs, err := h.store.ListResponses(context.Background(), id)
	if err != nil {
		t.Fatalf("ListResponses() error = %v", err)
	}
	return rs
}

func recording(s *interview.Session, index int) RecordingEvent {
	return RecordingEvent{
		SessionID:    s.ID,
		Index:        index,
		CallRef:      s.CallRef,
		AudioRef:     audioRef(index),
		RecordingRef: fmt.Sprintf("RE%d", index),
	}
}

func audioRef(index int) string {
	return fmt.Sprintf("/2010-04-01/Accounts/ACtest/Recordings/RE%d", index)
}

func (h *harness) answerAll(t *testing.T, s *interview.Session) {
	t.Helper()
	for i := range s.Questions {
		if _, err := h.o.AdvanceOnRecordingReady(context.Background(), recording(s, i)); err != nil {
			t.Fatalf("AdvanceOnRecordingReady(%d) error = %v", i, err)
		}
	}
	h.o.Wait()
}

var errAggregate = errors.New("model unavailable")
