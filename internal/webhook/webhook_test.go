package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/orchestrator"
	"github.com/spigell/ai-screener/internal/pipeline"
	"github.com/spigell/ai-screener/internal/store/memory"
	"github.com/spigell/ai-screener/internal/telephony"
)

const (
	base      = "https://screener.example.com"
	authToken = "secret"
)

type stubCalls struct{}

func (stubCalls) PlaceCall(context.Context, telephony.CallRequest) (string, error) {
	return "CA1", nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, string) (string, error) {
	return "an answer", nil
}

type stubScorer struct{}

func (stubScorer) ScoreResponse(context.Context, string, string, string) (*ai.ResponseScore, error) {
	return &ai.ResponseScore{Score: 7, Feedback: "ok"}, nil
}

func (stubScorer) Aggregate(context.Context, []ai.Answer, string) (*ai.Assessment, error) {
	return &ai.Assessment{OverallScore: 7, Recommendation: interview.RecommendationHire}, nil
}

type fixture struct {
	router  http.Handler
	orch    *orchestrator.Orchestrator
	store   *memory.Store
	session *interview.Session
}

func newFixture(t *testing.T, cfg Config, questions ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	urls := telephony.CallbackURLs{Base: base}
	log := zaptest.NewLogger(t)

	orch := orchestrator.New(ctx, orchestrator.Deps{
		Store:       st,
		Calls:       stubCalls{},
		URLs:        urls,
		Transcriber: stubTranscriber{},
		Scorer:      stubScorer{},
		Logger:      log,
	}, orchestrator.Config{Pipeline: pipeline.Config{Backoff: time.Millisecond}})
	t.Cleanup(orch.Wait)

	if err := st.CreateCandidate(ctx, &interview.Candidate{ID: "c1", Phone: "+15550002222"}); err != nil {
		t.Fatalf("create candidate: %v", err)
	}
	if err := st.CreateJob(ctx, &interview.Job{ID: "j1", Title: "Engineer", Questions: questions}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	s, err := orch.CreateInterview(ctx, "c1", "j1")
	if err != nil {
		t.Fatalf("CreateInterview() error = %v", err)
	}
	if s, err = orch.StartInterview(ctx, s.ID); err != nil {
		t.Fatalf("StartInterview() error = %v", err)
	}

	r := chi.NewRouter()
	New(orch, urls, cfg, log).Routes(r)
	return &fixture{router: r, orch: orch, store: st, session: s}
}

func (f *fixture) post(t *testing.T, target string, form url.Values, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func recordingForm(index int) url.Values {
	sid := "RE" + strconv.Itoa(index)
	return url.Values{
		"AccountSid":        {"ACtest"},
		"CallSid":           {"CA1"},
		"RecordingSid":      {sid},
		"RecordingUrl":      {"https://api.twilio.com/2010-04-01/Accounts/ACtest/Recordings/" + sid},
		"RecordingDuration": {"12"},
	}
}

func pathWithQuery(path, session string, index int) string {
	return fmt.Sprintf("%s?%s=%s&%s=%d", path, telephony.ParamSession, session, telephony.ParamQuestion, index)
}

func TestPromptRendersFirstQuestion(t *testing.T) {
	f := newFixture(t, Config{}, "Why Go?", "Tell me about channels")

	req := httptest.NewRequest(http.MethodGet, telephony.PathPrompt+"?session_id="+f.session.ID, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Question: Why Go?") || !strings.Contains(body, "Welcome to your automated interview") {
		t.Fatalf("unexpected twiml %s", body)
	}
	if !strings.Contains(body, "question=0") {
		t.Fatalf("expected action for question 0: %s", body)
	}
}

func TestRecordingReadyAdvancesPrompt(t *testing.T) {
	f := newFixture(t, Config{}, "Why Go?", "Tell me about channels")

	rec := f.post(t, pathWithQuery(telephony.PathRecordingReady, f.session.ID, 0), recordingForm(0), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Question: Tell me about channels") || strings.Contains(body, "Welcome") {
		t.Fatalf("expected second question, got %s", body)
	}

	dup := f.post(t, pathWithQuery(telephony.PathRecordingReady, f.session.ID, 0), recordingForm(0), "")
	if dup.Code != http.StatusOK || !strings.Contains(dup.Body.String(), "Tell me about channels") {
		t.Fatalf("duplicate must replay the same prompt, got %d %s", dup.Code, dup.Body)
	}

	last := f.post(t, pathWithQuery(telephony.PathRecordingReady, f.session.ID, 1), recordingForm(1), "")
	if !strings.Contains(last.Body.String(), "<Hangup>") {
		t.Fatalf("expected closing after last answer, got %s", last.Body)
	}
	f.orch.Wait()

	rs, _ := f.store.ListResponses(context.Background(), f.session.ID)
	if len(rs) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(rs))
	}
	s, _ := f.store.GetSession(context.Background(), f.session.ID)
	if s.Status != interview.StatusCompleted {
		t.Fatalf("expected completed, got %s", s.Status)
	}
}

func TestRejectsBadCallbacks(t *testing.T) {
	f := newFixture(t, Config{}, "Why Go?")

	cases := map[string]struct {
		target string
		form   url.Values
	}{
		"missing question": {target: telephony.PathRecordingReady + "?session_id=" + f.session.ID, form: recordingForm(0)},
		"out of range":     {target: pathWithQuery(telephony.PathRecordingReady, f.session.ID, 3), form: recordingForm(0)},
		"missing call sid": {target: pathWithQuery(telephony.PathRecordingReady, f.session.ID, 0), form: url.Values{"RecordingUrl": {"x"}}},
		"bad call status":  {target: telephony.PathCallStatus, form: url.Values{"CallSid": {"CA1"}}},
		"bad rec status":   {target: pathWithQuery(telephony.PathRecordingStatus, f.session.ID, 0), form: url.Values{"CallSid": {"CA1"}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.post(t, tc.target, tc.form, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}

	rs, _ := f.store.ListResponses(context.Background(), f.session.ID)
	if len(rs) != 0 {
		t.Fatalf("rejected callbacks must not create responses")
	}
}

func TestCallStatusAcknowledgesUnknownAndDuplicate(t *testing.T) {
	f := newFixture(t, Config{}, "Why Go?")

	unknown := f.post(t, telephony.PathCallStatus, url.Values{"CallSid": {"CAnope"}, "CallStatus": {"failed"}}, "")
	if unknown.Code != http.StatusNoContent {
		t.Fatalf("unknown call must be acknowledged, got %d", unknown.Code)
	}

	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"busy"}, "CallDuration": {"0"}}
	if rec := f.post(t, telephony.PathCallStatus+"?session_id="+f.session.ID, form, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := f.post(t, telephony.PathCallStatus+"?session_id="+f.session.ID, form, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("duplicate must be acknowledged, got %d", rec.Code)
	}

	s, _ := f.store.GetSession(context.Background(), f.session.ID)
	if s.Status != interview.StatusFailed {
		t.Fatalf("expected failed, got %s", s.Status)
	}
}

func TestRecordingStatusFailed(t *testing.T) {
	f := newFixture(t, Config{}, "Why Go?")

	form := url.Values{"CallSid": {"CA1"}, "RecordingSid": {"RE0"}, "RecordingStatus": {"failed"}}
	rec := f.post(t, pathWithQuery(telephony.PathRecordingStatus, f.session.ID, 0), form, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	f.orch.Wait()

	r, err := f.store.GetResponse(context.Background(), interview.Key{SessionID: f.session.ID, Index: 0})
	if err != nil || r.Stage != interview.StageUnscorable {
		t.Fatalf("expected unscorable response, got %+v %v", r, err)
	}
}

func TestSignatureValidation(t *testing.T) {
	f := newFixture(t, Config{AuthToken: authToken, ValidateSignature: true}, "Why Go?", "Second")

	target := pathWithQuery(telephony.PathRecordingReady, f.session.ID, 0)
	form := recordingForm(0)

	forged := f.post(t, target, form, "bm90LWEtc2lnbmF0dXJl")
	if forged.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", forged.Code)
	}
	if rs, _ := f.store.ListResponses(context.Background(), f.session.ID); len(rs) != 0 {
		t.Fatalf("forged callback must not mutate state")
	}

	signed := f.post(t, target, form, telephony.Sign(authToken, base+target, form))
	if signed.Code != http.StatusOK {
		body, _ := io.ReadAll(signed.Body)
		t.Fatalf("expected 200 for signed request, got %d: %s", signed.Code, body)
	}
}
