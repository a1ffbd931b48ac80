package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
)

type stubAudio struct {
	data string
	err  error
	refs []string
}

func (s *stubAudio) Fetch(_ context.Context, ref string) (io.ReadCloser, string, error) {
	s.refs = append(s.refs, ref)
	if s.err != nil {
		return nil, "", s.err
	}
	return io.NopCloser(strings.NewReader(s.data)), "RE1.mp3", nil
}

func newWhisperServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("expected whisper-1 model, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWhisperTranscribe(t *testing.T) {
	srv := newWhisperServer(t, http.StatusOK, `{"text":"  I have five years of Go experience. "}`)
	audio := &stubAudio{data: "mp3"}

	w := NewWhisper("test-key", audio, "", zap.NewNop(), option.WithBaseURL(srv.URL+"/v1/"))

	text, err := w.Transcribe(context.Background(), "https://api.twilio.com/Recordings/RE1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "I have five years of Go experience." {
		t.Fatalf("unexpected transcript %q", text)
	}
	if len(audio.refs) != 1 {
		t.Fatalf("expected one fetch, got %d", len(audio.refs))
	}
}

func TestWhisperProviderError(t *testing.T) {
	srv := newWhisperServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)

	w := NewWhisper("test-key", &stubAudio{data: "mp3"}, "whisper-1", zap.NewNop(), option.WithBaseURL(srv.URL+"/v1/"))

	_, err := w.Transcribe(context.Background(), "ref")
	if !errors.Is(err, interview.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
}

func TestWhisperFetchError(t *testing.T) {
	w := NewWhisper("test-key", &stubAudio{err: errors.New("404")}, "", zap.NewNop())

	_, err := w.Transcribe(context.Background(), "ref")
	if !errors.Is(err, interview.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
}
