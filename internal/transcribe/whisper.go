// Package transcribe turns recorded answers into text.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
)

const providerName = "openai"

// AudioSource downloads recorded media by reference.
type AudioSource interface {
	Fetch(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

// Whisper transcribes audio with the OpenAI transcription endpoint.
type Whisper struct {
	client openai.Client
	audio  AudioSource
	model  openai.AudioModel
	logger *zap.Logger
}

// NewWhisper builds a transcriber. Retries are left to the caller, so the
// SDK retry loop is disabled.
func NewWhisper(apiKey string, audio AudioSource, model string, log *zap.Logger, opts ...option.RequestOption) *Whisper {
	if model = strings.TrimSpace(model); model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &Whisper{
		client: openai.NewClient(all...),
		audio:  audio,
		model:  openai.AudioModel(model),
		logger: logger.WithProvider(log, providerName, model),
	}
}

// Transcribe fetches the audio behind ref and returns its text. An empty
// string with a nil error means the recording held no speech.
func (w *Whisper) Transcribe(ctx context.Context, ref string) (string, error) {
	body, name, err := w.audio.Fetch(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: fetch audio: %v", interview.ErrTranscriptionFailed, err)
	}
	defer body.Close()

	if name == "" {
		name = "answer.mp3"
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(body, name, contentType(name)),
		Model: w.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", interview.ErrTranscriptionFailed, err)
	}

	text := strings.TrimSpace(resp.Text)
	w.logger.Debug("transcription done", zap.String("audio", ref), zap.Int("length", len(text)))

	return text, nil
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".wav"):
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}
