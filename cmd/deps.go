package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/ai"
	"github.com/spigell/ai-screener/internal/ai/gemini"
	"github.com/spigell/ai-screener/internal/dialguard"
	"github.com/spigell/ai-screener/internal/orchestrator"
	"github.com/spigell/ai-screener/internal/secrets"
	"github.com/spigell/ai-screener/internal/store"
	"github.com/spigell/ai-screener/internal/store/memory"
	"github.com/spigell/ai-screener/internal/store/sqlite"
	"github.com/spigell/ai-screener/internal/telephony"
	"github.com/spigell/ai-screener/internal/transcribe"
)

func openStore(cfg StoreConfig) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		return sqlite.New(cfg.DSN)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func twilioToken(cfg TwilioConfig) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "twilio auth token",
		File:  cfg.AuthTokenFile,
		Value: cfg.AuthToken,
		Env:   "TWILIO_AUTH_TOKEN",
	})
}

func newTelephony(cfg TwilioConfig, logger *zap.Logger) (*telephony.Client, error) {
	if cfg.AccountSID == "" || cfg.From == "" {
		return nil, fmt.Errorf("twilio.account-sid and twilio.from are required")
	}
	token, err := twilioToken(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w (set twilio.auth-token-file or TWILIO_AUTH_TOKEN)", err)
	}

	return telephony.New(telephony.Config{
		AccountSID: cfg.AccountSID,
		AuthToken:  token,
		From:       cfg.From,
	}, logger.Named("twilio")), nil
}

func newTranscriber(cfg OpenAIConfig, audio transcribe.AudioSource, logger *zap.Logger) (*transcribe.Whisper, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "openai api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
		Env:   "OPENAI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set openai.api-key-file or OPENAI_API_KEY)", err)
	}

	return transcribe.NewWhisper(apiKey, audio, cfg.Model, logger), nil
}

func newScorer(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (ai.Scorer, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	// The pipeline retries every scoring attempt, so the generator makes one call.
	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Model, 0, logger.With(zap.String("model", cfg.Model)))
	if err != nil {
		return nil, err
	}

	return gemini.NewScorer(generator, logger, cfg.MaxLogLength), nil
}

// flow bundles what every command that touches sessions needs.
type flow struct {
	store  store.Store
	calls  *telephony.Client
	guards []dialguard.Guard
	orch   *orchestrator.Orchestrator
}

func newFlow(ctx context.Context, config *Config, logger *zap.Logger) (*flow, error) {
	st, err := openStore(config.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	calls, err := newTelephony(config.Twilio, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building twilio client: %w", err)
	}

	transcriber, err := newTranscriber(config.OpenAI, calls, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building transcriber: %w", err)
	}

	scorer, err := newScorer(ctx, config.Gemini, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building scorer: %w", err)
	}

	guards := dialguard.Defaults(config.Dial)
	orch := orchestrator.New(ctx, orchestrator.Deps{
		Store:       st,
		Calls:       calls,
		URLs:        telephony.CallbackURLs{Base: config.PublicURL},
		Guards:      guards,
		Transcriber: transcriber,
		Scorer:      scorer,
		Logger:      logger.Named("orchestrator"),
	}, config.Interview)

	return &flow{store: st, calls: calls, guards: guards, orch: orch}, nil
}

// Close waits for dispatched pipeline work before closing the store.
func (f *flow) Close() error {
	f.orch.Wait()
	return f.store.Close()
}
