package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/api"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/server"
	"github.com/spigell/ai-screener/internal/telemetry"
	"github.com/spigell/ai-screener/internal/telephony"
	"github.com/spigell/ai-screener/internal/webhook"
)

const drainTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve provider webhooks and the interview API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("public-url", "", "externally reachable base url for webhooks")
	serveCmd.Flags().Bool("no-sweep", false, "do not run the stuck session sweeper")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("public-url", serveCmd.Flags().Lookup("public-url"))
	viper.BindPFlag("sweep.disabled", serveCmd.Flags().Lookup("no-sweep"))
}

func serve() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config.PublicURL == "" {
		logger.Fatal("public-url is required so the provider can reach the webhooks")
	}

	logger.Info("starting the ai-screener", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Tracing.Enabled {
		shutdown, err := telemetry.InitTracer(app, os.Stderr, logger)
		if err != nil {
			logger.Fatal("initializing tracing", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// Pipeline work outlives the signal so in-flight answers can drain.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	f, err := newFlow(workCtx, config, logger)
	if err != nil {
		logger.Fatal("building the interview flow", zap.Error(err))
	}

	token, err := twilioToken(config.Twilio)
	if err != nil {
		logger.Fatal("loading twilio auth token", zap.Error(err))
	}

	hooks := webhook.New(f.orch, telephony.CallbackURLs{Base: config.PublicURL}, webhook.Config{
		AuthToken:         token,
		ValidateSignature: config.Twilio.ValidateSignature,
	}, logger.Named("webhook"))
	if !config.Twilio.ValidateSignature {
		logger.Warn("twilio signature validation is disabled")
	}

	srv := server.New(config.Server, logger.Named("http"), hooks, api.New(f.orch, f.store, f.guards, logger.Named("api")))

	if !viper.GetBool("sweep.disabled") && config.Sweep.Interval > 0 {
		go f.orch.RunSweeper(ctx, config.Sweep.Interval)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}

	drained := make(chan struct{})
	go func() {
		if err := f.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
		logger.Warn("pipeline did not drain, abandoning in-flight answers", zap.Duration("timeout", drainTimeout))
		cancelWork()
		<-drained
	}

	logger.Info("exiting")
}
