package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/logger"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail stuck sessions and unblock answers that never finished, once",
	Run: func(_ *cobra.Command, _ []string) {
		sweep()
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func sweep() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	f, err := newFlow(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the interview flow", zap.Error(err))
	}
	defer f.Close()

	report, err := f.orch.Sweep(ctx)
	if err != nil {
		logger.Fatal("sweeping sessions", zap.Error(err))
	}

	logger.Info("sweep finished",
		zap.Int("sessions", report.Sessions),
		zap.Int("failed", report.Failed),
		zap.Int("unscorable", report.Unscorable),
	)
}
