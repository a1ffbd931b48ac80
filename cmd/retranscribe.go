package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/utils"
)

const PromptBack = "back"

var retranscribeCmd = &cobra.Command{
	Use:   "retranscribe SESSION_ID",
	Short: "Run transcription and scoring again for a recorded answer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		retranscribe(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(retranscribeCmd)

	retranscribeCmd.Flags().IntP("index", "i", -1, "question index to retranscribe; asks interactively when unset")
}

func retranscribe(cmd *cobra.Command, sessionID string) {
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

	state, err := f.orch.GetSessionState(ctx, sessionID)
	if err != nil {
		logger.Fatal("getting session", zap.String("session_id", sessionID), zap.Error(err))
	}

	index, _ := cmd.Flags().GetInt("index")
	if index < 0 {
		index, err = chooseResponse(state.Responses)
		if err != nil {
			logger.Fatal("choosing an answer", zap.Error(err))
		}
		if index < 0 {
			logger.Info("exiting", zap.String("reason", "nothing selected"))
			return
		}
	}

	if _, err := f.orch.Retranscribe(ctx, sessionID, index); err != nil {
		logger.Fatal("retranscribing", zap.Int("question", index), zap.Error(err))
	}

	// The record is final once the pipeline drains.
	f.orch.Wait()

	r, err := f.store.GetResponse(ctx, interview.Key{SessionID: sessionID, Index: index})
	if err != nil {
		logger.Fatal("reading the answer", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(r, "", "  ")
	logger.Info(string(pretty), zap.String("stage", string(r.Stage)))
}

func chooseResponse(responses []*interview.Response) (int, error) {
	items := make([]string, 0, len(responses)+1)
	for _, r := range responses {
		if r.AudioRef == "" {
			continue
		}
		items = append(items, fmt.Sprintf("%d %s / %s / %s",
			r.Index, r.Stage, utils.TruncateForLog(r.Question, 60), utils.TruncateForLog(r.Transcript, 60),
		))
	}
	if len(items) == 0 {
		return -1, fmt.Errorf("no recorded answers")
	}

	selectPrompt := promptui.Select{
		Label: "Choose an answer and press ENTER",
		Items: append(items, PromptBack),
	}

	_, selected, err := selectPrompt.Run()
	if err != nil {
		return -1, err
	}
	if selected == PromptBack {
		return -1, nil
	}

	return strconv.Atoi(strings.Split(selected, " ")[0])
}
