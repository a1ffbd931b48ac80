package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/ai-screener/internal/api"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage job positions and their interview questions",
}

var jobsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import jobs with their questions from a yaml file",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importJobs(args[0])
	},
}

func init() {
	jobsCmd.AddCommand(jobsImportCmd)
	rootCmd.AddCommand(jobsCmd)
}

// jobsFile is the import format:
//
//	jobs:
//	  - title: Backend engineer
//	    description: Go services
//	    questions:
//	      - Tell me about a service you built.
type jobsFile struct {
	Jobs []interview.Job `yaml:"jobs"`
}

// ReadJobs parses and validates a jobs file.
func ReadJobs(path string) ([]*interview.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("%s has no jobs", path)
	}

	out := make([]*interview.Job, 0, len(file.Jobs))
	for i, j := range file.Jobs {
		job, err := api.NewJob(j.Title, j.Description, j.Questions)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		if j.ID != "" {
			job.ID = j.ID
		}
		out = append(out, job)
	}
	return out, nil
}

func importJobs(path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	jobs, err := ReadJobs(path)
	if err != nil {
		logger.Fatal("reading jobs", zap.String("file", path), zap.Error(err))
	}

	st, err := openStore(config.Store)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer st.Close()

	if err := saveJobs(ctx, st, jobs, logger); err != nil {
		logger.Fatal("importing jobs", zap.Error(err))
	}
}

func saveJobs(ctx context.Context, st store.Store, jobs []*interview.Job, logger *zap.Logger) error {
	for _, j := range jobs {
		if err := st.CreateJob(ctx, j); err != nil {
			return fmt.Errorf("save job %q: %w", j.Title, err)
		}
		logger.Info("job imported",
			zap.String("job_id", j.ID),
			zap.String("title", j.Title),
			zap.Int("questions", len(j.Questions)),
		)
	}
	logger.Info("jobs imported", zap.Int("count", len(jobs)))
	return nil
}
