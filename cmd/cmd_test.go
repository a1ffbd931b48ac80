package cmd

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/store/memory"
)

func TestReadJobs(t *testing.T) {
	jobs, err := ReadJobs(filepath.Join("testdata", "jobs.yaml"))
	if err != nil {
		t.Fatalf("ReadJobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "backend" || len(jobs[0].Questions) != 2 {
		t.Fatalf("unexpected first job %+v", jobs[0])
	}
	if jobs[1].ID == "" || len(jobs[1].Questions) != 1 {
		t.Fatalf("expected generated id and blank question dropped, got %+v", jobs[1])
	}

	st := memory.New()
	if err := saveJobs(context.Background(), st, jobs, zap.NewNop()); err != nil {
		t.Fatalf("saveJobs() error = %v", err)
	}
	if got, _ := st.ListJobs(context.Background()); len(got) != 2 {
		t.Fatalf("expected 2 stored jobs, got %d", len(got))
	}
}

func TestReadJobsRejectsEmptyQuestions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte("jobs:\n  - title: Empty\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJobs(path); err == nil {
		t.Fatalf("expected error for a job without questions")
	}
}

func TestOpenStore(t *testing.T) {
	st, err := openStore(StoreConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	st.Close()

	st, err = openStore(StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "screener.db")})
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	st.Close()

	if _, err := openStore(StoreConfig{Driver: "postgres"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestGetConfigDefaults(t *testing.T) {
	t.Setenv("AI_SCREENER_STORE_DRIVER", "memory")
	t.Setenv("AI_SCREENER_INTERVIEW_STUCK_AFTER", "5m")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	config, err := getConfig()
	if err != nil {
		t.Fatalf("getConfig() error = %v", err)
	}
	if config.Store.Driver != "memory" {
		t.Fatalf("expected env override, got %q", config.Store.Driver)
	}
	if config.Interview.StuckAfter.Minutes() != 5 {
		t.Fatalf("expected 5m stuck-after, got %s", config.Interview.StuckAfter)
	}
	if config.Server.Addr != ":8080" || !config.Twilio.ValidateSignature {
		t.Fatalf("expected defaults, got %+v %+v", config.Server, config.Twilio)
	}
}

func TestVersionString(t *testing.T) {
	origVersion, origCommit := version, commit
	t.Cleanup(func() { version, commit = origVersion, origCommit })

	version, commit = "1.4.0", ""
	if got := versionString(); !strings.HasPrefix(got, "ai-screener 1.4.0 go") || strings.Contains(got, "(") {
		t.Fatalf("unexpected version %q", got)
	}

	commit = "abc1234"
	got := versionString()
	if !strings.HasPrefix(got, "ai-screener 1.4.0 (abc1234) ") || !strings.HasSuffix(got, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Fatalf("unexpected version %q", got)
	}
}
