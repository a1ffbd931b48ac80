package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	s, err := New("file:storetest?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	storetest.Run(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screener.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = s.CreateSession(ctx, &interview.Session{
		ID:        "s1",
		Phone:     "+15550000001",
		Questions: []string{"q1"},
		Status:    interview.StatusPending,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = New(path)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != interview.StatusPending || got.Questions[0] != "q1" || got.StartedAt != nil {
		t.Fatalf("unexpected session after reopen: %+v", got)
	}
}
