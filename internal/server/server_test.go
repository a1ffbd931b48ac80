package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type pingRoutes struct{}

func (pingRoutes) Routes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Request-ID", RequestID(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	r.Get("/deadline", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestMountsAndRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(Config{}, zap.New(core), pingRoutes{})

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected mounted route, got %d", rec.Code)
	}
	id := rec.Header().Get(requestIDHeader)
	if id == "" || rec.Header().Get("X-Seen-Request-ID") != id {
		t.Fatalf("expected request id to reach the handler, got %q", id)
	}

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusTeapot) {
		t.Fatalf("expected logged status 418, got %v", got)
	}
}

func TestRequestIDIsReused(t *testing.T) {
	s := New(Config{}, nil, pingRoutes{})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := serve(t, s, req)

	if rec.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("expected incoming request id to be kept, got %q", rec.Header().Get(requestIDHeader))
	}
}

func TestRecoversPanics(t *testing.T) {
	s := New(Config{}, nil, pingRoutes{})

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestRequestTimeout(t *testing.T) {
	s := New(Config{RequestTimeout: time.Second}, nil, pingRoutes{})

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected request deadline, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := New(Config{}, nil)

	if rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
