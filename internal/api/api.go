// Package api exposes candidates, jobs and interviews over JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/dialguard"
	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/orchestrator"
	"github.com/spigell/ai-screener/internal/store"
)

// Interviews is the orchestrator surface used by the API.
type Interviews interface {
	CreateInterview(ctx context.Context, candidateID, jobID string) (*interview.Session, error)
	StartInterview(ctx context.Context, sessionID string) (*interview.Session, error)
	GetSessionState(ctx context.Context, sessionID string) (*orchestrator.State, error)
	GetResult(ctx context.Context, sessionID string) (*orchestrator.ResultView, error)
	Retranscribe(ctx context.Context, sessionID string, index int) (*interview.Response, error)
}

type Handler struct {
	interviews Interviews
	store      store.Store
	guards     []dialguard.Guard
	logger     *zap.Logger
}

func New(interviews Interviews, st store.Store, guards []dialguard.Guard, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{interviews: interviews, store: st, guards: guards, logger: log}
}

// Routes mounts the API under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/candidates", h.handleCreateCandidate)
		r.Get("/candidates", h.handleListCandidates)
		r.Get("/candidates/{id}", h.handleGetCandidate)

		r.Post("/jobs", h.handleCreateJob)
		r.Get("/jobs", h.handleListJobs)
		r.Get("/jobs/{id}", h.handleGetJob)

		r.Post("/interviews", h.handleCreateInterview)
		r.Get("/interviews", h.handleListInterviews)
		r.Get("/interviews/{id}", h.handleGetInterview)
		r.Post("/interviews/{id}/start", h.handleStartInterview)
		r.Get("/interviews/{id}/result", h.handleGetResult)
		r.Post("/interviews/{id}/responses/{index}/retranscribe", h.handleRetranscribe)

		r.Get("/dial-guards", h.handleDialGuards)
	})
}

// Error is the error body of every failed request.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Type + ": " + e.Message }

func invalid(message string) *Error {
	return &Error{Type: "invalid_request", Message: message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]*Error{"error": body})
}

func classify(err error) (int, *Error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return http.StatusBadRequest, apiErr
	case errors.Is(err, interview.ErrNotFound):
		return http.StatusNotFound, &Error{Type: "not_found", Message: err.Error()}
	case errors.Is(err, interview.ErrInvalidIndex):
		return http.StatusBadRequest, &Error{Type: "invalid_request", Message: err.Error()}
	case errors.Is(err, interview.ErrInvalidState), errors.Is(err, interview.ErrAlreadyExists):
		return http.StatusConflict, &Error{Type: "conflict", Message: err.Error()}
	case errors.Is(err, interview.ErrProviderRejected):
		return http.StatusUnprocessableEntity, &Error{Type: "provider_rejected", Message: err.Error()}
	case errors.Is(err, interview.ErrProviderTransient):
		return http.StatusBadGateway, &Error{Type: "provider_unavailable", Message: err.Error()}
	default:
		return http.StatusInternalServerError, &Error{Type: "internal", Message: "internal error"}
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalid("invalid request body: " + err.Error())
	}
	return nil
}

func (h *Handler) handleDialGuards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dialguard.Describe(h.guards))
}
