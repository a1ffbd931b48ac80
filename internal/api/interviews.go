package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/orchestrator"
)

type createInterviewRequest struct {
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
	Start       bool   `json:"start"`
}

func (h *Handler) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req createInterviewRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.CandidateID == "" || req.JobID == "" {
		h.writeError(w, invalid("candidate_id and job_id are required"))
		return
	}

	s, err := h.interviews.CreateInterview(r.Context(), req.CandidateID, req.JobID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if req.Start {
		started, err := h.interviews.StartInterview(r.Context(), s.ID)
		if err != nil {
			h.logger.Warn("interview created but not started", zap.String("session_id", s.ID), zap.Error(err))
			h.writeError(w, err)
			return
		}
		s = started
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	status := interview.Status(r.URL.Query().Get("status"))
	out, err := h.store.ListSessions(r.Context(), status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out == nil {
		out = []*interview.Session{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	s, err := h.interviews.StartInterview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	state, err := h.interviews.GetSessionState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	view, err := h.interviews.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	switch view.Status {
	case orchestrator.ResultReady:
		writeJSON(w, http.StatusOK, view.Result)
	case orchestrator.ResultFailed:
		writeJSON(w, http.StatusConflict, view)
	default:
		writeJSON(w, http.StatusAccepted, view)
	}
}

func (h *Handler) handleRetranscribe(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, invalid("index must be a number"))
		return
	}

	resp, err := h.interviews.Retranscribe(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}
