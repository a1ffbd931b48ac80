package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spigell/ai-screener/internal/interview"
)

type candidateRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	ResumeText string `json:"resume_text"`
}

func (h *Handler) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req candidateRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" {
		h.writeError(w, invalid("name and phone are required"))
		return
	}

	c := &interview.Candidate{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		ResumeText: req.ResumeText,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.store.CreateCandidate(r.Context(), c); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListCandidates(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out == nil {
		out = []*interview.Candidate{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetCandidate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type jobRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Questions   []string `json:"questions"`
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	j, err := NewJob(req.Title, req.Description, req.Questions)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.store.CreateJob(r.Context(), j); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// NewJob validates and builds a job with a fresh id.
func NewJob(title, description string, questions []string) (*interview.Job, error) {
	if strings.TrimSpace(title) == "" {
		return nil, invalid("title is required")
	}
	cleaned := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, invalid("at least one question is required")
	}

	return &interview.Job{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Questions:   cleaned,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListJobs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if out == nil {
		out = []*interview.Job{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}
