// Package webhook receives telephony provider callbacks and answers with TwiML.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/interview"
	"github.com/spigell/ai-screener/internal/logger"
	"github.com/spigell/ai-screener/internal/metrics"
	"github.com/spigell/ai-screener/internal/orchestrator"
	"github.com/spigell/ai-screener/internal/telephony"
)

const (
	kindCallStatus      = "call_status"
	kindRecordingReady  = "recording_ready"
	kindRecordingStatus = "recording_status"
	kindPrompt          = "prompt"

	signatureHeader = "X-Twilio-Signature"
	contentTypeXML  = "text/xml; charset=utf-8"
)

// Flow is the part of the orchestrator driven by callbacks.
type Flow interface {
	HandleCallStatus(ctx context.Context, ev orchestrator.CallEvent) error
	AdvanceOnRecordingReady(ctx context.Context, ev orchestrator.RecordingEvent) (*orchestrator.Advance, error)
	RecordingStatus(ctx context.Context, ev orchestrator.RecordingEvent) (*orchestrator.Advance, error)
	NextPrompt(ctx context.Context, sessionID string) (*orchestrator.Prompt, error)
}

type Config struct {
	// AuthToken signs provider requests; required when ValidateSignature is set.
	AuthToken         string
	ValidateSignature bool
}

type Handler struct {
	flow   Flow
	urls   telephony.CallbackURLs
	cfg    Config
	logger *zap.Logger
}

func New(flow Flow, urls telephony.CallbackURLs, cfg Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{flow: flow, urls: urls, cfg: cfg, logger: log}
}

// Routes mounts the callback endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.cfg.ValidateSignature {
			r.Use(h.verifySignature)
		}
		r.Post(telephony.PathCallStatus, h.handleCallStatus)
		r.Post(telephony.PathRecordingReady, h.handleRecordingReady)
		r.Post(telephony.PathRecordingStatus, h.handleRecordingStatus)
		r.Get(telephony.PathPrompt, h.handlePrompt)
		r.Post(telephony.PathPrompt, h.handlePrompt)
	})
}

func (h *Handler) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.reject(w, kindCallStatus, err)
		return
	}
	cb, err := telephony.ParseCallStatus(r.PostForm)
	if err != nil {
		h.reject(w, kindCallStatus, err)
		return
	}

	err = h.flow.HandleCallStatus(r.Context(), orchestrator.CallEvent{
		SessionID: r.URL.Query().Get(telephony.ParamSession),
		CallRef:   cb.CallSID,
		Status:    cb.CallStatus,
		Duration:  cb.CallDuration,
	})
	if h.absorb(w, kindCallStatus, err, zap.String(logger.FieldCallRef, cb.CallSID)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecordingReady(w http.ResponseWriter, r *http.Request) {
	sessionID, index, err := target(r)
	if err != nil {
		h.reject(w, kindRecordingReady, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.reject(w, kindRecordingReady, err)
		return
	}
	cb, err := telephony.ParseRecordingReady(r.PostForm)
	if err != nil {
		h.reject(w, kindRecordingReady, err)
		return
	}

	adv, err := h.flow.AdvanceOnRecordingReady(r.Context(), orchestrator.RecordingEvent{
		SessionID:    sessionID,
		Index:        index,
		CallRef:      cb.CallSID,
		AudioRef:     cb.RecordingURL,
		RecordingRef: cb.RecordingSID,
	})
	switch {
	case errors.Is(err, interview.ErrInvalidIndex):
		h.reject(w, kindRecordingReady, err)
		return
	case errors.Is(err, interview.ErrUnknownReference), errors.Is(err, interview.ErrInvalidState):
		h.count(kindRecordingReady, "unknown")
		logger.ForSession(h.logger, sessionID).Warn("recording for unknown call, hanging up", zap.Error(err))
		h.writePrompt(w, sessionID, &orchestrator.Prompt{Closing: true})
		return
	case err != nil:
		h.fail(w, kindRecordingReady, err)
		return
	}

	h.count(kindRecordingReady, outcome(adv))
	h.writePrompt(w, sessionID, orchestrator.PromptAfter(adv.Session, index))
}

func (h *Handler) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, index, err := target(r)
	if err != nil {
		h.reject(w, kindRecordingStatus, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.reject(w, kindRecordingStatus, err)
		return
	}
	cb, err := telephony.ParseRecordingStatus(r.PostForm)
	if err != nil {
		h.reject(w, kindRecordingStatus, err)
		return
	}

	adv, err := h.flow.RecordingStatus(r.Context(), orchestrator.RecordingEvent{
		SessionID:    sessionID,
		Index:        index,
		CallRef:      cb.CallSID,
		AudioRef:     cb.RecordingURL,
		RecordingRef: cb.RecordingSID,
		Status:       cb.RecordingStatus,
	})
	if errors.Is(err, interview.ErrInvalidIndex) {
		h.reject(w, kindRecordingStatus, err)
		return
	}
	if h.absorb(w, kindRecordingStatus, err, zap.String("recording_status", cb.RecordingStatus)) {
		return
	}

	h.count(kindRecordingStatus, outcome(adv))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(telephony.ParamSession)
	if sessionID == "" {
		h.reject(w, kindPrompt, errors.New("missing session id"))
		return
	}

	p, err := h.flow.NextPrompt(r.Context(), sessionID)
	switch {
	case errors.Is(err, interview.ErrUnknownReference):
		h.count(kindPrompt, "unknown")
		logger.ForSession(h.logger, sessionID).Warn("prompt requested for unknown session")
		p = &orchestrator.Prompt{Closing: true}
	case err != nil:
		h.fail(w, kindPrompt, err)
		return
	default:
		h.count(kindPrompt, "applied")
	}
	h.writePrompt(w, sessionID, p)
}

func (h *Handler) writePrompt(w http.ResponseWriter, sessionID string, p *orchestrator.Prompt) {
	doc, err := telephony.RenderPrompt(telephony.Prompt{
		Greeting:  p.Greeting,
		Question:  p.Question,
		Record:    !p.Closing,
		ActionURL: h.urls.RecordingReady(sessionID, p.Index),
		StatusURL: h.urls.RecordingStatus(sessionID, p.Index),
	})
	if err != nil {
		h.logger.Error("render prompt", zap.Error(err))
		http.Error(w, "render prompt", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// absorb handles the error outcomes shared by acknowledgement-only
// callbacks. It returns true when the response has been written.
func (h *Handler) absorb(w http.ResponseWriter, kind string, err error, fields ...zap.Field) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, interview.ErrDuplicateCallback):
		h.count(kind, "duplicate")
		h.logger.Debug("duplicate callback", append(fields, zap.String("kind", kind))...)
	case errors.Is(err, interview.ErrUnknownReference), errors.Is(err, interview.ErrInvalidState):
		h.count(kind, "unknown")
		h.logger.Warn("callback for unknown reference", append(fields, zap.String("kind", kind), zap.Error(err))...)
	default:
		h.fail(w, kind, err)
		return true
	}
	w.WriteHeader(http.StatusNoContent)
	return true
}

func (h *Handler) reject(w http.ResponseWriter, kind string, err error) {
	h.count(kind, "rejected")
	h.logger.Info("rejected callback", zap.String("kind", kind), zap.Error(err))
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (h *Handler) fail(w http.ResponseWriter, kind string, err error) {
	h.count(kind, "error")
	h.logger.Error("callback failed", zap.String("kind", kind), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (h *Handler) count(kind, outcome string) {
	metrics.Webhooks.WithLabelValues(kind, outcome).Inc()
}

func outcome(adv *orchestrator.Advance) string {
	if adv == nil || adv.Duplicate {
		return "duplicate"
	}
	return "applied"
}

// target reads the session and question the callback URL was issued for.
func target(r *http.Request) (string, int, error) {
	q := r.URL.Query()
	sessionID := q.Get(telephony.ParamSession)
	if sessionID == "" {
		return "", 0, errors.New("missing session id")
	}
	index, err := strconv.Atoi(q.Get(telephony.ParamQuestion))
	if err != nil {
		return "", 0, errors.New("invalid question index")
	}
	return sessionID, index, nil
}
