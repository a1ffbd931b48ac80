package webhook

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ai-screener/internal/telephony"
)

// verifySignature rejects requests whose X-Twilio-Signature does not match
// the public URL and form parameters. Nothing downstream runs for them.
func (h *Handler) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		fullURL := strings.TrimRight(h.urls.Base, "/") + r.URL.RequestURI()
		if !telephony.ValidSignature(h.cfg.AuthToken, fullURL, r.PostForm, r.Header.Get(signatureHeader)) {
			h.count(kindFor(r.URL.Path), "forbidden")
			h.logger.Warn("invalid callback signature", zap.String("path", r.URL.Path))
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func kindFor(path string) string {
	switch path {
	case telephony.PathCallStatus:
		return kindCallStatus
	case telephony.PathRecordingReady:
		return kindRecordingReady
	case telephony.PathRecordingStatus:
		return kindRecordingStatus
	default:
		return kindPrompt
	}
}
