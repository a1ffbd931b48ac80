package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Call status values reported by Twilio.
const (
	CallQueued     = "queued"
	CallInitiated  = "initiated"
	CallRinging    = "ringing"
	CallInProgress = "in-progress"
	CallCompleted  = "completed"
	CallBusy       = "busy"
	CallFailed     = "failed"
	CallNoAnswer   = "no-answer"
	CallCanceled   = "canceled"
)

// Recording status values reported by Twilio.
const (
	RecordingInProgress = "in-progress"
	RecordingCompleted  = "completed"
	RecordingAbsent     = "absent"
	RecordingFailed     = "failed"
)

// ErrInvalidPayload marks callbacks that can not be parsed.
var ErrInvalidPayload = errors.New("invalid callback payload")

// IsCallFailure reports whether status means the call will not carry on.
func IsCallFailure(status string) bool {
	switch status {
	case CallBusy, CallFailed, CallNoAnswer, CallCanceled:
		return true
	default:
		return false
	}
}

type CallStatusCallback struct {
	AccountSID   string `mapstructure:"AccountSid"`
	CallSID      string `mapstructure:"CallSid"`
	CallStatus   string `mapstructure:"CallStatus"`
	CallDuration int    `mapstructure:"CallDuration"`
	To           string `mapstructure:"To"`
	ErrorCode    string `mapstructure:"ErrorCode"`
}

type RecordingCallback struct {
	AccountSID        string `mapstructure:"AccountSid"`
	CallSID           string `mapstructure:"CallSid"`
	RecordingSID      string `mapstructure:"RecordingSid"`
	RecordingURL      string `mapstructure:"RecordingUrl"`
	RecordingStatus   string `mapstructure:"RecordingStatus"`
	RecordingDuration int    `mapstructure:"RecordingDuration"`
}

// HasAudio reports whether the callback carries a usable media reference.
func (r *RecordingCallback) HasAudio() bool {
	return r.RecordingURL != ""
}

// ParseCallStatus decodes a call-status callback form.
func ParseCallStatus(form url.Values) (*CallStatusCallback, error) {
	var cb CallStatusCallback
	if err := decodeForm(form, &cb); err != nil {
		return nil, err
	}
	cb.CallStatus = strings.ToLower(cb.CallStatus)
	if cb.CallSID == "" || cb.CallStatus == "" {
		return nil, fmt.Errorf("%w: CallSid and CallStatus are required", ErrInvalidPayload)
	}
	return &cb, nil
}

// ParseRecordingReady decodes the Record action callback. The media URL may
// be absent when the candidate stayed silent.
func ParseRecordingReady(form url.Values) (*RecordingCallback, error) {
	var cb RecordingCallback
	if err := decodeForm(form, &cb); err != nil {
		return nil, err
	}
	if cb.CallSID == "" {
		return nil, fmt.Errorf("%w: CallSid is required", ErrInvalidPayload)
	}
	return &cb, nil
}

// ParseRecordingStatus decodes a recordingStatusCallback form.
func ParseRecordingStatus(form url.Values) (*RecordingCallback, error) {
	var cb RecordingCallback
	if err := decodeForm(form, &cb); err != nil {
		return nil, err
	}
	cb.RecordingStatus = strings.ToLower(cb.RecordingStatus)
	if cb.RecordingSID == "" || cb.RecordingStatus == "" {
		return nil, fmt.Errorf("%w: RecordingSid and RecordingStatus are required", ErrInvalidPayload)
	}
	return &cb, nil
}

func decodeForm(form url.Values, target any) error {
	flat := make(map[string]any, len(form))
	for key := range form {
		flat[key] = strings.TrimSpace(form.Get(key))
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(flat); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ValidSignature checks X-Twilio-Signature: base64 HMAC-SHA1 keyed with the
// auth token over the full URL followed by the sorted POST parameters.
func ValidSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	expected := Sign(authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the value Twilio sends in X-Twilio-Signature.
func Sign(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
