package telephony

import (
	"net/url"
	"strconv"
	"strings"
)

// Webhook paths served by the callback handlers.
const (
	PathCallStatus      = "/webhooks/call-status"
	PathRecordingReady  = "/webhooks/recording-ready"
	PathRecordingStatus = "/webhooks/recording-status"
	PathPrompt          = "/webhooks/prompt"

	ParamSession  = "session_id"
	ParamQuestion = "question"
)

// CallbackURLs builds the absolute URLs handed to the provider. Base is the
// public origin of this service, e.g. https://screener.example.com.
type CallbackURLs struct {
	Base string
}

func (u CallbackURLs) Prompt(sessionID string) string {
	return u.build(PathPrompt, sessionID, -1)
}

func (u CallbackURLs) CallStatus(sessionID string) string {
	return u.build(PathCallStatus, sessionID, -1)
}

func (u CallbackURLs) RecordingReady(sessionID string, index int) string {
	return u.build(PathRecordingReady, sessionID, index)
}

func (u CallbackURLs) RecordingStatus(sessionID string, index int) string {
	return u.build(PathRecordingStatus, sessionID, index)
}

func (u CallbackURLs) build(path, sessionID string, index int) string {
	q := url.Values{}
	q.Set(ParamSession, sessionID)
	if index >= 0 {
		q.Set(ParamQuestion, strconv.Itoa(index))
	}
	return strings.TrimRight(u.Base, "/") + path + "?" + q.Encode()
}
