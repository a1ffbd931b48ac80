package telephony

import (
	"strings"
	"testing"
)

func TestRenderPromptQuestion(t *testing.T) {
	out, err := RenderPrompt(Prompt{
		Greeting:  true,
		Question:  "Tell me about Go & channels",
		Record:    true,
		ActionURL: "https://example.com/webhooks/recording-ready?session_id=s1&question=0",
		StatusURL: "https://example.com/webhooks/recording-status?session_id=s1&question=0",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		"<Response>",
		"Welcome to your automated interview",
		"Question: Tell me about Go &amp; channels",
		AnswerNow,
		`maxLength="120"`,
		`timeout="10"`,
		`playBeep="true"`,
		`action="https://example.com/webhooks/recording-ready?session_id=s1&amp;question=0"`,
		`recordingStatusCallback="https://example.com/webhooks/recording-status?session_id=s1&amp;question=0"`,
		"<Redirect",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in twiml:\n%s", want, doc)
		}
	}

	if strings.Index(doc, "Welcome") > strings.Index(doc, "Question:") {
		t.Fatalf("expected welcome before question")
	}
	if strings.Contains(doc, "<Hangup") {
		t.Fatalf("question prompt must not hang up")
	}
}

func TestRenderPromptClosing(t *testing.T) {
	out, err := RenderPrompt(Prompt{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := string(out)

	if !strings.Contains(doc, Closing) || !strings.Contains(doc, "<Hangup></Hangup>") {
		t.Fatalf("expected closing and hangup, got %s", doc)
	}
	if strings.Contains(doc, "<Record") {
		t.Fatalf("closing prompt must not record")
	}
}

func TestRenderPromptRequiresAction(t *testing.T) {
	if _, err := RenderPrompt(Prompt{Question: "q", Record: true}); err == nil {
		t.Fatalf("expected error without action url")
	}
}
