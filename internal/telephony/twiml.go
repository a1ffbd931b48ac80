package telephony

import (
	"encoding/xml"
	"fmt"
)

const (
	Welcome     = "Hello! Welcome to your automated interview. Let's begin."
	AnswerNow   = "Please provide your answer now."
	Closing     = "Thank you for completing the interview. We will review your response and get back to you soon. Goodbye!"
	NoAnswer    = "We did not receive an answer. Moving on."
	voice       = "alice"
	maxAnswer   = 120
	silenceWait = 10
)

// Prompt is one voice directive: a question followed by a recording, or the closing message.
type Prompt struct {
	Greeting bool
	Question string
	// Record starts a recording after the question.
	Record bool
	// ActionURL receives the recording-ready callback.
	ActionURL string
	// StatusURL receives recording-status callbacks.
	StatusURL string
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type record struct {
	XMLName               xml.Name `xml:"Record"`
	Action                string   `xml:"action,attr"`
	Method                string   `xml:"method,attr"`
	MaxLength             int      `xml:"maxLength,attr"`
	Timeout               int      `xml:"timeout,attr"`
	PlayBeep              bool     `xml:"playBeep,attr"`
	RecordingStatus       string   `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusMethod string   `xml:"recordingStatusCallbackMethod,attr,omitempty"`
}

type redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderPrompt builds the TwiML document for p. A prompt without Record
// renders the closing message and hangs up.
func RenderPrompt(p Prompt) ([]byte, error) {
	resp := twimlResponse{}
	if p.Greeting {
		resp.Verbs = append(resp.Verbs, say{Voice: voice, Text: Welcome})
	}

	if !p.Record {
		resp.Verbs = append(resp.Verbs, say{Voice: voice, Text: Closing}, hangup{})
		return marshal(resp)
	}

	if p.ActionURL == "" {
		return nil, fmt.Errorf("recording prompt requires an action url")
	}

	resp.Verbs = append(resp.Verbs,
		say{Voice: voice, Text: "Question: " + p.Question},
		say{Voice: voice, Text: AnswerNow},
		record{
			Action:                p.ActionURL,
			Method:                "POST",
			MaxLength:             maxAnswer,
			Timeout:               silenceWait,
			PlayBeep:              true,
			RecordingStatus:       p.StatusURL,
			RecordingStatusMethod: methodFor(p.StatusURL),
		},
		// Reached only when Record gets no input: the action URL is still
		// called so the flow continues.
		say{Voice: voice, Text: NoAnswer},
		redirect{Method: "POST", URL: p.ActionURL},
	)

	return marshal(resp)
}

func methodFor(u string) string {
	if u == "" {
		return ""
	}
	return "POST"
}

func marshal(v twimlResponse) ([]byte, error) {
	out, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal twiml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
