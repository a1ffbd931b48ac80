package telephony

import "testing"

func TestCallbackURLs(t *testing.T) {
	t.Parallel()

	urls := CallbackURLs{Base: "https://screener.example.com/"}

	cases := map[string]string{
		urls.Prompt("s1"):             "https://screener.example.com/webhooks/prompt?session_id=s1",
		urls.CallStatus("s1"):         "https://screener.example.com/webhooks/call-status?session_id=s1",
		urls.RecordingReady("s1", 2):  "https://screener.example.com/webhooks/recording-ready?question=2&session_id=s1",
		urls.RecordingStatus("s1", 0): "https://screener.example.com/webhooks/recording-status?question=0&session_id=s1",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
