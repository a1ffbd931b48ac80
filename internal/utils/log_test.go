package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "disabled preview",
			input:  "I mostly wrote Go services",
			limit:  0,
			expect: "",
		},
		{
			name:   "short transcript kept whole",
			input:  "Yes.",
			limit:  60,
			expect: "Yes.",
		},
		{
			name:   "long question cut",
			input:  "Tell us about a production incident you handled",
			limit:  20,
			expect: "Tell us about a prod...",
		},
		{
			name:   "speech recognizer padding dropped",
			input:  "\n  goroutines and channels \n",
			limit:  10,
			expect: "goroutines...",
		},
		{
			name:   "counts runes not bytes",
			input:  "Расскажите о себе",
			limit:  10,
			expect: "Расскажите...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
