package domain

import (
	"strings"
	"testing"
)

func TestGenerationParamsValidate(t *testing.T) {
	cases := []struct {
		name   string
		params GenerationParams
		ok     bool
	}{
		{"prompt only", GenerationParams{Prompt: "a song"}, true},
		{"lyrics only", GenerationParams{Lyrics: "verse one"}, true},
		{"empty", GenerationParams{}, false},
		{"prompt too long", GenerationParams{Prompt: strings.Repeat("x", 4001)}, false},
		{"lyrics too long", GenerationParams{Lyrics: strings.Repeat("x", 8001)}, false},
		{"negative duration", GenerationParams{Prompt: "x", DurationSec: -1}, false},
		{"duration over cap", GenerationParams{Prompt: "x", DurationSec: 601}, false},
		{"duration at cap", GenerationParams{Prompt: "x", DurationSec: 600}, true},
		{"vocal gender m", GenerationParams{Prompt: "x", VocalGender: "m"}, true},
		{"vocal gender f", GenerationParams{Prompt: "x", VocalGender: "f"}, true},
		{"vocal gender invalid", GenerationParams{Prompt: "x", VocalGender: "x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderCompleted, OrderFailed, OrderCancelled, OrderClosed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderPending, OrderProcessing} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if !TaskCompleted.Terminal() || !TaskFailed.Terminal() {
		t.Fatal("completed and failed are terminal")
	}
	if TaskPending.Terminal() || TaskProcessing.Terminal() {
		t.Fatal("pending and processing are not terminal")
	}
}
