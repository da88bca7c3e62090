package models

import "testing"

func TestGenerationTransitions(t *testing.T) {
	tests := []struct {
		from, to GenerationStatus
		allowed  bool
	}{
		{GenerationQueued, GenerationProcessing, true},
		{GenerationQueued, GenerationFailed, true},
		{GenerationQueued, GenerationCompleted, false},
		{GenerationProcessing, GenerationCompleted, true},
		{GenerationProcessing, GenerationFailed, true},
		{GenerationProcessing, GenerationQueued, false},
		{GenerationCompleted, GenerationFailed, false},
		{GenerationCompleted, GenerationProcessing, false},
		{GenerationFailed, GenerationCompleted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestPaymentTransitions(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentPending, PaymentSucceeded, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentCancelled, true},
		{PaymentSucceeded, PaymentCancelled, false},
		{PaymentSucceeded, PaymentPending, false},
		{PaymentCancelled, PaymentSucceeded, false},
		{PaymentFailed, PaymentSucceeded, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []GenerationStatus{GenerationCompleted, GenerationFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []GenerationStatus{GenerationQueued, GenerationProcessing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if PaymentPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	for _, s := range []PaymentStatus{PaymentSucceeded, PaymentFailed, PaymentCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestStatusValidity(t *testing.T) {
	if GenerationStatus("done").Valid() {
		t.Error("unknown generation status should be invalid")
	}
	if PaymentStatus("paid").Valid() {
		t.Error("unknown payment status should be invalid")
	}
	if !GenerationQueued.Valid() || !PaymentPending.Valid() {
		t.Error("catalog statuses should be valid")
	}
}
