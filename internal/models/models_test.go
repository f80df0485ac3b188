package models

import (
	"testing"
	"time"
)

func TestPhaseCanTransition(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseCollecting, PhaseUploadingDocuments, true},
		{PhaseCollecting, PhasePreConfirm, true},
		{PhaseCollecting, PhaseConfirmed, false},
		{PhaseAwaitingConfirm, PhaseConfirmed, true},
		{PhaseAwaitingConfirm, PhaseCollecting, true},
		{PhaseAwaitingReset, PhaseCollecting, true},
		{PhaseAwaitingReset, PhaseConfirmed, false},
		{PhaseConfirmed, PhaseAskNewRegistration, true},
		{PhaseAskNewRegistration, PhaseCollecting, true},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsValidPhase(t *testing.T) {
	if !IsValidPhase(PhaseCollecting) {
		t.Error("expected collecting to be valid")
	}
	if IsValidPhase(Phase("nonsense")) {
		t.Error("expected unknown phase to be invalid")
	}
}

func TestFieldValueString(t *testing.T) {
	if got := TextValue("Budi").String(); got != "Budi" {
		t.Errorf("expected Budi, got %q", got)
	}
	if got := DateValue("15/05/2000").String(); got != "15/05/2000" {
		t.Errorf("expected date string, got %q", got)
	}
	if got := NumberValue(7).String(); got != "7" {
		t.Errorf("expected 7, got %q", got)
	}
	if got := NumberValue(7.5).String(); got != "7.5" {
		t.Errorf("expected 7.5, got %q", got)
	}
	if got := BoolValue(true).String(); got != "ya" {
		t.Errorf("expected ya, got %q", got)
	}
}

func TestFieldValueIsZero(t *testing.T) {
	if !(FieldValue{}).IsZero() {
		t.Error("zero value should be zero")
	}
	if TextValue("").IsZero() == false {
		t.Error("empty text should be zero")
	}
	if TextValue("x").IsZero() {
		t.Error("non-empty text should not be zero")
	}
	if NumberValue(0).IsZero() {
		t.Error("number zero is still a filled value")
	}
}

func TestChatRequestValidate(t *testing.T) {
	r := &ChatRequest{}
	if err := r.Validate(); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}

	r = &ChatRequest{Files: []FileUpload{{Name: "akta.pdf"}}}
	if err := r.Validate(); err != nil {
		t.Errorf("file-only request should be valid, got %v", err)
	}

	r = &ChatRequest{Message: "halo"}
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	files := make([]FileUpload, MaxBatchFiles+1)
	r = &ChatRequest{Message: "upload", Files: files}
	if err := r.Validate(); err != ErrTooManyFiles {
		t.Errorf("expected ErrTooManyFiles, got %v", err)
	}
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Now()
	s := &SessionState{ExpiresAt: now.Add(time.Hour)}
	if s.IsExpired(now) {
		t.Error("session should not be expired yet")
	}
	if !s.IsExpired(now.Add(2 * time.Hour)) {
		t.Error("session should be expired after TTL")
	}
	s = &SessionState{}
	if s.IsExpired(now) {
		t.Error("zero ExpiresAt means no expiry")
	}
}
