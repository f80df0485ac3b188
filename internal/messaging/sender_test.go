package messaging

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestChannelSenderQueuesMessage(t *testing.T) {
	s := NewChannelSender(nil)

	err := s.SendMessage(context.Background(), "s1", "halo", map[string]string{"trigger_name": "idle_reminder"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	select {
	case msg := <-s.Outbound():
		if msg.SessionID != "s1" || msg.Body != "halo" {
			t.Errorf("unexpected message: %+v", msg)
		}
		if msg.Metadata["trigger_name"] != "idle_reminder" {
			t.Errorf("metadata not carried: %+v", msg.Metadata)
		}
		if msg.QueuedAt.IsZero() {
			t.Error("QueuedAt not set")
		}
	case <-time.After(time.Second):
		t.Fatal("no message on outbound channel")
	}
}

func TestChannelSenderRejectsEmptySessionID(t *testing.T) {
	s := NewChannelSender(nil)
	if err := s.SendMessage(context.Background(), "", "halo", nil); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestChannelSenderRejectsAfterStop(t *testing.T) {
	s := NewChannelSender(nil)
	s.Stop()
	if err := s.SendMessage(context.Background(), "s1", "halo", nil); err == nil {
		t.Error("expected error after Stop")
	}
}

func TestChannelSenderRespectsContextCancellation(t *testing.T) {
	s := NewChannelSender(nil)
	// Fill the buffer so the next send blocks.
	for i := 0; i < DefaultChannelBufferSize; i++ {
		if err := s.SendMessage(context.Background(), "s1", "fill", nil); err != nil {
			t.Fatalf("fill send %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendMessage(ctx, "s1", "blocked", nil); err == nil {
		t.Error("expected error when context already cancelled")
	}
}

func TestHooksObserveQueuedMessages(t *testing.T) {
	hooks := NewHookRegistry()
	var seen []string
	hooks.Register("audit", func(msg OutboundMessage) {
		seen = append(seen, msg.SessionID)
	})

	s := NewChannelSender(hooks)
	if err := s.SendMessage(context.Background(), "s1", "a", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := s.SendMessage(context.Background(), "s2", "b", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if len(seen) != 2 || seen[0] != "s1" || seen[1] != "s2" {
		t.Errorf("hook observations = %v, want [s1 s2]", seen)
	}
}

func TestHookRegistryRegisterUnregister(t *testing.T) {
	r := NewHookRegistry()
	r.Register("audit", func(OutboundMessage) {})
	r.Register("delivery", func(OutboundMessage) {})

	if !r.IsRegistered("audit") {
		t.Error("audit hook should be registered")
	}

	names := r.Names()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "audit" || names[1] != "delivery" {
		t.Errorf("Names() = %v", names)
	}

	r.Unregister("audit")
	if r.IsRegistered("audit") {
		t.Error("audit hook should be gone")
	}
	// Unregistering twice is harmless.
	r.Unregister("audit")
}

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	var s Sender = LogSender{}
	if err := s.SendMessage(context.Background(), "s1", "halo", nil); err != nil {
		t.Errorf("LogSender returned error: %v", err)
	}
}
