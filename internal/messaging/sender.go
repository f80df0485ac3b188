// Package messaging provides the outbound message surface. Proactive
// messages from the trigger and rating engines go through a Sender; the
// actual transport consumes them from a channel and lives outside this
// process's concerns.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Constants for channel sender configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the outbound channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// OutboundMessage is one proactive message queued for delivery.
type OutboundMessage struct {
	SessionID string            `json:"session_id"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	QueuedAt  time.Time         `json:"queued_at"`
}

// Sender delivers a message to the user behind a session.
type Sender interface {
	SendMessage(ctx context.Context, sessionID, message string, metadata map[string]string) error
}

// ChannelSender implements Sender by queueing messages on a buffered
// channel for an external transport to drain. Registered hooks observe
// every queued message.
type ChannelSender struct {
	outbound chan OutboundMessage
	hooks    *HookRegistry
	done     chan struct{}
}

// NewChannelSender creates a channel-backed sender. A nil registry
// disables hook dispatch.
func NewChannelSender(hooks *HookRegistry) *ChannelSender {
	return &ChannelSender{
		outbound: make(chan OutboundMessage, DefaultChannelBufferSize),
		hooks:    hooks,
		done:     make(chan struct{}),
	}
}

// SendMessage queues a message for delivery. A full channel is waited on
// briefly; past the timeout the message is dropped with a warning rather
// than blocking the caller.
func (s *ChannelSender) SendMessage(ctx context.Context, sessionID, message string, metadata map[string]string) error {
	if sessionID == "" {
		return fmt.Errorf("cannot send message: empty session id")
	}
	msg := OutboundMessage{
		SessionID: sessionID,
		Body:      message,
		Metadata:  metadata,
		QueuedAt:  time.Now(),
	}

	select {
	case <-s.done:
		return fmt.Errorf("sender is stopped")
	default:
	}

	select {
	case s.outbound <- msg:
		slog.Debug("ChannelSender.SendMessage: message queued", "sessionID", sessionID, "bodyLength", len(message))
	case <-ctx.Done():
		return fmt.Errorf("failed to queue message for %s: %w", sessionID, ctx.Err())
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("ChannelSender.SendMessage: outbound channel full, message dropped", "sessionID", sessionID)
		return fmt.Errorf("outbound channel full, message for %s dropped", sessionID)
	}

	if s.hooks != nil {
		s.hooks.dispatch(msg)
	}
	return nil
}

// Outbound returns the channel the transport drains.
func (s *ChannelSender) Outbound() <-chan OutboundMessage {
	return s.outbound
}

// Stop closes the outbound channel. No sends may follow.
func (s *ChannelSender) Stop() {
	close(s.done)
	close(s.outbound)
	slog.Info("ChannelSender stopped and outbound channel closed")
}

// LogSender implements Sender by logging messages instead of delivering
// them. Used when no transport is configured.
type LogSender struct{}

// SendMessage logs the message and reports success.
func (LogSender) SendMessage(_ context.Context, sessionID, message string, metadata map[string]string) error {
	slog.Info("LogSender.SendMessage: outbound message", "sessionID", sessionID, "bodyLength", len(message), "metadata", metadata)
	return nil
}
