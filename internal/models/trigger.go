// Package models defines idle-trigger and rating types.
package models

import "time"

// TriggerType classifies the condition a trigger evaluates.
type TriggerType string

const (
	// TriggerIdle fires when the session has been idle long enough.
	TriggerIdle TriggerType = "idle"
	// TriggerStepStuck fires when the session has been pinned on one step.
	TriggerStepStuck TriggerType = "step_stuck"
	// TriggerIncomplete fires when completion is low and the session is idle.
	TriggerIncomplete TriggerType = "incomplete"
	// TriggerRatingPrompt fires once completion reaches 100 percent.
	TriggerRatingPrompt TriggerType = "rating_prompt"
)

// TriggerConfig is a declarative time-based rule. Configs are loaded once
// and read-only during evaluation.
type TriggerConfig struct {
	ID              string      `json:"id" yaml:"id"`
	Name            string      `json:"name" yaml:"name"`
	Type            TriggerType `json:"type" yaml:"type"`
	IdleMinutes     int         `json:"idle_minutes,omitempty" yaml:"idle_minutes"`
	StuckStepID     string      `json:"stuck_step_id,omitempty" yaml:"stuck_step_id"`
	StuckMinutes    int         `json:"stuck_minutes,omitempty" yaml:"stuck_minutes"`
	MaxCompletion   float64     `json:"max_completion,omitempty" yaml:"max_completion"`
	MessageTemplate string      `json:"message_template" yaml:"message_template"`
	Priority        int         `json:"priority" yaml:"priority"`
	MaxPerSession   int         `json:"max_per_session" yaml:"max_per_session"`
	CooldownMinutes int         `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	Active          bool        `json:"active" yaml:"active"`
}

// TriggerLog records one firing of a trigger for one session. The log is the
// source of truth for max-fires and cooldown enforcement.
type TriggerLog struct {
	ID        string    `json:"id"`
	TriggerID string    `json:"trigger_id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	FiredAt   time.Time `json:"fired_at"`
}

// RatingState tracks the position of an in-flight rating conversation.
type RatingState string

const (
	// RatingStateAwaitingRating waits for a 1-5 score.
	RatingStateAwaitingRating RatingState = "awaiting_rating"
	// RatingStateAwaitingFeedback waits for optional free-text feedback.
	RatingStateAwaitingFeedback RatingState = "awaiting_feedback"
)

// RatingPromptType classifies when a rating prompt is appropriate.
type RatingPromptType string

const (
	// RatingPromptPostCompletion is sent after a confirmed registration.
	RatingPromptPostCompletion RatingPromptType = "post_completion"
	// RatingPromptAbandonment is sent when a session goes idle for good.
	RatingPromptAbandonment RatingPromptType = "abandonment"
)

// RatingPrompt is a configured rating question with its follow-up.
type RatingPrompt struct {
	ID       string           `json:"id" yaml:"id"`
	Type     RatingPromptType `json:"type" yaml:"type"`
	Question string           `json:"question" yaml:"question"`
	FollowUp string           `json:"follow_up" yaml:"follow_up"`
	ThankYou string           `json:"thank_you" yaml:"thank_you"`
	Category string           `json:"category" yaml:"category"`
	Active   bool             `json:"active" yaml:"active"`
}

// RatingFlowContext is the transient state of one in-progress rating
// conversation, discarded on completion or cancellation.
type RatingFlowContext struct {
	SessionID string      `json:"session_id"`
	PromptID  string      `json:"prompt_id"`
	State     RatingState `json:"state"`
	Rating    int         `json:"rating,omitempty"`
	StartedAt time.Time   `json:"started_at"`
}

// Rating is a completed rating with optional feedback, persisted durably.
type Rating struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	PromptID  string    `json:"prompt_id"`
	Category  string    `json:"category,omitempty"`
	Score     int       `json:"score"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
