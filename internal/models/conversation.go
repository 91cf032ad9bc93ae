package models

import "time"

// ConversationMessage represents a single message in the conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"`    // "user" or "assistant"
	Content   string    `json:"content"` // message content
	Timestamp time.Time `json:"timestamp,omitempty"`
}
