// Package domain contains core domain types for the DreamPath chat core.
package domain

import (
	"time"
)

// Session is the durable conversational context shared with the backend.
// Exactly one session is active in the client at a time. A session is
// bound to the user id that was logged in when it was created; reusing a
// stored session under a different user forces recreation.
type Session struct {
	SessionID   string    `json:"sessionId"`
	OwnerUserID *int64    `json:"ownerUserId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OwnedBy reports whether the session belongs to the given user id.
// A nil id matches only a session created without a logged-in user.
func (s *Session) OwnedBy(userID *int64) bool {
	if s.OwnerUserID == nil || userID == nil {
		return s.OwnerUserID == nil && userID == nil
	}
	return *s.OwnerUserID == *userID
}

// MessageRole identifies the author of a transcript message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in the ordered, append-only transcript.
// HideContent suppresses the text while the attached AgentAction view
// stays independently dismissible; the two are deliberately decoupled
// so a card can be dismissed without deleting the message entry.
type Message struct {
	Role        MessageRole  `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	AgentAction *AgentAction `json:"agentAction,omitempty"`
	HideContent bool         `json:"hideContent,omitempty"`
}
