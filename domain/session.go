// Package domain defines the conversation model shared across the service.
package domain

import (
	"time"
)

// Greeting is the assistant message every fresh conversation starts with.
const Greeting = "Oi! 👋 Sou a assistente virtual da Meraki. Como posso ajudar você hoje?"

// StreamErrorReply replaces the in-progress assistant message when the
// inference stream fails. Partial content is discarded so the visitor never
// sees a truncated answer.
const StreamErrorReply = "Desculpe, tive um problema para responder agora. Pode tentar de novo em instantes?"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single message in a conversation. Messages are append-only;
// only the last assistant message mutates, and only while a stream is open.
type Message struct {
	Role          Role   `json:"role"`
	Content       string `json:"content"`
	InCaptureMode bool   `json:"in_capture_mode,omitempty"`
}

// Session is the full state of one widget conversation.
type Session struct {
	SessionID     string    `json:"session_id"`
	Messages      []Message `json:"messages"`
	Mode          Mode      `json:"mode"`
	LastTouchedAt time.Time `json:"last_touched_at"`
	HandoffLink   string    `json:"handoff_link,omitempty"`
}

// NewSession creates a greeting-only session in Idle mode.
func NewSession(sessionID string) *Session {
	return &Session{
		SessionID:     sessionID,
		Messages:      []Message{{Role: RoleAssistant, Content: Greeting}},
		Mode:          ModeIdle,
		LastTouchedAt: time.Now(),
	}
}

// Touch updates the freshness timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastTouchedAt = now
}

// LastMessage returns a pointer to the most recent message, or nil when the
// session is empty.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// UserContents returns the contents of all user-role messages in order.
func (s *Session) UserContents() []string {
	var out []string
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

// Clone returns a deep copy safe to hand to readers outside the controller.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}
