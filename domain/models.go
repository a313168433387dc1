// Package domain defines the core domain models for the thread service.
package domain

import (
	"encoding/json"
	"time"
)

// Session represents a conversation thread.
type Session struct {
	ID            string          `json:"id"`
	CredentialID  string          `json:"-"`
	Status        SessionStatus   `json:"status"`
	Topic         string          `json:"topic,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastMessageAt *time.Time      `json:"lastMessageAt,omitempty"`
	MessageCount  int64           `json:"messageCount"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// IdleSince returns the reference time for inactivity checks: the last
// append if one happened, the creation time otherwise.
func (s *Session) IdleSince() time.Time {
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}
	return s.CreatedAt
}

// Message is a single entry in a session's append-only log. ID is a
// per-session sequence number: strictly increasing, never reused.
type Message struct {
	ID         int64           `json:"id"`
	SessionID  string          `json:"sessionId"`
	Type       MessageType     `json:"type"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"createdAt"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// RangeQuery selects a page of messages by id cursor.
// After takes precedence when both cursors are given.
type RangeQuery struct {
	Limit  int
	Order  Order
	After  int64
	Before int64
}

const (
	// DefaultRangeLimit applies when the caller does not pass a limit.
	DefaultRangeLimit = 20
	// MaxRangeLimit is the hard cap per page.
	MaxRangeLimit = 100
)

// Validate checks limit bounds and order. Defaults are applied by the
// caller before validation: an explicit limit of 0 is an error.
func (q RangeQuery) Validate() error {
	if q.Limit < 1 || q.Limit > MaxRangeLimit {
		return Validationf("limit must be between 1 and %d", MaxRangeLimit)
	}
	if q.Order != OrderAsc && q.Order != OrderDesc {
		return Validationf("order must be %q or %q", OrderAsc, OrderDesc)
	}
	return nil
}
