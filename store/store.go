// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/threads/domain"
)

// Store defines the interface for session and message persistence.
//
// Sessions own their message log: the log lives as long as the session
// record, and expiring or closing a session never deletes history.
type Store interface {
	// Session operations. GetSession and AppendMessage apply the lazy
	// expiry check; a session past the inactivity threshold is never
	// returned as ACTIVE.
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	CloseSession(ctx context.Context, sessionID string) (bool, error)
	SetTopic(ctx context.Context, sessionID, topic string) error
	ExpireIdle(ctx context.Context) (int, error)

	// Message operations. AppendMessage assigns the message id and
	// timestamp and bumps the session counters in one transaction.
	AppendMessage(ctx context.Context, sessionID string, msg *domain.Message) (*domain.Message, error)
	RangeMessages(ctx context.Context, sessionID string, q domain.RangeQuery) ([]domain.Message, error)

	// OnExpire registers a hook invoked exactly once per
	// ACTIVE -> EXPIRED transition, after it is committed.
	OnExpire(fn func(*domain.Session))

	// Lifecycle
	Close() error
}

// Options configures a store.
type Options struct {
	// InactivityThreshold is how long a session may sit without an
	// append before it expires.
	InactivityThreshold time.Duration
}
