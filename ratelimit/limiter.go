// Package ratelimit bounds request volume per credential using fixed
// rolling windows plus a ceiling on concurrently active sessions.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds the per-credential limits. Every window is enforced
// independently; exhausting any one of them denies the request.
type Config struct {
	PerMinute         int
	PerHour           int
	MaxActiveSessions int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PerMinute:         60,
		PerHour:           1000,
		MaxActiveSessions: 100,
	}
}

// Decision is the outcome of a limit check. Denial is a value, never an
// error: Allowed=false with Remaining=0 and ResetAt at the start of the
// next window.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// window is a fixed-size counting bucket keyed by floor(now/size).
type window struct {
	bucket int64
	count  int
}

// roll resets the counter when a new bucket begins.
func (w *window) roll(bucket int64) {
	if w.bucket != bucket {
		w.bucket = bucket
		w.count = 0
	}
}

type credentialState struct {
	minute         window
	hour           window
	activeSessions int
}

// Limiter tracks counters for all credentials. All updates happen under
// one mutex so concurrent requests for the same credential never lose an
// increment or double count.
type Limiter struct {
	mu    sync.Mutex
	cfg   Config
	creds map[string]*credentialState
	now   func() time.Time
}

// New creates a Limiter with the given config.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:   cfg,
		creds: make(map[string]*credentialState),
		now:   time.Now,
	}
}

func (l *Limiter) state(credentialID string) *credentialState {
	st, ok := l.creds[credentialID]
	if !ok {
		st = &credentialState{}
		l.creds[credentialID] = st
	}
	return st
}

// Allow performs an atomic check-and-increment against the minute and
// hour windows. An allowed call counts against both windows exactly once.
func (l *Limiter) Allow(credentialID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(credentialID)
	now := l.now()
	st.minute.roll(now.Unix() / 60)
	st.hour.roll(now.Unix() / 3600)

	if st.minute.count >= l.cfg.PerMinute {
		return Decision{
			Limit:   l.cfg.PerMinute,
			ResetAt: time.Unix((st.minute.bucket+1)*60, 0).UTC(),
		}
	}
	if st.hour.count >= l.cfg.PerHour {
		return Decision{
			Limit:   l.cfg.PerHour,
			ResetAt: time.Unix((st.hour.bucket+1)*3600, 0).UTC(),
		}
	}

	st.minute.count++
	st.hour.count++
	return Decision{
		Allowed:   true,
		Limit:     l.cfg.PerMinute,
		Remaining: l.cfg.PerMinute - st.minute.count,
		ResetAt:   time.Unix((st.minute.bucket+1)*60, 0).UTC(),
	}
}

// AcquireSession claims an active-session slot for the credential. The
// slot must be released exactly once when the session leaves ACTIVE.
func (l *Limiter) AcquireSession(credentialID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(credentialID)
	now := l.now()
	resetAt := time.Unix(now.Unix()/60*60+60, 0).UTC()

	if st.activeSessions >= l.cfg.MaxActiveSessions {
		return Decision{Limit: l.cfg.MaxActiveSessions, ResetAt: resetAt}
	}
	st.activeSessions++
	return Decision{
		Allowed:   true,
		Limit:     l.cfg.MaxActiveSessions,
		Remaining: l.cfg.MaxActiveSessions - st.activeSessions,
		ResetAt:   resetAt,
	}
}

// ReleaseSession returns an active-session slot.
func (l *Limiter) ReleaseSession(credentialID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.creds[credentialID]
	if !ok || st.activeSessions == 0 {
		return
	}
	st.activeSessions--
}

// ActiveSessions reports the current slot usage for a credential.
func (l *Limiter) ActiveSessions(credentialID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st, ok := l.creds[credentialID]; ok {
		return st.activeSessions
	}
	return 0
}
