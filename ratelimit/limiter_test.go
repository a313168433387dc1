package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(cfg Config, start time.Time) (*Limiter, *time.Time) {
	l := New(cfg)
	clock := start
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestMinuteWindowExhaustion(t *testing.T) {
	start := time.Date(2026, 8, 23, 10, 0, 5, 0, time.UTC)
	l, _ := newTestLimiter(Config{PerMinute: 3, PerHour: 100, MaxActiveSessions: 10}, start)

	for i := 0; i < 3; i++ {
		d := l.Allow("cred_a")
		assert.True(t, d.Allowed, "call %d should be allowed", i+1)
	}

	d := l.Allow("cred_a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 3, d.Limit)
	// Denial reports the start of the next aligned window.
	assert.Equal(t, time.Date(2026, 8, 23, 10, 1, 0, 0, time.UTC), d.ResetAt)
}

func TestWindowRollover(t *testing.T) {
	start := time.Date(2026, 8, 23, 10, 0, 59, 0, time.UTC)
	l, clock := newTestLimiter(Config{PerMinute: 1, PerHour: 100, MaxActiveSessions: 10}, start)

	assert.True(t, l.Allow("cred_a").Allowed)
	assert.False(t, l.Allow("cred_a").Allowed)

	*clock = start.Add(time.Second) // crosses the minute boundary
	assert.True(t, l.Allow("cred_a").Allowed)
}

func TestHourWindowDenies(t *testing.T) {
	start := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	l, clock := newTestLimiter(Config{PerMinute: 100, PerHour: 2, MaxActiveSessions: 10}, start)

	assert.True(t, l.Allow("cred_a").Allowed)
	// Different minute, same hour.
	*clock = start.Add(2 * time.Minute)
	assert.True(t, l.Allow("cred_a").Allowed)

	d := l.Allow("cred_a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)
	assert.Equal(t, time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC), d.ResetAt)
}

func TestCredentialsAreIndependent(t *testing.T) {
	start := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLimiter(Config{PerMinute: 1, PerHour: 100, MaxActiveSessions: 10}, start)

	assert.True(t, l.Allow("cred_a").Allowed)
	assert.False(t, l.Allow("cred_a").Allowed)
	assert.True(t, l.Allow("cred_b").Allowed)
}

func TestSessionSlots(t *testing.T) {
	l := New(Config{PerMinute: 100, PerHour: 1000, MaxActiveSessions: 2})

	assert.True(t, l.AcquireSession("cred_a").Allowed)
	assert.True(t, l.AcquireSession("cred_a").Allowed)

	d := l.AcquireSession("cred_a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)

	l.ReleaseSession("cred_a")
	assert.Equal(t, 1, l.ActiveSessions("cred_a"))
	assert.True(t, l.AcquireSession("cred_a").Allowed)

	// Releases never go negative.
	l.ReleaseSession("cred_a")
	l.ReleaseSession("cred_a")
	l.ReleaseSession("cred_a")
	assert.Equal(t, 0, l.ActiveSessions("cred_a"))
}

func TestConcurrentAllowNoOvercount(t *testing.T) {
	const limit = 50
	const callers = 200

	start := time.Date(2026, 8, 23, 10, 0, 30, 0, time.UTC)
	l, _ := newTestLimiter(Config{PerMinute: limit, PerHour: 10000, MaxActiveSessions: 10}, start)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("cred_a").Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed)
}
