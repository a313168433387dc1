package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRangeQueryValidate(t *testing.T) {
	valid := RangeQuery{Limit: 20, Order: OrderAsc}
	assert.NoError(t, valid.Validate())

	edge := RangeQuery{Limit: 1, Order: OrderDesc}
	assert.NoError(t, edge.Validate())
	edge.Limit = MaxRangeLimit
	assert.NoError(t, edge.Validate())

	var ve *ValidationError
	assert.ErrorAs(t, RangeQuery{Limit: 0, Order: OrderAsc}.Validate(), &ve)
	assert.ErrorAs(t, RangeQuery{Limit: MaxRangeLimit + 1, Order: OrderAsc}.Validate(), &ve)
	assert.ErrorAs(t, RangeQuery{Limit: 20, Order: "backwards"}.Validate(), &ve)
}

func TestSessionStatusWritable(t *testing.T) {
	assert.True(t, SessionStatusActive.Writable())
	assert.False(t, SessionStatusExpired.Writable())
	assert.False(t, SessionStatusClosed.Writable())
}

func TestSessionIdleSince(t *testing.T) {
	created := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	s := Session{CreatedAt: created}
	assert.Equal(t, created, s.IdleSince())

	last := created.Add(time.Hour)
	s.LastMessageAt = &last
	assert.Equal(t, last, s.IdleSince())
}
