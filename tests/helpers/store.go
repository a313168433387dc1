// Package helpers provides shared test fixtures.
package helpers

import (
	"testing"
	"time"

	"github.com/xiaot623/threads/store"
)

// NewTestSQLiteStore returns an in-memory store wired for cleanup.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", store.Options{
		InactivityThreshold: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
