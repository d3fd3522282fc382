package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/db"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// NewTestStore wraps a fresh test database in a store whose clock is frozen at now.
func NewTestStore(t *testing.T, now time.Time) *db.Store {
	t.Helper()
	return db.NewStore(NewTestDB(t), db.StoreOptions{
		Location: time.UTC,
		Clock:    datetime.FixedClock(now),
	})
}
