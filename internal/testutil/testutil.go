// Package testutil provides shared helpers for package tests.
package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stuorg/portal/internal/repository/dao"
)

// OpenTestDB opens an in-memory SQLite database with all tables migrated.
// The connection pool is capped at one so concurrent tests serialize on
// the single shared in-memory database instead of opening fresh ones.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err = dao.InitTables(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	t.Cleanup(func() {
		tables := []string{
			"ballots", "candidates", "roll_entries", "event_operators",
			"kiosk_tokens", "election_requests", "election_events", "users",
		}
		for _, table := range tables {
			db.Exec("DELETE FROM " + table)
		}
		_ = sqlDB.Close()
	})

	return db
}
