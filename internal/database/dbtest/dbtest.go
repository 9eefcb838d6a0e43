// Package dbtest provides a migrated in-memory database for tests.
package dbtest

import (
	"testing"

	"gorm.io/gorm"

	"github.com/testaustime/testaustime-auth/internal/config"
	"github.com/testaustime/testaustime-auth/internal/database"
)

// NewSQLite opens an in-memory sqlite database with all migrations applied.
// The database is closed when the test finishes.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Connect(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	if err := database.RunMigrations(db, "sqlite"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}
