package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testaustime/testaustime-auth/internal/config"
)

func TestConnectRejectsUnknownType(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Type: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestRunMigrationsSQLite(t *testing.T) {
	db, err := Connect(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, RunMigrations(db, "sqlite"))
	// A second run is a no-op
	require.NoError(t, RunMigrations(db, "sqlite"))

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("login_events"))
}

func TestRunMigrationsRejectsUnknownType(t *testing.T) {
	db, err := Connect(config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	assert.Error(t, RunMigrations(db, "oracle"))
}
