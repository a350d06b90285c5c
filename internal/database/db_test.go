package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmytrogajewski/ett-summary/internal/config"
)

func TestConnectionStrings(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "summary",
		Password: "secret",
		Database: "incidents",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://summary:secret@db:5433/incidents?sslmode=disable", GetDSN(cfg))
	assert.Equal(t, "host=db port=5433 user=summary password=secret dbname=incidents sslmode=disable", GetConnString(cfg))
}

func TestNewConnection_RejectsUnknownDriver(t *testing.T) {
	_, err := NewConnection(config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestUnreachableDatabase(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "summary", Database: "summary", SSLMode: "disable"}

	_, err := NewConnection(cfg)
	assert.ErrorContains(t, err, "failed to reach database summary at 127.0.0.1:1")

	assert.ErrorContains(t, RollbackMigration(cfg), "failed to create migration instance")
	assert.ErrorContains(t, RunMigrations(cfg), "failed to create migration instance")
}
