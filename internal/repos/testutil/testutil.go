// Package testutil provides helpers for repository integration tests that
// run against a local Postgres. Tests using it must skip unless
// POSTGRES_INTEGRATION=1.
package testutil

import (
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/db"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
)

func Enabled() bool {
	return os.Getenv("POSTGRES_INTEGRATION") == "1"
}

func Logger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

// DB connects, migrates and returns a gorm handle. Callers are responsible
// for cleaning up the rows they create; tests use fresh UUIDs so runs don't
// collide.
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	if !Enabled() {
		t.Skip("set POSTGRES_INTEGRATION=1 to run Postgres integration tests")
	}
	pg, err := db.NewPostgresService(Logger(t))
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pg.DB()
}
