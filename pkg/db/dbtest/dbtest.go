// Package dbtest opens migrated in-memory SQLite databases for repository tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/config"
	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/migrate"
)

// New returns a client backed by a private in-memory database with every
// migration applied. The database is dropped when the test ends.
func New(t testing.TB) *db.Client {
	t.Helper()

	cfg := config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()),
	}
	client, err := db.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := migrate.Up(context.Background(), sqlDB, client.Dialect()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}
