// Package testutil opens throwaway databases for tests.
package testutil

import (
	"fmt"
	"testing"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated in-memory SQLite database private to the test.
// The pool holds a single connection so every statement sees the same
// in-memory database; code under test must run transactional work on the
// transaction handle.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
