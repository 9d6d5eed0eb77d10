// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/solite/internal/database"
)

// Option adjusts OpenTestDB.
type Option func(*options)

type options struct {
	migrate bool
	path    string
}

// WithAutoMigrate creates the users, posts and notifications tables.
func WithAutoMigrate() Option {
	return func(o *options) { o.migrate = true }
}

// WithFile backs the database with a file under t.TempDir instead of memory.
func WithFile(t *testing.T) Option {
	dir := t.TempDir()
	return func(o *options) { o.path = filepath.Join(dir, "test.sqlite") }
}

// OpenTestDB returns an isolated SQLite database that is closed on cleanup.
func OpenTestDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := database.Config{Driver: "sqlite", Path: o.path}
	if o.path == "" {
		// A unique name per test keeps shared-cache memory databases apart.
		q := url.Values{}
		q.Set("mode", "memory")
		q.Set("cache", "shared")
		q.Set("_foreign_keys", "1")
		cfg.DSN = "file:" + uuid.NewString() + "?" + q.Encode()
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	if o.migrate {
		require.NoError(t, database.AutoMigrate(db))
	}
	return db
}
