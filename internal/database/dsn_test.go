package database

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "solite", Name: "solite"})
	require.NoError(t, err)
	require.Equal(t, "postgres://solite@localhost:5432/solite?TimeZone=UTC&sslmode=disable", dsn)
}

func TestBuildPostgresDSNEscapesCredentials(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Password: "p@ss word",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Options:  map[string]string{"sslmode": "require", "search_path": "public"},
	})
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com:6543", u.Host)
	password, ok := u.User.Password()
	require.True(t, ok)
	require.Equal(t, "p@ss word", password)
	require.Equal(t, "/db", u.Path)
	require.Equal(t, "require", u.Query().Get("sslmode"))
	require.Equal(t, "public", u.Query().Get("search_path"))
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "solite", Name: "solite"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "solite@tcp(127.0.0.1:3306)/solite?"), dsn)
	require.Contains(t, dsn, "parseTime=true")
	require.Contains(t, dsn, "charset=utf8mb4")
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "user:secret@tcp(db.example.com:3307)/db?"), dsn)
	require.Contains(t, dsn, "tls=skip-verify")
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := buildSQLiteDSN(Config{})
	require.NoError(t, err)
	require.Contains(t, dsn, "mode=memory")
	require.Contains(t, dsn, "_foreign_keys=1")

	dsn, err = buildSQLiteDSN(Config{DSN: "file:custom?mode=memory"})
	require.NoError(t, err)
	require.Equal(t, "file:custom?mode=memory", dsn)

	dir := t.TempDir()
	dsn, err = buildSQLiteDSN(Config{Path: dir + "/data/app.sqlite"})
	require.NoError(t, err)
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.DirExists(t, dir+"/data")
}
