package testutil

import (
	"path/filepath"
	"testing"

	"github.com/coral-mesh/liveprof/internal/duckdb"
)

// TempDuckDBURL returns the connection URL of a database file in a fresh
// temporary directory. The file does not exist yet.
func TempDuckDBURL(t *testing.T) string {
	t.Helper()
	return duckdb.Scheme + filepath.Join(t.TempDir(), "profiles.db")
}
