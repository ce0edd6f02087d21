package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"demo", "show", "backends", "init-db", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "liveprof version dev")
	assert.Contains(t, out, "Go version: go")
}

func TestConfigFlagReachesSubcommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "profiles.db")
	cfgPath := filepath.Join(dir, "liveprof.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  connection_url: duckdb://"+dbPath+"\n"), 0o644))
	t.Setenv("LIVE_PROFILER_CONNECTION_URL", "")

	out, err := run(t, "--config", cfgPath, "init-db")
	require.NoError(t, err, out)
	assert.FileExists(t, dbPath)

	_, err = run(t, "--config", filepath.Join(dir, "missing.yaml"), "init-db")
	require.Error(t, err)
}
