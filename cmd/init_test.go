package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestInit_EnvConfigOverride verifies that PVEMAINT_CONFIG selects the
// manifest when --config is not given.
func TestInit_EnvConfigOverride(t *testing.T) {
	resetConfig(t)
	captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", executeTestManifest)
	t.Setenv("PVEMAINT_CONFIG", mf)

	rootCmd.SetArgs([]string{"verify"})
	out := captureStdout(t, Execute)

	require.Contains(t, out, "Manifest OK: 1 host(s)")
}

// TestInit_FlagBeatsEnv verifies that an explicit --config wins over the
// environment.
func TestInit_FlagBeatsEnv(t *testing.T) {
	resetConfig(t)
	captureExit(t)
	tmp := t.TempDir()
	mf := writeTemp(t, tmp, "hosts.toml", executeTestManifest)
	t.Setenv("PVEMAINT_CONFIG", filepath.Join(tmp, "absent.toml"))

	rootCmd.SetArgs([]string{"verify", "-c", mf})
	out := captureStdout(t, Execute)

	require.Contains(t, out, "Manifest OK: 1 host(s)")
}

// TestInit_EnvVerboseEnablesDebug verifies PVEMAINT_VERBOSE lowers the log
// threshold without any flag.
func TestInit_EnvVerboseEnablesDebug(t *testing.T) {
	resetConfig(t)
	captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", executeTestManifest)
	t.Setenv("PVEMAINT_VERBOSE", "true")

	rootCmd.SetArgs([]string{"verify", "-c", mf})
	_ = captureStdout(t, Execute)

	require.Equal(t, slog.LevelDebug, logLevel.Level())
}

// TestInit_EnvTimeouts verifies the dashed flag names map onto underscore
// environment variables.
func TestInit_EnvTimeouts(t *testing.T) {
	resetConfig(t)
	captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", executeTestManifest)
	t.Setenv("PVEMAINT_CMD_TIMEOUT", "45s")
	t.Setenv("PVEMAINT_CONN_TIMEOUT", "3s")

	rootCmd.SetArgs([]string{"verify", "-c", mf})
	_ = captureStdout(t, Execute)

	require.Equal(t, 45*time.Second, cfgCmdTimeout)
	require.Equal(t, 3*time.Second, cfgConnTimeout)
}
