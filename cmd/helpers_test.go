package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// writeTemp writes content to dir/name and returns the full path. Assumes
// dir already exists (usually t.TempDir()).
func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// resetConfig restores flag values, bound globals, and viper state between
// tests. Cobra keeps command and flag state across Execute calls inside one
// process, so every test that drives the CLI starts here.
func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.SetEnvPrefix("PVEMAINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// viper.Reset discards the flag bindings made in init(); restore them so
	// tests see the same flag-over-env precedence as production.
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("known-hosts", rootCmd.PersistentFlags().Lookup("known-hosts"))
	_ = viper.BindPFlag("cmd-timeout", rootCmd.PersistentFlags().Lookup("cmd-timeout"))
	_ = viper.BindPFlag("conn-timeout", rootCmd.PersistentFlags().Lookup("conn-timeout"))
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		resetFlagValues(c)
	}
	// Repeatable flags do not reset cleanly through Set(DefValue); clear the
	// bound slice directly.
	cfgHosts = nil
	cfgConfig = defaultManifestPath
	cfgVerbose = false
	cfgKnownHosts = ""
	cfgCmdTimeout = 0
	cfgConnTimeout = defaultConnTimeout
	cfgForceDryRun = false
	cfgMaxHosts = 0
	cfgReportPath = ""
	cfgCheckCreds = false
	cfgTargetHost = ""
	cfgPubKeyPath = ""
	cfgSkipSSHCheck = false
	rootCmd.SetArgs(nil)
	logLevel.Set(slog.LevelInfo)
}

func resetFlagValues(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() != "stringArray" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
}

// captureExit stubs exitFunc and returns a pointer to the recorded code.
// -1 means exitFunc was never called.
func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	orig := exitFunc
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = orig })
	return &code
}

// captureStderr swaps os.Stderr for a pipe while fn runs and returns what
// was written. The package logger keeps the original handle from init, so
// only direct error prints land here, never slog lines.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = orig }()
	fn()
	require.NoError(t, w.Close())
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// captureStdout is captureStderr for the other stream.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()
	fn()
	require.NoError(t, w.Close())
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// stubHostSession replaces the host SSH dialer with a fixed session or error.
func stubHostSession(t *testing.T, sess remoteSession, err error) {
	t.Helper()
	orig := openHostSessionFunc
	openHostSessionFunc = func(hostConfig) (remoteSession, error) { return sess, err }
	t.Cleanup(func() { openHostSessionFunc = orig })
}

// stubAPIClient makes every host hand out the same canned API.
func stubAPIClient(t *testing.T, api proxmoxAPI) {
	t.Helper()
	orig := newAPIClientFunc
	newAPIClientFunc = func(hostConfig, credentials) proxmoxAPI { return api }
	t.Cleanup(func() { newAPIClientFunc = orig })
}
