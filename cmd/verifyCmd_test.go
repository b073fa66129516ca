package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const verifyTestManifest = `
[defaults]
user = "root"

[[hosts]]
name = "pve1"
host = "10.0.0.11"
api_token_env = "VERIFYTEST_P1_TOKEN"
api_secret_env = "VERIFYTEST_P1_SECRET"

[[hosts]]
name = "pve2"
host = "10.0.0.12"
api_token_env = "VERIFYTEST_P2_TOKEN"
api_secret_env = "VERIFYTEST_P2_SECRET"
`

// TestVerify_StructureOnly verifies the default mode checks the manifest
// without touching the environment.
func TestVerify_StructureOnly(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", verifyTestManifest)

	rootCmd.SetArgs([]string{"verify", "-c", mf})
	out := captureStdout(t, Execute)

	require.Equal(t, -1, *code)
	require.Contains(t, out, "Manifest OK: 2 host(s)")
}

// TestVerify_StructuralErrorExitsOne verifies a manifest without hosts is
// rejected before any credential check.
func TestVerify_StructuralErrorExitsOne(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", "[defaults]\nuser = \"root\"\n")

	rootCmd.SetArgs([]string{"verify", "--credentials", "-c", mf})
	errOut := captureStderr(t, Execute)

	require.Equal(t, 1, *code)
	require.Contains(t, errOut, "invalid manifest")
}

// TestVerify_CredentialsPresent verifies the --credentials pass when every
// variable is populated.
func TestVerify_CredentialsPresent(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", verifyTestManifest)
	t.Setenv("VERIFYTEST_P1_TOKEN", "maint@pam!nightly")
	t.Setenv("VERIFYTEST_P1_SECRET", "p1-secret")
	t.Setenv("VERIFYTEST_P2_TOKEN", "maint@pam!nightly")
	t.Setenv("VERIFYTEST_P2_SECRET", "p2-secret")

	rootCmd.SetArgs([]string{"verify", "--credentials", "-c", mf})
	out := captureStdout(t, Execute)

	require.Equal(t, -1, *code)
	require.Contains(t, out, "Manifest OK: 2 host(s), credentials present")
}

// TestVerify_MissingCredentialsExitsTwo verifies missing variables are
// counted per host and reported without ever printing secret values.
func TestVerify_MissingCredentialsExitsTwo(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", verifyTestManifest)
	t.Setenv("VERIFYTEST_P1_TOKEN", "maint@pam!nightly")
	t.Setenv("VERIFYTEST_P1_SECRET", "p1-secret")
	// pve2 variables stay unset; an empty value counts as unset too.
	t.Setenv("VERIFYTEST_P2_TOKEN", "")

	rootCmd.SetArgs([]string{"verify", "--credentials", "-c", mf})
	errOut := captureStderr(t, Execute)

	require.Equal(t, 2, *code)
	require.Contains(t, errOut, "1 host(s) missing credential variables")
	require.NotContains(t, errOut, "p1-secret")
}
