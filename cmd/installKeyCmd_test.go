package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const installKeyManifest = `
[defaults]
guest_user = "svc"

[[hosts]]
name = "pve1"
host = "10.0.0.11"
api_token_env = "KEYTEST_TOKEN"
api_secret_env = "KEYTEST_SECRET"

[hosts.guest_inventory]
version = 1

[[hosts.guest_inventory.entries]]
kind = "vm"
id = "101"
name = "web"
ip = "10.0.20.11"
user = "deploy"
password_env = "KEYTEST_GUEST_PW"
password = "inline-fallback"

[[hosts.guest_inventory.entries]]
kind = "ct"
id = "204"
name = "cache"
ip = "10.0.30.9"

[[hosts.guest_inventory.entries]]
kind = "ct"
id = "205"
name = "optout"
ip = "10.0.40.1"
managed = false

[[hosts.guest_inventory.entries]]
kind = "vm"
id = "102"
name = "dark"
`

const installKeyMaterial = "ssh-ed25519 AAAATestKey maint@fleet"

// TestInstallKey_AppendsOnManagedGuests verifies the append script reaches
// every managed, addressable guest and the manifest records the installs.
func TestInstallKey_AppendsOnManagedGuests(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	tmp := t.TempDir()
	mf := writeTemp(t, tmp, "hosts.toml", installKeyManifest)
	pub := writeTemp(t, tmp, "id.pub", installKeyMaterial+"\n")
	t.Setenv("KEYTEST_GUEST_PW", "env-password")

	vmSess := &scriptedSession{}
	ctSess := &scriptedSession{}
	opens := stubGuestSessions(t, map[string]*scriptedSession{
		"10.0.20.11": vmSess,
		"10.0.30.9":  ctSess,
	})

	rootCmd.SetArgs([]string{"install-key", "-c", mf, "--host", "pve1", "--pubkey", pub})
	Execute()

	require.Equal(t, -1, *code)
	require.Len(t, *opens, 2)
	require.Equal(t, "10.0.20.11", (*opens)[0].addr)
	require.Equal(t, "deploy", (*opens)[0].guest.user)
	require.Equal(t, "env-password", (*opens)[0].guest.password)
	require.Equal(t, "10.0.30.9", (*opens)[1].addr)
	require.Equal(t, "svc", (*opens)[1].guest.user)
	require.Empty(t, (*opens)[1].guest.password)

	wantScript := appendKeyScript(installKeyMaterial)
	require.Equal(t, []sessionCall{{cmd: wantScript, mutable: true}}, vmSess.calls)
	require.Equal(t, []sessionCall{{cmd: wantScript, mutable: true}}, ctSess.calls)

	entries := inventoryEntries(t, mf)
	require.Equal(t, true, entries[0]["ssh_verified"])
	require.Equal(t, pub, entries[0]["ssh_key_path"])
	require.Equal(t, true, entries[1]["ssh_verified"])
	_, touched := entries[2]["ssh_verified"]
	require.False(t, touched, "opted-out guest must not be contacted")
	_, touched = entries[3]["ssh_verified"]
	require.False(t, touched, "addressless guest must not be contacted")

	state, err := loadManifest(mf)
	require.NoError(t, err)
	tbl := inventoryTable(state.hosts[0].extras)
	require.Equal(t, pub, tbl["ssh_public_key"])
	require.NotEmpty(t, tbl["updated_at"])
}

// TestInstallKey_InlinePasswordFallback verifies the inline password is used
// when the password variable is empty.
func TestInstallKey_InlinePasswordFallback(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	tmp := t.TempDir()
	mf := writeTemp(t, tmp, "hosts.toml", installKeyManifest)
	pub := writeTemp(t, tmp, "id.pub", installKeyMaterial)
	t.Setenv("KEYTEST_GUEST_PW", "")

	opens := stubGuestSessions(t, map[string]*scriptedSession{
		"10.0.20.11": {},
		"10.0.30.9":  {},
	})

	rootCmd.SetArgs([]string{"install-key", "-c", mf, "--host", "pve1", "--pubkey", pub})
	Execute()

	require.Equal(t, -1, *code)
	require.Equal(t, "inline-fallback", (*opens)[0].guest.password)
}

// TestInstallKey_FailuresStillAttemptEveryGuest verifies one unreachable
// guest does not stop the rest, and the batch ends on the runtime code.
func TestInstallKey_FailuresStillAttemptEveryGuest(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	tmp := t.TempDir()
	mf := writeTemp(t, tmp, "hosts.toml", installKeyManifest)
	pub := writeTemp(t, tmp, "id.pub", installKeyMaterial)

	// Only the container is reachable; the VM dial fails.
	opens := stubGuestSessions(t, map[string]*scriptedSession{
		"10.0.30.9": {},
	})

	rootCmd.SetArgs([]string{"install-key", "-c", mf, "--host", "pve1", "--pubkey", pub})
	errOut := captureStderr(t, Execute)

	require.Equal(t, 3, *code)
	require.Contains(t, errOut, "key installation failed on 1 of 2 guest(s)")
	require.Len(t, *opens, 2)

	entries := inventoryEntries(t, mf)
	_, marked := entries[0]["ssh_verified"]
	require.False(t, marked, "failed install must not be recorded")
	require.Equal(t, true, entries[1]["ssh_verified"])
}

// TestInstallKey_ScriptFailureCounts verifies a non-zero script exit is a
// per-guest failure with its stderr preserved in the log.
func TestInstallKey_ScriptFailureCounts(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	tmp := t.TempDir()
	mf := writeTemp(t, tmp, "hosts.toml", installKeyManifest)
	pub := writeTemp(t, tmp, "id.pub", installKeyMaterial)

	script := appendKeyScript(installKeyMaterial)
	failing := &scriptedSession{results: map[string]commandResult{
		script: {exitCode: 1, stderr: "read-only file system"},
	}}
	stubGuestSessions(t, map[string]*scriptedSession{
		"10.0.20.11": failing,
		"10.0.30.9":  {},
	})

	rootCmd.SetArgs([]string{"install-key", "-c", mf, "--host", "pve1", "--pubkey", pub})
	errOut := captureStderr(t, Execute)

	require.Equal(t, 3, *code)
	require.Contains(t, errOut, "key installation failed on 1 of 2 guest(s)")
}

// TestInstallKey_MissingPubKey_ExitsOne verifies a bad key path fails before
// any guest is dialed.
func TestInstallKey_MissingPubKey_ExitsOne(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	mf := writeTemp(t, t.TempDir(), "hosts.toml", installKeyManifest)
	opens := stubGuestSessions(t, nil)

	rootCmd.SetArgs([]string{"install-key", "-c", mf, "--host", "pve1",
		"--pubkey", filepath.Join(t.TempDir(), "absent.pub")})
	errOut := captureStderr(t, Execute)

	require.Equal(t, 1, *code)
	require.Contains(t, errOut, "public key file not found")
	require.Empty(t, *opens)
}

// TestInstallKey_EmptyKeyRejected verifies whitespace-only key files are
// refused.
func TestInstallKey_EmptyKeyRejected(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	tmp := t.TempDir()
	mf := writeTemp(t, tmp, "hosts.toml", installKeyManifest)
	pub := writeTemp(t, tmp, "id.pub", "   \n")

	rootCmd.SetArgs([]string{"install-key", "-c", mf, "--host", "pve1", "--pubkey", pub})
	errOut := captureStderr(t, Execute)

	require.Equal(t, 1, *code)
	require.Contains(t, errOut, "is empty")
}

// TestInstallKey_NoTargetsIsClean verifies an inventory with nothing
// addressable warns and exits cleanly.
func TestInstallKey_NoTargetsIsClean(t *testing.T) {
	resetConfig(t)
	code := captureExit(t)
	tmp := t.TempDir()
	manifest := strings.ReplaceAll(installKeyManifest, `ip = "10.0.20.11"`, "")
	manifest = strings.ReplaceAll(manifest, `ip = "10.0.30.9"`, "")
	mf := writeTemp(t, tmp, "hosts.toml", manifest)
	pub := writeTemp(t, tmp, "id.pub", installKeyMaterial)
	opens := stubGuestSessions(t, nil)

	rootCmd.SetArgs([]string{"install-key", "-c", mf, "--host", "pve1", "--pubkey", pub})
	Execute()

	require.Equal(t, -1, *code)
	require.Empty(t, *opens)
}
