package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// saveManifest serializes the raw manifest state back to TOML and writes it
// atomically: encode to a temp file in the target directory, then rename
// over the destination so a crash can never leave a truncated manifest.
// Recognized fields are re-emitted under their canonical spellings; extras
// (top-level, defaults-level, and per-host, including guest_inventory) are
// written back untouched.
func saveManifest(state *manifestState, path string) error {
	data := manifestPayload(state)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pvemaint-*.toml")
	if err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	tmpName := tmp.Name()
	if err := toml.NewEncoder(tmp).Encode(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("save manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

func manifestPayload(state *manifestState) map[string]any {
	data := deepCopyMap(state.extras)
	data["defaults"] = defaultsPayload(state.defaults)
	hosts := make([]map[string]any, 0, len(state.hosts))
	for i := range state.hosts {
		hosts = append(hosts, hostPayload(state.hosts[i]))
	}
	data["hosts"] = hosts
	return data
}

func defaultsPayload(d defaultsForm) map[string]any {
	m := deepCopyMap(d.extras)
	setOptString(m, "user", d.user)
	setOptString(m, "identity_file", d.identityFile)
	setOptList(m, "ssh_extra_args", d.sshExtraArgs)
	setOptString(m, "guest_user", d.guestUser)
	setOptString(m, "guest_identity_file", d.guestIdentityFile)
	setOptList(m, "guest_ssh_extra_args", d.guestSSHExtraArgs)
	setOptString(m, "api_node", d.apiNode)
	setOptInt(m, "api_port", d.apiPort)
	setOptBool(m, "api_insecure", d.apiInsecure)
	setOptInt(m, "max_parallel", d.maxParallel)
	setOptBool(m, "dry_run", d.dryRun)
	return m
}

func hostPayload(h hostForm) map[string]any {
	m := deepCopyMap(h.extras)
	setPath(m, "name", h.name)
	setPath(m, "host", h.host)
	setPath(m, "api.token_env", h.apiTokenEnv)
	setPath(m, "api.secret_env", h.apiSecretEnv)
	setOptString(m, "user", h.user)
	setOptString(m, "identity_file", h.identityFile)
	setOptList(m, "ssh_extra_args", h.sshExtraArgs)
	setOptString(m, "guest_user", h.guestUser)
	setOptString(m, "guest_identity_file", h.guestIdentityFile)
	setOptList(m, "guest_ssh_extra_args", h.guestSSHExtraArgs)
	setOptString(m, "api_node", h.apiNode)
	setOptInt(m, "api_port", h.apiPort)
	setOptBool(m, "api_insecure", h.apiInsecure)
	setOptInt(m, "max_parallel", h.maxParallel)
	setOptBool(m, "dry_run", h.dryRun)
	return m
}

func setOptString(m map[string]any, key string, v *string) {
	if v != nil {
		setPath(m, key, *v)
	}
}

func setOptInt(m map[string]any, key string, v *int) {
	if v != nil {
		setPath(m, key, int64(*v))
	}
}

func setOptBool(m map[string]any, key string, v *bool) {
	if v != nil {
		setPath(m, key, *v)
	}
}

func setOptList(m map[string]any, key string, v []string) {
	if v != nil {
		setPath(m, key, append([]string(nil), v...))
	}
}
