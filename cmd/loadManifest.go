package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// loadManifest reads and validates the TOML fleet manifest. Every recognized
// field is popped out of a deep copy of the decoded document, trying the
// canonical spelling first and the compatibility spellings after, so that
// whatever remains is preserved verbatim as extras. Structural problems
// (missing hosts, duplicate names, wrong types, missing credential env-var
// names) are all fatal here, before any host is contacted; the loader never
// reads the environment.
func loadManifest(path string) (*manifestState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("manifest %s is invalid: %w", path, err)
	}

	state := &manifestState{extras: map[string]any{}}

	defaultsRaw, hasDefaults := raw["defaults"]
	if hasDefaults {
		table, ok := defaultsRaw.(map[string]any)
		if !ok {
			return nil, errors.New("[defaults] must be a table")
		}
		defaults, err := parseDefaults(deepCopyMap(table))
		if err != nil {
			return nil, err
		}
		state.defaults = defaults
	} else {
		state.defaults = defaultsForm{extras: map[string]any{}}
	}

	entries, err := hostTables(raw["hosts"])
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		h, err := parseHost(deepCopyMap(entry))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[h.name]; dup {
			return nil, fmt.Errorf("duplicate host name %q detected", h.name)
		}
		seen[h.name] = struct{}{}
		state.hosts = append(state.hosts, h)
	}

	for key, value := range raw {
		if key == "defaults" || key == "hosts" {
			continue
		}
		state.extras[key] = deepCopyValue(value)
	}
	return state, nil
}

// hostTables coerces the decoded hosts value into a non-empty slice of
// tables. BurntSushi decodes [[hosts]] as []map[string]any but a plain
// array would arrive as []any, so both shapes are handled.
func hostTables(v any) ([]map[string]any, error) {
	if v == nil {
		return nil, errors.New("manifest must include a non-empty [[hosts]] list")
	}
	switch t := v.(type) {
	case []map[string]any:
		if len(t) == 0 {
			return nil, errors.New("manifest must include a non-empty [[hosts]] list")
		}
		return t, nil
	case []any:
		if len(t) == 0 {
			return nil, errors.New("manifest must include a non-empty [[hosts]] list")
		}
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			table, ok := item.(map[string]any)
			if !ok {
				return nil, errors.New("each [[hosts]] entry must be a table")
			}
			out = append(out, table)
		}
		return out, nil
	default:
		return nil, errors.New("[[hosts]] must be an array of tables")
	}
}

func parseDefaults(working map[string]any) (defaultsForm, error) {
	var d defaultsForm
	var err error
	if d.user, err = takeString(working, "defaults.user", "user", "ssh.user"); err != nil {
		return d, err
	}
	if d.identityFile, err = takeString(working, "defaults.identity_file", "identity_file", "ssh.identity_file"); err != nil {
		return d, err
	}
	if d.sshExtraArgs, err = takeStringList(working, "defaults.ssh_extra_args", "ssh_extra_args", "ssh.extra_args"); err != nil {
		return d, err
	}
	if d.guestUser, err = takeString(working, "defaults.guest_user", "guest_user", "guest.user"); err != nil {
		return d, err
	}
	if d.guestIdentityFile, err = takeString(working, "defaults.guest_identity_file", "guest_identity_file", "guest.identity_file"); err != nil {
		return d, err
	}
	if d.guestSSHExtraArgs, err = takeStringList(working, "defaults.guest_ssh_extra_args", "guest_ssh_extra_args", "guest.ssh_extra_args", "guest.ssh.extra_args"); err != nil {
		return d, err
	}
	if d.apiNode, err = takeString(working, "defaults.api_node", "api_node", "api.node"); err != nil {
		return d, err
	}
	if d.apiPort, err = takeInt(working, "defaults.api_port", "api_port", "api.port"); err != nil {
		return d, err
	}
	if d.apiInsecure, err = takeBool(working, "defaults.api_insecure", "api_insecure", "api.insecure"); err != nil {
		return d, err
	}
	if d.maxParallel, err = takeInt(working, "defaults.max_parallel", "max_parallel"); err != nil {
		return d, err
	}
	if d.dryRun, err = takeBool(working, "defaults.dry_run", "dry_run"); err != nil {
		return d, err
	}
	if d.apiPort != nil && *d.apiPort <= 0 {
		return d, errors.New("defaults.api_port must be a positive integer")
	}
	if d.maxParallel != nil && *d.maxParallel <= 0 {
		return d, errors.New("defaults.max_parallel must be a positive integer")
	}
	d.extras = working
	return d, nil
}

func parseHost(working map[string]any) (hostForm, error) {
	var h hostForm
	hostValue, err := takeString(working, "hosts.host", "host")
	if err != nil {
		return h, err
	}
	if hostValue == nil || *hostValue == "" {
		return h, errors.New("each host requires a 'host' value")
	}
	h.host = *hostValue

	nameValue, err := takeString(working, "hosts.name", "name")
	if err != nil {
		return h, err
	}
	// A host without an explicit name is addressed by its host value.
	h.name = h.host
	if nameValue != nil && *nameValue != "" {
		h.name = *nameValue
	}
	label := func(field string) string { return fmt.Sprintf("hosts[%s].%s", h.name, field) }

	if h.user, err = takeString(working, label("user"), "user", "ssh.user"); err != nil {
		return h, err
	}
	if h.identityFile, err = takeString(working, label("identity_file"), "identity_file", "ssh.identity_file"); err != nil {
		return h, err
	}
	if h.sshExtraArgs, err = takeStringList(working, label("ssh_extra_args"), "ssh_extra_args", "ssh.extra_args"); err != nil {
		return h, err
	}
	if h.guestUser, err = takeString(working, label("guest_user"), "guest_user", "guest.user"); err != nil {
		return h, err
	}
	if h.guestIdentityFile, err = takeString(working, label("guest_identity_file"), "guest_identity_file", "guest.identity_file"); err != nil {
		return h, err
	}
	if h.guestSSHExtraArgs, err = takeStringList(working, label("guest_ssh_extra_args"), "guest_ssh_extra_args", "guest.ssh_extra_args", "guest.ssh.extra_args"); err != nil {
		return h, err
	}
	if h.apiNode, err = takeString(working, label("api_node"), "api_node", "api.node"); err != nil {
		return h, err
	}
	if h.apiPort, err = takeInt(working, label("api_port"), "api_port", "api.port"); err != nil {
		return h, err
	}
	if h.apiInsecure, err = takeBool(working, label("api_insecure"), "api_insecure", "api.insecure"); err != nil {
		return h, err
	}
	if h.maxParallel, err = takeInt(working, label("max_parallel"), "max_parallel"); err != nil {
		return h, err
	}
	if h.dryRun, err = takeBool(working, label("dry_run"), "dry_run"); err != nil {
		return h, err
	}

	tokenEnv, err := takeString(working, label("api.token_env"), "api.token_env", "api_token_env")
	if err != nil {
		return h, err
	}
	secretEnv, err := takeString(working, label("api.secret_env"), "api.secret_env", "api_secret_env")
	if err != nil {
		return h, err
	}
	if tokenEnv == nil || *tokenEnv == "" || secretEnv == nil || *secretEnv == "" {
		return h, fmt.Errorf("host %q must define api.token_env and api.secret_env", h.name)
	}
	h.apiTokenEnv = *tokenEnv
	h.apiSecretEnv = *secretEnv

	if h.apiPort != nil && *h.apiPort <= 0 {
		return h, fmt.Errorf("%s must be a positive integer", label("api_port"))
	}
	if h.maxParallel != nil && *h.maxParallel <= 0 {
		return h, fmt.Errorf("%s must be a positive integer", label("max_parallel"))
	}
	h.extras = working
	return h, nil
}
