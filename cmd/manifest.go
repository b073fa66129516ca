package cmd

import (
	"os"
	"path/filepath"
	"strings"
)

// manifestState is the raw, round-trip-safe form of the fleet manifest: the
// [defaults] table, the ordered [[hosts]] entries, and every key the schema
// does not recognize. Companion tools mutate this form in memory and persist
// it; the orchestrator only ever reads the resolved view.
type manifestState struct {
	defaults defaultsForm
	hosts    []hostForm
	extras   map[string]any
}

// defaultsForm holds the optional base values applied to every host. A nil
// pointer (or nil slice) means the key was absent, which matters for the
// field-wise merge and for writing back only what the operator actually set.
type defaultsForm struct {
	user              *string
	identityFile      *string
	sshExtraArgs      []string
	guestUser         *string
	guestIdentityFile *string
	guestSSHExtraArgs []string
	apiNode           *string
	apiPort           *int
	apiInsecure       *bool
	maxParallel       *int
	dryRun            *bool
	extras            map[string]any
}

// hostForm is one [[hosts]] entry in raw form. name is already defaulted to
// the host address; the credential env-var names are mandatory per entry.
// extras carries unrecognized keys, including the opaque guest_inventory
// table maintained by the inventory subcommands.
type hostForm struct {
	name              string
	host              string
	user              *string
	identityFile      *string
	sshExtraArgs      []string
	guestUser         *string
	guestIdentityFile *string
	guestSSHExtraArgs []string
	apiNode           *string
	apiPort           *int
	apiInsecure       *bool
	apiTokenEnv       string
	apiSecretEnv      string
	maxParallel       *int
	dryRun            *bool
	extras            map[string]any
}

// hostConfig is a fully merged host: every inheritable field filled from the
// entry, then defaults, then the baked-in fallbacks. maxParallel stays a
// pointer because "genuinely unset" drives the batch gate default of 1.
type hostConfig struct {
	name              string
	host              string
	user              string
	identityFile      string
	sshExtraArgs      []string
	guestUser         string
	guestIdentityFile string
	guestSSHExtraArgs []string
	apiNode           string
	apiPort           int
	apiInsecure       bool
	apiTokenEnv       string
	apiSecretEnv      string
	maxParallel       *int
	dryRun            bool
}

// pick returns the host-level override when present, else the default layer.
func pick[T any](override, fallback *T) *T {
	if override != nil {
		return override
	}
	return fallback
}

// orValue dereferences with a final fallback for fields that always resolve.
func orValue[T any](p *T, fallback T) T {
	if p != nil {
		return *p
	}
	return fallback
}

// pickList prefers the host-level sequence; sequences replace whole, they
// are never concatenated across layers.
func pickList(override, fallback []string) []string {
	if override != nil {
		return override
	}
	return fallback
}

// expandUser resolves a leading ~ against the current home directory, like
// the shell would before handing us a path.
func expandUser(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// resolveHost merges one entry over the defaults layer. Identity paths are
// ~-expanded here, on the resolved view only, so the raw form round-trips
// exactly what the operator wrote.
func resolveHost(h hostForm, d defaultsForm) hostConfig {
	return hostConfig{
		name:              h.name,
		host:              h.host,
		user:              orValue(pick(h.user, d.user), "root"),
		identityFile:      expandUser(orValue(pick(h.identityFile, d.identityFile), "")),
		sshExtraArgs:      pickList(h.sshExtraArgs, d.sshExtraArgs),
		guestUser:         orValue(pick(h.guestUser, d.guestUser), "root"),
		guestIdentityFile: expandUser(orValue(pick(h.guestIdentityFile, d.guestIdentityFile), "")),
		guestSSHExtraArgs: pickList(h.guestSSHExtraArgs, d.guestSSHExtraArgs),
		apiNode:           orValue(pick(h.apiNode, d.apiNode), ""),
		apiPort:           orValue(pick(h.apiPort, d.apiPort), 8006),
		apiInsecure:       orValue(pick(h.apiInsecure, d.apiInsecure), false),
		apiTokenEnv:       h.apiTokenEnv,
		apiSecretEnv:      h.apiSecretEnv,
		maxParallel:       pick(h.maxParallel, d.maxParallel),
		dryRun:            orValue(pick(h.dryRun, d.dryRun), false),
	}
}

// resolveHosts merges every entry in manifest order.
func (m *manifestState) resolveHosts() []hostConfig {
	out := make([]hostConfig, 0, len(m.hosts))
	for _, h := range m.hosts {
		out = append(out, resolveHost(h, m.defaults))
	}
	return out
}

// hostIndex returns the position of the named host, or -1.
func (m *manifestState) hostIndex(name string) int {
	for i := range m.hosts {
		if m.hosts[i].name == name {
			return i
		}
	}
	return -1
}
