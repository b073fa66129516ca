package cmd

import (
	"os"
	"time"
)

// Version is the CLI version string injected at build time via -ldflags.
var Version = "0.1.0"

const (
	// defaultManifestPath is where the manifest is looked for when --config
	// and PVEMAINT_CONFIG are both unset.
	defaultManifestPath = "proxmox-hosts.toml"
	// defaultConnTimeout bounds SSH connection establishment.
	defaultConnTimeout = 15 * time.Second
)

var (
	// Global configuration populated by flags and/or environment variables.
	// These are declared here so they are visible across subcommands.
	cfgConfig       string
	cfgVerbose      bool
	cfgKnownHosts   string
	cfgCmdTimeout   time.Duration
	cfgConnTimeout  time.Duration
	cfgHosts        []string
	cfgForceDryRun  bool
	cfgMaxHosts     int
	cfgReportPath   string
	cfgCheckCreds   bool
	cfgTargetHost   string
	cfgPubKeyPath   string
	cfgSkipSSHCheck bool
)

// Function seams so tests can stub process exit, environment lookups, SSH
// dialing, command execution, and the per-host runner without touching the
// network or the real environment.
var (
	lookupEnvFunc        = os.LookupEnv
	dialSSHFunc          = dialSSH
	runRemoteCommandFunc = runRemoteCommand
	newHostRunnerFunc    = func() hostRunner { return maintenanceRunner{} }
	newAPIClientFunc     = func(cfg hostConfig, creds credentials) proxmoxAPI { return newProxmoxClient(cfg, creds) }
	openHostSessionFunc  = openHostSession
	openGuestSessionFunc = openGuestSession
)
