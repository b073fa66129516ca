// Package cmd implements the pvemaint command-line interface.
//
// The package organizes all CLI subcommands (run, verify, inventory,
// install-key) and the underlying helpers for the TOML fleet manifest, the
// bounded-parallel batch orchestrator, per-host credential resolution from
// the environment, the Proxmox HTTP API client, and SSH session handling
// for hosts and guests.
//
// New contributors should start by reading runCmd.go to see how a batch run
// is assembled, loadManifest.go for how host entries merge over defaults
// while preserving unknown keys, runBatch.go for the concurrency gate, and
// hostMaintenance.go for what actually happens on one host.
package cmd
