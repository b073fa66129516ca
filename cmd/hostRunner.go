package cmd

import "context"

// hostOutcome is a runner's verdict for one host. ok means every guest step
// that mutates state completed; detail carries the failure summary (or a
// short success note) for the batch report.
type hostOutcome struct {
	ok     bool
	detail string
}

// hostRunner performs full maintenance on a single Proxmox host. The batch
// orchestrator treats it as opaque: it must not panic the process, must not
// read the environment (credentials arrive resolved), and owns its own
// internal concurrency.
type hostRunner interface {
	Run(ctx context.Context, cfg hostConfig, creds credentials) hostOutcome
}
