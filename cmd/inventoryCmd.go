package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// inventoryCmd rebuilds one host's guest_inventory table from live API and
// SSH discovery, then persists the manifest atomically. Exit 1 for manifest
// or selection problems, 2 for missing credentials, 3 for discovery or
// persistence failures.
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Discover a host's guests and refresh its manifest inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadManifest(cfgConfig)
		if err != nil {
			return err
		}
		idx := state.hostIndex(cfgTargetHost)
		if idx < 0 {
			return fmt.Errorf("unknown host %q", cfgTargetHost)
		}
		h := &state.hosts[idx]
		cfg := resolveHost(*h, state.defaults)

		creds, err := resolveCredentials(cfg)
		if err != nil {
			return &batchFailure{code: 2, message: err.Error()}
		}

		updates, err := discoverGuests(cmd.Context(), cfg, creds, cfgSkipSSHCheck)
		if err != nil {
			return &batchFailure{code: 3, message: err.Error()}
		}
		rebuildInventory(h, updates, cfg.guestUser, cfgPubKeyPath, time.Now())
		if err := saveManifest(state, cfgConfig); err != nil {
			return &batchFailure{code: 3, message: fmt.Sprintf("persist manifest: %v", err)}
		}
		logger.Info("inventory updated", "host", cfg.name, "guests", len(updates))
		return nil
	},
}

// discoverGuests enumerates a host's guests and determines addresses and
// reachability. The host SSH session is optional: without it container
// addresses degrade to warnings, leaving previous entries intact.
func discoverGuests(ctx context.Context, cfg hostConfig, creds credentials, skipCheck bool) ([]inventoryUpdate, error) {
	api := newAPIClientFunc(cfg, creds)

	var hostSess remoteSession
	if sess, err := openHostSessionFunc(cfg); err != nil {
		logger.Warn("host ssh unavailable; container addresses may be stale", "host", cfg.name, "error", err)
	} else {
		hostSess = sess
		defer func() { _ = hostSess.close() }()
	}

	vms, err := api.listVMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vms on %s: %w", cfg.name, err)
	}
	cts, err := api.listContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers on %s: %w", cfg.name, err)
	}

	guest := guestSSHConfig{
		user:         cfg.guestUser,
		identityFile: cfg.guestIdentityFile,
		extraArgs:    cfg.guestSSHExtraArgs,
	}
	updates := make([]inventoryUpdate, 0, len(vms)+len(cts))
	for _, vm := range vms {
		d := guestDiscovery{kind: "vm", id: vm.id, name: vm.name, status: vm.status}
		if vm.isRunning() {
			if ifaces, err := api.vmInterfaces(ctx, vm.id); err != nil {
				logger.Warn("unable to fetch vm interfaces", "vm", vm.id, "error", err)
			} else {
				d.ip = firstGuestIPv4(ifaces)
			}
		}
		updates = append(updates, inventoryUpdate{guest: d, verified: checkGuestSSH(guest, d, skipCheck)})
	}
	for _, ct := range cts {
		d := guestDiscovery{kind: "ct", id: ct.id, name: ct.name, status: ct.status}
		if ct.isRunning() && hostSess != nil {
			probe := shellJoin([]string{"pct", "exec", ct.id, "--", "hostname", "-I"})
			if res, err := hostSess.run(probe, false); err != nil || res.exitCode != 0 {
				logger.Warn("unable to fetch container address", "ct", ct.id, "error", err)
			} else {
				d.ip = firstIPv4Token(res.stdout)
			}
		}
		updates = append(updates, inventoryUpdate{guest: d, verified: checkGuestSSH(guest, d, skipCheck)})
	}
	return updates, nil
}

// checkGuestSSH runs `true` over the guest's SSH path and reports the
// verdict. A nil return means the check could not run at all, so the
// previous verdict should stand.
func checkGuestSSH(guest guestSSHConfig, d guestDiscovery, skip bool) *bool {
	if skip {
		return nil
	}
	if d.ip == "" {
		logger.Warn("skipping ssh check: no address", "guest", d.label())
		return nil
	}
	verdict := false
	sess, err := openGuestSessionFunc(guest, d.ip, d.label(), false)
	if err != nil {
		logger.Info("ssh check failed", "guest", d.label(), "error", err)
		return &verdict
	}
	defer func() { _ = sess.close() }()
	res, err := sess.run("true", false)
	verdict = err == nil && res.exitCode == 0
	return &verdict
}
