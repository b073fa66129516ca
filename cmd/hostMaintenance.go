package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// maintenanceRunner is the production hostRunner: it connects over SSH,
// walks every VM and container through backup and upgrade, then upgrades
// the host itself.
type maintenanceRunner struct{}

func (maintenanceRunner) Run(ctx context.Context, cfg hostConfig, creds credentials) hostOutcome {
	sess, err := openHostSessionFunc(cfg)
	if err != nil {
		return hostOutcome{detail: err.Error()}
	}
	defer func() { _ = sess.close() }()
	agent := &hostAgent{
		cfg:  cfg,
		sess: sess,
		api:  newAPIClientFunc(cfg, creds),
	}
	return agent.run(ctx)
}

// hostAgent runs one host's full cycle. Guests go first so the host upgrade
// never reboots qemu from under an in-flight vzdump.
type hostAgent struct {
	cfg  hostConfig
	sess remoteSession
	api  proxmoxAPI
}

func (a *hostAgent) run(ctx context.Context) hostOutcome {
	guest := guestSSHConfig{
		user:         a.cfg.guestUser,
		identityFile: a.cfg.guestIdentityFile,
		extraArgs:    a.cfg.guestSSHExtraArgs,
	}
	gate := orValue(a.cfg.maxParallel, 2)
	if gate < 1 {
		gate = 1
	}

	vms, err := a.api.listVMs(ctx)
	if err != nil {
		logger.Error("cannot list vms", "host", a.cfg.name, "error", err)
	}
	cts, err := a.api.listContainers(ctx)
	if err != nil {
		logger.Error("cannot list containers", "host", a.cfg.name, "error", err)
	}

	vmAgents := make([]reconciler, 0, len(vms))
	for _, vm := range vms {
		vmAgents = append(vmAgents, &vmAgent{vm: vm, host: a.sess, api: a.api, guest: guest, dry: a.cfg.dryRun})
	}
	ctAgents := make([]reconciler, 0, len(cts))
	for _, ct := range cts {
		ctAgents = append(ctAgents, &ctAgent{ct: ct, host: a.sess, guest: guest, dry: a.cfg.dryRun})
	}

	failures := a.runWithLimit(ctx, vmAgents, gate)
	failures = append(failures, a.runWithLimit(ctx, ctAgents, gate)...)

	a.upgradeHost()

	if len(failures) > 0 {
		return hostOutcome{detail: strings.Join(failures, "; ")}
	}
	return hostOutcome{
		ok:     true,
		detail: fmt.Sprintf("%d vm(s), %d container(s) maintained", len(vms), len(cts)),
	}
}

// runWithLimit reconciles the agents with at most gate in flight. Results
// land in per-agent slots so flattening preserves listing order.
func (a *hostAgent) runWithLimit(ctx context.Context, agents []reconciler, gate int) []string {
	slots := make([][]error, len(agents))
	sem := make(chan struct{}, gate)
	var wg sync.WaitGroup
	for i := range agents {
		sem <- struct{}{}
		wg.Add(1)
		go func(slot *[]error, agent reconciler) {
			defer wg.Done()
			defer func() { <-sem }()
			*slot = agent.reconcile(ctx)
		}(&slots[i], agents[i])
	}
	wg.Wait()

	var failures []string
	for _, errs := range slots {
		for _, err := range errs {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// upgradeHost best-effort upgrades the Proxmox host OS itself. Failures are
// logged, never returned: a stale host kernel must not mark the backups bad.
func (a *hostAgent) upgradeHost() {
	logger.Info("upgrading host os", "host", a.cfg.name)
	if upgradeOS(a.sess, a.cfg.user, a.cfg.name) {
		return
	}
	logger.Warn("host upgrade skipped or failed", "host", a.cfg.name)
}
