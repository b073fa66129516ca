package cmd

import (
	"context"
	"fmt"
	"strings"
)

// reconciler is one guest's full maintenance cycle. It returns the
// mutating-step errors it collected; probe and upgrade problems are logged,
// never returned.
type reconciler interface {
	reconcile(ctx context.Context) []error
}

// runStep executes one mutating command on a session, translating a
// non-zero exit into a step error carrying trimmed stderr.
func runStep(sess remoteSession, what, cmd string) error {
	res, err := sess.run(cmd, true)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if res.exitCode != 0 {
		detail := strings.TrimSpace(res.stderr)
		if detail == "" {
			return fmt.Errorf("%s failed (exit %d)", what, res.exitCode)
		}
		return fmt.Errorf("%s failed (exit %d): %s", what, res.exitCode, detail)
	}
	return nil
}

// vmAgent reconciles one VM: stop if running, snapshot backup, start, find
// an address, best-effort OS upgrade, then restore the original power state.
type vmAgent struct {
	vm    virtualMachine
	host  remoteSession
	api   proxmoxAPI
	guest guestSSHConfig
	dry   bool
}

func (a *vmAgent) reconcile(ctx context.Context) []error {
	logger.Info("processing vm", "vm", a.vm.id, "name", a.vm.name, "status", a.vm.status)
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	wasRunning := a.vm.isRunning()
	if wasRunning {
		collect(a.stop())
	}
	collect(a.backup())
	collect(a.start())
	if addr := a.fetchIP(ctx); addr != "" {
		attemptGuestUpgrade(a.guest, addr, "vm-"+a.vm.id, a.dry)
	} else {
		logger.Warn("unable to determine vm address", "vm", a.vm.id)
	}
	if !wasRunning {
		collect(a.stop())
	}
	return errs
}

func (a *vmAgent) stop() error {
	return runStep(a.host, "vm "+a.vm.id+" shutdown",
		shellJoin([]string{"qm", "shutdown", a.vm.id, "--timeout", "120"}))
}

func (a *vmAgent) backup() error {
	return runStep(a.host, "vm "+a.vm.id+" backup",
		shellJoin([]string{"vzdump", a.vm.id, "--mode", "snapshot", "--compress", "zstd"}))
}

func (a *vmAgent) start() error {
	return runStep(a.host, "vm "+a.vm.id+" start",
		shellJoin([]string{"qm", "start", a.vm.id}))
}

// fetchIP asks the QEMU agent for the VM's first usable IPv4. Any problem
// (agent absent, VM stopped, API down) degrades to "no address".
func (a *vmAgent) fetchIP(ctx context.Context) string {
	ifaces, err := a.api.vmInterfaces(ctx, a.vm.id)
	if err != nil {
		logger.Warn("unable to fetch vm interfaces", "vm", a.vm.id, "error", err)
		return ""
	}
	return firstGuestIPv4(ifaces)
}

// ctAgent is the container counterpart of vmAgent, driving pct instead of
// qm and discovering addresses through pct exec.
type ctAgent struct {
	ct    lxcContainer
	host  remoteSession
	guest guestSSHConfig
	dry   bool
}

func (a *ctAgent) reconcile(ctx context.Context) []error {
	logger.Info("processing container", "ct", a.ct.id, "name", a.ct.name, "status", a.ct.status)
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	wasRunning := a.ct.isRunning()
	if wasRunning {
		collect(a.stop())
	}
	collect(a.backup())
	collect(a.start())
	if addr := a.fetchIP(); addr != "" {
		attemptGuestUpgrade(a.guest, addr, "ct-"+a.ct.id, a.dry)
	} else {
		logger.Warn("unable to determine container address", "ct", a.ct.id)
	}
	if !wasRunning {
		collect(a.stop())
	}
	return errs
}

func (a *ctAgent) stop() error {
	return runStep(a.host, "ct "+a.ct.id+" shutdown",
		shellJoin([]string{"pct", "shutdown", a.ct.id, "--timeout", "120"}))
}

func (a *ctAgent) backup() error {
	return runStep(a.host, "ct "+a.ct.id+" backup",
		shellJoin([]string{"vzdump", a.ct.id, "--mode", "snapshot", "--compress", "zstd"}))
}

func (a *ctAgent) start() error {
	return runStep(a.host, "ct "+a.ct.id+" start",
		shellJoin([]string{"pct", "start", a.ct.id}))
}

// fetchIP runs hostname -I inside the container and picks the first usable
// IPv4 token.
func (a *ctAgent) fetchIP() string {
	cmd := shellJoin([]string{"pct", "exec", a.ct.id, "--", "hostname", "-I"})
	res, err := a.host.run(cmd, false)
	if err != nil || res.exitCode != 0 {
		logger.Warn("unable to fetch container address", "ct", a.ct.id, "error", err)
		return ""
	}
	return firstIPv4Token(res.stdout)
}

// attemptGuestUpgrade best-effort upgrades a guest OS over its own SSH
// session. Non-interactive: there is no alternate-user retry, and every
// failure is only a warning.
func attemptGuestUpgrade(guest guestSSHConfig, addr, label string, dry bool) {
	sess, err := openGuestSessionFunc(guest, addr, label, dry)
	if err != nil {
		logger.Warn("guest unreachable", "guest", label, "error", err)
		return
	}
	defer func() { _ = sess.close() }()
	upgradeOS(sess, guest.user, label)
}

// upgradeOS reads os-release over the session and runs the matching
// distribution upgrade, with sudo when the session user is not root. Hosts
// and guests share this path. Reports whether the upgrade ran cleanly.
func upgradeOS(sess remoteSession, user, label string) bool {
	res, err := sess.run("cat /etc/os-release", false)
	if err != nil || res.exitCode != 0 {
		logger.Warn("unable to read os-release", "target", label, "error", err)
		return false
	}
	pm := packageManagerFor(parseOSRelease(res.stdout))
	if pm == "" {
		logger.Warn("unsupported os, skipping upgrade", "target", label)
		return false
	}
	cmd, err := upgradeCommand(pm, user != "root")
	if err != nil {
		logger.Warn("no upgrade command", "target", label, "error", err)
		return false
	}
	if res, err := sess.run(cmd, true); err != nil || res.exitCode != 0 {
		logger.Warn("os upgrade failed", "target", label, "package_manager", pm, "error", err)
		return false
	}
	logger.Info("os upgrade complete", "target", label, "package_manager", pm)
	return true
}
