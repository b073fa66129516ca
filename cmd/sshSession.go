package cmd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// remoteSession is a long-lived connection to one machine, host or guest,
// with dry-run semantics applied per command.
type remoteSession interface {
	run(cmd string, mutable bool) (commandResult, error)
	close() error
}

// guestSSHConfig is how one guest is reached: the host's guest-level
// manifest settings plus an optional inventory password.
type guestSSHConfig struct {
	user         string
	identityFile string
	extraArgs    []string
	password     string
}

// sshRemoteSession runs commands over one SSH connection, opening a fresh
// exec session per command.
type sshRemoteSession struct {
	conn       *ssh.Client
	sessions   sessionClient
	target     string
	dryRun     bool
	cmdTimeout time.Duration
}

// run executes cmd remotely. In dry-run mode mutable commands are logged and
// skipped with a synthetic success; probes always run so the dry run still
// reports real fleet state.
func (s *sshRemoteSession) run(cmd string, mutable bool) (commandResult, error) {
	if s.dryRun && mutable {
		logger.Info("dry-run: would run", "target", s.target, "cmd", cmd)
		return commandResult{}, nil
	}
	logger.Debug("remote command", "target", s.target, "cmd", cmd)
	return runRemoteCommandFunc(s.sessions, cmd, s.cmdTimeout)
}

func (s *sshRemoteSession) close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// openHostSession dials a fleet host using its manifest settings plus any
// recognized extra_args overrides.
func openHostSession(cfg hostConfig) (remoteSession, error) {
	overrides, err := parseSSHArgs(cfg.sshExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("host %s ssh args: %w", cfg.name, err)
	}
	opts := dialOptions{
		user:           cfg.user,
		identityFile:   cfg.identityFile,
		knownHostsFile: cfgKnownHosts,
		connectTimeout: cfgConnTimeout,
	}
	opts = applyOverrides(opts, overrides)
	opts.addr = joinHostPort(cfg.host, overrides.port)
	client, err := dialSSHFunc(opts)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.name, err)
	}
	return &sshRemoteSession{
		conn:       client,
		sessions:   sshClientWrapper{client},
		target:     cfg.name,
		dryRun:     cfg.dryRun,
		cmdTimeout: cfgCmdTimeout,
	}, nil
}

// openGuestSession dials a guest at addr with the host's guest-level
// settings. Guests are dialed without host-key verification unless their
// extra args configure it; guest addresses churn with every reprovision.
func openGuestSession(guest guestSSHConfig, addr, label string, dryRun bool) (remoteSession, error) {
	overrides, err := parseSSHArgs(guest.extraArgs)
	if err != nil {
		return nil, fmt.Errorf("guest %s ssh args: %w", label, err)
	}
	opts := dialOptions{
		user:           guest.user,
		password:       guest.password,
		identityFile:   guest.identityFile,
		connectTimeout: cfgConnTimeout,
	}
	opts = applyOverrides(opts, overrides)
	opts.addr = joinHostPort(addr, overrides.port)
	client, err := dialSSHFunc(opts)
	if err != nil {
		return nil, fmt.Errorf("connect guest %s: %w", label, err)
	}
	return &sshRemoteSession{
		conn:       client,
		sessions:   sshClientWrapper{client},
		target:     label,
		dryRun:     dryRun,
		cmdTimeout: cfgCmdTimeout,
	}, nil
}

// applyOverrides folds parsed extra_args into the dial options. An explicit
// StrictHostKeyChecking=yes with no file configured falls back to the
// standard per-user known_hosts.
func applyOverrides(opts dialOptions, o sshOverrides) dialOptions {
	if o.user != "" {
		opts.user = o.user
	}
	if o.identityFile != "" {
		opts.identityFile = o.identityFile
	}
	if o.connectTimeout > 0 {
		opts.connectTimeout = o.connectTimeout
	}
	if o.knownHostsFile != "" {
		opts.knownHostsFile = o.knownHostsFile
	}
	if o.insecureHostKey != nil {
		if *o.insecureHostKey {
			opts.knownHostsFile = ""
		} else if opts.knownHostsFile == "" {
			opts.knownHostsFile = expandUser("~/.ssh/known_hosts")
		}
	}
	return opts
}

func joinHostPort(host string, port int) string {
	if port <= 0 {
		port = 22
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
