package cmd

import (
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// dialOptions carries everything needed to reach one SSH endpoint.
type dialOptions struct {
	addr           string // host:port
	user           string
	password       string // last-resort auth, usually empty
	identityFile   string
	knownHostsFile string // enables host-key verification when set
	connectTimeout time.Duration
}

// dialSSH establishes an SSH client connection. Auth preference: configured
// identity file, then any reachable ssh-agent, then a password when one was
// provided. Host keys are not verified unless a known-hosts file is
// configured, matching how the fleet has always been reached.
func dialSSH(opts dialOptions) (*ssh.Client, error) {
	var auths []ssh.AuthMethod

	if opts.identityFile != "" {
		signer, err := loadSigner(opts.identityFile)
		if err != nil {
			return nil, fmt.Errorf("load key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if opts.password != "" {
		auths = append(auths, ssh.Password(opts.password))
	}

	hostKeyCB := ssh.InsecureIgnoreHostKey()
	if opts.knownHostsFile != "" {
		cb, err := knownhosts.New(opts.knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("known_hosts: %w", err)
		}
		hostKeyCB = cb
	}

	timeout := opts.connectTimeout
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}
	cfg := &ssh.ClientConfig{
		User:            opts.user,
		Auth:            auths,
		HostKeyCallback: hostKeyCB,
		Timeout:         timeout,
	}

	// Explicit net.Dialer so the TCP connect shares the handshake timeout.
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", opts.addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, opts.addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}
