package cmd

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// sshClientWrapper adapts *ssh.Client to sessionClient so the maintenance
// flows stay oblivious to the concrete transport.
type sshClientWrapper struct {
	c *ssh.Client
}

func (w sshClientWrapper) NewSession() (session, error) {
	if w.c == nil {
		return nil, fmt.Errorf("nil ssh client")
	}
	s, err := w.c.NewSession()
	if err != nil {
		return nil, err
	}
	return sshSessionWrapper{s}, nil
}
