package cmd

import (
	"bytes"

	"golang.org/x/crypto/ssh"
)

// sshSessionWrapper adapts *ssh.Session to the internal session interface,
// collecting stdout and stderr into separate buffers.
type sshSessionWrapper struct {
	s *ssh.Session
}

func (w sshSessionWrapper) execute(cmd string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	w.s.Stdout = &stdout
	w.s.Stderr = &stderr
	err := w.s.Run(cmd)
	return stdout.Bytes(), stderr.Bytes(), err
}

func (w sshSessionWrapper) Close() error {
	return w.s.Close()
}
