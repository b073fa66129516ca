package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sysmaint/pvemaint/tools/sshtest"
)

// Standalone scripted SSH server for poking at pvemaint by hand: every exec
// is echoed to stderr and answered with a zero exit, so a manifest pointing
// at 127.0.0.1:20222 can walk the whole maintenance cycle locally.
func main() {
	addr, stop, err := sshtest.Start("127.0.0.1:20222", func(cmd string) sshtest.Response {
		_, _ = fmt.Fprintln(os.Stderr, "exec:", cmd)
		return sshtest.Response{Stdout: "ok\n"}
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "failed to start test ssh server:", err)
		os.Exit(1)
	}
	_, _ = fmt.Fprintln(os.Stderr, "test ssh server listening on", addr)
	defer stop()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
