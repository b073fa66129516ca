package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// commandResult is one finished remote command. A non-zero exit code is a
// normal result here; callers decide whether it is fatal for their step.
type commandResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// exitStatusError matches ssh.ExitError without tying this file to the
// transport, and lets tests fabricate exit codes.
type exitStatusError interface {
	error
	ExitStatus() int
}

// runRemoteCommand executes one command over a fresh session, with an
// optional wall-clock timeout. Transport problems (session setup, timeout,
// connection loss) come back as errors; a command that merely exits non-zero
// comes back with its code and streams and a nil error.
func runRemoteCommand(client sessionClient, cmd string, timeout time.Duration) (commandResult, error) {
	type result struct {
		res commandResult
		err error
	}

	run := func() result {
		currSession, err := client.NewSession()
		if err != nil {
			return result{commandResult{exitCode: -1}, err}
		}
		// Close after a completed Run commonly reports io.EOF; ignore it.
		defer func() { _ = currSession.Close() }()
		stdout, stderr, err := currSession.execute(cmd)
		res := commandResult{stdout: string(stdout), stderr: string(stderr)}
		if err == nil {
			return result{res, nil}
		}
		var ee exitStatusError
		if errors.As(err, &ee) {
			res.exitCode = ee.ExitStatus()
			return result{res, nil}
		}
		res.exitCode = -1
		return result{res, err}
	}

	if timeout <= 0 {
		r := run()
		return r.res, r.err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ch := make(chan result, 1)
	go func() { ch <- run() }()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		// Best-effort: the goroutine is abandoned; the caller usually tears
		// down the whole connection next.
		return commandResult{exitCode: -1}, fmt.Errorf("command timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
}
