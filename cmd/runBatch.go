package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// concurrencyGate sizes the global admission gate: the smallest max_parallel
// among the targeted hosts that set one, or 1 when none does. Serial is the
// safe default for fleet-wide mutations.
func concurrencyGate(hosts []hostConfig) int {
	gate := 0
	for _, h := range hosts {
		if h.maxParallel != nil && (gate == 0 || *h.maxParallel < gate) {
			gate = *h.maxParallel
		}
	}
	if gate <= 0 {
		return 1
	}
	return gate
}

// capHosts truncates the selection to the first n hosts in manifest order.
// n <= 0 means no cap.
func capHosts(hosts []hostConfig, n int) []hostConfig {
	if n > 0 && n < len(hosts) {
		return hosts[:n]
	}
	return hosts
}

// runBatch drives maintenance for the selected hosts under the global gate
// and returns one result slot per host, in input order. Credentials are
// resolved inside each task; a host whose credentials are missing is
// recorded without ever invoking the runner. A panicking runner is contained
// and recorded as a runtime failure while the rest of the batch proceeds.
func runBatch(ctx context.Context, hosts []hostConfig, runner hostRunner) []hostResult {
	results := make([]hostResult, len(hosts))
	if len(hosts) == 0 {
		return results
	}
	sem := make(chan struct{}, concurrencyGate(hosts))
	var wg sync.WaitGroup
	for i := range hosts {
		// Acquire before spawning so hosts queue in manifest order.
		sem <- struct{}{}
		wg.Add(1)
		go func(slot *hostResult, cfg hostConfig) {
			defer wg.Done()
			defer func() { <-sem }()
			*slot = runOne(ctx, cfg, runner)
		}(&results[i], hosts[i])
	}
	wg.Wait()
	return results
}

// runOne executes a single host task and classifies its outcome. Each call
// writes only its own result slot.
func runOne(ctx context.Context, cfg hostConfig, runner hostRunner) (res hostResult) {
	res = hostResult{name: cfg.name, host: cfg.host}
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.class = classRuntime
			res.detail = fmt.Sprintf("panic: %v", r)
		}
		res.duration = time.Since(started)
		logger.Info("host maintenance finished",
			"host", res.name, "status", res.class.String(), "duration", res.duration)
	}()

	logger.Info("host maintenance started", "host", cfg.name, "dry_run", cfg.dryRun)
	creds, err := resolveCredentials(cfg)
	if err != nil {
		res.class = classCredential
		res.detail = err.Error()
		return res
	}
	outcome := runner.Run(ctx, cfg, creds)
	if outcome.ok {
		res.class = classSuccess
	} else {
		res.class = classRuntime
	}
	res.detail = outcome.detail
	return res
}
