package cmd

import (
	"fmt"
	"time"
)

// resultClass partitions host outcomes for exit-code purposes. Credential
// problems are kept distinct from runtime failures so operators can tell a
// misconfigured shell from a broken host.
type resultClass int

const (
	classSuccess resultClass = iota
	classCredential
	classRuntime
)

func (c resultClass) String() string {
	switch c {
	case classSuccess:
		return "success"
	case classCredential:
		return "credential-error"
	case classRuntime:
		return "failure"
	}
	return "unknown"
}

// hostResult is one slot of a batch outcome. Each host task owns exactly one
// slot, so slots are written without locking.
type hostResult struct {
	name     string
	host     string
	class    resultClass
	detail   string
	duration time.Duration
}

// exitCodeFor folds a finished batch into the process exit code: any runtime
// failure dominates with 3 even when credential failures occurred alongside
// it, otherwise any credential failure yields 2, otherwise 0.
func exitCodeFor(results []hostResult) int {
	code := 0
	for _, r := range results {
		switch r.class {
		case classRuntime:
			return 3
		case classCredential:
			code = 2
		}
	}
	return code
}

// batchTotals aggregates slot classes for the end-of-run summary line.
type batchTotals struct {
	succeeded  int
	credential int
	failed     int
}

func totalsFor(results []hostResult) batchTotals {
	var t batchTotals
	for _, r := range results {
		switch r.class {
		case classSuccess:
			t.succeeded++
		case classCredential:
			t.credential++
		case classRuntime:
			t.failed++
		}
	}
	return t
}

func (t batchTotals) String() string {
	return fmt.Sprintf("%d succeeded, %d blocked on credentials, %d failed",
		t.succeeded, t.credential, t.failed)
}

// batchFailure maps a failed run onto its process exit code. Execute checks
// for it so the run command can request exit 2 or 3 instead of the generic
// failure code.
type batchFailure struct {
	code    int
	message string
}

func (e *batchFailure) Error() string { return e.message }
