package cmd

import (
	"errors"
	"fmt"
	"os"
)

// Execute runs the CLI and maps failures onto process exit codes: typed
// batch failures carry their own code (2 for credential-only problems, 3
// for runtime failures), anything else exits 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var batch *batchFailure
		if errors.As(err, &batch) {
			if batch.message != "" {
				_, _ = fmt.Fprintln(os.Stderr, batch.message)
			}
			exitFunc(batch.code)
			return
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		exitFunc(1)
		return
	}
}
