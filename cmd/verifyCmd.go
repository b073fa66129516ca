package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// verifyCmd validates manifest structure and, with --credentials, that
// every host's credential environment variables are populated. Only
// variable names are ever printed.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the host manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadManifest(cfgConfig)
		if err != nil {
			return fmt.Errorf("invalid manifest: %w", err)
		}
		hosts := state.resolveHosts()
		if !cfgCheckCreds {
			_, _ = fmt.Fprintf(os.Stdout, "Manifest OK: %d host(s)\n", len(hosts))
			return nil
		}

		missing := 0
		for _, cfg := range hosts {
			if _, err := resolveCredentials(cfg); err != nil {
				var credErr *credentialError
				if !errors.As(err, &credErr) {
					return err
				}
				missing++
				logger.Warn("credentials missing", "host", cfg.name,
					"variables", strings.Join(credErr.missing, ", "))
			}
		}
		if missing > 0 {
			return &batchFailure{code: 2, message: fmt.Sprintf("%d host(s) missing credential variables", missing)}
		}
		_, _ = fmt.Fprintf(os.Stdout, "Manifest OK: %d host(s), credentials present\n", len(hosts))
		return nil
	},
}
