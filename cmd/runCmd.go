package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// runCmd walks the selected hosts through the full maintenance cycle and
// folds the per-host outcomes into the process exit code: 0 all good, 2
// exclusively credential problems, 3 any runtime failure.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up and upgrade guests, then hosts, across the fleet",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("max-hosts") && cfgMaxHosts < 1 {
			return fmt.Errorf("--max-hosts must be positive, got %d", cfgMaxHosts)
		}
		state, err := loadManifest(cfgConfig)
		if err != nil {
			return err
		}
		hosts, err := selectHosts(state, cfgHosts)
		if err != nil {
			return err
		}
		hosts = capHosts(hosts, cfgMaxHosts)
		if len(hosts) == 0 {
			logger.Warn("selection is empty; nothing to run")
		}
		if cfgForceDryRun {
			for i := range hosts {
				hosts[i].dryRun = true
			}
		}
		logger.Info("starting batch", "hosts", len(hosts), "gate", concurrencyGate(hosts), "dry_run", cfgForceDryRun)

		results := runBatch(cmd.Context(), hosts, newHostRunnerFunc())
		for _, res := range results {
			logger.Info("host outcome", "host", res.name, "class", res.class.String(), "detail", res.detail)
		}
		totals := totalsFor(results)
		logger.Info("batch finished", "summary", totals.String())

		var reportErr error
		if cfgReportPath != "" {
			reportErr = saveBatchReport(cfgReportPath, newBatchReport(cfgConfig, cfgForceDryRun, results))
		}

		if code := exitCodeFor(results); code != 0 {
			if reportErr != nil {
				logger.Error("report not written", "path", cfgReportPath, "error", reportErr)
			}
			return &batchFailure{code: code, message: fmt.Sprintf("maintenance incomplete: %s", totals.String())}
		}
		if reportErr != nil {
			return fmt.Errorf("write report %s: %w", cfgReportPath, reportErr)
		}
		return nil
	},
}
