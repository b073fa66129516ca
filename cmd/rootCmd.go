package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd is the pvemaint entry point. All work happens in subcommands; the
// root carries the persistent configuration surface and the logging setup.
var rootCmd = &cobra.Command{
	Use:   "pvemaint",
	Short: "Back up and upgrade Proxmox hosts and their guests",
	Long: "Walks a TOML manifest of Proxmox hosts, snapshotting and upgrading every VM and container through " +
		"the Proxmox API and SSH, then upgrading the hosts themselves.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging(cfgVerbose)
	},
}
