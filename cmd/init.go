package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// init wires the configuration surface: persistent flags on the root,
// environment overrides through viper's PVEMAINT_ prefix, per-subcommand
// flags, and subcommand registration.
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgConfig, "config", "c", defaultManifestPath, "Path to the TOML host manifest")
	rootCmd.PersistentFlags().BoolVarP(&cfgVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgKnownHosts, "known-hosts", "", "known_hosts path enabling host key verification (default: accept any key)")
	rootCmd.PersistentFlags().DurationVar(&cfgCmdTimeout, "cmd-timeout", 0, "Per remote command timeout (e.g., 30s). 0 disables")
	rootCmd.PersistentFlags().DurationVar(&cfgConnTimeout, "conn-timeout", defaultConnTimeout, "SSH connection timeout")

	// Bind env with Viper
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("known-hosts", rootCmd.PersistentFlags().Lookup("known-hosts"))
	_ = viper.BindPFlag("cmd-timeout", rootCmd.PersistentFlags().Lookup("cmd-timeout"))
	_ = viper.BindPFlag("conn-timeout", rootCmd.PersistentFlags().Lookup("conn-timeout"))

	viper.SetEnvPrefix("PVEMAINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Pull in environment overrides on init
	cobra.OnInitialize(func() {
		if v := viper.GetString("config"); v != "" {
			cfgConfig = v
		}
		if viper.IsSet("verbose") {
			cfgVerbose = viper.GetBool("verbose")
		}
		if v := viper.GetString("known-hosts"); v != "" {
			cfgKnownHosts = v
		}
		if v := viper.GetString("cmd-timeout"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfgCmdTimeout = d
			}
		}
		if v := viper.GetString("conn-timeout"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfgConnTimeout = d
			}
		}
	})

	runCmd.Flags().StringArrayVar(&cfgHosts, "host", nil, "Limit the run to this manifest host (repeatable)")
	runCmd.Flags().BoolVar(&cfgForceDryRun, "dry-run", false, "Log mutating commands without executing them")
	runCmd.Flags().IntVar(&cfgMaxHosts, "max-hosts", 0, "Cap how many selected hosts are processed (0 = all)")
	runCmd.Flags().StringVar(&cfgReportPath, "report", "", "Write a YAML batch report to this path")

	verifyCmd.Flags().BoolVar(&cfgCheckCreds, "credentials", false, "Also check that credential environment variables are set")

	inventoryCmd.Flags().StringVar(&cfgTargetHost, "host", "", "Manifest host entry to inventory")
	inventoryCmd.Flags().StringVar(&cfgPubKeyPath, "pubkey", "", "Public key path recorded for guest installs")
	inventoryCmd.Flags().BoolVar(&cfgSkipSSHCheck, "skip-ssh-check", false, "Skip guest SSH reachability checks")
	_ = inventoryCmd.MarkFlagRequired("host")

	installKeyCmd.Flags().StringVar(&cfgTargetHost, "host", "", "Manifest host entry whose guests receive the key")
	installKeyCmd.Flags().StringVar(&cfgPubKeyPath, "pubkey", "", "Public key file to append to authorized_keys")
	_ = installKeyCmd.MarkFlagRequired("host")
	_ = installKeyCmd.MarkFlagRequired("pubkey")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(installKeyCmd)
}
