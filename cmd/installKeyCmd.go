package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// installKeyCmd appends a public key to authorized_keys on every managed,
// addressable guest of one host, then records the per-guest results back
// into the manifest. Every guest is attempted even after failures; any
// failure ends with exit 3.
var installKeyCmd = &cobra.Command{
	Use:   "install-key",
	Short: "Install an SSH public key on a host's managed guests",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadManifest(cfgConfig)
		if err != nil {
			return err
		}
		idx := state.hostIndex(cfgTargetHost)
		if idx < 0 {
			return fmt.Errorf("unknown host %q", cfgTargetHost)
		}
		h := &state.hosts[idx]
		cfg := resolveHost(*h, state.defaults)

		pubKey, err := readPublicKey(cfgPubKeyPath)
		if err != nil {
			return err
		}

		targets := installTargets(h, cfg.guestUser)
		if len(targets) == 0 {
			logger.Warn("no managed guests with addresses; nothing to install", "host", cfg.name)
			return nil
		}

		script := appendKeyScript(pubKey)
		now := time.Now()
		failures := 0
		for _, target := range targets {
			if err := installKeyOn(cfg, target, script); err != nil {
				failures++
				logger.Error("key install failed", "guest", target.label(), "error", err)
				continue
			}
			target.markInstalled(cfgPubKeyPath, now)
			logger.Info("key installed", "guest", target.label())
		}
		recordPublicKey(h, cfgPubKeyPath)
		touchInventory(h, now)
		if err := saveManifest(state, cfgConfig); err != nil {
			return &batchFailure{code: 3, message: fmt.Sprintf("persist manifest: %v", err)}
		}
		if failures > 0 {
			return &batchFailure{code: 3, message: fmt.Sprintf("key installation failed on %d of %d guest(s)", failures, len(targets))}
		}
		return nil
	},
}

// readPublicKey loads and trims the key material.
func readPublicKey(path string) (string, error) {
	raw, err := os.ReadFile(expandUser(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("public key file not found: %s", path)
		}
		return "", fmt.Errorf("read public key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("public key file %s is empty", path)
	}
	return key, nil
}

// appendKeyScript builds the idempotent authorized_keys append: create
// ~/.ssh with the right modes, add the key only when absent, tighten the
// file afterwards.
func appendKeyScript(pubKey string) string {
	keyArg := shellQuote(pubKey)
	return "mkdir -p \"$HOME/.ssh\" && chmod 700 \"$HOME/.ssh\" && " +
		fmt.Sprintf("{ grep -qxF %s \"$HOME/.ssh/authorized_keys\" 2>/dev/null || printf '%%s\\n' %s >> \"$HOME/.ssh/authorized_keys\"; }", keyArg, keyArg) +
		" && chmod 600 \"$HOME/.ssh/authorized_keys\""
}

// installKeyOn connects as the entry's user and runs the append script. The
// entry's password backs identity auth for guests that have no key yet.
func installKeyOn(cfg hostConfig, target installTarget, script string) error {
	guest := guestSSHConfig{
		user:         target.user,
		identityFile: cfg.guestIdentityFile,
		extraArgs:    cfg.guestSSHExtraArgs,
		password:     installPassword(target),
	}
	sess, err := openGuestSessionFunc(guest, target.ip, target.label(), false)
	if err != nil {
		return err
	}
	defer func() { _ = sess.close() }()
	res, err := sess.run(script, true)
	if err != nil {
		return err
	}
	if res.exitCode != 0 {
		detail := strings.TrimSpace(res.stderr)
		if detail == "" {
			return fmt.Errorf("append script failed (exit %d)", res.exitCode)
		}
		return fmt.Errorf("append script failed (exit %d): %s", res.exitCode, detail)
	}
	return nil
}

// installPassword resolves the entry's fallback password: the environment
// variable named by password_env wins over an inline password value.
func installPassword(target installTarget) string {
	if target.passwordEnv != "" {
		if value, ok := lookupEnvFunc(target.passwordEnv); ok && value != "" {
			return value
		}
		logger.Warn("password variable not set", "guest", target.label(), "variable", target.passwordEnv)
	}
	return target.password
}
