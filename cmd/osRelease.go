package cmd

import (
	"fmt"
	"strings"
)

// parseOSRelease extracts KEY=VALUE pairs from /etc/os-release content,
// stripping surrounding quotes. Lines without = are skipped.
func parseOSRelease(content string) map[string]string {
	data := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		value = strings.Trim(value, "'")
		data[key] = value
	}
	return data
}

// packageManagerFor maps an os-release identity onto the supported package
// managers, consulting ID first and ID_LIKE tokens second so derivatives
// (Mint, Rocky, endeavouros) land on their family's tool.
func packageManagerFor(osRelease map[string]string) string {
	candidates := map[string]bool{strings.ToLower(osRelease["ID"]): true}
	for _, tok := range strings.Fields(strings.ToLower(osRelease["ID_LIKE"])) {
		candidates[tok] = true
	}
	switch {
	case candidates["alpine"]:
		return "apk"
	case candidates["debian"] || candidates["ubuntu"]:
		return "apt"
	case candidates["fedora"] || candidates["rhel"] || candidates["centos"]:
		return "dnf"
	case candidates["arch"]:
		return "pacman"
	case candidates["suse"] || candidates["opensuse"] || candidates["sles"]:
		return "zypper"
	}
	return ""
}

// upgradeCommand renders the non-interactive upgrade pipeline for one
// package manager, optionally prefixing each stage with sudo for non-root
// guest users.
func upgradeCommand(packageManager string, useSudo bool) (string, error) {
	prefix := ""
	if useSudo {
		prefix = "sudo "
	}
	switch packageManager {
	case "apt":
		return fmt.Sprintf("%[1]sapt update && %[1]sapt full-upgrade -y && %[1]sapt autoremove -y", prefix), nil
	case "dnf":
		return prefix + "dnf upgrade --refresh -y", nil
	case "apk":
		return fmt.Sprintf("%[1]sapk update && %[1]sapk upgrade", prefix), nil
	case "pacman":
		return prefix + "pacman -Syu --noconfirm", nil
	case "zypper":
		return fmt.Sprintf("%[1]szypper refresh && %[1]szypper update -y", prefix), nil
	}
	return "", fmt.Errorf("unsupported package manager %q", packageManager)
}
