package cmd

import (
	"net"
	"strings"
)

// isUsableIPv4 reports whether s is a routable IPv4 literal: parseable, v4,
// and not loopback.
func isUsableIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && !ip.IsLoopback()
}

// firstGuestIPv4 picks the first usable IPv4 from QEMU agent interface data,
// skipping the loopback interface entirely. Agents list lo first, so
// filtering by address alone is not enough.
func firstGuestIPv4(ifaces []guestInterface) string {
	for _, iface := range ifaces {
		if iface.Name == "lo" {
			continue
		}
		for _, addr := range iface.Addresses {
			if !strings.EqualFold(addr.Type, "ipv4") {
				continue
			}
			if isUsableIPv4(addr.Address) {
				return addr.Address
			}
		}
	}
	return ""
}

// firstIPv4Token picks the first usable IPv4 from `hostname -I` style
// output: whitespace-separated address tokens, order preserved.
func firstIPv4Token(output string) string {
	for _, tok := range strings.Fields(output) {
		if isUsableIPv4(tok) {
			return tok
		}
	}
	return ""
}
