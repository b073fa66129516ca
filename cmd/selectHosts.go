package cmd

import (
	"fmt"
	"sort"
	"strings"
)

// selectHosts returns the host configurations targeted by a run. With no
// requested names every manifest host is selected. Requested names are
// deduplicated and validated up front; any unknown name aborts the whole
// selection rather than running a partial batch. The returned slice always
// follows manifest order, regardless of the order names were requested in.
func selectHosts(state *manifestState, requested []string) ([]hostConfig, error) {
	all := state.resolveHosts()
	if len(requested) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(requested))
	for _, name := range requested {
		wanted[name] = true
	}
	var unknown []string
	for name := range wanted {
		if state.hostIndex(name) == -1 {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown host(s): %s", strings.Join(unknown, ", "))
	}
	selected := make([]hostConfig, 0, len(wanted))
	for _, cfg := range all {
		if wanted[cfg.name] {
			selected = append(selected, cfg)
		}
	}
	return selected, nil
}
