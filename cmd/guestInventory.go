package cmd

import (
	"fmt"
	"time"
)

// guestInventoryKey is the host-level manifest table maintained by the
// inventory subcommands. The run path treats it as opaque extras.
const guestInventoryKey = "guest_inventory"

// guestDiscovery is one guest found during inventory: identity, power
// state, and whatever address could be determined (may be empty).
type guestDiscovery struct {
	kind   string // "vm" or "ct"
	id     string
	name   string
	status string
	ip     string
}

func (g guestDiscovery) label() string {
	prefix := "CT"
	if g.kind == "vm" {
		prefix = "VM"
	}
	return fmt.Sprintf("%s %s (%s)", prefix, g.name, g.id)
}

// inventoryUpdate pairs a discovery with its reachability verdict. A nil
// verified means the check was skipped, which keeps the previous verdict.
type inventoryUpdate struct {
	guest    guestDiscovery
	verified *bool
}

// inventoryTable returns the host's guest_inventory table, or nil.
func inventoryTable(extras map[string]any) map[string]any {
	tbl, _ := extras[guestInventoryKey].(map[string]any)
	return tbl
}

// entryList normalizes the entries array, which decodes as []any from TOML
// but is built as typed maps in memory. Non-table elements are dropped.
func entryList(tbl map[string]any) []map[string]any {
	switch t := tbl["entries"].(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if entry, ok := item.(map[string]any); ok {
				out = append(out, entry)
			}
		}
		return out
	}
	return nil
}

// existingInventoryEntries indexes current entries by (kind, id) so a
// rebuild can preserve operator-owned fields. Entries without string kind
// and id are ignored.
func existingInventoryEntries(extras map[string]any) map[[2]string]map[string]any {
	mapping := map[[2]string]map[string]any{}
	tbl := inventoryTable(extras)
	if tbl == nil {
		return mapping
	}
	for _, entry := range entryList(tbl) {
		kind, kindOK := entry["kind"].(string)
		id, idOK := entry["id"].(string)
		if !kindOK || !idOK {
			continue
		}
		mapping[[2]string{kind, id}] = entry
	}
	return mapping
}

// previousPublicKey returns the recorded ssh_public_key path, if any.
func previousPublicKey(extras map[string]any) string {
	tbl := inventoryTable(extras)
	if tbl == nil {
		return ""
	}
	key, _ := tbl["ssh_public_key"].(string)
	return key
}

// mergeInventoryEntry refreshes one discovered guest against its previous
// entry. Operator-owned fields (managed, user, notes, password_env,
// password) and unknown keys survive; discovered fields are rewritten. A
// guest with no address right now keeps its last known ip so install-key
// still has a target.
func mergeInventoryEntry(prev map[string]any, g guestDiscovery, defaultUser string, verified *bool, keyPath, checkedAt string) map[string]any {
	entry := deepCopyMap(prev)
	entry["kind"] = g.kind
	entry["id"] = g.id
	entry["name"] = g.name
	entry["status"] = g.status
	if g.ip != "" {
		entry["ip"] = g.ip
	}
	if _, ok := entry["user"].(string); !ok {
		entry["user"] = defaultUser
	}
	if _, ok := entry["managed"].(bool); !ok {
		entry["managed"] = true
	}
	if verified != nil {
		entry["ssh_verified"] = *verified
	} else if _, ok := entry["ssh_verified"].(bool); !ok {
		entry["ssh_verified"] = false
	}
	if keyPath != "" {
		entry["ssh_key_path"] = keyPath
	}
	entry["last_checked"] = checkedAt
	return entry
}

// rebuildInventory replaces the host's guest_inventory table with entries
// for exactly the discovered guests, merged against whatever was recorded
// before. Guests no longer present on the host drop out. An empty pubkey
// keeps the previously recorded public key.
func rebuildInventory(h *hostForm, updates []inventoryUpdate, defaultUser, pubkey string, now time.Time) {
	checkedAt := now.UTC().Format(time.RFC3339)
	prevEntries := existingInventoryEntries(h.extras)
	keyPath := pubkey
	if keyPath == "" {
		keyPath = previousPublicKey(h.extras)
	}
	entries := make([]any, 0, len(updates))
	for _, u := range updates {
		prev := prevEntries[[2]string{u.guest.kind, u.guest.id}]
		entries = append(entries, mergeInventoryEntry(prev, u.guest, defaultUser, u.verified, keyPath, checkedAt))
	}
	table := map[string]any{
		"version":    int64(1),
		"updated_at": checkedAt,
		"entries":    entries,
	}
	if keyPath != "" {
		table["ssh_public_key"] = keyPath
	}
	if h.extras == nil {
		h.extras = map[string]any{}
	}
	h.extras[guestInventoryKey] = table
}

// installTarget is one authorized_keys installation attempt derived from a
// managed inventory entry. entry aliases the live table so status updates
// land in the manifest.
type installTarget struct {
	entry       map[string]any
	kind        string
	id          string
	name        string
	ip          string
	user        string
	passwordEnv string
	password    string
}

func (t installTarget) label() string {
	return guestDiscovery{kind: t.kind, id: t.id, name: t.name}.label()
}

// markInstalled records a successful key installation on the live entry.
func (t installTarget) markInstalled(keyPath string, now time.Time) {
	t.entry["ssh_verified"] = true
	if keyPath != "" {
		t.entry["ssh_key_path"] = keyPath
	}
	t.entry["last_checked"] = now.UTC().Format(time.RFC3339)
}

// installTargets extracts the managed, addressable entries from the host's
// inventory table. Entries default to managed unless explicitly opted out.
func installTargets(h *hostForm, defaultUser string) []installTarget {
	tbl := inventoryTable(h.extras)
	if tbl == nil {
		return nil
	}
	var targets []installTarget
	for _, entry := range entryList(tbl) {
		if managed, ok := entry["managed"].(bool); ok && !managed {
			continue
		}
		ip, _ := entry["ip"].(string)
		if ip == "" {
			continue
		}
		kind, _ := entry["kind"].(string)
		id, _ := entry["id"].(string)
		name, _ := entry["name"].(string)
		user, _ := entry["user"].(string)
		if user == "" {
			user = defaultUser
		}
		passwordEnv, _ := entry["password_env"].(string)
		password, _ := entry["password"].(string)
		targets = append(targets, installTarget{
			entry:       entry,
			kind:        kind,
			id:          id,
			name:        name,
			ip:          ip,
			user:        user,
			passwordEnv: passwordEnv,
			password:    password,
		})
	}
	return targets
}

// touchInventory refreshes the table-level timestamp after entry updates.
func touchInventory(h *hostForm, now time.Time) {
	if tbl := inventoryTable(h.extras); tbl != nil {
		tbl["updated_at"] = now.UTC().Format(time.RFC3339)
	}
}

// recordPublicKey notes the installed key path at table level.
func recordPublicKey(h *hostForm, path string) {
	if tbl := inventoryTable(h.extras); tbl != nil && path != "" {
		tbl["ssh_public_key"] = path
	}
}
