package cmd

import (
	"fmt"
	"strings"
)

// Helpers for working with decoded TOML documents as map[string]any. The
// loader pops every recognized field out of a deep copy of the raw mapping;
// whatever remains is an "extras" bag that the persister writes back
// verbatim, which is how unknown keys survive a load/save round trip.

// deepCopyValue clones nested maps and slices so extras bags never alias the
// decoder's buffers or each other.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, deepCopyValue(item))
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, deepCopyValue(item))
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return deepCopyValue(m).(map[string]any)
}

// popPath removes and returns the value at a dotted path like
// "guest.ssh.extra_args". Intermediate tables emptied by the removal are
// pruned so consumed spellings do not leave hollow tables behind.
func popPath(m map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	type parent struct {
		table map[string]any
		key   string
	}
	var parents []parent
	current := m
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			return nil, false
		}
		parents = append(parents, parent{current, segment})
		current = next
	}
	last := segments[len(segments)-1]
	value, ok := current[last]
	if !ok {
		return nil, false
	}
	delete(current, last)
	for i := len(parents) - 1; i >= 0; i-- {
		child, ok := parents[i].table[parents[i].key].(map[string]any)
		if !ok || len(child) != 0 {
			break
		}
		delete(parents[i].table, parents[i].key)
	}
	return value, true
}

// setPath stores a value at a dotted path, creating intermediate tables as
// needed. Non-table intermediate values are replaced.
func setPath(m map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := m
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// popFirst tries each spelling in order and pops the first one present.
func popFirst(m map[string]any, paths ...string) (any, bool) {
	for _, path := range paths {
		if value, ok := popPath(m, path); ok {
			return value, true
		}
	}
	return nil, false
}

// takeString pops the first matching spelling and enforces a string value.
func takeString(m map[string]any, label string, paths ...string) (*string, error) {
	value, ok := popFirst(m, paths...)
	if !ok {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string for %q, got %T", label, value)
	}
	return &s, nil
}

// takeInt pops the first matching spelling and enforces an integer value.
// TOML integers decode as int64.
func takeInt(m map[string]any, label string, paths ...string) (*int, error) {
	value, ok := popFirst(m, paths...)
	if !ok {
		return nil, nil
	}
	switch n := value.(type) {
	case int64:
		i := int(n)
		return &i, nil
	case int:
		i := n
		return &i, nil
	default:
		return nil, fmt.Errorf("expected integer for %q, got %T", label, value)
	}
}

// takeBool pops the first matching spelling and enforces a boolean value.
func takeBool(m map[string]any, label string, paths ...string) (*bool, error) {
	value, ok := popFirst(m, paths...)
	if !ok {
		return nil, nil
	}
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean for %q, got %T", label, value)
	}
	return &b, nil
}

// takeStringList pops the first matching spelling and enforces a sequence of
// strings. A bare string is accepted as a one-element sequence for
// compatibility with hand-written manifests.
func takeStringList(m map[string]any, label string, paths ...string) ([]string, error) {
	value, ok := popFirst(m, paths...)
	if !ok {
		return nil, nil
	}
	switch t := value.(type) {
	case string:
		return []string{t}, nil
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list for %q, got %T element", label, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list for %q, got %T", label, value)
	}
}
