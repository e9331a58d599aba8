package config

import (
	"reflect"
	"strings"
)

// sections are the top-level keys of the config file, read from Config's
// yaml tags so new sections are picked up automatically.
var sections = func() map[string]bool {
	out := make(map[string]bool)
	t := reflect.TypeOf(Config{})
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			out[name] = true
		}
	}
	return out
}()

// ParseConfigPath splits a dotted key such as "provider.model" and checks
// that it names a known section and contains only plain identifiers.
func ParseConfigPath(key string) ([]string, error) {
	if key == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path " + key + " has an empty segment"}
		}
		if !isIdent(p) {
			return nil, &ConfigError{Message: "config path segment " + p + " is not a plain key"}
		}
	}
	if !sections[parts[0]] {
		return nil, &ConfigError{Message: "unknown config section " + parts[0]}
	}
	return parts, nil
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// parent walks to the map holding the last segment of path. With create
// set, missing or non-map intermediates are replaced by empty maps.
func parent(root map[string]any, path []string, create bool) (map[string]any, bool) {
	m := root
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	return m, true
}

// GetValueAtPath reads a nested value from a raw config map.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	m, ok := parent(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := m[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath writes a nested value, creating intermediate maps.
func SetValueAtPath(root map[string]any, path []string, value any) {
	m, _ := parent(root, path, true)
	m[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes a nested value and reports whether it existed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	m, ok := parent(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
