package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// HostConfigYAML keeps the host-side configuration in a YAML document.
// Nested mappings are flattened to dotted keys ("camera.fov") on load and
// rebuilt on save. Scalars are kept as their YAML text.
type HostConfigYAML struct {
	path string
}

func NewHostConfigYAML(path string) *HostConfigYAML {
	return &HostConfigYAML{path: path}
}

// Path is the document location.
func (s *HostConfigYAML) Path() string { return s.path }

// Load reads the document. A missing file is reported as an error wrapping
// os.ErrNotExist.
func (s *HostConfigYAML) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read host config: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal host config: %w", err)
	}

	out := make(map[string]string)
	flatten("", doc, out)
	return out, nil
}

// Save writes values, replacing the document.
func (s *HostConfigYAML) Save(values map[string]string) error {
	data, err := yaml.Marshal(nest(values))
	if err != nil {
		return fmt.Errorf("marshal host config: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create host config dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write host config: %w", err)
	}
	return nil
}

func flatten(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flatten(join(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range t {
			flatten(join(prefix, fmt.Sprint(k)), child, out)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	case []any:
		b, err := yaml.Marshal(t)
		if err != nil {
			return
		}
		out[prefix] = strings.TrimSpace(string(b))
	default:
		out[prefix] = fmt.Sprint(t)
	}
}

func join(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}

// nest rebuilds mappings from dotted keys. A key that is both a value and
// a parent ("a" and "a.b") stays flat.
func nest(values map[string]string) map[string]any {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]any)
	for _, k := range keys {
		if hasChild(values, k) {
			root[k] = values[k]
			continue
		}
		parts := strings.Split(k, ".")
		node := root
		ok := true
		for _, p := range parts[:len(parts)-1] {
			next, exists := node[p]
			if !exists {
				m := make(map[string]any)
				node[p] = m
				node = m
				continue
			}
			m, isMap := next.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			node = m
		}
		if ok {
			node[parts[len(parts)-1]] = values[k]
		} else {
			root[k] = values[k]
		}
	}
	return root
}

func hasChild(values map[string]string, k string) bool {
	prefix := k + "."
	for other := range values {
		if strings.HasPrefix(other, prefix) {
			return true
		}
	}
	return false
}
