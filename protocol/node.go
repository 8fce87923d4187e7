package protocol

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type collector struct {
	violations []Violation
	warnings   []Warning
}

func (c *collector) fail(path, format string, args ...any) {
	c.violations = append(c.violations, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) warn(path, message string) {
	c.warnings = append(c.warnings, Warning{Path: path, Message: message})
}

func (c *collector) err() error {
	return &StructuralError{Violations: c.violations}
}

// mapping is a YAML mapping with its keys in document order.
type mapping struct {
	keys   []string
	values map[string]*yaml.Node
}

func (m *mapping) get(key string) *yaml.Node {
	return m.values[key]
}

// fields returns the mapping at n, or records a violation and returns nil.
func fields(c *collector, path string, n *yaml.Node) *mapping {
	n = resolve(n)

	if n.Kind != yaml.MappingNode {
		c.fail(path, "must be a mapping")

		return nil
	}

	m := &mapping{values: make(map[string]*yaml.Node, len(n.Content)/2)}

	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		if _, dup := m.values[k]; dup {
			c.fail(join(path, k), "duplicate key")

			continue
		}

		m.keys = append(m.keys, k)
		m.values[k] = resolve(n.Content[i+1])
	}

	return m
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}

	return n
}

// decodeStrict decodes n into out rejecting unknown keys. It records a
// violation and returns false on failure.
func decodeStrict(c *collector, path string, n *yaml.Node, out any) bool {
	if n.Kind != yaml.MappingNode {
		c.fail(path, "must be a mapping")

		return false
	}

	raw, err := yaml.Marshal(n)
	if err != nil {
		c.fail(path, "%v", err)

		return false
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	err = dec.Decode(out)
	if err != nil {
		c.fail(path, "%v", err)

		return false
	}

	return true
}

func join(path, key string) string {
	if path == "" {
		return key
	}

	return path + "." + key
}
