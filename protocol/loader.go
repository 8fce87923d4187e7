package protocol

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/channel"
	"github.com/cwbudde/algo-protocol/preprocess"
)

// Loader validates protocols against a method registry.
type Loader struct {
	registry *analysis.Registry
	logger   *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger that receives protocol warnings.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// NewLoader creates a loader resolving method names in reg. reg is frozen,
// so no method can be registered once a loader uses it.
func NewLoader(reg *analysis.Registry, opts ...Option) *Loader {
	l := &Loader{
		registry: reg.Freeze(),
		logger:   slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoadFile reads and parses the protocol at path.
func (l *Loader) LoadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}

	return l.Parse(data)
}

// Load reads a protocol from r.
func (l *Loader) Load(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}

	return l.Parse(data)
}

// Parse validates data and returns the execution plan, or a
// *StructuralError listing every violation.
func (l *Loader) Parse(data []byte) (*Plan, error) {
	c := &collector{}

	var doc yaml.Node

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		c.fail("", "invalid YAML: %v", err)

		return nil, c.err()
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		c.fail("", "empty protocol")

		return nil, c.err()
	}

	root := fields(c, "", doc.Content[0])
	if root == nil {
		return nil, c.err()
	}

	plan := &Plan{
		Preprocessing: preprocess.DefaultConfig(),
		Output:        defaultOutput(),
		Source:        bytes.Clone(data),
	}

	plan.Version = l.version(c, root)
	plan.Channels = l.channels(c, root)
	plan.Families = l.analyses(c, root)

	if n := root.get("preprocessing"); n != nil {
		if decodeStrict(c, "preprocessing", n, &plan.Preprocessing) {
			err := plan.Preprocessing.Validate()
			if err != nil {
				c.fail("preprocessing", "%v", err)
			}
		}
	}

	if n := root.get("visualization"); n != nil {
		decodeStrict(c, "visualization", n, &plan.Visualization)
	}

	if n := root.get("output"); n != nil {
		decodeStrict(c, "output", n, &plan.Output)
	}

	for _, k := range root.keys {
		switch k {
		case "version", "channels", "analyses", "preprocessing", "visualization", "output":
		default:
			c.warn(k, "unknown top-level key ignored")
		}
	}

	for _, w := range c.warnings {
		l.logger.Warn("protocol warning", "path", w.Path, "message", w.Message)
	}

	if len(c.violations) > 0 {
		return nil, c.err()
	}

	plan.Warnings = c.warnings

	return plan, nil
}

func (l *Loader) version(c *collector, root *mapping) string {
	n := root.get("version")
	if n == nil {
		c.fail("version", "required")

		return ""
	}

	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		c.fail("version", "must be a string (quote numeric versions)")

		return ""
	}

	return n.Value
}

func (l *Loader) channels(c *collector, root *mapping) []string {
	n := root.get("channels")
	if n == nil {
		c.fail("channels", "required")

		return nil
	}

	m := fields(c, "channels", n)
	if m == nil {
		return nil
	}

	for _, k := range m.keys {
		if k != "analyze" {
			c.warn("channels."+k, "unknown key ignored")
		}
	}

	seq := m.get("analyze")
	if seq == nil {
		c.fail("channels.analyze", "required")

		return nil
	}

	if seq.Kind != yaml.SequenceNode {
		c.fail("channels.analyze", "must be a list")

		return nil
	}

	if len(seq.Content) == 0 {
		c.fail("channels.analyze", "must not be empty")

		return nil
	}

	var (
		out  []string
		seen = make(map[string]bool, len(seq.Content))
	)

	for i, item := range seq.Content {
		path := fmt.Sprintf("channels.analyze[%d]", i)

		if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
			c.fail(path, "must be a channel name")

			continue
		}

		name := item.Value

		switch {
		case !channel.Known(name):
			c.fail(path, "unknown channel %q (want one of %v)", name, channel.Names())
		case seen[name]:
			c.fail(path, "duplicate channel %q", name)
		default:
			out = append(out, name)
		}

		seen[name] = true
	}

	return out
}

func (l *Loader) analyses(c *collector, root *mapping) []FamilyPlan {
	n := root.get("analyses")
	if n == nil {
		c.fail("analyses", "required")

		return nil
	}

	m := fields(c, "analyses", n)
	if m == nil {
		return nil
	}

	var out []FamilyPlan

	for _, key := range m.keys {
		path := "analyses." + key
		fam := analysis.Family(key)

		if !fam.Known() {
			c.warn(path, "unknown family ignored")

			continue
		}

		fp, ok := l.family(c, path, fam, m.get(key))
		if ok {
			out = append(out, fp)
		}
	}

	return out
}

func (l *Loader) family(c *collector, path string, fam analysis.Family, n *yaml.Node) (FamilyPlan, bool) {
	fp := FamilyPlan{Family: fam}

	m := fields(c, path, n)
	if m == nil {
		return fp, false
	}

	for _, k := range m.keys {
		if k != "enabled" && k != "methods" {
			c.warn(path+"."+k, "unknown key ignored")
		}
	}

	enabled := false

	switch en := m.get("enabled"); {
	case en == nil:
		c.warn(path+".enabled", "missing, family treated as disabled")
	case en.Kind != yaml.ScalarNode || en.ShortTag() != "!!bool":
		c.fail(path+".enabled", "must be a boolean")
	default:
		_ = en.Decode(&enabled)
	}

	if !enabled {
		return fp, false
	}

	methods := m.get("methods")

	switch {
	case methods == nil:
		c.fail(path+".methods", "required when enabled")

		return fp, false
	case methods.Kind != yaml.SequenceNode:
		c.fail(path+".methods", "must be a list")

		return fp, false
	case len(methods.Content) == 0:
		c.warn(path+".methods", "enabled family declares no methods")
	}

	for i, item := range methods.Content {
		inv, ok := l.invocation(c, fmt.Sprintf("%s.methods[%d]", path, i), fam, item)
		if ok {
			inv.Index = i
			fp.Invocations = append(fp.Invocations, inv)
		}
	}

	return fp, true
}

func (l *Loader) invocation(c *collector, path string, fam analysis.Family, n *yaml.Node) (Invocation, bool) {
	var inv Invocation

	m := fields(c, path, n)
	if m == nil {
		return inv, false
	}

	for _, k := range m.keys {
		if k != "name" && k != "params" {
			c.fail(path+"."+k, "unknown key (want name, params)")
		}
	}

	name := m.get("name")
	if name == nil || name.Kind != yaml.ScalarNode || name.ShortTag() != "!!str" || name.Value == "" {
		c.fail(path+".name", "required string")

		return inv, false
	}

	d, err := l.registry.Resolve(name.Value)
	if err != nil {
		c.fail(path+".name", "%v", err)

		return inv, false
	}

	if d.Family != fam {
		c.fail(path+".name", "method %q belongs to family %s", d.ID, d.Family)

		return inv, false
	}

	declared := analysis.Params{}

	if p := m.get("params"); p != nil && p.ShortTag() != "!!null" {
		if p.Kind != yaml.MappingNode {
			c.fail(path+".params", "must be a mapping")

			return inv, false
		}

		err := p.Decode((*map[string]any)(&declared))
		if err != nil {
			c.fail(path+".params", "%v", err)

			return inv, false
		}
	}

	effective := analysis.Merge(d.Defaults, declared)

	if d.Check != nil {
		err := d.Check(effective)
		if err != nil {
			c.fail(path+".params", "%v", err)

			return inv, false
		}
	}

	inv.Method = d.ID
	inv.Params = effective

	return inv, true
}
