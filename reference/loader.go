package reference

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-protocol/analysis"
)

// FileName returns the context file name of family f.
func FileName(f analysis.Family) string {
	return "context_" + string(f) + ".yaml"
}

// Set holds the outcome of loading the contexts of several families. A
// family is either loaded or carries the error that made it unavailable.
type Set struct {
	contexts map[analysis.Family]*Context
	problems map[analysis.Family]error
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		contexts: map[analysis.Family]*Context{},
		problems: map[analysis.Family]error{},
	}
}

// Add validates c and stores it for family f. An invalid context is
// recorded as the family's problem and returned.
func (s *Set) Add(f analysis.Family, c *Context) error {
	err := validateContext(c)
	if err != nil {
		s.problems[f] = err
		delete(s.contexts, f)

		return err
	}

	s.contexts[f] = c
	delete(s.problems, f)

	return nil
}

// Context returns the loaded context of f, or the error that made it
// unavailable. Families never loaded report ErrMissingContext.
func (s *Set) Context(f analysis.Family) (*Context, error) {
	if c, ok := s.contexts[f]; ok {
		return c, nil
	}

	if err, ok := s.problems[f]; ok {
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s", ErrMissingContext, f)
}

// Families returns the families with a loaded context, sorted.
func (s *Set) Families() []analysis.Family {
	return slices.Sorted(maps.Keys(s.contexts))
}

// Loader reads context files.
type Loader struct {
	logger *slog.Logger
}

// Option configures a Loader or Matcher.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for missing or invalid contexts.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// NewLoader creates a context loader.
func NewLoader(opts ...Option) *Loader {
	o := applyOptions(opts)

	return &Loader{logger: o.logger}
}

// LoadFamily reads and validates context_<f>.yaml from dir.
func (l *Loader) LoadFamily(dir string, f analysis.Family) (*Context, error) {
	path := filepath.Join(dir, FileName(f))

	c, err := readContext(path)
	if err != nil {
		return nil, err
	}

	if c.Family != "" && c.Family != string(f) {
		msg := fmt.Sprintf("context family field is %q, expected %q", c.Family, f)
		c.Warnings = append(c.Warnings, msg)
		l.logger.Warn("context family mismatch", "path", path, "family", f, "declared", c.Family)
	}

	err = validateContext(c)
	if err != nil {
		return nil, fmt.Errorf("reference: %s: %w", path, err)
	}

	return c, nil
}

// LoadSet loads the contexts of families from dir. Missing and invalid
// files do not stop loading; they are recorded per family.
func (l *Loader) LoadSet(dir string, families []analysis.Family) *Set {
	s := NewSet()

	for _, f := range families {
		c, err := l.LoadFamily(dir, f)
		if err != nil {
			if errors.Is(err, ErrMissingContext) {
				l.logger.Info("context not available", "family", f, "error", err)
			} else {
				l.logger.Warn("context rejected", "family", f, "error", err)
			}

			s.problems[f] = err

			continue
		}

		s.contexts[f] = c
	}

	return s
}

// LoadUser reads a user context, which must name a known family. Entries
// that break the USER rules do not reject the file: they are listed in the
// context warnings and matched as unmapped.
func (l *Loader) LoadUser(path string) (*Context, error) {
	c, err := readContext(path)
	if err != nil {
		return nil, err
	}

	if !analysis.Family(c.Family).Known() {
		return nil, fmt.Errorf("reference: %s: %w: family %q is not a known family", path, ErrInvalidContext, c.Family)
	}

	for _, method := range slices.Sorted(maps.Keys(c.Methods)) {
		metrics := c.Methods[method].Metrics
		for _, metric := range slices.Sorted(maps.Keys(metrics)) {
			issues := metrics[metric].UserIssues()
			if len(issues) == 0 {
				continue
			}

			msg := fmt.Sprintf("methods.%s.metrics.%s: %s", method, metric, strings.Join(issues, "; "))
			c.Warnings = append(c.Warnings, msg)
			l.logger.Warn("invalid user context entry", "path", path, "entry", msg)
		}
	}

	return c, nil
}

func readContext(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reference: %w: %s", ErrMissingContext, filepath.Base(path))
	}

	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}

	var doc yaml.Node

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("reference: %s: %w: %v", path, ErrInvalidContext, err)
	}

	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("reference: %s: %w: expected a mapping", path, ErrInvalidContext)
	}

	c := &Context{Path: path}

	err = doc.Content[0].Decode(c)
	if err != nil {
		return nil, fmt.Errorf("reference: %s: %w: %v", path, ErrInvalidContext, err)
	}

	return c, nil
}

// validateContext checks every entry and joins the failures in method and
// metric order.
func validateContext(c *Context) error {
	var errs []error

	for _, method := range slices.Sorted(maps.Keys(c.Methods)) {
		metrics := c.Methods[method].Metrics
		for _, metric := range slices.Sorted(maps.Keys(metrics)) {
			err := metrics[metric].Validate()
			if err != nil {
				errs = append(errs, fmt.Errorf("methods.%s.metrics.%s: %w", method, metric, err))
			}
		}
	}

	return errors.Join(errs...)
}
