// Package reference loads family-scoped context files and positions
// measured metrics against the reference zones they declare.
//
// Matching is mechanical. A status A entry positions a numeric value below,
// within or above its typical range; B and C entries attach their notes
// without comparison. Every metric of the result document receives exactly
// one classification, and every context entry without a measured metric is
// reported as expected but missing.
package reference

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidRangeDefinition is returned for a status A entry whose
	// range is absent, not two numbers, or inverted.
	ErrInvalidRangeDefinition = errors.New("invalid range definition")
	// ErrInvalidEntry is returned for any other malformed context entry.
	ErrInvalidEntry = errors.New("invalid context entry")
	// ErrMissingContext is returned when a family has no context file.
	ErrMissingContext = errors.New("missing context")
	// ErrInvalidContext is returned for a context file that is not a
	// well-formed context document.
	ErrInvalidContext = errors.New("invalid context file")
)

// Status is the reference status of a context entry.
type Status string

const (
	// StatusA marks a zoned numeric metric with a typical range.
	StatusA Status = "A"
	// StatusB marks a context-dependent metric.
	StatusB Status = "B"
	// StatusC marks a descriptive-only metric.
	StatusC Status = "C"
	// StatusUser marks an entry of a user-provided context.
	StatusUser Status = "USER"
)

// Range is a closed interval [Lo, Hi].
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Reference is the reference block of an entry.
type Reference struct {
	Status           Status    `yaml:"status"             validate:"required"`
	TypicalRange     []float64 `yaml:"typical_range"      validate:"omitempty,len=2"`
	TypicalUserRange []float64 `yaml:"typical_user_range" validate:"omitempty,len=2"`
}

// Entry is the context of one metric.
type Entry struct {
	Reference Reference `yaml:"reference"`
	Notes     []string  `yaml:"notes"`
}

// MethodContext holds the entries of one method keyed by metric name.
type MethodContext struct {
	Metrics map[string]Entry `yaml:"metrics"`
}

// Scope documents what a context covers.
type Scope struct {
	Objective string `yaml:"objective" json:"objective,omitempty"`
	Coverage  string `yaml:"coverage"  json:"coverage,omitempty"`
	Rationale string `yaml:"rationale" json:"rationale,omitempty"`
}

// Citation is a documentary reference of a context file.
type Citation struct {
	Authors string `yaml:"authors" json:"authors,omitempty"`
	Title   string `yaml:"title"   json:"title,omitempty"`
	Year    string `yaml:"year"    json:"year,omitempty"`
	Note    string `yaml:"note"    json:"note,omitempty"`
}

// Context is one loaded context file.
type Context struct {
	Family     string                   `yaml:"family"`
	Scope      *Scope                   `yaml:"scope"`
	References []Citation               `yaml:"references"`
	Methods    map[string]MethodContext `yaml:"methods"`

	// Path is the file the context was read from.
	Path string `yaml:"-"`
	// Warnings lists non-fatal findings such as a family field mismatch.
	Warnings []string `yaml:"-"`
}

// Lookup returns the entry for (method, metric). The second result reports
// whether the method has an entry at all.
func (c *Context) Lookup(method, metric string) (Entry, bool, bool) {
	m, ok := c.Methods[method]
	if !ok {
		return Entry{}, false, false
	}

	e, ok := m.Metrics[metric]

	return e, true, ok
}

var entryValidator = validator.New(validator.WithRequiredStructEnabled())

// Range returns the range that applies to the entry's status.
func (e Entry) Range() (Range, bool) {
	r := e.Reference.TypicalRange
	if e.Reference.Status == StatusUser {
		r = e.Reference.TypicalUserRange
	}

	if len(r) != 2 {
		return Range{}, false
	}

	return Range{Lo: r[0], Hi: r[1]}, true
}

// Validate checks the status rules of a family context entry: A requires a
// typical range with lo <= hi; B and C forbid it and require a note.
func (e Entry) Validate() error {
	err := entryValidator.Struct(e.Reference)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() != "Status" {
					return fmt.Errorf("%w: %s must hold two numbers", ErrInvalidRangeDefinition, fe.Field())
				}
			}
		}

		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	ref := e.Reference

	switch ref.Status {
	case StatusA:
		if ref.TypicalUserRange != nil {
			return fmt.Errorf("%w: typical_user_range is only allowed in user contexts", ErrInvalidEntry)
		}

		return checkRange(ref.TypicalRange, "typical_range")
	case StatusB, StatusC:
		if ref.TypicalRange != nil || ref.TypicalUserRange != nil {
			return fmt.Errorf("%w: status %s must not declare a range", ErrInvalidEntry, ref.Status)
		}

		if !e.hasNotes() {
			return fmt.Errorf("%w: status %s requires notes", ErrInvalidEntry, ref.Status)
		}

		return nil
	case StatusUser:
		return fmt.Errorf("%w: status USER is only allowed in user contexts", ErrInvalidEntry)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, ref.Status)
	}
}

// UserIssues lists every rule a user context entry breaks. An entry with
// issues is reported as unmapped instead of positioned.
func (e Entry) UserIssues() []string {
	var issues []string

	ref := e.Reference

	if !e.hasNotes() {
		issues = append(issues, "missing or empty notes")
	}

	if ref.Status != StatusUser {
		issues = append(issues, "reference.status must be USER")
	}

	if ref.TypicalRange != nil {
		issues = append(issues, "typical_range is not allowed in user contexts")
	}

	err := checkRange(ref.TypicalUserRange, "typical_user_range")
	if err != nil {
		issues = append(issues, strings.TrimPrefix(err.Error(), ErrInvalidRangeDefinition.Error()+": "))
	}

	return issues
}

func (e Entry) hasNotes() bool {
	for _, n := range e.Notes {
		if strings.TrimSpace(n) != "" {
			return true
		}
	}

	return false
}

func checkRange(r []float64, field string) error {
	switch {
	case len(r) != 2:
		return fmt.Errorf("%w: %s is required", ErrInvalidRangeDefinition, field)
	case math.IsNaN(r[0]) || math.IsNaN(r[1]):
		return fmt.Errorf("%w: %s bounds must be numbers, got [%g, %g]", ErrInvalidRangeDefinition, field, r[0], r[1])
	case r[0] > r[1]:
		return fmt.Errorf("%w: %s lower bound %g exceeds upper bound %g", ErrInvalidRangeDefinition, field, r[0], r[1])
	default:
		return nil
	}
}
