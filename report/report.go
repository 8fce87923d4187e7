// Package report renders positioning records and measurement summaries.
//
// Rendering groups records by family and then by section; it adds no
// classification of its own and rejects records the matcher left
// unclassified.
package report

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/engine"
	"github.com/cwbudde/algo-protocol/reference"
)

// ErrUnclassifiedRecord is returned by Build for a record without a valid
// classification.
var ErrUnclassifiedRecord = errors.New("report: unclassified positioning record")

// SectionKind names a report section.
type SectionKind string

const (
	SectionA        SectionKind = "A"
	SectionB        SectionKind = "B"
	SectionC        SectionKind = "C"
	SectionUser     SectionKind = "USER"
	SectionUnmapped SectionKind = "unmapped"
	SectionMissing  SectionKind = "expected_but_missing"
)

var (
	contextSections = []SectionKind{SectionA, SectionB, SectionC, SectionUnmapped, SectionMissing}
	userSections    = []SectionKind{SectionUser, SectionUnmapped, SectionMissing}
)

// Title returns the heading of the section.
func (k SectionKind) Title() string {
	switch k {
	case SectionA:
		return "Status A metrics positioned against typical ranges"
	case SectionUser:
		return "Metrics positioned against user-provided ranges"
	case SectionB:
		return "Status B context-dependent metrics"
	case SectionC:
		return "Status C descriptive metrics"
	case SectionUnmapped:
		return "Unmapped / missing context coverage"
	case SectionMissing:
		return "Expected by context but missing in results"
	default:
		return string(k)
	}
}

// Section holds the records of one kind within a family.
type Section struct {
	Kind    SectionKind
	Records []reference.PositioningRecord
}

// FamilyReport holds the sections of one family in fixed order. Sections
// without records are kept so that renderers can state their emptiness.
type FamilyReport struct {
	Family   analysis.Family
	Sections []Section
}

// Section returns the section of kind k.
func (f *FamilyReport) Section(k SectionKind) *Section {
	for i := range f.Sections {
		if f.Sections[i].Kind == k {
			return &f.Sections[i]
		}
	}

	return nil
}

// Report is a grouped positioning report.
type Report struct {
	Title    string
	Families []FamilyReport
	// User marks a report built from a user context.
	User bool

	// Meta, when set, is rendered as the report header.
	Meta *engine.Meta
	// Contexts, when set, supplies scope and references per family.
	Contexts map[analysis.Family]*reference.Context
}

// Build groups the records of a family-context match by family in
// first-seen order and then by section.
func Build(records []reference.PositioningRecord) (*Report, error) {
	return build(records, "Contextual Positioning", contextSections)
}

// BuildUser groups the records of a user-context match.
func BuildUser(records []reference.PositioningRecord) (*Report, error) {
	r, err := build(records, "Contextual Positioning (User Context)", userSections)
	if err != nil {
		return nil, err
	}

	r.User = true

	return r, nil
}

func build(records []reference.PositioningRecord, title string, kinds []SectionKind) (*Report, error) {
	r := &Report{Title: title}
	index := map[analysis.Family]int{}

	for i, rec := range records {
		kind, err := sectionOf(rec)
		if err == nil && !slices.Contains(kinds, kind) {
			err = fmt.Errorf("section %s not part of this report", kind)
		}

		if err != nil {
			return nil, fmt.Errorf("%w: record %d (%s/%s/%s): %v",
				ErrUnclassifiedRecord, i, rec.Family, rec.Method, rec.Metric, err)
		}

		fi, ok := index[rec.Family]
		if !ok {
			fi = len(r.Families)
			index[rec.Family] = fi
			r.Families = append(r.Families, newFamilyReport(rec.Family, kinds))
		}

		s := r.Families[fi].Section(kind)
		s.Records = append(s.Records, rec)
	}

	return r, nil
}

func newFamilyReport(f analysis.Family, kinds []SectionKind) FamilyReport {
	fr := FamilyReport{Family: f, Sections: make([]Section, 0, len(kinds))}
	for _, k := range kinds {
		fr.Sections = append(fr.Sections, Section{Kind: k})
	}

	return fr
}

func sectionOf(rec reference.PositioningRecord) (SectionKind, error) {
	switch rec.Classification {
	case reference.Positioned:
		switch {
		case rec.Range == nil:
			return "", errors.New("positioned without range")
		case !slices.Contains([]reference.Position{
			reference.Below, reference.Within, reference.Above, reference.NotApplicable,
		}, rec.Position):
			return "", fmt.Errorf("invalid position %q", rec.Position)
		case rec.Status == reference.StatusA:
			return SectionA, nil
		case rec.Status == reference.StatusUser:
			return SectionUser, nil
		default:
			return "", fmt.Errorf("positioned with status %q", rec.Status)
		}
	case reference.ContextDependent:
		return SectionB, nil
	case reference.Descriptive:
		return SectionC, nil
	case reference.Unmapped:
		return SectionUnmapped, nil
	case reference.ExpectedButMissing:
		return SectionMissing, nil
	case "":
		return "", errors.New("no classification")
	default:
		return "", fmt.Errorf("unknown classification %q", rec.Classification)
	}
}

// Count returns the number of records in the report.
func (r *Report) Count() int {
	n := 0

	for _, f := range r.Families {
		for _, s := range f.Sections {
			n += len(s.Records)
		}
	}

	return n
}
