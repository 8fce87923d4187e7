package reference

import (
	"cmp"
	"errors"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/engine"
)

// Classification is the coverage class of a positioning record.
type Classification string

const (
	// Positioned marks a metric compared against a status A or USER range.
	Positioned Classification = "positioned"
	// ContextDependent marks a metric matched to a status B entry.
	ContextDependent Classification = "context_dependent"
	// Descriptive marks a metric matched to a status C entry.
	Descriptive Classification = "descriptive"
	// Unmapped marks a metric without a usable context entry.
	Unmapped Classification = "unmapped"
	// ExpectedButMissing marks a context entry with no measured metric.
	ExpectedButMissing Classification = "expected_but_missing"
)

// Classifications returns every classification in report order.
func Classifications() []Classification {
	return []Classification{Positioned, ContextDependent, Descriptive, Unmapped, ExpectedButMissing}
}

// Position places a value relative to a range.
type Position string

const (
	Below  Position = "below"
	Within Position = "within"
	Above  Position = "above"
	// NotApplicable is used when a status A metric is not a number.
	NotApplicable Position = "not_applicable"
)

// Unmapped reasons.
const (
	ReasonNoContext     = "no context for family"
	ReasonMissingMethod = "missing method entry"
	ReasonMissingMetric = "missing metric entry"
	ReasonInvalidUser   = "invalid user context entry"
	ReasonNonNumeric    = "non-numeric value, no positioning applied"
)

// PositioningRecord classifies one measured metric, or one context entry
// without a measurement.
type PositioningRecord struct {
	Family         analysis.Family `json:"family"`
	Method         string          `json:"method"`
	Channel        string          `json:"channel,omitempty"`
	Invocation     int             `json:"invocation"`
	Metric         string          `json:"metric"`
	Value          any             `json:"value,omitempty"`
	Classification Classification  `json:"classification"`
	Status         Status          `json:"status,omitempty"`
	Range          *Range          `json:"range,omitempty"`
	Position       Position        `json:"position,omitempty"`
	Notes          []string        `json:"notes,omitempty"`
	// Reason explains an unmapped classification.
	Reason string `json:"reason,omitempty"`
}

// Position places v against r.
func (r Range) Position(v float64) Position {
	switch {
	case v < r.Lo:
		return Below
	case v > r.Hi:
		return Above
	default:
		return Within
	}
}

// Matcher classifies result documents against context sets.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a matcher.
func NewMatcher(opts ...Option) *Matcher {
	o := applyOptions(opts)

	return &Matcher{logger: o.logger}
}

// Match classifies every metric of doc against set and appends one
// expected-but-missing record for each context entry no ok record
// produced. Families are visited in document order, then the remaining
// families of set.
func (m *Matcher) Match(doc *engine.ResultDocument, set *Set) []PositioningRecord {
	families := doc.Families()
	for _, f := range set.Families() {
		if !slices.Contains(families, f) {
			families = append(families, f)
		}
	}

	var out []PositioningRecord

	for _, f := range families {
		ctx, err := set.Context(f)
		if err != nil {
			reason := ReasonNoContext + ": " + err.Error()
			if !errors.Is(err, ErrMissingContext) {
				m.logger.Warn("family context unusable", "family", f, "error", err)
			}

			out = append(out, unmappedAll(doc, f, reason)...)

			continue
		}

		out = append(out, m.matchFamily(doc, f, ctx, false)...)
	}

	return out
}

// MatchUser classifies the metrics of the user context's family against
// its USER entries.
func (m *Matcher) MatchUser(doc *engine.ResultDocument, user *Context) []PositioningRecord {
	return m.matchFamily(doc, analysis.Family(user.Family), user, true)
}

// MatchUser is Matcher.MatchUser with a default matcher.
func MatchUser(doc *engine.ResultDocument, user *Context) []PositioningRecord {
	return NewMatcher().MatchUser(doc, user)
}

func (m *Matcher) matchFamily(doc *engine.ResultDocument, f analysis.Family, ctx *Context, user bool) []PositioningRecord {
	var (
		out      []PositioningRecord
		observed = map[[2]string]bool{}
	)

	for _, rec := range doc.Records(f) {
		for _, metric := range slices.Sorted(maps.Keys(rec.Metrics)) {
			observed[[2]string{rec.Method, metric}] = true

			p := PositioningRecord{
				Family:     f,
				Method:     rec.Method,
				Channel:    rec.Channel,
				Invocation: rec.Invocation,
				Metric:     metric,
				Value:      rec.Metrics[metric],
			}

			entry, hasMethod, hasMetric := ctx.Lookup(rec.Method, metric)

			switch {
			case !hasMethod:
				p.Classification = Unmapped
				p.Reason = ReasonMissingMethod
			case !hasMetric:
				p.Classification = Unmapped
				p.Reason = ReasonMissingMetric
			case user:
				classifyUser(&p, entry)
			default:
				classify(&p, entry)
			}

			out = append(out, p)
		}
	}

	var missing []PositioningRecord

	for method, mc := range ctx.Methods {
		for metric, entry := range mc.Metrics {
			if observed[[2]string{method, metric}] {
				continue
			}

			p := PositioningRecord{
				Family:         f,
				Method:         method,
				Metric:         metric,
				Classification: ExpectedButMissing,
				Status:         entry.Reference.Status,
				Notes:          entry.Notes,
			}
			if r, ok := entry.Range(); ok {
				p.Range = &r
			}

			missing = append(missing, p)
		}
	}

	slices.SortFunc(missing, func(a, b PositioningRecord) int {
		return cmp.Or(cmp.Compare(a.Method, b.Method), cmp.Compare(a.Metric, b.Metric))
	})

	if len(missing) > 0 {
		m.logger.Debug("context entries without measurement", "family", f, "count", len(missing))
	}

	return append(out, missing...)
}

// classify applies a validated entry to p.
func classify(p *PositioningRecord, e Entry) {
	p.Status = e.Reference.Status
	p.Notes = e.Notes

	switch e.Reference.Status {
	case StatusA:
		r, _ := e.Range()
		p.Range = &r
		p.Classification = Positioned
		p.Position = NotApplicable

		if v, ok := number(p.Value); ok && !math.IsNaN(v) {
			p.Position = r.Position(v)
		}
	case StatusB:
		p.Classification = ContextDependent
	case StatusC:
		p.Classification = Descriptive
	default:
		p.Classification = Unmapped
		p.Reason = "unknown status " + string(e.Reference.Status)
	}
}

// classifyUser positions p against a USER entry. Entries breaking the USER
// rules and non-numeric values are unmapped.
func classifyUser(p *PositioningRecord, e Entry) {
	p.Status = e.Reference.Status
	p.Notes = e.Notes
	p.Classification = Unmapped

	if issues := e.UserIssues(); len(issues) > 0 {
		p.Reason = ReasonInvalidUser + ": " + strings.Join(issues, "; ")

		return
	}

	r, _ := e.Range()
	p.Range = &r

	v, ok := number(p.Value)
	if !ok || math.IsNaN(v) {
		p.Reason = ReasonNonNumeric

		return
	}

	p.Classification = Positioned
	p.Position = r.Position(v)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func unmappedAll(doc *engine.ResultDocument, f analysis.Family, reason string) []PositioningRecord {
	var out []PositioningRecord

	for _, rec := range doc.Records(f) {
		for _, metric := range slices.Sorted(maps.Keys(rec.Metrics)) {
			out = append(out, PositioningRecord{
				Family:         f,
				Method:         rec.Method,
				Channel:        rec.Channel,
				Invocation:     rec.Invocation,
				Metric:         metric,
				Value:          rec.Metrics[metric],
				Classification: Unmapped,
				Reason:         reason,
			})
		}
	}

	return out
}
