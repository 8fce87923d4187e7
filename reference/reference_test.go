package reference

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/analysis/methods"
	"github.com/cwbudde/algo-protocol/engine"
	"github.com/cwbudde/algo-protocol/internal/testutil"
	"github.com/cwbudde/algo-protocol/protocol"
)

const temporalContext = `
family: temporal
scope:
  objective: Position periodicity metrics
  coverage: partial
references:
  - authors: Smith, J.
    title: Periodicity in recorded audio
    year: 2019
methods:
  autocorrelation:
    metrics:
      autocorr_max:
        reference:
          status: A
          typical_range: [0, 1]
        notes: ["Normalized peak"]
      first_peak_lag:
        reference:
          status: B
        notes: ["Depends on the source pitch"]
      periodicity_hz:
        reference:
          status: C
        notes: ["Descriptive only"]
      retired_metric:
        reference:
          status: A
          typical_range: [0, 10]
        notes: ["No longer produced"]
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func sampleDoc() *engine.ResultDocument {
	return &engine.ResultDocument{
		Analyses: []engine.Record{
			{
				Family: analysis.FamilyTemporal, Method: "autocorrelation", Channel: "left", Status: engine.StatusOK,
				Metrics: engine.Values{
					"autocorr_max":     0.97,
					"first_peak_lag":   50,
					"periodicity_hz":   441.0,
					"peak_found":       true,
					"first_peak_value": 0.9,
					"samples_analyzed": 22050,
				},
			},
			{
				Family: analysis.FamilyTemporal, Method: "autocorrelation", Channel: "right", Status: engine.StatusOK,
				Metrics: engine.Values{
					"autocorr_max":     1.5,
					"first_peak_lag":   0,
					"periodicity_hz":   math.NaN(),
					"peak_found":       false,
					"first_peak_value": 0.0,
					"samples_analyzed": 22050,
				},
			},
			{
				Family: analysis.FamilyTemporal, Method: "envelope", Channel: "left", Status: engine.StatusOK,
				Metrics: engine.Values{"envelope_mean": 0.5},
			},
			{
				Family: analysis.FamilyTemporal, Method: "pulse_detection", Channel: "left",
				Status: engine.StatusContractViolation, Error: "boom",
			},
			{
				Family: analysis.FamilySpectral, Method: "fft_global", Channel: "left", Status: engine.StatusOK,
				Metrics: engine.Values{"peak_frequency_hz": 440.0},
			},
		},
	}
}

func TestEntryStatusInvariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"A with range", Entry{Reference: Reference{Status: StatusA, TypicalRange: []float64{0, 1}}}, nil},
		{"A degenerate range", Entry{Reference: Reference{Status: StatusA, TypicalRange: []float64{1, 1}}}, nil},
		{"A without range", Entry{Reference: Reference{Status: StatusA}}, ErrInvalidRangeDefinition},
		{"A inverted range", Entry{Reference: Reference{Status: StatusA, TypicalRange: []float64{2, 1}}}, ErrInvalidRangeDefinition},
		{"A NaN lower bound", Entry{Reference: Reference{Status: StatusA, TypicalRange: []float64{math.NaN(), 1}}}, ErrInvalidRangeDefinition},
		{"A NaN upper bound", Entry{Reference: Reference{Status: StatusA, TypicalRange: []float64{0, math.NaN()}}}, ErrInvalidRangeDefinition},
		{"A open upper bound", Entry{Reference: Reference{Status: StatusA, TypicalRange: []float64{0, math.Inf(1)}}}, nil},
		{"A three bounds", Entry{Reference: Reference{Status: StatusA, TypicalRange: []float64{0, 1, 2}}}, ErrInvalidRangeDefinition},
		{"B with notes", Entry{Reference: Reference{Status: StatusB}, Notes: []string{"n"}}, nil},
		{"B with range", Entry{Reference: Reference{Status: StatusB, TypicalRange: []float64{0, 1}}, Notes: []string{"n"}}, ErrInvalidEntry},
		{"C without notes", Entry{Reference: Reference{Status: StatusC}, Notes: []string{"  "}}, ErrInvalidEntry},
		{"missing status", Entry{Notes: []string{"n"}}, ErrInvalidEntry},
		{"unknown status", Entry{Reference: Reference{Status: "D"}, Notes: []string{"n"}}, ErrInvalidEntry},
		{"USER in family context", Entry{Reference: Reference{Status: StatusUser, TypicalUserRange: []float64{0, 1}}, Notes: []string{"n"}}, ErrInvalidEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.entry.Validate()
			if tt.want == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadFamily(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilyTemporal), temporalContext)

	c, err := NewLoader().LoadFamily(dir, analysis.FamilyTemporal)
	require.NoError(t, err)

	assert.Equal(t, "temporal", c.Family)
	require.NotNil(t, c.Scope)
	assert.Equal(t, "partial", c.Scope.Coverage)
	require.Len(t, c.References, 1)
	assert.Equal(t, "2019", c.References[0].Year)
	assert.Empty(t, c.Warnings)

	e, hasMethod, hasMetric := c.Lookup("autocorrelation", "autocorr_max")
	assert.True(t, hasMethod)
	assert.True(t, hasMetric)
	assert.Equal(t, []float64{0, 1}, e.Reference.TypicalRange)
}

func TestLoadFamilyErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilySpectral), `
methods:
  fft_global:
    metrics:
      peak_frequency_hz:
        reference: {status: A, typical_range: [20000, 20]}
        notes: [x]
`)
	writeFile(t, dir, FileName(analysis.FamilyModulation), "- not\n- a mapping\n")

	l := NewLoader()

	_, err := l.LoadFamily(dir, analysis.FamilyTemporal)
	require.ErrorIs(t, err, ErrMissingContext)

	_, err = l.LoadFamily(dir, analysis.FamilySpectral)
	require.ErrorIs(t, err, ErrInvalidRangeDefinition)
	assert.Contains(t, err.Error(), "methods.fft_global.metrics.peak_frequency_hz")

	_, err = l.LoadFamily(dir, analysis.FamilyModulation)
	require.ErrorIs(t, err, ErrInvalidContext)
}

func TestFamilyFieldMismatchIsWarning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilySpectral), "family: temporal\nmethods: {}\n")

	c, err := NewLoader().LoadFamily(dir, analysis.FamilySpectral)
	require.NoError(t, err)
	require.Len(t, c.Warnings, 1)
	assert.Contains(t, c.Warnings[0], `"temporal"`)
}

func TestMatchClassifiesEveryMetric(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilyTemporal), temporalContext)

	set := NewLoader().LoadSet(dir, analysis.Families())
	doc := sampleDoc()

	records := NewMatcher().Match(doc, set)

	type key struct {
		method, channel, metric string
	}

	measured := map[key]int{}

	for _, r := range doc.Analyses {
		if r.Status != engine.StatusOK {
			continue
		}

		for m := range r.Metrics {
			measured[key{r.Method, r.Channel, m}] = 0
		}
	}

	var missing []PositioningRecord

	for _, p := range records {
		require.Contains(t, Classifications(), p.Classification)

		if p.Classification == ExpectedButMissing {
			missing = append(missing, p)

			continue
		}

		k := key{p.Method, p.Channel, p.Metric}
		require.Contains(t, measured, k)

		measured[k]++
	}

	for k, n := range measured {
		assert.Equal(t, 1, n, "metric %v", k)
	}

	require.Len(t, missing, 1)
	assert.Equal(t, "retired_metric", missing[0].Metric)
	assert.Equal(t, StatusA, missing[0].Status)
}

func TestMatchPositions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilyTemporal), temporalContext)

	records := NewMatcher().Match(sampleDoc(), NewLoader().LoadSet(dir, []analysis.Family{analysis.FamilyTemporal}))

	find := func(channel, metric string) PositioningRecord {
		for _, p := range records {
			if p.Channel == channel && p.Metric == metric && p.Classification != ExpectedButMissing {
				return p
			}
		}

		t.Fatalf("no record for %s/%s", channel, metric)

		return PositioningRecord{}
	}

	left := find("left", "autocorr_max")
	assert.Equal(t, Positioned, left.Classification)
	assert.Equal(t, Within, left.Position)
	assert.Equal(t, &Range{Lo: 0, Hi: 1}, left.Range)

	assert.Equal(t, Above, find("right", "autocorr_max").Position)

	lag := find("left", "first_peak_lag")
	assert.Equal(t, ContextDependent, lag.Classification)
	assert.Equal(t, []string{"Depends on the source pitch"}, lag.Notes)
	assert.Empty(t, lag.Position)

	assert.Equal(t, Descriptive, find("right", "periodicity_hz").Classification)

	found := find("left", "peak_found")
	assert.Equal(t, Unmapped, found.Classification)
	assert.Equal(t, ReasonMissingMetric, found.Reason)

	env := find("left", "envelope_mean")
	assert.Equal(t, Unmapped, env.Classification)
	assert.Equal(t, ReasonMissingMethod, env.Reason)

	fft := find("left", "peak_frequency_hz")
	assert.Equal(t, Unmapped, fft.Classification)
	assert.Contains(t, fft.Reason, ReasonNoContext)
}

func TestMatchNonNumericAndNaN(t *testing.T) {
	t.Parallel()

	set := NewSet()
	require.NoError(t, set.Add(analysis.FamilyTemporal, &Context{Methods: map[string]MethodContext{
		"m": {Metrics: map[string]Entry{
			"flag":  {Reference: Reference{Status: StatusA, TypicalRange: []float64{0, 1}}},
			"nan":   {Reference: Reference{Status: StatusA, TypicalRange: []float64{0, 1}}},
			"below": {Reference: Reference{Status: StatusA, TypicalRange: []float64{0, 1}}},
		}},
	}}))

	doc := &engine.ResultDocument{Analyses: []engine.Record{{
		Family: analysis.FamilyTemporal, Method: "m", Channel: "mono", Status: engine.StatusOK,
		Metrics: engine.Values{"flag": true, "nan": math.NaN(), "below": -3},
	}}}

	records := NewMatcher().Match(doc, set)
	require.Len(t, records, 3)

	got := map[string]Position{}
	for _, p := range records {
		assert.Equal(t, Positioned, p.Classification)
		got[p.Metric] = p.Position
	}

	assert.Equal(t, map[string]Position{"below": Below, "flag": NotApplicable, "nan": NotApplicable}, got)
}

func TestInvalidContextIsolatedToFamily(t *testing.T) {
	t.Parallel()

	set := NewSet()
	err := set.Add(analysis.FamilySpectral, &Context{Methods: map[string]MethodContext{
		"fft_global": {Metrics: map[string]Entry{
			"peak_frequency_hz": {Reference: Reference{Status: StatusA}},
		}},
	}})
	require.ErrorIs(t, err, ErrInvalidRangeDefinition)

	_, err = set.Context(analysis.FamilySpectral)
	require.True(t, errors.Is(err, ErrInvalidRangeDefinition))

	records := NewMatcher().Match(sampleDoc(), set)
	for _, p := range records {
		assert.Equal(t, Unmapped, p.Classification)
		assert.NotEqual(t, ExpectedButMissing, p.Classification)
	}
}

func TestContextWithoutResultsIsAllMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilyTemporal), temporalContext)

	records := NewMatcher().Match(&engine.ResultDocument{}, NewLoader().LoadSet(dir, analysis.Families()))
	require.Len(t, records, 4)

	for _, p := range records {
		assert.Equal(t, ExpectedButMissing, p.Classification)
	}

	assert.Equal(t, "autocorr_max", records[0].Metric)
}

func TestUserContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "user.yaml", `
family: temporal
methods:
  autocorrelation:
    metrics:
      autocorr_max:
        reference:
          status: USER
          typical_user_range: [0.99, 1]
        notes: ["My own threshold"]
      samples_analyzed:
        reference:
          status: USER
          typical_user_range: [0, 100]
        notes: ["Short excerpt"]
`)

	user, err := NewLoader().LoadUser(path)
	require.NoError(t, err)

	records := MatchUser(sampleDoc(), user)

	positions := map[string]Position{}

	for _, p := range records {
		if p.Classification == Positioned {
			assert.Equal(t, StatusUser, p.Status)
			positions[p.Channel+"/"+p.Metric] = p.Position
		}
	}

	assert.Equal(t, map[string]Position{
		"left/autocorr_max":      Below,
		"right/autocorr_max":     Above,
		"left/samples_analyzed":  Above,
		"right/samples_analyzed": Above,
	}, positions)
}

func TestUserContextUnknownFamily(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "user.yaml", "family: acoustics\nmethods: {}\n")

	_, err := NewLoader().LoadUser(path)
	require.ErrorIs(t, err, ErrInvalidContext)
}

func TestUserContextInvalidEntryIsUnmapped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLoader()

	tests := []struct {
		name      string
		reference string
		notes     string
		want      string
	}{
		{"typical_range forbidden", "{status: USER, typical_user_range: [0, 1], typical_range: [0, 1]}", "[x]",
			"typical_range is not allowed in user contexts"},
		{"status must be USER", "{status: A, typical_range: [0, 1]}", "[x]", "reference.status must be USER"},
		{"range required", "{status: USER}", "[x]", "typical_user_range is required"},
		{"range inverted", "{status: USER, typical_user_range: [1, 0]}", "[x]", "lower bound 1 exceeds upper bound 0"},
		{"range NaN", "{status: USER, typical_user_range: [0, .nan]}", "[x]", "bounds must be numbers"},
		{"notes missing", "{status: USER, typical_user_range: [0, 1]}", "[]", "missing or empty notes"},
	}

	for i, tt := range tests {
		body := "family: temporal\nmethods:\n  envelope:\n    metrics:\n      envelope_mean:\n" +
			"        reference: " + tt.reference + "\n        notes: " + tt.notes + "\n"
		path := writeFile(t, dir, "user"+string(rune('a'+i))+".yaml", body)

		user, err := l.LoadUser(path)
		require.NoError(t, err, tt.name)
		require.Len(t, user.Warnings, 1, tt.name)
		assert.Contains(t, user.Warnings[0], tt.want, tt.name)

		var found bool

		for _, p := range MatchUser(sampleDoc(), user) {
			if p.Metric != "envelope_mean" || p.Classification == ExpectedButMissing {
				continue
			}

			found = true

			assert.Equal(t, Unmapped, p.Classification, tt.name)
			assert.True(t, strings.HasPrefix(p.Reason, ReasonInvalidUser+": "), tt.name)
			assert.Contains(t, p.Reason, tt.want, tt.name)
			assert.Empty(t, p.Position, tt.name)
		}

		assert.True(t, found, tt.name)
	}
}

func TestUserContextIsolatesInvalidEntries(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "user.yaml", `
family: temporal
methods:
  autocorrelation:
    metrics:
      autocorr_max:
        reference:
          status: USER
          typical_user_range: [0.5, 1]
        notes: ["Plausible peak"]
      first_peak_lag:
        reference:
          status: USER
          typical_user_range: [10, 100]
      peak_found:
        reference:
          status: USER
          typical_user_range: [0, 1]
        notes: ["Flag"]
`)

	user, err := NewLoader().LoadUser(path)
	require.NoError(t, err)

	got := map[string]PositioningRecord{}

	for _, p := range MatchUser(sampleDoc(), user) {
		got[p.Channel+"/"+p.Metric] = p
	}

	assert.Equal(t, Positioned, got["left/autocorr_max"].Classification)
	assert.Equal(t, Within, got["left/autocorr_max"].Position)
	assert.Equal(t, Above, got["right/autocorr_max"].Position)

	for _, ch := range []string{"left", "right"} {
		lag := got[ch+"/first_peak_lag"]
		assert.Equal(t, Unmapped, lag.Classification)
		assert.Equal(t, ReasonInvalidUser+": missing or empty notes", lag.Reason)

		flag := got[ch+"/peak_found"]
		assert.Equal(t, Unmapped, flag.Classification)
		assert.Equal(t, ReasonNonNumeric, flag.Reason)
		assert.Equal(t, &Range{Lo: 0, Hi: 1}, flag.Range)
	}
}

func TestFamilyContextRejectsNaNBound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilyTemporal), `
family: temporal
methods:
  autocorrelation:
    metrics:
      autocorr_max:
        reference: {status: A, typical_range: [.nan, 1]}
        notes: [x]
`)

	_, err := NewLoader().LoadFamily(dir, analysis.FamilyTemporal)
	require.ErrorIs(t, err, ErrInvalidRangeDefinition)
}

func TestAutocorrelationPositionedWithin(t *testing.T) {
	t.Parallel()

	reg := methods.DefaultRegistry()

	plan, err := protocol.NewLoader(reg).Parse([]byte(`
version: "1.0"
channels:
  analyze: [mono]
analyses:
  temporal:
    enabled: true
    methods:
      - name: autocorrelation
        params: {max_lag: 100, normalize: true}
`))
	require.NoError(t, err)

	ec, err := analysis.NewExecutionContext(
		map[string][]float64{"mono": testutil.DeterministicSine(440, 22050, 1, 22050)},
		[]string{"mono"}, 22050, analysis.Preprocessing{},
	)
	require.NoError(t, err)

	doc, _, err := engine.NewRunner(reg).Run(context.Background(), plan, ec)
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, dir, FileName(analysis.FamilyTemporal), temporalContext)

	records := NewMatcher().Match(doc, NewLoader().LoadSet(dir, analysis.Families()))

	var hit bool

	for _, p := range records {
		if p.Metric == "autocorr_max" && p.Classification == Positioned {
			hit = true

			assert.Equal(t, Within, p.Position)
		}
	}

	assert.True(t, hit)
}
