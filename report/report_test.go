package report

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/engine"
	"github.com/cwbudde/algo-protocol/reference"
)

func sampleRecords() []reference.PositioningRecord {
	unit := &reference.Range{Lo: 0, Hi: 1}

	return []reference.PositioningRecord{
		{
			Family: analysis.FamilyTemporal, Method: "autocorrelation", Channel: "mono", Metric: "autocorr_max",
			Value: 0.97, Classification: reference.Positioned, Status: reference.StatusA,
			Range: unit, Position: reference.Within, Notes: []string{"Normalized peak"},
		},
		{
			Family: analysis.FamilyTemporal, Method: "autocorrelation", Channel: "mono", Metric: "first_peak_lag",
			Value: 50, Classification: reference.ContextDependent, Status: reference.StatusB,
			Notes: []string{"Depends on pitch"},
		},
		{
			Family: analysis.FamilyTemporal, Method: "autocorrelation", Channel: "mono", Metric: "peak_found",
			Value: true, Classification: reference.Unmapped, Reason: reference.ReasonMissingMetric,
		},
		{
			Family: analysis.FamilySpectral, Method: "fft_global", Channel: "mono", Metric: "peak_frequency_hz",
			Value: 440.0, Classification: reference.Unmapped, Reason: reference.ReasonNoContext,
		},
		{
			Family: analysis.FamilyTemporal, Method: "autocorrelation", Metric: "retired",
			Classification: reference.ExpectedButMissing, Status: reference.StatusA, Range: unit,
		},
	}
}

func TestBuildGroupsByFamilyThenSection(t *testing.T) {
	t.Parallel()

	r, err := Build(sampleRecords())
	require.NoError(t, err)

	require.Len(t, r.Families, 2)
	assert.Equal(t, analysis.FamilyTemporal, r.Families[0].Family)
	assert.Equal(t, analysis.FamilySpectral, r.Families[1].Family)
	assert.Equal(t, 5, r.Count())

	temporal := r.Families[0]
	assert.Len(t, temporal.Section(SectionA).Records, 1)
	assert.Len(t, temporal.Section(SectionB).Records, 1)
	assert.Empty(t, temporal.Section(SectionC).Records)
	assert.Len(t, temporal.Section(SectionUnmapped).Records, 1)
	assert.Len(t, temporal.Section(SectionMissing).Records, 1)
	assert.Nil(t, temporal.Section(SectionUser))
}

func TestBuildRejectsUnclassified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  reference.PositioningRecord
	}{
		{"empty classification", reference.PositioningRecord{Method: "m", Metric: "x"}},
		{"unknown classification", reference.PositioningRecord{Classification: "guessed"}},
		{"positioned without range", reference.PositioningRecord{
			Classification: reference.Positioned, Status: reference.StatusA, Position: reference.Within,
		}},
		{"positioned without position", reference.PositioningRecord{
			Classification: reference.Positioned, Status: reference.StatusA, Range: &reference.Range{},
		}},
		{"user record in context report", reference.PositioningRecord{
			Classification: reference.Positioned, Status: reference.StatusUser,
			Range: &reference.Range{}, Position: reference.Above,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			records := append(sampleRecords(), tt.rec)

			_, err := Build(records)
			require.ErrorIs(t, err, ErrUnclassifiedRecord)
		})
	}
}

func TestBuildUser(t *testing.T) {
	t.Parallel()

	r, err := BuildUser([]reference.PositioningRecord{{
		Family: analysis.FamilyTemporal, Method: "envelope", Channel: "left", Metric: "envelope_mean",
		Value: 0.2, Classification: reference.Positioned, Status: reference.StatusUser,
		Range: &reference.Range{Lo: 0.5, Hi: 1}, Position: reference.Below, Notes: []string{"mine"},
	}})
	require.NoError(t, err)
	assert.True(t, r.User)

	var buf bytes.Buffer
	require.NoError(t, r.WriteMarkdown(&buf))
	assert.Contains(t, buf.String(), "user-provided range [0.5, 1]) -> **below**. mine")

	invalid, err := BuildUser([]reference.PositioningRecord{{
		Family: analysis.FamilyTemporal, Method: "envelope", Channel: "left", Metric: "envelope_mean",
		Value: 0.2, Classification: reference.Unmapped, Status: reference.StatusA,
		Reason: reference.ReasonInvalidUser + ": reference.status must be USER",
	}})
	require.NoError(t, err)
	require.Len(t, invalid.Families[0].Section(SectionUnmapped).Records, 1)

	buf.Reset()
	require.NoError(t, invalid.WriteMarkdown(&buf))
	assert.Contains(t, buf.String(), "not covered (invalid user context entry: reference.status must be USER).")

	_, err = BuildUser(sampleRecords()[:1])
	require.ErrorIs(t, err, ErrUnclassifiedRecord)
}

func TestWriteMarkdownRendersEveryRecord(t *testing.T) {
	t.Parallel()

	r, err := Build(sampleRecords())
	require.NoError(t, err)

	r.Meta = &engine.Meta{RunID: "abc", ProtocolVersion: "1.0", Channels: []string{"mono"}}
	r.Contexts = map[analysis.Family]*reference.Context{
		analysis.FamilyTemporal: {
			Scope:      &reference.Scope{Objective: "Periodicity"},
			References: []reference.Citation{{Authors: "Smith", Title: "Pitch", Year: "2019"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteMarkdown(&buf))

	out := buf.String()
	for _, want := range []string{
		"# Audio Analysis Report - Contextual Positioning",
		"- Run: `abc`",
		"### temporal",
		"- Objective: Periodicity",
		`  - Smith, "Pitch", (2019).`,
		"**autocorr_max** = 0.97 (reference [0, 1]) -> **within**. Normalized peak",
		"**first_peak_lag** = 50. Depends on pitch",
		"**peak_found** = true, not covered (missing metric entry).",
		"**retired** (status A), missing in results.",
		"### spectral",
	} {
		assert.Contains(t, out, want)
	}

	assert.Equal(t, 5, strings.Count(out, "_None for this family._"))
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	r, err := Build(sampleRecords())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "positioning.xlsx")
	require.NoError(t, WriteXLSX(r, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)

	defer f.Close()

	rows, err := f.GetRows(SheetPositioning)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "Family", rows[0][0])
	assert.Equal(t, []string{"temporal", "A", "autocorrelation", "mono", "0", "autocorr_max", "0.97"}, rows[1][:7])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"temporal", "1", "1", "0", "1", "1"}, summary[1])
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	doc := &engine.ResultDocument{
		Meta: engine.Meta{ProtocolVersion: "1.0", Summary: engine.Summary{Total: 2, Executed: 1, NotExecuted: 1}},
		Analyses: []engine.Record{
			{
				Family: analysis.FamilyTemporal, Method: "envelope", Channel: "left", Status: engine.StatusOK,
				Metrics:   engine.Values{"envelope_mean": 0.25, "profile": []float64{1, 2}, "dynamic_range_db": math.Inf(1)},
				Truncated: map[string]int{"profile": 500},
			},
			{
				Family: analysis.FamilyTemporal, Method: "envelope", Channel: "right", Invocation: 1,
				Status: engine.StatusNotExecuted, Error: "run deadline exceeded",
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(doc, &buf))

	out := buf.String()
	assert.Contains(t, out, "#### envelope / left")
	assert.Contains(t, out, "- envelope_mean: 0.25")
	assert.Contains(t, out, "- dynamic_range_db: inf")
	assert.Contains(t, out, "- profile: [1, 2] (truncated from 500 values)")
	assert.Contains(t, out, "#### envelope / right #1")
	assert.Contains(t, out, "- status: **not_executed**: run deadline exceeded")
	assert.Contains(t, out, "1 executed, 0 contract violations, 1 not executed")
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{nil, "-"},
		{0.1234567, "0.123457"},
		{1e-9, "1e-09"},
		{math.NaN(), "NaN"},
		{math.Inf(-1), "-inf"},
		{42, "42"},
		{false, "false"},
		{"hann", "hann"},
		{[]float64{0.5, 2}, "[0.5, 2]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}
