package engine

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/protocol"
)

// Status is the outcome of one invocation.
type Status string

const (
	StatusOK                Status = "ok"
	StatusContractViolation Status = "contract_violation"
	StatusNotExecuted       Status = "not_executed"
)

// Record is the measurement record of one (family, method, channel,
// invocation). Only ok records carry metrics.
type Record struct {
	Family     analysis.Family `json:"family"`
	Method     string          `json:"method"`
	Channel    string          `json:"channel"`
	Invocation int             `json:"invocation"`
	Status     Status          `json:"status"`
	Params     Values          `json:"params"`
	Metrics    Values          `json:"metrics"`
	// Truncated maps an array metric to its length before truncation.
	Truncated map[string]int `json:"truncated,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// FileInfo describes the analyzed audio file.
type FileInfo struct {
	Path            string  `json:"path"`
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	Frames          int     `json:"frames"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Summary counts records by status.
type Summary struct {
	Total              int  `json:"total"`
	Executed           int  `json:"executed"`
	ContractViolations int  `json:"contract_violations"`
	NotExecuted        int  `json:"not_executed"`
	DeadlineExceeded   bool `json:"deadline_exceeded"`
}

// Meta is the run metadata of a ResultDocument.
type Meta struct {
	RunID           string                 `json:"run_id"`
	ProtocolVersion string                 `json:"protocol_version"`
	Timestamp       time.Time              `json:"timestamp"`
	File            *FileInfo              `json:"file,omitempty"`
	SampleRate      int                    `json:"sample_rate"`
	Channels        []string               `json:"channels"`
	MaxArrayLength  int                    `json:"max_array_length"`
	Preprocessing   analysis.Preprocessing `json:"preprocessing"`
	Warnings        []protocol.Warning     `json:"warnings,omitempty"`
	Summary         Summary                `json:"summary"`
}

// ResultDocument is the canonical output of one run.
type ResultDocument struct {
	Meta     Meta     `json:"meta"`
	Analyses []Record `json:"analyses"`
}

// Records returns the ok records of family f in document order.
func (d *ResultDocument) Records(f analysis.Family) []Record {
	var out []Record

	for _, r := range d.Analyses {
		if r.Family == f && r.Status == StatusOK {
			out = append(out, r)
		}
	}

	return out
}

// Families returns the families present in the document in first-seen order.
func (d *ResultDocument) Families() []analysis.Family {
	var (
		out  []analysis.Family
		seen = map[analysis.Family]bool{}
	)

	for _, r := range d.Analyses {
		if !seen[r.Family] {
			seen[r.Family] = true
			out = append(out, r.Family)
		}
	}

	return out
}

// Canonical returns the indented JSON encoding of d with the timestamp
// cleared. Equal inputs give equal bytes.
func (d *ResultDocument) Canonical() ([]byte, error) {
	c := *d
	c.Meta.Timestamp = time.Time{}

	return json.MarshalIndent(&c, "", "  ")
}

// Equivalent reports whether a and b are identical apart from their
// timestamps.
func Equivalent(a, b *ResultDocument) bool {
	ca, err := a.Canonical()
	if err != nil {
		return false
	}

	cb, err := b.Canonical()
	if err != nil {
		return false
	}

	return bytes.Equal(ca, cb)
}

// VisualizationEntry is the plotting payload of one invocation, keyed like
// its Record.
type VisualizationEntry struct {
	Family     analysis.Family `json:"family"`
	Method     string          `json:"method"`
	Channel    string          `json:"channel"`
	Invocation int             `json:"invocation"`
	Data       Values          `json:"data"`
}

// VisualizationDocument is the companion of a ResultDocument.
type VisualizationDocument struct {
	RunID   string               `json:"run_id"`
	Entries []VisualizationEntry `json:"entries"`
}
