package protocol

import (
	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/preprocess"
)

// Invocation is one declared method call with its effective parameters.
// Index is the position in the family's method list and disambiguates
// repeated declarations of the same method.
type Invocation struct {
	Index  int
	Method string
	Params analysis.Params
}

// FamilyPlan holds the invocations of one enabled family in declared order.
type FamilyPlan struct {
	Family      analysis.Family
	Invocations []Invocation
}

// Visualization is the protocol's visualization block.
type Visualization struct {
	Enabled bool `yaml:"enabled"`
}

// Output selects which artifacts a run persists.
type Output struct {
	SaveRawData       bool `yaml:"save_raw_data"`
	SaveConfig        bool `yaml:"save_config"`
	SaveVisualization bool `yaml:"save_visualization"`
}

// Plan is a validated protocol: only enabled, known families are present and
// every invocation carries merged parameters that passed the method check.
type Plan struct {
	Version       string
	Channels      []string
	Families      []FamilyPlan
	Preprocessing preprocess.Config
	Visualization Visualization
	Output        Output
	Warnings      []Warning
	// Source is the raw protocol document.
	Source []byte
}

// InvocationCount returns the number of (invocation, channel) pairs the plan
// will execute.
func (p *Plan) InvocationCount() int {
	n := 0
	for _, f := range p.Families {
		n += len(f.Invocations)
	}

	return n * len(p.Channels)
}

func defaultOutput() Output {
	return Output{SaveRawData: true, SaveConfig: true, SaveVisualization: true}
}
