package analysis

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Segment is a half-open sample range [Start, End).
type Segment struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end"   yaml:"end"`
}

// Len returns the segment length in samples.
func (s Segment) Len() int { return s.End - s.Start }

// Preprocessing records what was applied to the channel buffers before
// analysis.
type Preprocessing struct {
	Normalization string             `json:"normalization,omitempty" yaml:"normalization,omitempty"`
	TargetLevel   float64            `json:"target_level,omitempty"  yaml:"target_level,omitempty"`
	Gains         map[string]float64 `json:"gains,omitempty"         yaml:"gains,omitempty"`
	Segmentation  string             `json:"segmentation,omitempty"  yaml:"segmentation,omitempty"`
	// Segments is empty only when segmentation ran and found no region.
	Segments []Segment `json:"segments" yaml:"segments"`
}

func (p Preprocessing) clone() Preprocessing {
	p.Gains = maps.Clone(p.Gains)
	p.Segments = slices.Clone(p.Segments)

	return p
}

// ExecutionContext is the immutable bundle shared by all invocations of a run.
// Accessors return copies; nothing handed out aliases the internal buffers.
type ExecutionContext struct {
	channels   map[string][]float64
	order      []string
	sampleRate int
	frames     int
	pre        Preprocessing
}

var (
	errNoChannels    = errors.New("no channels")
	errBadSampleRate = errors.New("sample rate must be positive")
	errUnequalLength = errors.New("channel buffers differ in length")
)

// NewExecutionContext copies the given buffers into a new context. order fixes
// the channel iteration order and must name every buffer exactly once.
func NewExecutionContext(
	buffers map[string][]float64,
	order []string,
	sampleRate int,
	pre Preprocessing,
) (*ExecutionContext, error) {
	if len(buffers) == 0 || len(order) != len(buffers) {
		return nil, fmt.Errorf("analysis: execution context: %w", errNoChannels)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("analysis: execution context: %w", errBadSampleRate)
	}

	ec := &ExecutionContext{
		channels:   make(map[string][]float64, len(buffers)),
		order:      slices.Clone(order),
		sampleRate: sampleRate,
		frames:     -1,
		pre:        pre.clone(),
	}

	for _, name := range order {
		buf, ok := buffers[name]
		if !ok {
			return nil, fmt.Errorf("analysis: execution context: channel %q not in buffers", name)
		}

		if ec.frames >= 0 && len(buf) != ec.frames {
			return nil, fmt.Errorf("analysis: execution context: %w: %q has %d, want %d",
				errUnequalLength, name, len(buf), ec.frames)
		}

		ec.frames = len(buf)
		ec.channels[name] = slices.Clone(buf)
	}

	if len(ec.pre.Segments) == 0 && ec.pre.Segmentation == "" {
		ec.pre.Segments = []Segment{{Start: 0, End: ec.frames}}
	}

	return ec, nil
}

// Channel returns a copy of the named channel buffer.
func (c *ExecutionContext) Channel(name string) ([]float64, bool) {
	buf, ok := c.channels[name]
	if !ok {
		return nil, false
	}

	return slices.Clone(buf), true
}

// ChannelNames returns the channel names in run order.
func (c *ExecutionContext) ChannelNames() []string { return slices.Clone(c.order) }

// SampleRate returns the sample rate in Hz.
func (c *ExecutionContext) SampleRate() int { return c.sampleRate }

// Frames returns the common buffer length.
func (c *ExecutionContext) Frames() int { return c.frames }

// Segments returns the segmentation boundaries.
func (c *ExecutionContext) Segments() []Segment { return slices.Clone(c.pre.Segments) }

// Preprocessing returns the preprocessing metadata.
func (c *ExecutionContext) Preprocessing() Preprocessing { return c.pre.clone() }
