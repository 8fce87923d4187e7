package analysis

// Input is the read-only view a method receives for one channel. Samples is a
// private copy; Context gives access to the rest of the run, e.g. the peer
// channel of an inter-channel measurement.
type Input struct {
	Channel    string
	Samples    []float64
	SampleRate int
	Context    *ExecutionContext
}

// Output is the result of one method on one channel. Metrics values must be
// float64, int, bool, string or []float64. Visualization is an optional
// plotting payload and is never part of the measurement document.
type Output struct {
	Metrics       map[string]any
	Visualization map[string]any
}

// Func is the analysis method capability contract: a pure function of one
// channel and its merged parameters.
type Func func(in Input, params Params) (Output, error)

// Descriptor is the registration entry of one method.
type Descriptor struct {
	ID          string
	Family      Family
	Description string
	Func        Func
	// Defaults are merged under the protocol-declared params.
	Defaults Params
	// Outputs lists the exact metric names the method produces.
	Outputs []string
	// Visualization reports whether the method emits a plotting payload.
	Visualization bool
	// Check validates effective params before execution. Optional.
	Check func(Params) error
}

// HasOutput reports whether name is a declared output metric.
func (d Descriptor) HasOutput(name string) bool {
	for _, o := range d.Outputs {
		if o == name {
			return true
		}
	}

	return false
}

func (d Descriptor) clone() Descriptor {
	d.Defaults = d.Defaults.Clone()
	d.Outputs = append([]string(nil), d.Outputs...)

	return d
}
