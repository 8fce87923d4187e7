package analysis

type gainParams struct {
	Gain  float64   `yaml:"gain"  validate:"gt=0"`
	Bands []float64 `yaml:"bands"`
}

func stubFunc(in Input, _ Params) (Output, error) {
	return Output{Metrics: map[string]any{"length": len(in.Samples)}}, nil
}

func stubDescriptor(id string) Descriptor {
	return Descriptor{
		ID:       id,
		Family:   FamilyTemporal,
		Func:     stubFunc,
		Defaults: Params{"gain": 1.0, "bands": []float64{100, 1000, 10000}},
		Outputs:  []string{"length"},
		Check:    Checker[gainParams](),
	}
}
