package methods

import "github.com/cwbudde/algo-protocol/analysis"

// All returns the descriptors of every built-in method in catalog order.
func All() []analysis.Descriptor {
	var out []analysis.Descriptor

	out = append(out, temporal()...)
	out = append(out, spectral()...)
	out = append(out, timeFrequency()...)
	out = append(out, modulation()...)
	out = append(out, information()...)
	out = append(out, interChannel()...)
	out = append(out, steganography()...)
	out = append(out, metaAnalysis()...)

	return out
}

// Register adds every built-in method to r.
func Register(r *analysis.Registry) error {
	for _, d := range All() {
		err := r.Register(d)
		if err != nil {
			return err
		}
	}

	return nil
}

// DefaultRegistry returns a frozen registry holding the built-in catalog.
func DefaultRegistry() *analysis.Registry {
	r := analysis.NewRegistry()

	for _, d := range All() {
		r.MustRegister(d)
	}

	return r.Freeze()
}
