package methods

import (
	"testing"

	"github.com/cwbudde/algo-protocol/analysis"
)

// run executes the registered method id on channel ch of buffers with the
// defaults overridden by declared.
func run(t *testing.T, id, ch string, buffers map[string][]float64, sr int, declared analysis.Params) (analysis.Output, error) {
	t.Helper()

	d, err := DefaultRegistry().Resolve(id)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", id, err)
	}

	order := make([]string, 0, len(buffers))
	for _, name := range []string{"left", "right", "mono", "sum", "difference"} {
		if _, ok := buffers[name]; ok {
			order = append(order, name)
		}
	}

	ec, err := analysis.NewExecutionContext(buffers, order, sr, analysis.Preprocessing{})
	if err != nil {
		t.Fatalf("NewExecutionContext: %v", err)
	}

	samples, _ := ec.Channel(ch)

	return d.Func(analysis.Input{
		Channel:    ch,
		Samples:    samples,
		SampleRate: sr,
		Context:    ec,
	}, analysis.Merge(d.Defaults, declared))
}

func mustRun(t *testing.T, id string, x []float64, sr int, declared analysis.Params) map[string]any {
	t.Helper()

	out, err := run(t, id, "mono", map[string][]float64{"mono": x}, sr, declared)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", id, err)
	}

	return out.Metrics
}

func float(t *testing.T, m map[string]any, key string) float64 {
	t.Helper()

	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		t.Fatalf("metric %q has type %T, want number", key, m[key])

		return 0
	}
}
