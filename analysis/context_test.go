package analysis

import "testing"

func TestNewExecutionContext(t *testing.T) {
	t.Parallel()

	t.Run("copies buffers and defaults to one segment", func(t *testing.T) {
		t.Parallel()

		left := []float64{1, 2, 3}
		ec, err := NewExecutionContext(
			map[string][]float64{"left": left, "right": {4, 5, 6}},
			[]string{"left", "right"}, 48000, Preprocessing{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		left[0] = 100

		got, ok := ec.Channel("left")
		if !ok || got[0] != 1 {
			t.Fatalf("context aliased input buffer: %v", got)
		}

		got[1] = 100

		again, _ := ec.Channel("left")
		if again[1] != 2 {
			t.Fatal("Channel returned an aliased buffer")
		}

		segs := ec.Segments()
		if len(segs) != 1 || segs[0].Start != 0 || segs[0].End != 3 {
			t.Fatalf("segments = %v", segs)
		}
	})

	t.Run("rejects unequal lengths", func(t *testing.T) {
		t.Parallel()

		_, err := NewExecutionContext(
			map[string][]float64{"left": {1, 2}, "right": {1}},
			[]string{"left", "right"}, 48000, Preprocessing{})
		if err == nil {
			t.Fatal("expected error for unequal lengths")
		}
	})

	t.Run("rejects non-positive sample rate", func(t *testing.T) {
		t.Parallel()

		_, err := NewExecutionContext(map[string][]float64{"mono": {1}}, []string{"mono"}, 0, Preprocessing{})
		if err == nil {
			t.Fatal("expected error for zero sample rate")
		}
	})

	t.Run("rejects order naming missing channel", func(t *testing.T) {
		t.Parallel()

		_, err := NewExecutionContext(map[string][]float64{"mono": {1}}, []string{"left"}, 8000, Preprocessing{})
		if err == nil {
			t.Fatal("expected error for missing channel")
		}
	})
}
