package analysis

import (
	"errors"
	"testing"
)

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	t.Run("registers and resolves descriptor", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()

		err := r.Register(stubDescriptor("envelope"))
		if err != nil {
			t.Fatalf("Register returned unexpected error: %v", err)
		}

		d, err := r.Resolve("envelope")
		if err != nil {
			t.Fatalf("Resolve returned unexpected error: %v", err)
		}

		if d.Family != FamilyTemporal {
			t.Errorf("family = %q, want %q", d.Family, FamilyTemporal)
		}
	})

	t.Run("rejects duplicate identifier", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		_ = r.Register(stubDescriptor("envelope"))

		err := r.Register(stubDescriptor("envelope"))
		if !errors.Is(err, ErrDuplicateIdentifier) {
			t.Fatalf("expected ErrDuplicateIdentifier, got: %v", err)
		}
	})

	t.Run("rejects registration after freeze", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry().Freeze()

		err := r.Register(stubDescriptor("envelope"))
		if !errors.Is(err, ErrRegistryFrozen) {
			t.Fatalf("expected ErrRegistryFrozen, got: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*Descriptor)
	}{
		{"empty identifier", func(d *Descriptor) { d.ID = "" }},
		{"nil function", func(d *Descriptor) { d.Func = nil }},
		{"unknown family", func(d *Descriptor) { d.Family = "acoustic" }},
		{"no outputs", func(d *Descriptor) { d.Outputs = nil }},
		{"duplicate output", func(d *Descriptor) { d.Outputs = []string{"length", "length"} }},
		{"defaults fail check", func(d *Descriptor) { d.Defaults = Params{"gain": -1.0} }},
		{"unknown default key", func(d *Descriptor) { d.Defaults = Params{"gian": 1.0} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := stubDescriptor("envelope")
			tc.mutate(&d)

			err := NewRegistry().Register(d)
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Fatalf("expected ErrInvalidDescriptor, got: %v", err)
			}
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()

		_, err := NewRegistry().Resolve("nonexistent")
		if !errors.Is(err, ErrUnknownMethod) {
			t.Fatalf("expected ErrUnknownMethod, got: %v", err)
		}
	})

	t.Run("returned defaults are a copy", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		r.MustRegister(stubDescriptor("envelope"))

		d, _ := r.Resolve("envelope")
		d.Defaults["gain"] = 99.0
		d.Defaults["bands"].([]float64)[0] = -1

		again, _ := r.Resolve("envelope")
		if again.Defaults["gain"] != 1.0 {
			t.Errorf("registry defaults mutated: gain = %v", again.Defaults["gain"])
		}

		if again.Defaults["bands"].([]float64)[0] != 100 {
			t.Errorf("registry defaults mutated: bands = %v", again.Defaults["bands"])
		}
	})
}

func TestRegistryOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(stubDescriptor("b"))
	r.MustRegister(stubDescriptor("a"))

	spectral := stubDescriptor("c")
	spectral.Family = FamilySpectral
	r.MustRegister(spectral)

	got := r.Descriptors()
	if len(got) != 3 || got[0].ID != "b" || got[1].ID != "a" || got[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}

	temporal := r.ByFamily(FamilyTemporal)
	if len(temporal) != 2 || temporal[0] != "b" || temporal[1] != "a" {
		t.Fatalf("ByFamily(temporal) = %v", temporal)
	}
}

func TestRegistryMustRegisterPanicsOnDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(stubDescriptor("envelope"))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate MustRegister")
		}
	}()

	r.MustRegister(stubDescriptor("envelope"))
}
