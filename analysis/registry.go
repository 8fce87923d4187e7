package analysis

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateIdentifier is returned when a method identifier is registered twice.
	ErrDuplicateIdentifier = errors.New("duplicate method identifier")
	// ErrUnknownMethod is returned when resolving an identifier that was never registered.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("registry is frozen")
	// ErrInvalidDescriptor is returned for malformed registrations.
	ErrInvalidDescriptor = errors.New("invalid method descriptor")
)

// Registry maps method identifiers to their descriptors. It is append-only
// until Freeze and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Descriptor
	order   []string
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Descriptor)}
}

// Register adds a method descriptor.
func (r *Registry) Register(d Descriptor) error {
	err := validateDescriptor(d)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, d.ID)
	}

	if _, exists := r.methods[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, d.ID)
	}

	r.methods[d.ID] = d.clone()
	r.order = append(r.order, d.ID)

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(d Descriptor) {
	err := r.Register(d)
	if err != nil {
		panic("analysis registry: " + err.Error())
	}
}

// Freeze ends the initialization phase. It is idempotent.
func (r *Registry) Freeze() *Registry {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()

	return r
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.frozen
}

// Resolve returns a copy of the descriptor registered under id.
func (r *Registry) Resolve(id string) (Descriptor, error) {
	r.mu.RLock()
	d, ok := r.methods[id]
	r.mu.RUnlock()

	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownMethod, id)
	}

	return d.clone(), nil
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.methods[id].clone())
	}

	return out
}

// ByFamily returns the identifiers registered under f in registration order.
func (r *Registry) ByFamily(f Family) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string

	for _, id := range r.order {
		if r.methods[id].Family == f {
			ids = append(ids, id)
		}
	}

	return ids
}

// Family returns the family that owns id.
func (r *Registry) Family(id string) (Family, error) {
	d, err := r.Resolve(id)
	if err != nil {
		return "", err
	}

	return d.Family, nil
}

func validateDescriptor(d Descriptor) error {
	switch {
	case d.ID == "":
		return fmt.Errorf("%w: empty identifier", ErrInvalidDescriptor)
	case d.Func == nil:
		return fmt.Errorf("%w: %s: nil function", ErrInvalidDescriptor, d.ID)
	case !d.Family.Known():
		return fmt.Errorf("%w: %s: unknown family %q", ErrInvalidDescriptor, d.ID, d.Family)
	case len(d.Outputs) == 0:
		return fmt.Errorf("%w: %s: no declared outputs", ErrInvalidDescriptor, d.ID)
	}

	seen := make(map[string]struct{}, len(d.Outputs))
	for _, o := range d.Outputs {
		if o == "" {
			return fmt.Errorf("%w: %s: empty output name", ErrInvalidDescriptor, d.ID)
		}

		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: %s: output %q declared twice", ErrInvalidDescriptor, d.ID, o)
		}

		seen[o] = struct{}{}
	}

	if d.Check != nil {
		err := d.Check(d.Defaults.Clone())
		if err != nil {
			return fmt.Errorf("%w: %s: defaults: %v", ErrInvalidDescriptor, d.ID, err)
		}
	}

	return nil
}
