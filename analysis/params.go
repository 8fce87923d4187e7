package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Params holds the parameter values of one method invocation. Values use the
// shapes produced by YAML decoding (bool, int, float64, string, []any,
// map[string]any) plus []float64 for declared defaults.
type Params map[string]any

var paramValidator = validator.New(validator.WithRequiredStructEnabled())

// Merge returns defaults overridden by declared. A declared key replaces the
// whole default value for that key; nested values are never combined.
func Merge(defaults, declared Params) Params {
	out := make(Params, len(defaults)+len(declared))
	for k, v := range defaults {
		out[k] = cloneValue(v)
	}

	for k, v := range declared {
		out[k] = cloneValue(v)
	}

	return out
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}

	return Merge(p, nil)
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// DecodeParams converts p into the typed parameter struct T. Keys without a
// matching field are rejected and `validate` struct tags are enforced. If *T
// has a Validate() error method it runs last, for cross-field rules tags
// cannot express.
func DecodeParams[T any](p Params) (T, error) {
	var out T

	raw, err := yaml.Marshal(map[string]any(p.Clone()))
	if err != nil {
		return out, fmt.Errorf("encode params: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	err = dec.Decode(&out)
	if err != nil && !errors.Is(err, io.EOF) {
		return out, fmt.Errorf("decode params: %w", err)
	}

	err = paramValidator.Struct(out)
	if err != nil {
		return out, fmt.Errorf("invalid params: %w", err)
	}

	if v, ok := any(&out).(interface{ Validate() error }); ok {
		err = v.Validate()
		if err != nil {
			return out, fmt.Errorf("invalid params: %w", err)
		}
	}

	return out, nil
}

// Checker returns a parameter check that succeeds when p decodes into T.
func Checker[T any]() func(Params) error {
	return func(p Params) error {
		_, err := DecodeParams[T](p)

		return err
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}

		return out
	case []float64:
		return slices.Clone(t)
	case []int:
		return slices.Clone(t)
	case []string:
		return slices.Clone(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}

		return out
	case Params:
		return t.Clone()
	default:
		return v
	}
}
