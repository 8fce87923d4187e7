package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Values is a metric or parameter mapping as stored in documents. JSON
// encoding writes non-finite floats as the strings "NaN", "+Inf" and "-Inf";
// decoding restores them and turns numeric arrays into []float64.
type Values map[string]any

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = encodeValue(val)
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any

	err := dec.Decode(&raw)
	if err != nil {
		return err
	}

	out := make(Values, len(raw))
	for k, val := range raw {
		out[k] = decodeValue(val)
	}

	*v = out

	return nil
}

// Float returns the numeric value of key as float64. Integers convert;
// anything else reports false.
func (v Values) Float(key string) (float64, bool) {
	return numeric(v[key])
}

func numeric(val any) (float64, bool) {
	switch x := val.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return f
	}
}

func encodeValue(val any) any {
	switch x := val.(type) {
	case float64:
		return encodeFloat(x)
	case float32:
		return encodeFloat(float64(x))
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = encodeFloat(f)
		}

		return out
	case [][]float64:
		out := make([]any, len(x))
		for i, row := range x {
			out[i] = encodeValue(row)
		}

		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}

		return out
	default:
		return val
	}
}

func decodeValue(val any) any {
	switch x := val.(type) {
	case json.Number:
		return decodeNumber(x)
	case string:
		switch x {
		case "NaN":
			return math.NaN()
		case "+Inf":
			return math.Inf(1)
		case "-Inf":
			return math.Inf(-1)
		}

		return x
	case []any:
		out := make([]any, len(x))
		floats := make([]float64, len(x))
		allNumeric := true

		for i, e := range x {
			out[i] = decodeValue(e)

			f, ok := numeric(out[i])
			if !ok {
				allNumeric = false
			}

			floats[i] = f
		}

		if allNumeric && len(x) > 0 {
			return floats
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = decodeValue(e)
		}

		return out
	default:
		return val
	}
}

func decodeNumber(n json.Number) any {
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i
	}

	f, err := n.Float64()
	if err != nil {
		return n.String()
	}

	return f
}

// checkValue reports whether val has one of the metric value types and
// returns a private copy of slices.
func checkValue(val any) (any, error) {
	switch x := val.(type) {
	case float64, int, bool, string:
		return x, nil
	case []float64:
		return append([]float64(nil), x...), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", val)
	}
}
