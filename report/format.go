package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue renders a metric value with six significant digits.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "inf"
		case math.IsInf(x, -1):
			return "-inf"
		}

		return strconv.FormatFloat(x, 'g', 6, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = FormatValue(f)
		}

		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

func joinNotes(notes []string) string {
	var kept []string

	for _, n := range notes {
		if s := strings.TrimSpace(n); s != "" {
			kept = append(kept, s)
		}
	}

	if len(kept) == 0 {
		return "No note provided."
	}

	return strings.Join(kept, " ")
}
