package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructural matches every StructuralError via errors.Is.
var ErrStructural = errors.New("protocol: structural error")

// Violation is one structural problem at a dotted path such as
// "analyses.temporal.methods[0].name".
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}

	return v.Path + ": " + v.Message
}

// StructuralError aggregates every violation found in one pass.
type StructuralError struct {
	Violations []Violation
}

func (e *StructuralError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "protocol: %d structural violation(s)", len(e.Violations))

	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}

	return b.String()
}

// Unwrap makes errors.Is(err, ErrStructural) hold.
func (e *StructuralError) Unwrap() error { return ErrStructural }

// Warning is a non-fatal finding such as an unknown family.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Path + ": " + w.Message
}
