package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// Descriptor is a sealed interface: only the variants in this file
// implement it. The graph builder dispatches on the concrete type; there is
// no other extension point.
type Descriptor interface {
	descriptor() // Sealed - only these types implement it
	String() string
}

// Ref reads another declared node at the current time index.
type Ref struct {
	Name string
}

func (Ref) descriptor()      {}
func (d Ref) String() string { return d.Name }

// Offset reads X shifted by T frames: value(t) = X(t+T).
type Offset struct {
	X Descriptor
	T int
}

func (Offset) descriptor() {}
func (d Offset) String() string {
	return fmt.Sprintf("Offset(%s, %d)", d.X, d.T)
}

// Append concatenates its parts along the feature axis, all evaluated at
// the same time index.
type Append struct {
	Parts []Descriptor
}

func (Append) descriptor() {}
func (d Append) String() string {
	parts := make([]string, len(d.Parts))
	for i, p := range d.Parts {
		parts[i] = p.String()
	}
	return "Append(" + strings.Join(parts, ", ") + ")"
}

// Sum adds X and Y elementwise.
type Sum struct {
	X, Y Descriptor
}

func (Sum) descriptor() {}
func (d Sum) String() string {
	return fmt.Sprintf("Sum(%s, %s)", d.X, d.Y)
}

// IfDefined evaluates to X where X is defined and to zeros elsewhere.
// Frames it reaches for do not count toward the network's required context.
type IfDefined struct {
	X Descriptor
}

func (IfDefined) descriptor() {}
func (d IfDefined) String() string {
	return fmt.Sprintf("IfDefined(%s)", d.X)
}

// ReplaceIndex rebinds the index Var of X to the constant T, making the
// value invariant along that axis. Var is "t" or "x" in the dialect.
type ReplaceIndex struct {
	X   Descriptor
	Var string
	T   int
}

func (ReplaceIndex) descriptor() {}
func (d ReplaceIndex) String() string {
	return fmt.Sprintf("ReplaceIndex(%s, %s, %d)", d.X, d.Var, d.T)
}

// Scale multiplies X elementwise by the literal constant C.
type Scale struct {
	C float64
	X Descriptor
}

func (Scale) descriptor() {}
func (d Scale) String() string {
	return fmt.Sprintf("Scale(%s, %s)", FormatScale(d.C), d.X)
}

// FormatScale renders a scale constant the way node names and canonical
// encodings need it: shortest round-trippable decimal form.
func FormatScale(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}
