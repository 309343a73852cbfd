package graph

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency graph that has no topological order.
// Path lists the node names of one member cycle, first node repeated last.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// ContextMismatchError reports disagreement between the caller-declared
// network context and the pair computed from the graph. This is a hard
// failure: the chunk plan contract depends on the declared pair being
// exact.
type ContextMismatchError struct {
	DeclaredLeft, DeclaredRight int
	ComputedLeft, ComputedRight int
}

func (e *ContextMismatchError) Error() string {
	return fmt.Sprintf("context mismatch: declared (left=%d, right=%d) but computed (left=%d, right=%d)",
		e.DeclaredLeft, e.DeclaredRight, e.ComputedLeft, e.ComputedRight)
}
