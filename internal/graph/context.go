package graph

import "github.com/tz301/kaldi-onnx-tf/internal/ir"

// Analyze computes each node's materialization window and the network-wide
// context pair, then checks the pair against the caller-declared values.
//
// One backward pass over the topological order suffices: a node's window is
// the union, over every consumer edge, of the consumer's window shifted by
// that edge's time offset. Declared outputs anchor the recursion at the
// zero window (exactly the current frame).
//
// Demand does not propagate through IfDefined nodes: where the wrapped
// value is undefined the runtime substitutes zeros, so frames reached only
// through IfDefined never widen the required context. Time-invariant nodes
// likewise absorb demand, since a pinned-index value needs no surrounding
// frames.
//
// Returns a ContextMismatchError if the computed pair differs from
// declared in either direction.
func Analyze(g *ir.Graph, declared ir.Context) error {
	computed := Infer(g)
	if computed != declared {
		return &ContextMismatchError{
			DeclaredLeft:  declared.Left,
			DeclaredRight: declared.Right,
			ComputedLeft:  computed.Left,
			ComputedRight: computed.Right,
		}
	}
	return nil
}

// Infer computes every window and the network context without checking
// it against a declaration. Call it at most once per graph: windows only
// ever widen.
func Infer(g *ir.Graph) ir.Context {
	demanded := demandSet(g)

	// Backward over the order: consumers are visited before producers, so
	// each node's window is final when its input edges are walked. Nodes
	// outside the demand set keep the zero window; the emitter zero-pads
	// them where a consumer reads past what exists.
	for i := len(g.Order) - 1; i >= 0; i-- {
		n := g.Node(g.Order[i])
		if n.Kind == ir.OpIfDefined || !demanded[n.ID] {
			continue
		}
		for _, in := range n.Inputs {
			m := g.Node(in.Node)
			if m.TimeInvariant {
				continue
			}
			m.Window = m.Window.Union(n.Window.Shift(in.Offset))
		}
	}

	computed := ir.Context{}
	for _, id := range g.Inputs {
		n := g.Node(id)
		if n.TimeInvariant {
			continue
		}
		c := ir.ContextFromWindow(n.Window)
		if c.Left > computed.Left {
			computed.Left = c.Left
		}
		if c.Right > computed.Right {
			computed.Right = c.Right
		}
	}

	g.Context = computed
	return computed
}

// demandSet marks every node whose frames are unconditionally required:
// reachable from a declared output along input edges without crossing into
// an IfDefined's operand. IfDefined nodes themselves are demanded (their
// defined portion feeds consumers); what they wrap is not.
func demandSet(g *ir.Graph) map[ir.NodeID]bool {
	demanded := make(map[ir.NodeID]bool, g.Len())
	stack := append([]ir.NodeID(nil), g.Outputs...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if demanded[id] {
			continue
		}
		demanded[id] = true
		n := g.Node(id)
		if n.Kind == ir.OpIfDefined {
			continue
		}
		for _, in := range n.Inputs {
			stack = append(stack, in.Node)
		}
	}
	return demanded
}
