package optimize

import "github.com/tz301/kaldi-onnx-tf/internal/ir"

// foldIdentities routes consumers of pass-through nodes straight to the
// producer. Dropout and no-op components lower to OpIdentity, and an
// OpOffset with shift zero is the same thing under another name. The
// folded nodes become unreachable and fall to dead-node elimination.
func foldIdentities(g *ir.Graph) int {
	folded := 0
	for _, id := range g.IDs() {
		n := g.Node(id)
		passThrough := n.Kind == ir.OpIdentity ||
			(n.Kind == ir.OpOffset && n.Offset == 0) ||
			(n.Kind == ir.OpScale && n.Scale == 1)
		if !passThrough || g.IsOutput(id) {
			continue
		}
		redirect(g, id, n.Inputs[0])
		folded++
	}
	return folded
}

// mergeOffsets collapses chains of frame shifts: an offset node reading
// another offset node retargets to the base with the combined shift.
// Iterates to a fixed point so arbitrarily deep chains flatten in one
// pass invocation.
func mergeOffsets(g *ir.Graph) int {
	merged := 0
	for changed := true; changed; {
		changed = false
		for _, id := range g.IDs() {
			n := g.Node(id)
			if n.Kind != ir.OpOffset {
				continue
			}
			p := g.Node(n.Inputs[0].Node)
			if p.Kind != ir.OpOffset {
				continue
			}
			n.Inputs[0] = ir.Input{Node: p.Inputs[0].Node, Offset: n.Inputs[0].Offset + p.Inputs[0].Offset}
			n.Offset = n.Inputs[0].Offset
			merged++
			changed = true
		}
	}
	return merged
}

// formSplices rewrites an append whose parts all read one base node,
// directly or through a frame shift, into a single splice over that base.
// The part order is preserved so the feature layout does not change.
func formSplices(g *ir.Graph) int {
	formed := 0
	for _, id := range g.IDs() {
		n := g.Node(id)
		if n.Kind != ir.OpAppend {
			continue
		}

		base := ir.None
		inputs := make([]ir.Input, len(n.Inputs))
		ok := true
		for i, in := range n.Inputs {
			src, shift := in.Node, in.Offset
			if p := g.Node(src); p.Kind == ir.OpOffset {
				shift += p.Inputs[0].Offset
				src = p.Inputs[0].Node
			}
			if base == ir.None {
				base = src
			}
			if src != base {
				ok = false
				break
			}
			inputs[i] = ir.Input{Node: base, Offset: shift}
		}
		if !ok || base == ir.None {
			continue
		}

		n.Kind = ir.OpSplice
		n.Inputs = inputs
		n.Context = make([]int, len(inputs))
		for i, in := range inputs {
			n.Context[i] = in.Offset
		}
		formed++
	}
	return formed
}

// eliminateDead removes every node not reachable from a declared output.
// Declared inputs stay even when nothing reads them, since they are part
// of the emitted interface.
func eliminateDead(g *ir.Graph) int {
	live := make(map[ir.NodeID]bool, g.Len())
	stack := append([]ir.NodeID(nil), g.Outputs...)
	stack = append(stack, g.Inputs...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if live[id] {
			continue
		}
		live[id] = true
		for _, in := range g.Node(id).Inputs {
			stack = append(stack, in.Node)
		}
	}

	removed := 0
	for _, id := range g.IDs() {
		if !live[id] {
			g.Remove(id)
			removed++
		}
	}
	return removed
}
