package optimize

import (
	"github.com/tz301/kaldi-onnx-tf/internal/graph"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

// Stats counts what each pass changed during one Run.
type Stats struct {
	IdentitiesFolded  int `json:"identities_folded"`
	OffsetsMerged     int `json:"offsets_merged"`
	SplicesFormed     int `json:"splices_formed"`
	BatchNormsFused   int `json:"batchnorms_fused"`
	ActivationsFused  int `json:"activations_fused"`
	NodesEliminated   int `json:"nodes_eliminated"`
}

// Changed reports whether any pass rewrote the graph.
func (s Stats) Changed() bool {
	return s != Stats{}
}

// Run applies all passes in order and re-sorts the graph. The graph is
// mutated in place; on error it must be considered unusable.
func Run(g *ir.Graph) (Stats, error) {
	var s Stats

	s.IdentitiesFolded = foldIdentities(g)
	s.OffsetsMerged = mergeOffsets(g)
	s.SplicesFormed = formSplices(g)
	s.BatchNormsFused = fuseBatchNorms(g)
	s.ActivationsFused = fuseActivations(g)
	s.NodesEliminated = eliminateDead(g)

	if err := graph.Sort(g); err != nil {
		return s, err
	}
	return s, nil
}

// redirect rewrites every edge reading from into an edge reading to,
// accumulating the frame offsets, and fixes the declared output list.
func redirect(g *ir.Graph, from ir.NodeID, to ir.Input) {
	for _, id := range g.IDs() {
		n := g.Node(id)
		for i, in := range n.Inputs {
			if in.Node == from {
				n.Inputs[i] = ir.Input{Node: to.Node, Offset: in.Offset + to.Offset}
			}
		}
	}
}

// soleConsumer returns the single node reading id, or 0 when id has zero
// or several consumers or is itself a declared output.
func soleConsumer(g *ir.Graph, consumers map[ir.NodeID][]ir.NodeID, id ir.NodeID) ir.NodeID {
	if g.IsOutput(id) {
		return ir.None
	}
	c := consumers[id]
	if len(c) != 1 {
		return ir.None
	}
	// A splice reads its base once per context entry; that still counts
	// as one consumer node, but the edges differ, so reject it here.
	edges := 0
	for _, in := range g.Node(c[0]).Inputs {
		if in.Node == id {
			edges++
		}
	}
	if edges != 1 {
		return ir.None
	}
	return c[0]
}
