package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

func TestSortProducersFirst(t *testing.T) {
	g := ir.NewGraph()
	a := g.Add(&ir.Node{Name: "a", Kind: ir.OpInput})
	b := g.Add(&ir.Node{Name: "b", Kind: ir.OpReLU, Inputs: []ir.Input{{Node: a}}})
	c := g.Add(&ir.Node{Name: "c", Kind: ir.OpOutput, Inputs: []ir.Input{{Node: b}}})

	require.NoError(t, Sort(g))
	assert.Equal(t, []ir.NodeID{a, b, c}, g.Order)
}

func TestSortBreaksTiesByID(t *testing.T) {
	g := ir.NewGraph()
	// Two independent chains; every ready tie must resolve to the smaller id.
	a := g.Add(&ir.Node{Name: "a", Kind: ir.OpInput})
	b := g.Add(&ir.Node{Name: "b", Kind: ir.OpInput})
	c := g.Add(&ir.Node{Name: "c", Kind: ir.OpReLU, Inputs: []ir.Input{{Node: b}}})
	d := g.Add(&ir.Node{Name: "d", Kind: ir.OpReLU, Inputs: []ir.Input{{Node: a}}})

	require.NoError(t, Sort(g))
	assert.Equal(t, []ir.NodeID{a, b, c, d}, g.Order)
}

func TestSortSelfLoop(t *testing.T) {
	g := ir.NewGraph()
	a := g.Add(&ir.Node{Name: "a", Kind: ir.OpSum})
	g.Node(a).Inputs = []ir.Input{{Node: a}}

	err := Sort(g)
	var e *CycleError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{"a", "a"}, e.Path)
}

func TestSortCyclePath(t *testing.T) {
	g := ir.NewGraph()
	a := g.Add(&ir.Node{Name: "a", Kind: ir.OpSum})
	b := g.Add(&ir.Node{Name: "b", Kind: ir.OpSum})
	g.Node(a).Inputs = []ir.Input{{Node: b}}
	g.Node(b).Inputs = []ir.Input{{Node: a}}

	err := Sort(g)
	var e *CycleError
	require.ErrorAs(t, err, &e)
	require.Len(t, e.Path, 3)
	assert.Equal(t, e.Path[0], e.Path[2])
}
