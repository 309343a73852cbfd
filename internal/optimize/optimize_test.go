package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tz301/kaldi-onnx-tf/internal/graph"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
	"github.com/tz301/kaldi-onnx-tf/internal/nnet3"
)

func buildGraph(t *testing.T, text string) *ir.Graph {
	t.Helper()
	net, err := nnet3.Parse(text)
	require.NoError(t, err)
	g, err := graph.Build(net)
	require.NoError(t, err)
	return g
}

// affine renders a 2x2 identity affine component declaration.
func affine(name string) string {
	return "component name=" + name + " type=AffineComponent " +
		"<LinearParams> [\n1.0 0.0\n0.0 1.0\n]\n<BiasParams> [ 0.5 0.5 ]\n"
}

func TestRunFoldsDropoutAndFormsSplice(t *testing.T) {
	text := "input-node name=input dim=2\n" +
		"component name=l1.affine type=AffineComponent <LinearParams> [\n" +
		"1 0 0 0 0 0\n0 1 0 0 0 0\n]\n<BiasParams> [ 0 0 ]\n" +
		"component name=l1.relu type=RectifiedLinearComponent <Dim> 2\n" +
		"component name=l1.dropout type=GeneralDropoutComponent <Dim> 2\n" +
		"component-node name=l1.affine component=l1.affine input=Append(Offset(input, -1), input, Offset(input, 1))\n" +
		"component-node name=l1.relu component=l1.relu input=l1.affine\n" +
		"component-node name=l1.dropout component=l1.dropout input=l1.relu\n" +
		"output-node name=output input=l1.dropout\n"

	g := buildGraph(t, text)
	s, err := Run(g)
	require.NoError(t, err)

	assert.Equal(t, 1, s.IdentitiesFolded)
	assert.Equal(t, 1, s.SplicesFormed)
	assert.Equal(t, 1, s.ActivationsFused)
	assert.True(t, s.Changed())

	// input, splice, fused affine, output.
	assert.Equal(t, 4, g.Len())

	id, ok := g.Lookup("l1.relu")
	require.True(t, ok, "fused affine takes the activation's name")
	fused := g.Node(id)
	assert.Equal(t, ir.OpAffine, fused.Kind)
	assert.Equal(t, ir.OpReLU, fused.Activation)

	splice := g.Node(fused.Inputs[0].Node)
	assert.Equal(t, ir.OpSplice, splice.Kind)
	assert.Equal(t, []int{-1, 0, 1}, splice.Context)
	inputID, _ := g.Lookup("input")
	for _, in := range splice.Inputs {
		assert.Equal(t, inputID, in.Node)
	}

	// The output now reads the fused node directly.
	out := g.Node(g.Outputs[0])
	assert.Equal(t, id, out.Inputs[0].Node)
}

func TestRunFusesBatchNorm(t *testing.T) {
	// var + epsilon = 4 gives scale 0.5; mean 2 gives shift -1.
	text := "input-node name=input dim=2\n" +
		affine("l1.affine") +
		"component name=l1.bn type=BatchNormComponent <Dim> 2 <Epsilon> 0.001 " +
		"<TargetRms> 1.0 <StatsMean> [ 2.0 2.0 ] <StatsVar> [ 3.999 3.999 ]\n" +
		"component-node name=l1.affine component=l1.affine input=input\n" +
		"component-node name=l1.bn component=l1.bn input=l1.affine\n" +
		"output-node name=output input=l1.bn\n"

	g := buildGraph(t, text)
	s, err := Run(g)
	require.NoError(t, err)

	assert.Equal(t, 1, s.BatchNormsFused)
	assert.Equal(t, 3, g.Len())

	id, ok := g.Lookup("l1.affine")
	require.True(t, ok)
	aff := g.Node(id)
	require.Equal(t, ir.OpAffine, aff.Kind)

	// W' = 0.5·I, b' = 0.5·0.5 − 1.
	assert.InDelta(t, 0.5, aff.Weights.At(0, 0), 1e-6)
	assert.InDelta(t, 0.0, aff.Weights.At(0, 1), 1e-6)
	assert.InDelta(t, 0.5, aff.Weights.At(1, 1), 1e-6)
	require.NotNil(t, aff.Bias)
	assert.InDelta(t, -0.75, aff.Bias.Data[0], 1e-6)
	assert.InDelta(t, -0.75, aff.Bias.Data[1], 1e-6)
}

func TestRunSkipsSharedAffine(t *testing.T) {
	// The affine feeds both the batchnorm and the output, so folding the
	// batchnorm into it would change the second reader's value.
	text := "input-node name=input dim=2\n" +
		affine("l1.affine") +
		"component name=l1.bn type=BatchNormComponent <Dim> 2 <Epsilon> 0.001 " +
		"<TargetRms> 1.0 <StatsMean> [ 0.0 0.0 ] <StatsVar> [ 0.999 0.999 ]\n" +
		"component-node name=l1.affine component=l1.affine input=input\n" +
		"component-node name=l1.bn component=l1.bn input=l1.affine\n" +
		"output-node name=output input=Sum(l1.bn, l1.affine)\n"

	g := buildGraph(t, text)
	s, err := Run(g)
	require.NoError(t, err)
	assert.Equal(t, 0, s.BatchNormsFused)

	id, _ := g.Lookup("l1.bn")
	assert.Equal(t, ir.OpBatchNorm, g.Node(id).Kind)
}

func TestRunMergesOffsetChains(t *testing.T) {
	text := "input-node name=input dim=2\n" +
		"output-node name=output input=Offset(Offset(input, -1), -2)\n"

	g := buildGraph(t, text)
	s, err := Run(g)
	require.NoError(t, err)

	assert.Equal(t, 1, s.OffsetsMerged)
	assert.Equal(t, 1, s.NodesEliminated, "inner shift is unreachable after the merge")
	assert.Equal(t, 3, g.Len())

	out := g.Node(g.Outputs[0])
	off := g.Node(out.Inputs[0].Node)
	require.Equal(t, ir.OpOffset, off.Kind)
	inputID, _ := g.Lookup("input")
	assert.Equal(t, ir.Input{Node: inputID, Offset: -3}, off.Inputs[0])
}

func TestRunIdempotent(t *testing.T) {
	g := buildGraph(t, "input-node name=input dim=2\n"+
		"component name=l1.affine type=AffineComponent <LinearParams> [\n"+
		"1 0 0 0\n0 1 0 0\n]\n<BiasParams> [ 0 0 ]\n"+
		"component name=l1.relu type=RectifiedLinearComponent <Dim> 2\n"+
		"component-node name=l1.affine component=l1.affine input=Append(Offset(input, -1), input)\n"+
		"component-node name=l1.relu component=l1.relu input=l1.affine\n"+
		"output-node name=output input=l1.relu\n")

	first, err := Run(g)
	require.NoError(t, err)
	assert.True(t, first.Changed())

	second, err := Run(g)
	require.NoError(t, err)
	assert.False(t, second.Changed(), "second run must find nothing to do")
}

func TestRunKeepsTopologicalOrder(t *testing.T) {
	text := "input-node name=input dim=2\n" +
		affine("a") + affine("b") +
		"component-node name=a component=a input=Offset(input, -2)\n" +
		"component-node name=b component=b input=Sum(a, Offset(input, 2))\n" +
		"output-node name=output input=b\n"

	g := buildGraph(t, text)
	_, err := Run(g)
	require.NoError(t, err)

	require.Len(t, g.Order, g.Len())
	pos := make(map[ir.NodeID]int)
	for i, id := range g.Order {
		pos[id] = i
	}
	for _, id := range g.IDs() {
		for _, in := range g.Node(id).Inputs {
			assert.Less(t, pos[in.Node], pos[id])
		}
	}
}
