package nnet3

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

func parseOneComponent(t *testing.T, text string) *Component {
	t.Helper()
	full := "input-node name=input dim=2\n" + text + "\noutput-node name=output input=input\n"
	net, err := Parse(full)
	require.NoError(t, err)
	require.Len(t, net.Components, 1)
	for _, c := range net.Components {
		return c
	}
	return nil
}

func TestBatchNormComponentAdjust(t *testing.T) {
	c := parseOneComponent(t,
		"component name=bn type=BatchNormComponent <Dim> 2 <Epsilon> 0.001 <TargetRms> 1.0 "+
			"<StatsMean> [ 1.0 2.0 ] <StatsVar> [ 3.0 0.999 ]")

	require.Equal(t, ir.OpBatchNorm, c.Kind)
	assert.Equal(t, 2, c.Dim)
	require.NotNil(t, c.Scale)
	require.NotNil(t, c.Shift)

	// scale = target_rms·(var+ε)^(−1/2), shift = −scale·mean.
	wantScale0 := 1.0 / math.Sqrt(3.001)
	assert.InDelta(t, wantScale0, float64(c.Scale.Data[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(c.Scale.Data[1]), 1e-6)
	assert.InDelta(t, -wantScale0, float64(c.Shift.Data[0]), 1e-6)
	assert.InDelta(t, -2.0, float64(c.Shift.Data[1]), 1e-6)
}

func TestBatchNormDefaultTargetRms(t *testing.T) {
	c := parseOneComponent(t,
		"component name=bn type=BatchNormComponent <StatsMean> [ 0.0 ] <StatsVar> [ 1.0 ]")

	assert.Equal(t, 1.0, c.TargetRMS)
	assert.Equal(t, 1, c.Dim)
}

func TestTdnnComponent(t *testing.T) {
	c := parseOneComponent(t,
		"component name=tdnn type=TdnnComponent <TimeOffsets> [ -1 0 1 ] "+
			"<LinearParams> [ 1 2 3 4 5 6 ]\n<BiasParams> [ ]")

	require.Equal(t, ir.OpAffine, c.Kind)
	assert.True(t, c.IsTdnn())
	assert.Equal(t, []int{-1, 0, 1}, c.TimeOffsets)
	assert.Equal(t, 1, c.OutputDim)
	assert.Equal(t, 6, c.InputDim)
	// Empty <BiasParams> means no bias.
	assert.Nil(t, c.Bias)
}

func TestUnsupportedComponentTypeParsesWithoutKind(t *testing.T) {
	c := parseOneComponent(t,
		"component name=lstm type=LstmNonlinearityComponent <Dim> 8 <SomeParams> [ 1 2 3 ]")

	assert.Equal(t, ir.OpKind(""), c.Kind)
	assert.Equal(t, "LstmNonlinearityComponent", c.Type)
	assert.Equal(t, 8, c.Dim)
}

func TestUnknownTagsAreSkipped(t *testing.T) {
	c := parseOneComponent(t,
		"component name=relu type=RectifiedLinearComponent <Dim> 4 "+
			"<ValueAvg> [ 0.1 0.2 0.3 0.4 ] <DerivAvg> [ 1 1 1 1 ] <Count> 1000.5")

	assert.Equal(t, ir.OpReLU, c.Kind)
	assert.Equal(t, 4, c.Dim)
}

func TestAffineWithoutWeightsFails(t *testing.T) {
	text := "input-node name=input dim=2\ncomponent name=a type=AffineComponent <Dim> 4\n"
	_, err := Parse(text)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Message, "no weight matrix")
}
