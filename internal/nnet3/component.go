package nnet3

import (
	"math"
	"strconv"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

// Component is one named, typed, immutable component declaration. Kind is
// the IR operator the component lowers to; it is empty for component types
// outside the supported table, which only fail once a component-node
// references them.
type Component struct {
	Name string
	Type string
	Kind ir.OpKind
	Line int

	Dim       int
	InputDim  int
	OutputDim int

	// Weights is [out][in] exactly as written in the model text; emitters
	// transpose at serialization time. A nil Bias means the component
	// declared none (an empty <BiasParams> vector).
	Weights *ir.Tensor
	Bias    *ir.Tensor

	Epsilon   float64
	TargetRMS float64
	StatsMean *ir.Tensor
	StatsVar  *ir.Tensor

	// Scale and Shift are the precomputed batchnorm vectors:
	// scale = target_rms·(var+ε)^(−1/2), shift = −scale·mean.
	Scale *ir.Tensor
	Shift *ir.Tensor

	// TimeOffsets is the splice context of a TdnnComponent, e.g. [-1, 0, 1].
	TimeOffsets []int
}

// componentKinds is the closed table of supported component types. Any
// other type= value yields an UnknownComponentError when referenced.
var componentKinds = map[string]ir.OpKind{
	"GeneralDropoutComponent":        ir.OpIdentity,
	"NoOpComponent":                  ir.OpIdentity,
	"RectifiedLinearComponent":       ir.OpReLU,
	"LogSoftmaxComponent":            ir.OpLogSoftmax,
	"AffineComponent":                ir.OpAffine,
	"FixedAffineComponent":           ir.OpAffine,
	"LinearComponent":                ir.OpAffine,
	"NaturalGradientAffineComponent": ir.OpAffine,
	"BatchNormComponent":             ir.OpBatchNorm,
	"TdnnComponent":                  ir.OpAffine,
}

// IsTdnn reports whether the component splices its input over TimeOffsets
// before the affine transform.
func (c *Component) IsTdnn() bool {
	return c.Type == "TdnnComponent"
}

// paramAction reads one <Tag> value into the component.
type paramAction func(c *Component, ts *tokenStream, d *declaration) error

// paramActions returns the tag table for a component type. Tags not in the
// table are skipped along with their scalar values; bracketed values of
// unknown tags are likewise consumed token by token without effect.
func paramActions(typ string) map[string]paramAction {
	switch componentKinds[typ] {
	case ir.OpAffine:
		if typ == "TdnnComponent" {
			return map[string]paramAction{
				"<TimeOffsets>":  readIntVectorInto(func(c *Component, v []int) { c.TimeOffsets = v }),
				"<LinearParams>": readMatrixInto(func(c *Component, t *ir.Tensor) { c.Weights = t }),
				"<BiasParams>":   readVectorInto(func(c *Component, t *ir.Tensor) { c.Bias = t }),
			}
		}
		return map[string]paramAction{
			"<Params>":       readMatrixInto(func(c *Component, t *ir.Tensor) { c.Weights = t }),
			"<LinearParams>": readMatrixInto(func(c *Component, t *ir.Tensor) { c.Weights = t }),
			"<BiasParams>":   readVectorInto(func(c *Component, t *ir.Tensor) { c.Bias = t }),
		}
	case ir.OpBatchNorm:
		return map[string]paramAction{
			"<Dim>":       readIntInto(func(c *Component, v int) { c.Dim = v }),
			"<Epsilon>":   readFloatInto(func(c *Component, v float64) { c.Epsilon = v }),
			"<TargetRms>": readFloatInto(func(c *Component, v float64) { c.TargetRMS = v }),
			"<StatsMean>": readVectorInto(func(c *Component, t *ir.Tensor) { c.StatsMean = t }),
			"<StatsVar>":  readVectorInto(func(c *Component, t *ir.Tensor) { c.StatsVar = t }),
		}
	default:
		return map[string]paramAction{
			"<Dim>":       readIntInto(func(c *Component, v int) { c.Dim = v }),
			"<InputDim>":  readIntInto(func(c *Component, v int) { c.InputDim = v }),
			"<OutputDim>": readIntInto(func(c *Component, v int) { c.OutputDim = v }),
		}
	}
}

// readParams consumes the <Tag> parameter tokens of a component declaration
// and fills the component. Called after the key=value attributes.
func readParams(c *Component, ts *tokenStream, d *declaration) error {
	actions := paramActions(c.Type)

	for {
		tok, ok := ts.next()
		if !ok {
			break
		}
		action, known := actions[tok.text]
		if !known {
			continue // unknown tag or its scalar value
		}
		if err := action(c, ts, d); err != nil {
			return err
		}
	}

	return adjustComponent(c, d)
}

// adjustComponent derives fields that follow from the raw parameters:
// affine dims from the weight matrix and the batchnorm scale/shift pair.
func adjustComponent(c *Component, d *declaration) error {
	switch c.Kind {
	case ir.OpAffine:
		if c.Weights == nil {
			return &ParseError{Line: d.line, Content: d.content, Message: "affine component has no weight matrix"}
		}
		c.OutputDim = c.Weights.Rows()
		c.InputDim = c.Weights.Cols()
		if c.Bias != nil && c.Bias.Len() == 0 {
			// Some components carry a <BiasParams> tag with an empty vector.
			c.Bias = nil
		}
	case ir.OpBatchNorm:
		if c.StatsMean == nil || c.StatsVar == nil {
			return &ParseError{Line: d.line, Content: d.content, Message: "batchnorm component missing stats"}
		}
		if c.StatsMean.Len() != c.StatsVar.Len() {
			return &ParseError{Line: d.line, Content: d.content, Message: "batchnorm stats dimensions disagree"}
		}
		if c.TargetRMS == 0 {
			c.TargetRMS = 1.0
		}
		n := c.StatsMean.Len()
		scale := make([]float32, n)
		shift := make([]float32, n)
		for i := 0; i < n; i++ {
			s := c.TargetRMS * math.Pow(float64(c.StatsVar.Data[i])+c.Epsilon, -0.5)
			scale[i] = float32(s)
			shift[i] = float32(-s * float64(c.StatsMean.Data[i]))
		}
		c.Scale = ir.NewVector(scale)
		c.Shift = ir.NewVector(shift)
		if c.Dim == 0 {
			c.Dim = n
		}
	}
	return nil
}

func readIntInto(set func(*Component, int)) paramAction {
	return func(c *Component, ts *tokenStream, d *declaration) error {
		tok, ok := ts.next()
		if !ok {
			return &ParseError{Line: d.line, Content: d.content, Message: "expected integer, got end of declaration"}
		}
		v, err := strconv.Atoi(tok.text)
		if err != nil {
			return &ParseError{Line: tok.line, Content: d.content, Message: "expected integer, got " + strconv.Quote(tok.text)}
		}
		set(c, v)
		return nil
	}
}

func readFloatInto(set func(*Component, float64)) paramAction {
	return func(c *Component, ts *tokenStream, d *declaration) error {
		tok, ok := ts.next()
		if !ok {
			return &ParseError{Line: d.line, Content: d.content, Message: "expected number, got end of declaration"}
		}
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return &ParseError{Line: tok.line, Content: d.content, Message: "expected number, got " + strconv.Quote(tok.text)}
		}
		set(c, v)
		return nil
	}
}

// readRawVector consumes "[ v1 v2 ... ]", possibly spanning lines.
func readRawVector(ts *tokenStream, d *declaration) ([]token, error) {
	tok, ok := ts.next()
	if !ok || tok.text != "[" {
		return nil, &ParseError{Line: d.line, Content: d.content, Message: "expected [ to open vector"}
	}
	var vals []token
	for {
		tok, ok := ts.next()
		if !ok {
			return nil, &ParseError{Line: d.line, Content: d.content, Message: "unterminated vector"}
		}
		if tok.text == "]" {
			return vals, nil
		}
		vals = append(vals, tok)
	}
}

func readVectorInto(set func(*Component, *ir.Tensor)) paramAction {
	return func(c *Component, ts *tokenStream, d *declaration) error {
		raw, err := readRawVector(ts, d)
		if err != nil {
			return err
		}
		vals := make([]float32, len(raw))
		for i, tok := range raw {
			v, err := strconv.ParseFloat(tok.text, 32)
			if err != nil {
				return &ParseError{Line: tok.line, Content: d.content, Message: "bad vector value " + strconv.Quote(tok.text)}
			}
			vals[i] = float32(v)
		}
		set(c, ir.NewVector(vals))
		return nil
	}
}

func readIntVectorInto(set func(*Component, []int)) paramAction {
	return func(c *Component, ts *tokenStream, d *declaration) error {
		raw, err := readRawVector(ts, d)
		if err != nil {
			return err
		}
		vals := make([]int, len(raw))
		for i, tok := range raw {
			v, err := strconv.Atoi(tok.text)
			if err != nil {
				return &ParseError{Line: tok.line, Content: d.content, Message: "bad offset value " + strconv.Quote(tok.text)}
			}
			vals[i] = v
		}
		set(c, vals)
		return nil
	}
}

// readMatrixInto consumes "[ row ... \n row ... ]". Each row ends at a line
// break; the matrix closes at ]. The tensor keeps the [out][in] layout of
// the model text.
func readMatrixInto(set func(*Component, *ir.Tensor)) paramAction {
	return func(c *Component, ts *tokenStream, d *declaration) error {
		tok, ok := ts.next()
		if !ok || tok.text != "[" {
			return &ParseError{Line: d.line, Content: d.content, Message: "expected [ to open matrix"}
		}

		var data []float32
		rows, rowLen, curLine := 0, -1, -1
		rowCount := 0
		for {
			tok, ok := ts.next()
			if !ok {
				return &ParseError{Line: d.line, Content: d.content, Message: "unterminated matrix"}
			}
			if tok.text == "]" {
				break
			}
			v, err := strconv.ParseFloat(tok.text, 32)
			if err != nil {
				return &ParseError{Line: tok.line, Content: d.content, Message: "bad matrix value " + strconv.Quote(tok.text)}
			}
			if tok.line != curLine {
				if rowCount > 0 {
					if rowLen == -1 {
						rowLen = rowCount
					} else if rowCount != rowLen {
						return &ParseError{Line: tok.line, Content: d.content, Message: "ragged matrix row"}
					}
					rows++
				}
				curLine = tok.line
				rowCount = 0
			}
			data = append(data, float32(v))
			rowCount++
		}
		if rowCount > 0 {
			if rowLen == -1 {
				rowLen = rowCount
			} else if rowCount != rowLen {
				return &ParseError{Line: d.line, Content: d.content, Message: "ragged matrix row"}
			}
			rows++
		}
		if rows == 0 {
			return &ParseError{Line: d.line, Content: d.content, Message: "empty matrix"}
		}
		set(c, ir.NewMatrix(rows, rowLen, data))
		return nil
	}
}
