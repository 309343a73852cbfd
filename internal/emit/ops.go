package emit

import (
	"strconv"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

func (l *lowering) lowerNode(n *ir.Node) error {
	switch n.Kind {
	case ir.OpInput:
		l.lowerInput(n)
	case ir.OpOutput:
		l.lowerOutput(n)
	case ir.OpAffine:
		l.lowerAffine(n)
	case ir.OpBatchNorm:
		l.lowerBatchNorm(n)
	case ir.OpReLU:
		l.lowerUnary(n, "Relu", "Relu")
	case ir.OpLogSoftmax:
		l.lowerLogSoftmax(n.Name, l.edge(n, n.Inputs[0], "/slice"))
		l.ref[n.ID] = n.Name
	case ir.OpSum:
		l.lowerSum(n)
	case ir.OpScale:
		l.lowerScale(n)
	case ir.OpAppend, ir.OpSplice:
		l.lowerConcat(n)
	case ir.OpOffset, ir.OpIdentity:
		l.ref[n.ID] = l.edge(n, n.Inputs[0], "")
	case ir.OpIfDefined:
		l.lowerIfDefined(n)
	case ir.OpReplaceIndex:
		l.lowerReplaceIndex(n)
	case ir.OpDimRange:
		l.lowerDimRange(n)
	default:
		return &UnsupportedOpError{Node: n.Name, Op: string(n.Kind), Target: l.opts.Target}
	}
	return nil
}

func (l *lowering) lowerInput(n *ir.Node) {
	l.tg.Inputs = append(l.tg.Inputs, ValueInfo{
		Name: n.Name,
		Dims: []Dim{{Value: 1}, l.timeDim(n), {Value: int64(n.Dim)}},
	})
	if l.tf() {
		dims := []int64{1, -1, int64(n.Dim)}
		if rows := l.frames(n); rows > 0 {
			dims[timeAxis] = rows
		}
		l.tg.addNode(Node{
			Name:  n.Name,
			Op:    "Placeholder",
			Attrs: []Attr{typeAttr("dtype", Float), shapeAttr("shape", dims)},
		})
	}
	l.ref[n.ID] = n.Name
}

func (l *lowering) lowerOutput(n *ir.Node) {
	src := l.edge(n, n.Inputs[0], "/slice")
	if l.tf() {
		l.tg.addNode(Node{
			Name:   n.Name,
			Op:     "Identity",
			Inputs: []string{src},
			Attrs:  []Attr{typeAttr("T", Float)},
		})
	} else {
		l.tg.addNode(Node{
			Name:    n.Name,
			Op:      "Identity",
			Inputs:  []string{src},
			Outputs: []string{n.Name},
		})
	}
	l.tg.Outputs = append(l.tg.Outputs, ValueInfo{
		Name: n.Name,
		Dims: []Dim{{Value: 1}, l.timeDim(n), {Value: int64(n.Dim)}},
	})
	l.ref[n.ID] = n.Name
}

// lowerAffine emits the linear transform as a matrix multiply over the
// feature axis plus a broadcast bias add, plus any fused activation.
// Weights are stored [out][in] in the model text and transposed here to
// the [in][out] layout the multiply expects on rank-3 operands.
func (l *lowering) lowerAffine(n *ir.Node) {
	x := l.edge(n, n.Inputs[0], "/slice")
	out := n.Weights.Rows()
	wt := n.Weights.Transposed()
	w := l.tg.addConst(floatTensor(n.Name+"_params", wt.Dims, wt.Data))

	linear := n.Name
	if n.Activation != "" {
		linear = n.Name + "/linear"
	}
	matmul := linear
	if n.Bias != nil {
		matmul = linear + "/matmul"
	}

	if l.tf() {
		l.tg.addNode(Node{
			Name:   matmul,
			Op:     "BatchMatMulV2",
			Inputs: []string{x, w},
			Attrs: []Attr{
				typeAttr("T", Float),
				boolAttr("adj_x", false),
				boolAttr("adj_y", false),
			},
		})
		if n.Bias != nil {
			b := l.tg.addConst(floatTensor(n.Name+"_bias", []int64{int64(out)}, n.Bias.Data))
			l.tg.addNode(Node{
				Name:   linear,
				Op:     "AddV2",
				Inputs: []string{matmul, b},
				Attrs:  []Attr{typeAttr("T", Float)},
			})
		}
	} else {
		l.tg.addNode(Node{
			Name:    matmul,
			Op:      "MatMul",
			Inputs:  []string{x, w},
			Outputs: []string{matmul},
		})
		if n.Bias != nil {
			b := l.tg.addConst(floatTensor(n.Name+"_bias", []int64{int64(out)}, n.Bias.Data))
			l.tg.addNode(Node{
				Name:    linear,
				Op:      "Add",
				Inputs:  []string{matmul, b},
				Outputs: []string{linear},
			})
		}
	}

	switch n.Activation {
	case ir.OpReLU:
		l.unary(n.Name, "Relu", "Relu", linear)
	case ir.OpLogSoftmax:
		l.lowerLogSoftmax(n.Name, linear)
	}
	l.ref[n.ID] = n.Name
}

// lowerBatchNorm emits the precomputed scale and shift as an elementwise
// multiply-add. Only batchnorms the optimizer could not fold reach here.
func (l *lowering) lowerBatchNorm(n *ir.Node) {
	x := l.edge(n, n.Inputs[0], "/slice")
	scale := l.tg.addConst(floatTensor(n.Name+"_scale", []int64{int64(n.BNScale.Len())}, n.BNScale.Data))
	shift := l.tg.addConst(floatTensor(n.Name+"_shift", []int64{int64(n.BNShift.Len())}, n.BNShift.Data))

	mul := n.Name + "/scaled"
	l.binary(mul, "Mul", "Mul", x, scale)
	l.binary(n.Name, "Add", "AddV2", mul, shift)
	l.ref[n.ID] = n.Name
}

func (l *lowering) lowerUnary(n *ir.Node, onnxOp, tfOp string) {
	l.unary(n.Name, onnxOp, tfOp, l.edge(n, n.Inputs[0], "/slice"))
	l.ref[n.ID] = n.Name
}

func (l *lowering) unary(name, onnxOp, tfOp, src string) {
	if l.tf() {
		l.tg.addNode(Node{
			Name:   name,
			Op:     tfOp,
			Inputs: []string{src},
			Attrs:  []Attr{typeAttr("T", Float)},
		})
		return
	}
	l.tg.addNode(Node{
		Name:    name,
		Op:      onnxOp,
		Inputs:  []string{src},
		Outputs: []string{name},
	})
}

func (l *lowering) lowerLogSoftmax(name, src string) {
	if l.tf() {
		l.tg.addNode(Node{
			Name:   name,
			Op:     "LogSoftmax",
			Inputs: []string{src},
			Attrs:  []Attr{typeAttr("T", Float)},
		})
		return
	}
	l.tg.addNode(Node{
		Name:    name,
		Op:      "LogSoftmax",
		Inputs:  []string{src},
		Outputs: []string{name},
		Attrs:   []Attr{intAttr("axis", -1)},
	})
}

func (l *lowering) lowerSum(n *ir.Node) {
	x := l.edge(n, n.Inputs[0], "/slice_0")
	y := l.edge(n, n.Inputs[1], "/slice_1")
	l.binary(n.Name, "Add", "AddV2", x, y)
	l.ref[n.ID] = n.Name
}

func (l *lowering) lowerScale(n *ir.Node) {
	x := l.edge(n, n.Inputs[0], "/slice")
	c := l.tg.addConst(floatTensor(n.Name+"_const", nil, []float32{float32(n.Scale)}))
	l.binary(n.Name, "Mul", "Mul", x, c)
	l.ref[n.ID] = n.Name
}

func (l *lowering) binary(name, onnxOp, tfOp, x, y string) {
	if l.tf() {
		l.tg.addNode(Node{
			Name:   name,
			Op:     tfOp,
			Inputs: []string{x, y},
			Attrs:  []Attr{typeAttr("T", Float)},
		})
		return
	}
	l.tg.addNode(Node{
		Name:    name,
		Op:      onnxOp,
		Inputs:  []string{x, y},
		Outputs: []string{name},
	})
}

// lowerConcat emits the feature-axis concatenation behind append and
// splice nodes. Time-invariant parts are broadcast to the node's row
// count first, since concatenation requires matching off-axis sizes.
func (l *lowering) lowerConcat(n *ir.Node) {
	parts := make([]string, len(n.Inputs))

	// Varying parts first; the first one anchors dynamic broadcasts.
	timeRef := ""
	for i, in := range n.Inputs {
		if l.g.Node(in.Node).TimeInvariant {
			continue
		}
		parts[i] = l.edge(n, in, sliceTag(i))
		if timeRef == "" {
			timeRef = parts[i]
		}
	}
	for i, in := range n.Inputs {
		m := l.g.Node(in.Node)
		if !m.TimeInvariant || n.TimeInvariant {
			if parts[i] == "" {
				parts[i] = l.ref[m.ID]
			}
			continue
		}
		parts[i] = l.broadcast(n.Name+expandTag(i), l.ref[m.ID], m.Dim, l.frames(n), timeRef)
	}

	if l.tf() {
		axis := l.tg.addConst(int32Tensor(n.Name+"/axis", nil, []int32{featureAxis}))
		l.tg.addNode(Node{
			Name:   n.Name,
			Op:     "ConcatV2",
			Inputs: append(parts, axis),
			Attrs: []Attr{
				intAttr("N", int64(len(parts))),
				typeAttr("T", Float),
				typeAttr("Tidx", Int32),
			},
		})
	} else {
		l.tg.addNode(Node{
			Name:    n.Name,
			Op:      "Concat",
			Inputs:  parts,
			Outputs: []string{n.Name},
			Attrs:   []Attr{intAttr("axis", featureAxis)},
		})
	}
	l.ref[n.ID] = n.Name
}

// lowerIfDefined zero-fills whatever part of the demanded window the
// wrapped value does not cover, and slices away any part it covers but
// the window does not demand.
func (l *lowering) lowerIfDefined(n *ir.Node) {
	m := l.g.Node(n.Inputs[0].Node)
	src := l.ref[m.ID]
	if m.TimeInvariant || n.TimeInvariant {
		l.ref[n.ID] = src
		return
	}

	start := n.Window.Lo - m.Window.Lo
	endOff := n.Window.Hi - m.Window.Hi

	// Rows the producer chain never materialized also need zero fill.
	gap := l.missing[m.ID]
	padLo, padHi := gap.lo, gap.hi
	if start < 0 {
		padLo, start = padLo-start, 0
	}
	if endOff > 0 {
		padHi, endOff = padHi+endOff, 0
	}

	name := n.Name
	if padLo > 0 || padHi > 0 {
		name = n.Name + "/defined"
	}
	if start != 0 || endOff != 0 {
		src = l.rowSlice(name, src, start, endOff)
	} else if padLo == 0 && padHi == 0 {
		l.ref[n.ID] = src
		return
	}
	if padLo > 0 || padHi > 0 {
		src = l.pad(n.Name, src, padLo, padHi)
	}
	l.ref[n.ID] = src
}

// lowerReplaceIndex pins the time axis to one absolute frame, leaving a
// single-row tensor downstream broadcasts can consume.
func (l *lowering) lowerReplaceIndex(n *ir.Node) {
	m := l.g.Node(n.Inputs[0].Node)
	if m.TimeInvariant {
		l.ref[n.ID] = l.ref[m.ID]
		return
	}
	row := int64(n.TimeIndex - m.Window.Lo)
	l.ref[n.ID] = l.axisSlice(n.Name, l.ref[m.ID], timeAxis, row, row+1)
}

func (l *lowering) lowerDimRange(n *ir.Node) {
	src := l.edge(n, n.Inputs[0], "/rows")
	l.ref[n.ID] = l.axisSlice(n.Name, src, featureAxis, int64(n.DimOffset), int64(n.DimOffset+n.Dim))
}

func expandTag(i int) string {
	return "/expand_" + strconv.Itoa(i)
}
