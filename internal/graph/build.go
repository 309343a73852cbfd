package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tz301/kaldi-onnx-tf/internal/descriptor"
	"github.com/tz301/kaldi-onnx-tf/internal/ir"
	"github.com/tz301/kaldi-onnx-tf/internal/nnet3"
)

// buildContext carries all mutable construction state. It is created per
// Build call and discarded with it, keeping the pipeline reentrant.
type buildContext struct {
	g   *ir.Graph
	net *nnet3.Network

	// interned maps a resolved sub-expression's content hash to the node
	// that already computes it.
	interned map[string]ir.NodeID
}

// Build merges the parsed network into one IR graph: a node per declared
// component-node/output-node/dim-range-node plus one synthetic node per
// distinct resolved operator instance, topologically ordered.
func Build(net *nnet3.Network) (*ir.Graph, error) {
	bc := &buildContext{
		g:        ir.NewGraph(),
		net:      net,
		interned: make(map[string]ir.NodeID),
	}

	// Declared nodes first, so descriptors can reference forward.
	if err := bc.addDeclared(); err != nil {
		return nil, err
	}
	if err := bc.wireDescriptors(); err != nil {
		return nil, err
	}
	if err := Sort(bc.g); err != nil {
		return nil, err
	}
	if err := bc.inferShapes(); err != nil {
		return nil, err
	}
	return bc.g, nil
}

func (bc *buildContext) addDeclared() error {
	for _, decl := range bc.net.Nodes {
		node := &ir.Node{Name: decl.Name}

		switch decl.Kind {
		case nnet3.NodeInput:
			node.Kind = ir.OpInput
			node.Dim = decl.Dim
			bc.g.Inputs = append(bc.g.Inputs, bc.g.Add(node))
			continue

		case nnet3.NodeOutput:
			node.Kind = ir.OpOutput
			bc.g.Outputs = append(bc.g.Outputs, bc.g.Add(node))
			continue

		case nnet3.NodeDimRange:
			node.Kind = ir.OpDimRange
			node.Dim = decl.Dim
			node.DimOffset = decl.DimOffset

		case nnet3.NodeComponent:
			comp, ok := bc.net.Components[decl.Component]
			if !ok {
				return &nnet3.ParseError{
					Line:    decl.Line,
					Content: decl.Name,
					Message: "component-node references undefined component " + strconv.Quote(decl.Component),
				}
			}
			if comp.Kind == "" {
				return &nnet3.UnknownComponentError{
					Node:      decl.Name,
					Component: comp.Name,
					Type:      comp.Type,
				}
			}
			node.Kind = comp.Kind
			switch comp.Kind {
			case ir.OpAffine:
				node.Weights = comp.Weights
				node.Bias = comp.Bias
				node.Dim = comp.OutputDim
			case ir.OpBatchNorm:
				node.BNScale = comp.Scale
				node.BNShift = comp.Shift
				node.Dim = comp.Dim
			default:
				node.Dim = comp.Dim
			}
		}

		bc.g.Add(node)
	}
	return nil
}

// wireDescriptors resolves each declared node's input expression and
// connects the resulting producer.
func (bc *buildContext) wireDescriptors() error {
	for _, decl := range bc.net.Nodes {
		if decl.Descriptor == "" {
			continue
		}
		id, _ := bc.g.Lookup(decl.Name)
		node := bc.g.Node(id)

		d, err := descriptor.Parse(decl.Descriptor)
		if err != nil {
			return &nnet3.ParseError{Line: decl.Line, Content: decl.Descriptor, Message: err.Error()}
		}

		src, err := bc.resolve(d, decl)
		if err != nil {
			return err
		}

		// A TdnnComponent splices its input over the declared time offsets
		// before the affine transform.
		if decl.Kind == nnet3.NodeComponent {
			if comp := bc.net.Components[decl.Component]; comp.IsTdnn() {
				src = bc.spliceOver(src, comp.TimeOffsets)
			}
		}

		node.Inputs = []ir.Input{{Node: src}}
	}
	return nil
}

// resolve expands a descriptor tree into synthetic nodes, returning the
// node that computes the expression. Structurally identical sub-expressions
// (same operator over the same resolved producers) share one node.
func (bc *buildContext) resolve(d descriptor.Descriptor, decl *nnet3.Node) (ir.NodeID, error) {
	switch v := d.(type) {
	case descriptor.Ref:
		id, ok := bc.g.Lookup(v.Name)
		if !ok {
			return 0, &nnet3.ParseError{
				Line:    decl.Line,
				Content: decl.Descriptor,
				Message: "descriptor references undefined node " + strconv.Quote(v.Name),
			}
		}
		return id, nil

	case descriptor.Offset:
		x, err := bc.resolve(v.X, decl)
		if err != nil {
			return 0, err
		}
		return bc.intern("offset", []ir.NodeID{x}, strconv.Itoa(v.T), func() *ir.Node {
			return &ir.Node{
				Kind:   ir.OpOffset,
				Name:   fmt.Sprintf("%s.offset.%d", bc.g.Node(x).Name, v.T),
				Inputs: []ir.Input{{Node: x, Offset: v.T}},
				Offset: v.T,
			}
		}), nil

	case descriptor.Append:
		ids := make([]ir.NodeID, len(v.Parts))
		for i, p := range v.Parts {
			id, err := bc.resolve(p, decl)
			if err != nil {
				return 0, err
			}
			ids[i] = id
		}
		return bc.intern("append", ids, "", func() *ir.Node {
			inputs := make([]ir.Input, len(ids))
			for i, id := range ids {
				inputs[i] = ir.Input{Node: id}
			}
			// Named after its own id, assigned on Add.
			return &ir.Node{Kind: ir.OpAppend, Inputs: inputs}
		}), nil

	case descriptor.Sum:
		x, err := bc.resolve(v.X, decl)
		if err != nil {
			return 0, err
		}
		y, err := bc.resolve(v.Y, decl)
		if err != nil {
			return 0, err
		}
		return bc.intern("sum", []ir.NodeID{x, y}, "", func() *ir.Node {
			return &ir.Node{
				Kind:   ir.OpSum,
				Name:   bc.g.Node(x).Name + ".sum." + bc.g.Node(y).Name,
				Inputs: []ir.Input{{Node: x}, {Node: y}},
			}
		}), nil

	case descriptor.IfDefined:
		x, err := bc.resolve(v.X, decl)
		if err != nil {
			return 0, err
		}
		return bc.intern("if_defined", []ir.NodeID{x}, "", func() *ir.Node {
			return &ir.Node{
				Kind:   ir.OpIfDefined,
				Name:   bc.g.Node(x).Name + ".IfDefined",
				Inputs: []ir.Input{{Node: x}},
			}
		}), nil

	case descriptor.ReplaceIndex:
		x, err := bc.resolve(v.X, decl)
		if err != nil {
			return 0, err
		}
		return bc.intern("replace_index", []ir.NodeID{x}, v.Var+strconv.Itoa(v.T), func() *ir.Node {
			return &ir.Node{
				Kind:          ir.OpReplaceIndex,
				Name:          fmt.Sprintf("%s.ReplaceIndex.%s%d", bc.g.Node(x).Name, v.Var, v.T),
				Inputs:        []ir.Input{{Node: x}},
				TimeVar:       v.Var,
				TimeIndex:     v.T,
				TimeInvariant: true,
			}
		}), nil

	case descriptor.Scale:
		x, err := bc.resolve(v.X, decl)
		if err != nil {
			return 0, err
		}
		c := descriptor.FormatScale(v.C)
		return bc.intern("scale", []ir.NodeID{x}, c, func() *ir.Node {
			return &ir.Node{
				Kind:   ir.OpScale,
				Name:   bc.g.Node(x).Name + ".scale." + c,
				Inputs: []ir.Input{{Node: x}},
				Scale:  v.C,
			}
		}), nil
	}

	return 0, &nnet3.ParseError{Line: decl.Line, Content: decl.Descriptor, Message: "unresolvable descriptor"}
}

// spliceOver wraps a producer in a splice node concatenating the given
// time offsets, shared with any identical splice already built.
func (bc *buildContext) spliceOver(src ir.NodeID, offsets []int) ir.NodeID {
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = strconv.Itoa(o)
	}
	return bc.intern("splice", []ir.NodeID{src}, strings.Join(parts, ","), func() *ir.Node {
		inputs := make([]ir.Input, len(offsets))
		for i, o := range offsets {
			inputs[i] = ir.Input{Node: src, Offset: o}
		}
		return &ir.Node{Kind: ir.OpSplice, Inputs: inputs, Context: offsets}
	})
}

// intern returns the node already computing (op, producers, param), or
// adds the one build creates. Synthetic nodes whose naming scheme embeds
// their own id (append_N, splice_N) are renamed after Add.
func (bc *buildContext) intern(op string, producers []ir.NodeID, param string, build func() *ir.Node) ir.NodeID {
	ids := make(ir.IRArray, len(producers))
	for i, p := range producers {
		ids[i] = ir.IRInt(int64(p))
	}
	key := ir.MustDescriptorKey(ir.IRObject{
		"op":        ir.IRString(op),
		"producers": ids,
		"param":     ir.IRString(param),
	})
	if id, ok := bc.interned[key]; ok {
		return id
	}

	n := build()
	id := bc.g.Add(n)
	switch n.Kind {
	case ir.OpAppend:
		bc.g.Rename(id, fmt.Sprintf("append_%d", id))
	case ir.OpSplice:
		bc.g.Rename(id, fmt.Sprintf("splice_%d", id))
	}
	bc.interned[key] = id
	return id
}

// inferShapes fills each node's feature dimension in topological order and
// validates the shape constraints the text model implies.
func (bc *buildContext) inferShapes() error {
	for _, id := range bc.g.Order {
		n := bc.g.Node(id)
		if err := bc.shapeOf(n); err != nil {
			return err
		}

		// Time invariance spreads downstream: anything computed solely
		// from pinned-index values is itself constant along the time axis.
		if !n.TimeInvariant && len(n.Inputs) > 0 {
			inv := true
			for _, in := range n.Inputs {
				if !bc.g.Node(in.Node).TimeInvariant {
					inv = false
					break
				}
			}
			n.TimeInvariant = inv
		}
	}
	return nil
}

func (bc *buildContext) shapeOf(n *ir.Node) error {
	inDim := func(i int) int { return bc.g.Node(n.Inputs[i].Node).Dim }

	switch n.Kind {
	case ir.OpInput:
		// Declared.

	case ir.OpAffine:
		if got := inDim(0); got != n.Weights.Cols() {
			return shapeError(n, fmt.Sprintf("affine expects input dim %d, got %d", n.Weights.Cols(), got))
		}

	case ir.OpBatchNorm:
		if n.Dim == 0 {
			n.Dim = inDim(0)
		}
		if got := inDim(0); got != n.BNScale.Len() {
			return shapeError(n, fmt.Sprintf("batchnorm expects input dim %d, got %d", n.BNScale.Len(), got))
		}

	case ir.OpAppend, ir.OpSplice:
		dim := 0
		for i := range n.Inputs {
			dim += inDim(i)
		}
		n.Dim = dim

	case ir.OpSum:
		if inDim(0) != inDim(1) {
			return shapeError(n, fmt.Sprintf("sum inputs disagree: %d vs %d", inDim(0), inDim(1)))
		}
		n.Dim = inDim(0)

	case ir.OpDimRange:
		if n.DimOffset+n.Dim > inDim(0) {
			return shapeError(n, fmt.Sprintf("dim range [%d, %d) exceeds input dim %d", n.DimOffset, n.DimOffset+n.Dim, inDim(0)))
		}

	default:
		// Offset, Scale, IfDefined, ReplaceIndex, Identity, ReLU,
		// LogSoftmax, Output: dimension passes through.
		if n.Dim == 0 {
			n.Dim = inDim(0)
		} else if n.Dim != inDim(0) {
			return shapeError(n, fmt.Sprintf("declared dim %d disagrees with input dim %d", n.Dim, inDim(0)))
		}
	}
	return nil
}

func shapeError(n *ir.Node, msg string) error {
	return &nnet3.ParseError{Content: n.Name, Message: msg}
}
