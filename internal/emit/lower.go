package emit

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

// Options configures one lowering.
type Options struct {
	Target Target

	// Length is the utterance length in output frames. Zero means the
	// time axis stays symbolic and the emitted graph accepts any length.
	Length int

	// Opset is the ONNX opset to declare; zero means DefaultOpset. The
	// TensorFlow encoder ignores it.
	Opset int64

	// ChunkSize, when positive, is recorded in the container metadata so
	// runtimes chunk the same way the plan was computed.
	ChunkSize int

	// Producer and Version identify the tool in the container metadata.
	Producer string
	Version  string

	// ModelDigest is the content hash of the source model text, recorded
	// in the metadata so artifacts trace back to their input.
	ModelDigest string
}

// DefaultOpset is the ONNX opset emitted when none is configured.
const DefaultOpset = 13

// Build lowers an optimized, analyzed graph to a TargetGraph.
func Build(g *ir.Graph, opts Options) (*TargetGraph, error) {
	if opts.Opset == 0 {
		opts.Opset = DefaultOpset
	}
	l := &lowering{
		g:    g,
		opts: opts,
		tg: &TargetGraph{
			Name:     "kaldi",
			Target:   opts.Target,
			Opset:    opts.Opset,
			Producer: opts.Producer,
			Version:  opts.Version,
			Metadata: map[string]string{
				"left_context":  strconv.Itoa(g.Context.Left),
				"right_context": strconv.Itoa(g.Context.Right),
				"model_digest":  opts.ModelDigest,
			},
		},
		ref:     make(map[ir.NodeID]string, g.Len()),
		missing: make(map[ir.NodeID]shortfall),
	}
	if opts.ChunkSize > 0 {
		l.tg.Metadata["chunk_size"] = strconv.Itoa(opts.ChunkSize)
	}
	for _, id := range g.Order {
		if err := l.lowerNode(g.Node(id)); err != nil {
			return nil, err
		}
	}
	return l.tg, nil
}

type lowering struct {
	g    *ir.Graph
	opts Options
	tg   *TargetGraph

	// ref maps an IR node to the name of the tensor holding its value.
	// Pass-through nodes alias their producer instead of emitting an op.
	ref map[ir.NodeID]string

	// missing records rows a node could not materialize because its
	// reads fell outside the producer's coverage. That only happens on
	// the undemanded side of an IfDefined, which zero-fills the gap.
	missing map[ir.NodeID]shortfall
}

// shortfall counts unmaterialized rows at each end of a tensor.
type shortfall struct {
	lo, hi int
}

func (l *lowering) tf() bool { return l.opts.Target == TargetTF }

// frames is the number of rows a node's tensor holds, or 0 when the
// time axis is symbolic. Time-invariant values always hold one row.
func (l *lowering) frames(n *ir.Node) int64 {
	if n.TimeInvariant {
		return 1
	}
	if l.opts.Length == 0 {
		return 0
	}
	return int64(l.opts.Length + n.Window.Span())
}

// rowRange gives the producer-tensor row range a consumer reading at
// frame offset k needs: an absolute start row and an end offset relative
// to the producer's last row (zero meaning "through the end").
func rowRange(consumer, producer ir.Window, k int) (start, endOff int) {
	return consumer.Lo + k - producer.Lo, consumer.Hi + k - producer.Hi
}

// edge returns the tensor carrying producer m's rows as consumer n reads
// them at offset k, inserting a row slice when the ranges differ. Both
// time-invariant endpoints, and broadcast-compatible reads of an
// invariant producer, pass through untouched.
func (l *lowering) edge(n *ir.Node, in ir.Input, tag string) string {
	m := l.g.Node(in.Node)
	src := l.ref[m.ID]
	if m.TimeInvariant {
		return src
	}
	start, endOff := rowRange(n.Window, m.Window, in.Offset)
	if n.TimeInvariant {
		// An invariant consumer other than ReplaceIndex never reads a
		// varying producer; ReplaceIndex slices explicitly.
		return src
	}

	// Reads past the producer's coverage clamp to what exists; the gap
	// is recorded and zero-filled by the enclosing IfDefined.
	gap := l.missing[m.ID]
	if start < 0 {
		gap.lo, start = gap.lo-start, 0
	}
	if endOff > 0 {
		gap.hi, endOff = gap.hi+endOff, 0
	}
	if gap != (shortfall{}) {
		l.missing[n.ID] = gap
	}

	if start == 0 && endOff == 0 {
		return src
	}
	return l.rowSlice(n.Name+tag, src, start, endOff)
}

// Lowered tensors are rank 3: (batch, time, feature). The batch axis is
// a fixed 1; runtimes that batch utterances re-trace the graph.
const (
	batchAxis   = 0
	timeAxis    = 1
	featureAxis = 2
)

// rowSlice emits a slice over the time axis: rows [start, len+endOff).
func (l *lowering) rowSlice(name, src string, start, endOff int) string {
	return l.axisSlice(name, src, timeAxis, int64(start), sliceEnd(endOff))
}

// sliceEnd maps an end offset to the container convention: negative
// offsets index from the end, zero means "everything".
func sliceEnd(endOff int) int64 {
	if endOff == 0 {
		return math.MaxInt64
	}
	return int64(endOff)
}

// axisSlice emits a single-axis slice [start, end) named name. end may
// be negative (from the end) or MaxInt64 (through the end).
func (l *lowering) axisSlice(name, src string, axis int, start, end int64) string {
	if l.tf() {
		// StridedSlice over all three axes; the mask bits keep the
		// untouched axes full regardless of the begin/end values there.
		begin := []int32{0, 0, 0}
		stop := []int32{0, 0, 0}
		begin[axis] = int32(start)
		mask := int32(0b111 &^ (1 << axis))
		endMask := mask
		if end == math.MaxInt64 {
			endMask |= 1 << axis
		} else {
			stop[axis] = int32(end)
		}
		b := l.tg.addConst(int32Tensor(name+"/begin", []int64{3}, begin))
		e := l.tg.addConst(int32Tensor(name+"/end", []int64{3}, stop))
		s := l.tg.addConst(int32Tensor(name+"/strides", []int64{3}, []int32{1, 1, 1}))
		l.tg.addNode(Node{
			Name:   name,
			Op:     "StridedSlice",
			Inputs: []string{src, b, e, s},
			Attrs: []Attr{
				typeAttr("T", Float),
				typeAttr("Index", Int32),
				intAttr("begin_mask", int64(mask)),
				intAttr("end_mask", int64(endMask)),
			},
		})
		return name
	}

	starts := l.tg.addConst(int64Tensor(name+"/starts", []int64{start}))
	ends := l.tg.addConst(int64Tensor(name+"/ends", []int64{end}))
	axes := l.tg.addConst(int64Tensor(name+"/axes", []int64{int64(axis)}))
	l.tg.addNode(Node{
		Name:    name,
		Op:      "Slice",
		Inputs:  []string{src, starts, ends, axes},
		Outputs: []string{name},
	})
	return name
}

// pad emits zero padding of the time axis: lo rows before, hi rows
// after.
func (l *lowering) pad(name, src string, lo, hi int) string {
	if l.tf() {
		p := l.tg.addConst(int32Tensor(name+"/paddings", []int64{3, 2},
			[]int32{0, 0, int32(lo), int32(hi), 0, 0}))
		l.tg.addNode(Node{
			Name:   name,
			Op:     "Pad",
			Inputs: []string{src, p},
			Attrs:  []Attr{typeAttr("T", Float), typeAttr("Tpaddings", Int32)},
		})
		return name
	}

	pads := l.tg.addConst(int64Tensor(name+"/pads", []int64{0, int64(lo), 0, 0, int64(hi), 0}))
	l.tg.addNode(Node{
		Name:    name,
		Op:      "Pad",
		Inputs:  []string{src, pads},
		Outputs: []string{name},
	})
	return name
}

// broadcast expands a one-row invariant tensor to rows matching timeRef,
// a tensor whose row count equals the consumer's. With a concrete length
// the target shape is a constant; otherwise it is read off timeRef at
// run time.
func (l *lowering) broadcast(name, src string, dim int, rows int64, timeRef string) string {
	var shape string
	if rows > 0 {
		if l.tf() {
			shape = l.tg.addConst(int32Tensor(name+"/shape", []int64{3}, []int32{1, int32(rows), int32(dim)}))
		} else {
			shape = l.tg.addConst(int64Tensor(name+"/shape", []int64{1, rows, int64(dim)}))
		}
	} else {
		shape = l.dynamicShape(name, dim, timeRef)
	}

	op := "Expand"
	attrs := []Attr(nil)
	if l.tf() {
		op = "BroadcastTo"
		attrs = []Attr{typeAttr("T", Float), typeAttr("Tidx", Int32)}
	}
	l.tg.addNode(Node{
		Name:    name,
		Op:      op,
		Inputs:  []string{src, shape},
		Outputs: []string{name},
		Attrs:   attrs,
	})
	return name
}

// dynamicShape builds the run-time shape [1, rows(timeRef), dim].
func (l *lowering) dynamicShape(name string, dim int, timeRef string) string {
	shapeName := name + "/ref_shape"
	rowsName := name + "/rows"
	outName := name + "/shape"

	if l.tf() {
		l.tg.addNode(Node{
			Name:   shapeName,
			Op:     "Shape",
			Inputs: []string{timeRef},
			Attrs:  []Attr{typeAttr("T", Float), typeAttr("out_type", Int32)},
		})
		b := l.tg.addConst(int32Tensor(rowsName+"/begin", []int64{1}, []int32{timeAxis}))
		e := l.tg.addConst(int32Tensor(rowsName+"/end", []int64{1}, []int32{timeAxis + 1}))
		s := l.tg.addConst(int32Tensor(rowsName+"/strides", []int64{1}, []int32{1}))
		l.tg.addNode(Node{
			Name:   rowsName,
			Op:     "StridedSlice",
			Inputs: []string{shapeName, b, e, s},
			Attrs:  []Attr{typeAttr("T", Int32), typeAttr("Index", Int32)},
		})
		batch := l.tg.addConst(int32Tensor(outName+"/batch", []int64{1}, []int32{1}))
		d := l.tg.addConst(int32Tensor(outName+"/dim", []int64{1}, []int32{int32(dim)}))
		axis := l.tg.addConst(int32Tensor(outName+"/axis", nil, []int32{0}))
		l.tg.addNode(Node{
			Name:   outName,
			Op:     "ConcatV2",
			Inputs: []string{batch, rowsName, d, axis},
			Attrs:  []Attr{intAttr("N", 3), typeAttr("T", Int32), typeAttr("Tidx", Int32)},
		})
		return outName
	}

	l.tg.addNode(Node{
		Name:    shapeName,
		Op:      "Shape",
		Inputs:  []string{timeRef},
		Outputs: []string{shapeName},
	})
	rows := l.axisSlice(rowsName, shapeName, 0, timeAxis, timeAxis+1)
	batch := l.tg.addConst(int64Tensor(outName+"/batch", []int64{1}))
	d := l.tg.addConst(int64Tensor(outName+"/dim", []int64{int64(dim)}))
	l.tg.addNode(Node{
		Name:    outName,
		Op:      "Concat",
		Inputs:  []string{batch, rows, d},
		Outputs: []string{outName},
		Attrs:   []Attr{intAttr("axis", 0)},
	})
	return outName
}

func (l *lowering) timeDim(n *ir.Node) Dim {
	if rows := l.frames(n); rows > 0 {
		return Dim{Value: rows}
	}
	return Dim{Param: n.Name + "_frames"}
}

func sliceTag(i int) string {
	return fmt.Sprintf("/slice_%d", i)
}
