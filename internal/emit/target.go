package emit

import "fmt"

// Target selects the output container.
type Target string

const (
	TargetONNX Target = "onnx"
	TargetTF   Target = "tf"
)

// ParseTarget validates a target name from config or the command line.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetONNX, TargetTF:
		return Target(s), nil
	}
	return "", fmt.Errorf("unknown target %q (want onnx or tf)", s)
}

// DType is the element type of a constant tensor.
type DType int

const (
	Float DType = iota
	Int64
	Int32
)

// Tensor is a named constant: an initializer in ONNX terms, a Const node
// in TensorFlow terms. Exactly one of the data slices is set, matching
// DType.
type Tensor struct {
	Name   string
	Dims   []int64
	DType  DType
	Floats []float32
	Int64s []int64
	Int32s []int32
}

func floatTensor(name string, dims []int64, data []float32) Tensor {
	return Tensor{Name: name, Dims: dims, DType: Float, Floats: data}
}

func int64Tensor(name string, data []int64) Tensor {
	return Tensor{Name: name, Dims: []int64{int64(len(data))}, DType: Int64, Int64s: data}
}

func int32Tensor(name string, dims []int64, data []int32) Tensor {
	return Tensor{Name: name, Dims: dims, DType: Int32, Int32s: data}
}

// AttrKind discriminates Attr payloads.
type AttrKind int

const (
	AttrInt AttrKind = iota
	AttrFloat
	AttrString
	AttrInts
	AttrBool
	AttrType
	AttrShape
)

// Attr is one op attribute. The same struct serves both containers; each
// encoder maps Kind to its own representation.
type Attr struct {
	Name  string
	Kind  AttrKind
	I     int64
	F     float32
	S     string
	Ints  []int64
	B     bool
	DType DType

	// tensor backs the synthetic value attribute of TensorFlow Const
	// nodes; only the encoder sets it.
	tensor *Tensor
}

func intAttr(name string, v int64) Attr    { return Attr{Name: name, Kind: AttrInt, I: v} }
func floatAttr(name string, v float32) Attr {
	return Attr{Name: name, Kind: AttrFloat, F: v}
}
func boolAttr(name string, v bool) Attr { return Attr{Name: name, Kind: AttrBool, B: v} }
func typeAttr(name string, t DType) Attr {
	return Attr{Name: name, Kind: AttrType, DType: t}
}

// shapeAttr carries a tensor shape; -1 marks a dynamic axis.
func shapeAttr(name string, dims []int64) Attr {
	return Attr{Name: name, Kind: AttrShape, Ints: dims}
}

// Node is one target op. Inputs and Outputs are tensor names; TensorFlow
// nodes have exactly one output, named after the node itself.
type Node struct {
	Name    string
	Op      string
	Inputs  []string
	Outputs []string
	Attrs   []Attr
}

// Dim is one axis of a value shape: a concrete size or a symbolic name
// for a dynamic axis.
type Dim struct {
	Value int64
	Param string
}

// ValueInfo types a graph input or output.
type ValueInfo struct {
	Name string
	Dims []Dim
}

// TargetGraph is the lowered, container-neutral form of one network.
type TargetGraph struct {
	Name     string
	Target   Target
	Opset    int64
	Producer string
	Version  string

	Nodes   []Node
	Consts  []Tensor
	Inputs  []ValueInfo
	Outputs []ValueInfo

	// Metadata is embedded in the container: producer identity, source
	// model digest, and the context pair runtimes need for chunking.
	Metadata map[string]string
}

// addConst registers a constant tensor and returns its name.
func (tg *TargetGraph) addConst(t Tensor) string {
	tg.Consts = append(tg.Consts, t)
	return t.Name
}

func (tg *TargetGraph) addNode(n Node) {
	tg.Nodes = append(tg.Nodes, n)
}
