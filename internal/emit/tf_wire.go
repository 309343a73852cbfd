package emit

import (
	"encoding/binary"
	"math"
	"sort"
	"strconv"
)

// Field numbers from tensorflow's graph.proto, node_def.proto,
// attr_value.proto, tensor.proto, and tensor_shape.proto.
const (
	tfGraphNode        = 1
	tfGraphVersions    = 4
	tfVersionsProducer = 1
	tfNodeName         = 1
	tfNodeOp           = 2
	tfNodeInput        = 3
	tfNodeAttr         = 5
	tfAttrKey          = 1
	tfAttrValue        = 2
	tfValueS           = 2
	tfValueI           = 3
	tfValueF           = 4
	tfValueB           = 5
	tfValueType        = 6
	tfValueShape       = 7
	tfValueTensor      = 8
	tfTensorDType      = 1
	tfTensorShape      = 2
	tfTensorContent    = 4
	tfShapeDim         = 2
	tfShapeDimSize     = 1
)

// tensorflow.DataType values.
const (
	tfDTFloat = 1
	tfDTInt32 = 3
	tfDTInt64 = 9
)

// tfGraphVersion is the GraphDef producer version declared in emitted
// graphs, old enough for every 1.x and 2.x runtime still in use.
const tfGraphVersion = 27

func encodeTF(tg *TargetGraph) []byte {
	var buf []byte

	// GraphDef has no metadata section; integer metadata rides along as
	// scalar Const nodes a runtime fetches by name. String entries such
	// as the model digest stay dump-only.
	for _, k := range sortedKeys(tg.Metadata) {
		v, err := strconv.Atoi(tg.Metadata[k])
		if err != nil {
			continue
		}
		t := int32Tensor("metadata/"+k, nil, []int32{int32(v)})
		buf = appendBytesField(buf, tfGraphNode, encodeTFConst(t))
	}

	for _, t := range tg.Consts {
		buf = appendBytesField(buf, tfGraphNode, encodeTFConst(t))
	}
	for _, n := range tg.Nodes {
		buf = appendBytesField(buf, tfGraphNode, encodeTFNode(n))
	}

	var versions []byte
	versions = appendVarintField(versions, tfVersionsProducer, tfGraphVersion)
	buf = appendBytesField(buf, tfGraphVersions, versions)
	return buf
}

func encodeTFConst(t Tensor) []byte {
	n := Node{
		Name: t.Name,
		Op:   "Const",
		Attrs: []Attr{
			typeAttr("dtype", t.DType),
			{Name: "value", Kind: attrTensor, tensor: &t},
		},
	}
	return encodeTFNode(n)
}

// attrTensor is internal to the encoder: lowering never produces tensor
// attributes directly, only Const tensors that become them.
const attrTensor AttrKind = -1

func encodeTFNode(n Node) []byte {
	var buf []byte
	buf = appendStringField(buf, tfNodeName, n.Name)
	buf = appendStringField(buf, tfNodeOp, n.Op)
	for _, in := range n.Inputs {
		buf = appendStringField(buf, tfNodeInput, in)
	}

	attrs := append([]Attr(nil), n.Attrs...)
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	for _, a := range attrs {
		var entry []byte
		entry = appendStringField(entry, tfAttrKey, a.Name)
		entry = appendBytesField(entry, tfAttrValue, encodeTFAttrValue(a))
		buf = appendBytesField(buf, tfNodeAttr, entry)
	}
	return buf
}

func encodeTFAttrValue(a Attr) []byte {
	var buf []byte
	switch a.Kind {
	case AttrInt:
		buf = appendVarintField(buf, tfValueI, uint64(a.I))
	case AttrFloat:
		buf = appendFixed32Field(buf, tfValueF, math.Float32bits(a.F))
	case AttrString:
		buf = appendStringField(buf, tfValueS, a.S)
	case AttrBool:
		v := uint64(0)
		if a.B {
			v = 1
		}
		buf = appendVarintField(buf, tfValueB, v)
	case AttrType:
		buf = appendVarintField(buf, tfValueType, tfDType(a.DType))
	case AttrShape:
		buf = appendBytesField(buf, tfValueShape, encodeTFShape(a.Ints))
	case attrTensor:
		buf = appendBytesField(buf, tfValueTensor, encodeTFTensor(*a.tensor))
	}
	return buf
}

func encodeTFShape(dims []int64) []byte {
	var buf []byte
	for _, d := range dims {
		var dim []byte
		dim = appendVarintField(dim, tfShapeDimSize, uint64(d))
		buf = appendBytesField(buf, tfShapeDim, dim)
	}
	return buf
}

func encodeTFTensor(t Tensor) []byte {
	var buf []byte
	buf = appendVarintField(buf, tfTensorDType, tfDType(t.DType))
	buf = appendBytesField(buf, tfTensorShape, encodeTFShape(t.Dims))

	var raw []byte
	switch t.DType {
	case Float:
		raw = make([]byte, 4*len(t.Floats))
		for i, f := range t.Floats {
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(f))
		}
	case Int32:
		raw = make([]byte, 4*len(t.Int32s))
		for i, v := range t.Int32s {
			binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
		}
	case Int64:
		raw = make([]byte, 8*len(t.Int64s))
		for i, v := range t.Int64s {
			binary.LittleEndian.PutUint64(raw[8*i:], uint64(v))
		}
	}
	buf = appendBytesField(buf, tfTensorContent, raw)
	return buf
}

func tfDType(t DType) uint64 {
	switch t {
	case Int32:
		return tfDTInt32
	case Int64:
		return tfDTInt64
	default:
		return tfDTFloat
	}
}
