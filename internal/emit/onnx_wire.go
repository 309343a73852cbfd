package emit

import (
	"encoding/binary"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from onnx.proto. The layout has been frozen since IR
// version 3, so hand-encoding against the numbers is stable.
const (
	onnxModelIRVersion      = 1
	onnxModelProducerName   = 2
	onnxModelProducerVer    = 3
	onnxModelGraph          = 7
	onnxModelOpsetImport    = 8
	onnxModelMetadataProps  = 14
	onnxOpsetDomain         = 1
	onnxOpsetVersion        = 2
	onnxMetaKey             = 1
	onnxMetaValue           = 2
	onnxGraphNode           = 1
	onnxGraphName           = 2
	onnxGraphInitializer    = 5
	onnxGraphInput          = 11
	onnxGraphOutput         = 12
	onnxNodeInput           = 1
	onnxNodeOutput          = 2
	onnxNodeName            = 3
	onnxNodeOpType          = 4
	onnxNodeAttribute       = 5
	onnxAttrName            = 1
	onnxAttrF               = 2
	onnxAttrI               = 3
	onnxAttrS               = 4
	onnxAttrInts            = 8
	onnxAttrType            = 20
	onnxTensorDims          = 1
	onnxTensorDataType      = 2
	onnxTensorName          = 8
	onnxTensorRawData       = 9
	onnxValueName           = 1
	onnxValueType           = 2
	onnxTypeTensorType      = 1
	onnxTensorTypeElem      = 1
	onnxTensorTypeShape     = 2
	onnxShapeDim            = 1
	onnxShapeDimValue       = 1
	onnxShapeDimParam       = 2
)

// onnx.AttributeProto.AttributeType values.
const (
	onnxAttrTypeFloat = 1
	onnxAttrTypeInt   = 2
	onnxAttrTypeStr   = 3
	onnxAttrTypeInts  = 7
)

// onnx.TensorProto.DataType values.
const (
	onnxFloat = 1
	onnxInt32 = 6
	onnxInt64 = 7
)

// irVersionFor maps an opset to the ONNX IR version declaring it.
func irVersionFor(opset int64) int64 {
	switch {
	case opset >= 19:
		return 9
	case opset >= 15:
		return 8
	default:
		return 7
	}
}

func encodeONNX(tg *TargetGraph) []byte {
	var buf []byte
	buf = appendVarintField(buf, onnxModelIRVersion, uint64(irVersionFor(tg.Opset)))
	buf = appendStringField(buf, onnxModelProducerName, tg.Producer)
	buf = appendStringField(buf, onnxModelProducerVer, tg.Version)
	buf = appendBytesField(buf, onnxModelGraph, encodeONNXGraph(tg))
	buf = appendBytesField(buf, onnxModelOpsetImport, encodeOpset(tg.Opset))

	for _, k := range sortedKeys(tg.Metadata) {
		var kv []byte
		kv = appendStringField(kv, onnxMetaKey, k)
		kv = appendStringField(kv, onnxMetaValue, tg.Metadata[k])
		buf = appendBytesField(buf, onnxModelMetadataProps, kv)
	}
	return buf
}

func encodeOpset(version int64) []byte {
	var buf []byte
	buf = appendStringField(buf, onnxOpsetDomain, "")
	buf = appendVarintField(buf, onnxOpsetVersion, uint64(version))
	return buf
}

func encodeONNXGraph(tg *TargetGraph) []byte {
	var buf []byte
	for _, n := range tg.Nodes {
		buf = appendBytesField(buf, onnxGraphNode, encodeONNXNode(n))
	}
	buf = appendStringField(buf, onnxGraphName, tg.Name)
	for _, t := range tg.Consts {
		buf = appendBytesField(buf, onnxGraphInitializer, encodeONNXTensor(t))
	}
	for _, v := range tg.Inputs {
		buf = appendBytesField(buf, onnxGraphInput, encodeValueInfo(v))
	}
	for _, v := range tg.Outputs {
		buf = appendBytesField(buf, onnxGraphOutput, encodeValueInfo(v))
	}
	return buf
}

func encodeONNXNode(n Node) []byte {
	var buf []byte
	for _, in := range n.Inputs {
		buf = appendStringField(buf, onnxNodeInput, in)
	}
	for _, out := range n.Outputs {
		buf = appendStringField(buf, onnxNodeOutput, out)
	}
	buf = appendStringField(buf, onnxNodeName, n.Name)
	buf = appendStringField(buf, onnxNodeOpType, n.Op)
	for _, a := range n.Attrs {
		buf = appendBytesField(buf, onnxNodeAttribute, encodeONNXAttr(a))
	}
	return buf
}

func encodeONNXAttr(a Attr) []byte {
	var buf []byte
	buf = appendStringField(buf, onnxAttrName, a.Name)
	switch a.Kind {
	case AttrFloat:
		buf = protowire.AppendTag(buf, onnxAttrF, protowire.Fixed32Type)
		buf = protowire.AppendFixed32(buf, math.Float32bits(a.F))
		buf = appendVarintField(buf, onnxAttrType, onnxAttrTypeFloat)
	case AttrInt:
		buf = appendVarintField(buf, onnxAttrI, uint64(a.I))
		buf = appendVarintField(buf, onnxAttrType, onnxAttrTypeInt)
	case AttrBool:
		v := uint64(0)
		if a.B {
			v = 1
		}
		buf = appendVarintField(buf, onnxAttrI, v)
		buf = appendVarintField(buf, onnxAttrType, onnxAttrTypeInt)
	case AttrString:
		buf = appendStringField(buf, onnxAttrS, a.S)
		buf = appendVarintField(buf, onnxAttrType, onnxAttrTypeStr)
	case AttrInts:
		for _, v := range a.Ints {
			buf = appendVarintField(buf, onnxAttrInts, uint64(v))
		}
		buf = appendVarintField(buf, onnxAttrType, onnxAttrTypeInts)
	}
	return buf
}

func encodeONNXTensor(t Tensor) []byte {
	var buf []byte
	for _, d := range t.Dims {
		buf = appendVarintField(buf, onnxTensorDims, uint64(d))
	}

	var dtype uint64
	var raw []byte
	switch t.DType {
	case Float:
		dtype = onnxFloat
		raw = make([]byte, 4*len(t.Floats))
		for i, f := range t.Floats {
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(f))
		}
	case Int64:
		dtype = onnxInt64
		raw = make([]byte, 8*len(t.Int64s))
		for i, v := range t.Int64s {
			binary.LittleEndian.PutUint64(raw[8*i:], uint64(v))
		}
	case Int32:
		dtype = onnxInt32
		raw = make([]byte, 4*len(t.Int32s))
		for i, v := range t.Int32s {
			binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
		}
	}
	buf = appendVarintField(buf, onnxTensorDataType, dtype)
	buf = appendStringField(buf, onnxTensorName, t.Name)
	buf = appendBytesField(buf, onnxTensorRawData, raw)
	return buf
}

func encodeValueInfo(v ValueInfo) []byte {
	var shape []byte
	for _, d := range v.Dims {
		var dim []byte
		if d.Param != "" {
			dim = appendStringField(dim, onnxShapeDimParam, d.Param)
		} else {
			dim = appendVarintField(dim, onnxShapeDimValue, uint64(d.Value))
		}
		shape = appendBytesField(shape, onnxShapeDim, dim)
	}

	var tensorType []byte
	tensorType = appendVarintField(tensorType, onnxTensorTypeElem, onnxFloat)
	tensorType = appendBytesField(tensorType, onnxTensorTypeShape, shape)

	var typ []byte
	typ = appendBytesField(typ, onnxTypeTensorType, tensorType)

	var buf []byte
	buf = appendStringField(buf, onnxValueName, v.Name)
	buf = appendBytesField(buf, onnxValueType, typ)
	return buf
}

func appendVarintField(buf []byte, field protowire.Number, v uint64) []byte {
	buf = protowire.AppendTag(buf, field, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

func appendBytesField(buf []byte, field protowire.Number, v []byte) []byte {
	buf = protowire.AppendTag(buf, field, protowire.BytesType)
	return protowire.AppendBytes(buf, v)
}

func appendStringField(buf []byte, field protowire.Number, s string) []byte {
	buf = protowire.AppendTag(buf, field, protowire.BytesType)
	return protowire.AppendString(buf, s)
}

func appendFixed32Field(buf []byte, field protowire.Number, v uint32) []byte {
	buf = protowire.AppendTag(buf, field, protowire.Fixed32Type)
	return protowire.AppendFixed32(buf, v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
