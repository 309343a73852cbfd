package emit

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders a TargetGraph as stable, diffable text. The golden tests
// compare against it, and the inspect command prints it; it is not a
// serialization format.
func Dump(tg *TargetGraph) string {
	var b strings.Builder

	fmt.Fprintf(&b, "target: %s\n", tg.Target)
	if tg.Target == TargetONNX {
		fmt.Fprintf(&b, "opset: %d\n", tg.Opset)
	}
	for _, k := range sortedKeys(tg.Metadata) {
		fmt.Fprintf(&b, "meta %s: %s\n", k, tg.Metadata[k])
	}

	for _, v := range tg.Inputs {
		fmt.Fprintf(&b, "input %s %s\n", v.Name, dumpDims(v.Dims))
	}
	for _, v := range tg.Outputs {
		fmt.Fprintf(&b, "output %s %s\n", v.Name, dumpDims(v.Dims))
	}
	for _, t := range tg.Consts {
		fmt.Fprintf(&b, "const %s %s %s\n", t.Name, dumpShape(t.Dims), dumpData(t))
	}
	for _, n := range tg.Nodes {
		b.WriteString(dumpNode(n))
	}
	return b.String()
}

func dumpNode(n Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s(%s)", n.Op, n.Name, strings.Join(n.Inputs, ", "))
	if len(n.Attrs) > 0 {
		parts := make([]string, len(n.Attrs))
		for i, a := range n.Attrs {
			parts[i] = a.Name + "=" + dumpAttr(a)
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

func dumpAttr(a Attr) string {
	switch a.Kind {
	case AttrInt:
		return strconv.FormatInt(a.I, 10)
	case AttrFloat:
		return strconv.FormatFloat(float64(a.F), 'g', -1, 32)
	case AttrString:
		return strconv.Quote(a.S)
	case AttrInts, AttrShape:
		parts := make([]string, len(a.Ints))
		for i, v := range a.Ints {
			parts[i] = strconv.FormatInt(v, 10)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case AttrBool:
		return strconv.FormatBool(a.B)
	case AttrType:
		switch a.DType {
		case Int32:
			return "int32"
		case Int64:
			return "int64"
		}
		return "float"
	}
	return "?"
}

func dumpDims(dims []Dim) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d.Param != "" {
			parts[i] = d.Param
		} else {
			parts[i] = strconv.FormatInt(d.Value, 10)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func dumpShape(dims []int64) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// dumpData prints small tensors in full and large ones as a count, so
// weight matrices do not swamp the dump.
func dumpData(t Tensor) string {
	const full = 8
	switch t.DType {
	case Float:
		if len(t.Floats) > full {
			return fmt.Sprintf("float(%d values)", len(t.Floats))
		}
		parts := make([]string, len(t.Floats))
		for i, v := range t.Floats {
			parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		return "float[" + strings.Join(parts, " ") + "]"
	case Int64:
		if len(t.Int64s) > full {
			return fmt.Sprintf("int64(%d values)", len(t.Int64s))
		}
		parts := make([]string, len(t.Int64s))
		for i, v := range t.Int64s {
			parts[i] = strconv.FormatInt(v, 10)
		}
		return "int64[" + strings.Join(parts, " ") + "]"
	default:
		if len(t.Int32s) > full {
			return fmt.Sprintf("int32(%d values)", len(t.Int32s))
		}
		parts := make([]string, len(t.Int32s))
		for i, v := range t.Int32s {
			parts[i] = strconv.FormatInt(int64(v), 10)
		}
		return "int32[" + strings.Join(parts, " ") + "]"
	}
}
