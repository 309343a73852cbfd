package descriptor

import "github.com/tz301/kaldi-onnx-tf/internal/ir"

// CanonicalValue renders a descriptor tree as a canonical-JSON value.
// Structurally identical trees produce identical values, which is what the
// graph builder's interning relies on. Scale constants are rendered through
// FormatScale because canonical JSON carries no floats.
func CanonicalValue(d Descriptor) ir.IRValue {
	switch v := d.(type) {
	case Ref:
		return ir.IRObject{
			"op":   ir.IRString("ref"),
			"name": ir.IRString(v.Name),
		}
	case Offset:
		return ir.IRObject{
			"op": ir.IRString("offset"),
			"t":  ir.IRInt(int64(v.T)),
			"x":  CanonicalValue(v.X),
		}
	case Append:
		parts := make(ir.IRArray, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = CanonicalValue(p)
		}
		return ir.IRObject{
			"op":    ir.IRString("append"),
			"parts": parts,
		}
	case Sum:
		return ir.IRObject{
			"op": ir.IRString("sum"),
			"x":  CanonicalValue(v.X),
			"y":  CanonicalValue(v.Y),
		}
	case IfDefined:
		return ir.IRObject{
			"op": ir.IRString("if_defined"),
			"x":  CanonicalValue(v.X),
		}
	case ReplaceIndex:
		return ir.IRObject{
			"op":  ir.IRString("replace_index"),
			"var": ir.IRString(v.Var),
			"t":   ir.IRInt(int64(v.T)),
			"x":   CanonicalValue(v.X),
		}
	case Scale:
		return ir.IRObject{
			"op": ir.IRString("scale"),
			"c":  ir.IRString(FormatScale(v.C)),
			"x":  CanonicalValue(v.X),
		}
	}
	return nil
}
