package descriptor

import "github.com/tz301/kaldi-onnx-tf/internal/ir"

// Deps returns the node names a descriptor directly depends on, each with
// the relative time-offset window at which it is read. Offsets accumulate
// through nesting: Offset(Offset(x, -1), -2) reads x at t-3.
//
// References reached only through IfDefined are reported with a zero
// window: the value is optional there and does not widen required context.
// A reference under ReplaceIndex is likewise zero-window, since the read
// happens at a constant index.
func Deps(d Descriptor) map[string]ir.Window {
	deps := make(map[string]ir.Window)
	collectDeps(d, 0, false, deps)
	return deps
}

func collectDeps(d Descriptor, shift int, optional bool, deps map[string]ir.Window) {
	switch v := d.(type) {
	case Ref:
		w := ir.Window{Lo: shift, Hi: shift}
		if optional {
			w = ir.Window{}
		}
		if have, ok := deps[v.Name]; ok {
			w = have.Union(w)
		}
		deps[v.Name] = w
	case Offset:
		collectDeps(v.X, shift+v.T, optional, deps)
	case Append:
		for _, p := range v.Parts {
			collectDeps(p, shift, optional, deps)
		}
	case Sum:
		collectDeps(v.X, shift, optional, deps)
		collectDeps(v.Y, shift, optional, deps)
	case IfDefined:
		collectDeps(v.X, shift, true, deps)
	case ReplaceIndex:
		collectDeps(v.X, 0, true, deps)
	case Scale:
		collectDeps(v.X, shift, optional, deps)
	}
}
