// Package emit lowers the optimized IR graph to a portable inference
// graph and serializes it.
//
// Lowering happens in two steps. First the IR is flattened into a
// TargetGraph: a linear list of target ops over named tensors, with the
// frame-window arithmetic made explicit as slice, pad, and broadcast ops
// and all parameters collected as named constant tensors. Then the
// TargetGraph is encoded to the chosen container, ONNX ModelProto or
// TensorFlow GraphDef, both hand-encoded with protowire against the
// stable field numbers of those formats.
//
// All tensors are rank two, frames by features. A node whose window
// spans [lo, hi] around each output frame materializes length + hi − lo
// frames; consumers carve out the rows they need with slices computed
// from the producer and consumer windows. Time-invariant values occupy a
// single frame and are broadcast where a full-length tensor is required.
package emit
