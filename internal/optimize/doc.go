// Package optimize rewrites the IR graph into the form the target
// emitters want: pass-through nodes collapsed, frame-shift chains merged,
// appends over one base folded into splices, batch normalization and
// activations fused into the preceding affine, and unreachable nodes
// removed.
//
// Every pass preserves the computed values of the declared outputs and
// the materialization windows of surviving nodes. Passes run in a fixed
// order; the driver re-sorts the graph afterwards so downstream stages
// see a valid topological order.
package optimize
