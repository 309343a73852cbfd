// Package graph builds the unified IR graph from parsed declarations and
// annotates it with temporal context.
//
// Build merges the node table and each node's resolved descriptor tree into
// one arena of ir.Node values: one node per declared component-node,
// output-node and dim-range-node, plus one synthetic node per distinct
// operator instance the descriptors expand to. Structurally identical
// sub-expressions are interned by content hash, so resolving the same
// descriptor twice yields the same node ids. All construction state lives
// in an explicit build context threaded through the construction functions;
// there are no package-level counters or tables.
//
// Sort assigns the topological order with Kahn's algorithm over the
// time-normalized edges. Legitimate recurrences in the dialect always
// resolve to explicit offset chains, so a residual cycle is malformed input
// and fails with CycleError rather than being approximated.
//
// Analyze runs one backward pass over the order, computing per node the
// window of its own frames needed per network output frame, and checks the
// resulting network context against the caller-declared pair. The check is
// mandatory: the chunk planner and the emitters both assume it holds
// exactly.
package graph
