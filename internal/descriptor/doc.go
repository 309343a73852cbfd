// Package descriptor resolves a node's input expression into a closed
// symbolic operator tree.
//
// A descriptor like
//
//	Append(Offset(input, -1), input, IfDefined(ReplaceIndex(ivector, t, 0)))
//
// is parsed once into a tree over the sealed Descriptor interface, whose
// only variants are Ref, Offset, Append, Sum, IfDefined, ReplaceIndex and
// Scale, rather than being interpreted per time step. Later stages treat
// any time-index materialization as pure lookup over this static structure.
//
// Deps extracts the directly referenced node names together with the
// relative time-offset window at which each is read. CanonicalValue renders
// a tree as a canonical-JSON value so the graph builder can intern
// structurally identical sub-expressions into one shared node.
//
// Operators outside the supported set (Round, Failover, Const, ...) are
// rejected at parse time; the converter never approximates them.
package descriptor
