// Package nnet3 parses the textual network dialect into component and node
// declaration tables.
//
// The dialect is line-oriented: each logical declaration starts with one of
// the directives input-node, output-node, component-node, dim-range-node or
// component, followed by key=value attributes. Component declarations
// additionally carry <Tag>-prefixed parameter tokens (ints, floats, vectors
// in brackets, matrices whose rows end at line breaks). A declaration spans
// physical lines until the next directive; the reported error line is always
// the declaration's first physical line.
//
// Parsing produces a Network: a component table (name → typed parameters)
// and the node declarations in source order. No graph is built here; the
// graph builder consumes the tables and the descriptor package resolves each
// node's input expression.
//
// The supported component types form a closed table (componentKinds). A
// component with any other type= value parses structurally (its parameters
// are skipped) but carries no operator kind; referencing it from a
// component-node fails later with UnknownComponentError.
package nnet3
