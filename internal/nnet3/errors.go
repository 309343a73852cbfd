package nnet3

import "fmt"

// ParseError reports a malformed declaration. Line is the first physical
// line of the declaration and Content the offending text. Parsing stops at
// the first ParseError; nothing past a fatal line is consumed.
type ParseError struct {
	Line    int
	Content string
	Message string
}

func (e *ParseError) Error() string {
	if e.Content != "" {
		return fmt.Sprintf("parse error at line %d: %s (%q)", e.Line, e.Message, e.Content)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// UnknownComponentError reports a component-node whose component type is
// absent from the supported mapping. It names the node, not just the
// component, so the failing construct is identifiable in the model text.
type UnknownComponentError struct {
	Node      string
	Component string
	Type      string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("node %q: component %q has unsupported type %s", e.Node, e.Component, e.Type)
}
