package nnet3

import (
	"strconv"
	"strings"
)

// NodeKind discriminates the declared graph node kinds.
type NodeKind string

const (
	NodeInput     NodeKind = "input-node"
	NodeOutput    NodeKind = "output-node"
	NodeComponent NodeKind = "component-node"
	NodeDimRange  NodeKind = "dim-range-node"
)

// Node is one declared graph node. Descriptor is the raw input expression
// text; the descriptor package resolves it symbolically.
type Node struct {
	Kind       NodeKind
	Name       string
	Dim        int
	DimOffset  int
	Component  string
	Descriptor string
	Objective  string
	Line       int
}

// Network is the parse result: the component table and the node
// declarations in source order. Both are immutable after Parse.
type Network struct {
	Components map[string]*Component
	Nodes      []*Node

	byName map[string]*Node
}

// NodeByName returns the declared node with the given name.
func (n *Network) NodeByName(name string) (*Node, bool) {
	node, ok := n.byName[name]
	return node, ok
}

// Parse reads the model text into a Network. It fails with a ParseError on
// the first malformed declaration and does not continue past it.
func Parse(text string) (*Network, error) {
	decls, err := splitDeclarations(text)
	if err != nil {
		return nil, err
	}

	net := &Network{
		Components: make(map[string]*Component),
		byName:     make(map[string]*Node),
	}

	for i := range decls {
		d := &decls[i]
		if d.directive == "component" {
			if err := parseComponent(net, d); err != nil {
				return nil, err
			}
			continue
		}
		if err := parseNode(net, d); err != nil {
			return nil, err
		}
	}

	if len(net.Nodes) == 0 {
		return nil, &ParseError{Line: 1, Message: "model declares no nodes"}
	}
	return net, nil
}

// parseAttrs reads leading key=value tokens from the stream. A value
// containing an unbalanced ( continues across tokens until the parentheses
// close, so descriptors written with spaces stay intact. Reading stops at
// the first token that is not key=value (a <Tag> parameter).
func parseAttrs(ts *tokenStream, d *declaration) (map[string]string, error) {
	attrs := make(map[string]string)
	for {
		tok, ok := ts.peek()
		if !ok {
			return attrs, nil
		}
		eq := strings.IndexByte(tok.text, '=')
		if eq <= 0 || strings.HasPrefix(tok.text, "<") {
			return attrs, nil
		}
		ts.next()

		key := tok.text[:eq]
		val := tok.text[eq+1:]
		for depth := strings.Count(val, "(") - strings.Count(val, ")"); depth > 0; {
			more, ok := ts.next()
			if !ok {
				return nil, &ParseError{Line: d.line, Content: d.content, Message: "unbalanced parentheses in " + key + "="}
			}
			val += more.text
			depth += strings.Count(more.text, "(") - strings.Count(more.text, ")")
		}
		if _, dup := attrs[key]; dup {
			return nil, &ParseError{Line: d.line, Content: d.content, Message: "duplicate attribute " + key + "="}
		}
		attrs[key] = val
	}
}

func requireAttr(attrs map[string]string, key string, d *declaration) (string, error) {
	v, ok := attrs[key]
	if !ok || v == "" {
		return "", &ParseError{Line: d.line, Content: d.content, Message: "missing required attribute " + key + "="}
	}
	return v, nil
}

func intAttr(attrs map[string]string, key string, d *declaration) (int, bool, error) {
	v, ok := attrs[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, &ParseError{Line: d.line, Content: d.content, Message: "attribute " + key + "= is not an integer"}
	}
	return n, true, nil
}

func parseComponent(net *Network, d *declaration) error {
	ts := &tokenStream{toks: d.tokens}
	attrs, err := parseAttrs(ts, d)
	if err != nil {
		return err
	}

	name, err := requireAttr(attrs, "name", d)
	if err != nil {
		return err
	}
	typ, err := requireAttr(attrs, "type", d)
	if err != nil {
		return err
	}
	if _, dup := net.Components[name]; dup {
		return &ParseError{Line: d.line, Content: d.content, Message: "duplicate component name " + strconv.Quote(name)}
	}

	c := &Component{
		Name: name,
		Type: typ,
		Kind: componentKinds[typ],
		Line: d.line,
	}
	if err := readParams(c, ts, d); err != nil {
		return err
	}

	net.Components[name] = c
	return nil
}

func parseNode(net *Network, d *declaration) error {
	ts := &tokenStream{toks: d.tokens}
	attrs, err := parseAttrs(ts, d)
	if err != nil {
		return err
	}
	if tok, ok := ts.peek(); ok {
		return &ParseError{Line: tok.line, Content: d.content, Message: "unexpected token " + strconv.Quote(tok.text)}
	}

	name, err := requireAttr(attrs, "name", d)
	if err != nil {
		return err
	}
	if _, dup := net.byName[name]; dup {
		return &ParseError{Line: d.line, Content: d.content, Message: "duplicate node name " + strconv.Quote(name)}
	}

	node := &Node{Kind: NodeKind(d.directive), Name: name, Line: d.line}
	node.Objective = attrs["objective"]

	switch node.Kind {
	case NodeInput:
		dim, ok, err := intAttr(attrs, "dim", d)
		if err != nil {
			return err
		}
		if !ok || dim <= 0 {
			return &ParseError{Line: d.line, Content: d.content, Message: "input-node requires dim= > 0"}
		}
		node.Dim = dim

	case NodeOutput:
		node.Descriptor, err = requireAttr(attrs, "input", d)
		if err != nil {
			return err
		}

	case NodeComponent:
		node.Component, err = requireAttr(attrs, "component", d)
		if err != nil {
			return err
		}
		node.Descriptor, err = requireAttr(attrs, "input", d)
		if err != nil {
			return err
		}

	case NodeDimRange:
		// Both input-node= (the dialect's spelling) and input= are accepted.
		src := attrs["input-node"]
		if src == "" {
			src = attrs["input"]
		}
		if src == "" {
			return &ParseError{Line: d.line, Content: d.content, Message: "dim-range-node requires input-node="}
		}
		node.Descriptor = src

		dim, ok, err := intAttr(attrs, "dim", d)
		if err != nil {
			return err
		}
		if !ok || dim <= 0 {
			return &ParseError{Line: d.line, Content: d.content, Message: "dim-range-node requires dim= > 0"}
		}
		node.Dim = dim

		off, _, err := intAttr(attrs, "dim-offset", d)
		if err != nil {
			return err
		}
		if off < 0 {
			return &ParseError{Line: d.line, Content: d.content, Message: "dim-offset= must be >= 0"}
		}
		node.DimOffset = off
	}

	net.Nodes = append(net.Nodes, node)
	net.byName[name] = node
	return nil
}
