package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed or unsupported descriptor expression.
// Pos is a byte offset into Expr. The caller (the graph builder) wraps it
// with the declaring node's line number.
type ParseError struct {
	Expr    string
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("descriptor %q: %s (at offset %d)", e.Expr, e.Message, e.Pos)
}

// operators is the closed set of supported descriptor operators. Any other
// name followed by ( is rejected.
var operators = map[string]bool{
	"Offset":       true,
	"Append":       true,
	"Sum":          true,
	"IfDefined":    true,
	"ReplaceIndex": true,
	"Scale":        true,
}

// Parse reads a descriptor expression into its operator tree. Expansion is
// recursive; arbitrary nesting is supported.
func Parse(expr string) (Descriptor, error) {
	p := &parser{expr: expr}
	d, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.expr) {
		return nil, p.errorf("trailing text after expression")
	}
	return d, nil
}

type parser struct {
	expr string
	pos  int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Expr: p.expr, Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.expr) && (p.expr[p.pos] == ' ' || p.expr[p.pos] == '\t') {
		p.pos++
	}
}

// word reads an identifier or number token: node names may contain letters,
// digits, '.', '_' and '-'; numbers reuse the same charset.
func (p *parser) word() string {
	start := p.pos
	for p.pos < len(p.expr) {
		c := p.expr[p.pos]
		if c == '(' || c == ')' || c == ',' || c == ' ' || c == '\t' {
			break
		}
		p.pos++
	}
	return p.expr[start:p.pos]
}

func (p *parser) parseExpr() (Descriptor, error) {
	p.skipSpace()
	if p.pos >= len(p.expr) {
		return nil, p.errorf("unexpected end of expression")
	}

	w := p.word()
	if w == "" {
		return nil, p.errorf("expected name or operator")
	}

	p.skipSpace()
	isCall := p.pos < len(p.expr) && p.expr[p.pos] == '('
	if !isCall {
		if looksNumeric(w) {
			return nil, p.errorf("bare number %q is not a descriptor", w)
		}
		return Ref{Name: w}, nil
	}
	if !operators[w] {
		return nil, p.errorf("unsupported descriptor operator %q", w)
	}

	p.pos++ // consume '('
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return p.build(w, args)
}

// arg is either a sub-descriptor or a literal token (offset, scale, var).
type arg struct {
	d   Descriptor
	lit string
}

func (p *parser) parseArgs() ([]arg, error) {
	var args []arg
	for {
		p.skipSpace()
		if p.pos >= len(p.expr) {
			return nil, p.errorf("unterminated argument list")
		}

		start := p.pos
		w := p.word()
		p.skipSpace()
		if w != "" && (p.pos >= len(p.expr) || p.expr[p.pos] != '(') && looksNumeric(w) {
			args = append(args, arg{lit: w})
		} else if w == "t" || w == "x" {
			// Index variable of ReplaceIndex.
			args = append(args, arg{lit: w})
		} else {
			p.pos = start
			d, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg{d: d})
		}

		p.skipSpace()
		if p.pos >= len(p.expr) {
			return nil, p.errorf("unterminated argument list")
		}
		switch p.expr[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

// asDescriptor returns the arg's descriptor, recovering a plain name that
// the argument scanner captured as a literal (a node named "t" or "x").
func asDescriptor(a arg) Descriptor {
	if a.d != nil {
		return a.d
	}
	if a.lit != "" && !looksNumeric(a.lit) {
		return Ref{Name: a.lit}
	}
	return nil
}

func (p *parser) build(op string, args []arg) (Descriptor, error) {
	switch op {
	case "Offset":
		if len(args) != 2 || asDescriptor(args[0]) == nil || args[1].lit == "" {
			return nil, p.errorf("Offset takes (descriptor, integer)")
		}
		t, err := strconv.Atoi(args[1].lit)
		if err != nil {
			return nil, p.errorf("Offset requires an integer offset, got %q", args[1].lit)
		}
		return Offset{X: asDescriptor(args[0]), T: t}, nil

	case "Append":
		if len(args) < 2 {
			return nil, p.errorf("Append takes at least two descriptors")
		}
		parts := make([]Descriptor, len(args))
		for i, a := range args {
			d := asDescriptor(a)
			if d == nil {
				return nil, p.errorf("Append argument %d is not a descriptor", i+1)
			}
			parts[i] = d
		}
		return Append{Parts: parts}, nil

	case "Sum":
		if len(args) != 2 || asDescriptor(args[0]) == nil || asDescriptor(args[1]) == nil {
			return nil, p.errorf("Sum takes exactly two descriptors")
		}
		return Sum{X: asDescriptor(args[0]), Y: asDescriptor(args[1])}, nil

	case "IfDefined":
		if len(args) != 1 || asDescriptor(args[0]) == nil {
			return nil, p.errorf("IfDefined takes exactly one descriptor")
		}
		return IfDefined{X: asDescriptor(args[0])}, nil

	case "ReplaceIndex":
		if len(args) != 3 || asDescriptor(args[0]) == nil || args[1].lit == "" || args[2].lit == "" {
			return nil, p.errorf("ReplaceIndex takes (descriptor, index-var, integer)")
		}
		v := args[1].lit
		if v != "t" && v != "x" {
			return nil, p.errorf("ReplaceIndex index-var must be t or x, got %q", v)
		}
		t, err := strconv.Atoi(args[2].lit)
		if err != nil {
			return nil, p.errorf("ReplaceIndex requires an integer index, got %q", args[2].lit)
		}
		return ReplaceIndex{X: asDescriptor(args[0]), Var: v, T: t}, nil

	case "Scale":
		if len(args) != 2 || args[0].lit == "" || asDescriptor(args[1]) == nil {
			return nil, p.errorf("Scale takes (constant, descriptor)")
		}
		c, err := strconv.ParseFloat(args[0].lit, 64)
		if err != nil {
			return nil, p.errorf("Scale requires a numeric constant, got %q", args[0].lit)
		}
		return Scale{C: c, X: asDescriptor(args[1])}, nil
	}

	return nil, p.errorf("unsupported descriptor operator %q", op)
}

// looksNumeric reports whether a token is a number rather than a node name.
func looksNumeric(w string) bool {
	if w == "" {
		return false
	}
	s := strings.TrimPrefix(w, "-")
	if s == "" {
		return false
	}
	return s[0] >= '0' && s[0] <= '9' && !strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_")
}
