package nnet3

import "strings"

// token is one whitespace-separated word of the model text, tagged with the
// physical line it came from. Matrix rows are delimited by line breaks, so
// the line number is load-bearing, not just diagnostic.
type token struct {
	text string
	line int
}

// declaration is one logical declaration: a directive, its first physical
// line, and every token after the directive up to the next directive.
type declaration struct {
	directive string
	line      int
	content   string
	tokens    []token
}

// directives that begin a new logical declaration.
var directives = map[string]bool{
	"input-node":     true,
	"output-node":    true,
	"component-node": true,
	"dim-range-node": true,
	"component":      true,
}

// splitDeclarations cuts the model text into logical declarations. Blank
// lines and #-comments are skipped, as are the optional <Nnet3> framing
// tokens. A non-directive line outside any declaration is a fatal error.
func splitDeclarations(text string) ([]declaration, error) {
	var decls []declaration
	var cur *declaration

	for lineNo, raw := range strings.Split(text, "\n") {
		line := raw
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		first := fields[0]
		switch {
		case first == "<Nnet3>" || first == "</Nnet3>":
			cur = nil
			fields = fields[1:]
			if len(fields) == 0 {
				continue
			}
			first = fields[0]
			if !directives[first] {
				return nil, &ParseError{
					Line:    lineNo + 1,
					Content: strings.TrimSpace(raw),
					Message: "unexpected text after framing token",
				}
			}
			fallthrough
		case directives[first]:
			decls = append(decls, declaration{
				directive: first,
				line:      lineNo + 1,
				content:   strings.TrimSpace(raw),
			})
			cur = &decls[len(decls)-1]
			fields = fields[1:]
		default:
			// Continuation line: matrix rows, vector tails.
			if cur == nil {
				return nil, &ParseError{
					Line:    lineNo + 1,
					Content: strings.TrimSpace(raw),
					Message: "unrecognized directive",
				}
			}
		}

		for _, f := range fields {
			cur.tokens = append(cur.tokens, token{text: f, line: lineNo + 1})
		}
	}

	return decls, nil
}

// tokenStream is a cursor over a declaration's tokens.
type tokenStream struct {
	toks []token
	i    int
}

func (ts *tokenStream) next() (token, bool) {
	if ts.i >= len(ts.toks) {
		return token{}, false
	}
	t := ts.toks[ts.i]
	ts.i++
	return t, true
}

func (ts *tokenStream) peek() (token, bool) {
	if ts.i >= len(ts.toks) {
		return token{}, false
	}
	return ts.toks[ts.i], true
}
