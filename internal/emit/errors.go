package emit

import "fmt"

// UnsupportedOpError reports an IR node the target lowerer has no
// mapping for.
type UnsupportedOpError struct {
	Node   string
	Op     string
	Target Target
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("node %q: operator %s has no %s lowering", e.Node, e.Op, e.Target)
}
