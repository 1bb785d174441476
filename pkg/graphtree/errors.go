package graphtree

import "fmt"

// MalformedIDError reports an identifier that matches none of the four
// shapes. This indicates a contract breach between components, not bad
// user data: callers on production paths skip the node, while tests and
// debug builds surface it loudly.
type MalformedIDError struct {
	Input  string
	Reason string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed node identifier %q: %s", e.Input, e.Reason)
}
