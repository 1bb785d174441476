package graphtree

// ViewNodeKind discriminates the typed node descriptors of a rendered
// tree. Attribute kinds carry no NodeID: they are content, not expandable
// occurrences.
type ViewNodeKind int

const (
	ViewRoot ViewNodeKind = iota
	ViewFK
	ViewBackRefGroup
	ViewBackRefRow
	ViewAttribute
	ViewAttributeRow
)

func (k ViewNodeKind) String() string {
	switch k {
	case ViewRoot:
		return "root"
	case ViewFK:
		return "fk"
	case ViewBackRefGroup:
		return "backref-group"
	case ViewBackRefRow:
		return "backref-row"
	case ViewAttribute:
		return "attribute"
	case ViewAttributeRow:
		return "attribute-row"
	default:
		return "unknown"
	}
}

// AttributeCell is one formatted column value.
type AttributeCell struct {
	Column string
	Value  string
}

// ViewNode is one typed descriptor in the abstract tree handed to the
// host. The engine makes no assumption about how it is painted.
type ViewNode struct {
	Kind   ViewNodeKind
	ID     NodeID // zero for attribute kinds
	Parent NodeID // zero for roots

	Entity   string
	RecordID string
	Label    string
	Via      string // FK column (fk nodes) or referencing column (groups)

	Cells []AttributeCell

	Expandable bool
	Expanded   bool
	Cycle      bool // traversal stopped here: occurrence already on the path
	Missing    bool // referenced record vanished between listing and fetch
	Err        error

	// Back-reference group accounting.
	TotalCount int
	Shown      int
	Truncated  bool

	AreaColor string
	Depth     int
	Children  []*ViewNode
}

// Walk visits the node and its descendants pre-order. fn returning false
// stops descent below that node (siblings still visit).
func (n *ViewNode) Walk(fn func(*ViewNode) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// CountNodes returns the total number of descriptors in the subtree,
// including the receiver.
func (n *ViewNode) CountNodes() int {
	count := 0
	n.Walk(func(*ViewNode) bool {
		count++
		return true
	})
	return count
}
