package graphtree

// PathEntry is one visited (entity, id) pair on the way from the tree root
// to the current node.
type PathEntry struct {
	Entity string
	ID     string
}

// Path is the ordered traversal context used for cycle detection. It is
// per-branch: sibling subtrees extend their own copies and never share
// detection state, so a record blocked as a cycle in one branch stays
// fully expandable in another.
type Path []PathEntry

// WouldCycle reports whether descending into (entity, id) would revisit a
// pair already present anywhere on the path. The whole ancestor chain is
// checked, not just the immediate parent, because references can loop back
// more than one hop away.
func (p Path) WouldCycle(entity, id string) bool {
	for _, e := range p {
		if e.Entity == entity && e.ID == id {
			return true
		}
	}
	return false
}

// Push returns the path extended by (entity, id). The result never shares
// a backing array with the receiver, so sibling branches cannot alias each
// other's extensions.
func (p Path) Push(entity, id string) Path {
	next := make(Path, len(p), len(p)+1)
	copy(next, p)
	return append(next, PathEntry{Entity: entity, ID: id})
}
