package graphtree

import (
	"sort"

	"github.com/vanderheijden86/burrow/pkg/metrics"
)

// ExpansionState is the authoritative store of which node occurrences are
// currently expanded, plus at most one selected root. It is an explicit
// instance, never a package-level singleton, so independent trees hold
// independent state.
//
// Alongside the expanded set it maintains a parent→children adjacency map
// recorded at expand time. Collapse walks that map directly, making
// cascade removal a structural subtree operation; the string identifier is
// only the stable external key, never the source of structural truth.
//
// ExpansionState is single-writer by contract (the host's event loop) and
// does no internal locking.
type ExpansionState struct {
	expanded map[string]struct{}
	children map[string]map[string]struct{}
	parents  map[string]map[string]struct{}
	selected NodeID
	hasSel   bool
}

// NewExpansionState returns an empty state.
func NewExpansionState() *ExpansionState {
	return &ExpansionState{
		expanded: make(map[string]struct{}),
		children: make(map[string]map[string]struct{}),
		parents:  make(map[string]map[string]struct{}),
	}
}

// IsExpanded reports whether the occurrence is expanded.
func (s *ExpansionState) IsExpanded(id NodeID) bool {
	_, ok := s.expanded[id.String()]
	return ok
}

// Expand marks a top-level occurrence expanded. Idempotent.
func (s *ExpansionState) Expand(id NodeID) {
	if id.IsZero() {
		return
	}
	s.expanded[id.String()] = struct{}{}
}

// ExpandChild marks an occurrence expanded and records the parent→child
// edge used by cascade collapse. A zero parent degrades to Expand.
func (s *ExpansionState) ExpandChild(parent, id NodeID) {
	if id.IsZero() {
		return
	}
	s.Expand(id)
	if parent.IsZero() {
		return
	}
	pk, ck := parent.String(), id.String()
	if s.children[pk] == nil {
		s.children[pk] = make(map[string]struct{})
	}
	s.children[pk][ck] = struct{}{}
	if s.parents[ck] == nil {
		s.parents[ck] = make(map[string]struct{})
	}
	s.parents[ck][pk] = struct{}{}
}

// Collapse removes the occurrence and every occurrence transitively opened
// beneath it, in one atomic update. It never removes only the node itself.
func (s *ExpansionState) Collapse(id NodeID) {
	defer metrics.Timer(metrics.CascadeCollapse)()

	queue := []string{id.String()}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]

		delete(s.expanded, k)
		for c := range s.children[k] {
			queue = append(queue, c)
		}
		delete(s.children, k)

		for p := range s.parents[k] {
			if set, ok := s.children[p]; ok {
				delete(set, k)
			}
		}
		delete(s.parents, k)
	}
}

// Toggle expands a collapsed top-level occurrence or collapses (with
// cascade) an expanded one. Returns whether the occurrence is expanded
// afterwards.
func (s *ExpansionState) Toggle(id NodeID) bool {
	if s.IsExpanded(id) {
		s.Collapse(id)
		return false
	}
	s.Expand(id)
	return true
}

// ToggleChild is Toggle with the parent edge recorded on expansion.
func (s *ExpansionState) ToggleChild(parent, id NodeID) bool {
	if s.IsExpanded(id) {
		s.Collapse(id)
		return false
	}
	s.ExpandChild(parent, id)
	return true
}

// Select toggles selection of a root occurrence and returns whether the
// node is now selected. Selecting the selected node again clears the
// selection; selecting a new one silently replaces the old. Only
// root-shaped identities are selectable; anything else is a no-op
// returning false.
func (s *ExpansionState) Select(id NodeID) bool {
	if id.Kind != KindRoot || id.IsZero() {
		return false
	}
	if s.hasSel && s.selected == id {
		s.hasSel = false
		s.selected = NodeID{}
		return false
	}
	s.selected = id
	s.hasSel = true
	return true
}

// Selected returns the selected root occurrence, if any.
func (s *ExpansionState) Selected() (NodeID, bool) {
	return s.selected, s.hasSel
}

// Clear empties expansion and selection. Called whenever the root
// entity/record set changes; no expansion survives it.
func (s *ExpansionState) Clear() {
	s.expanded = make(map[string]struct{})
	s.children = make(map[string]map[string]struct{})
	s.parents = make(map[string]map[string]struct{})
	s.selected = NodeID{}
	s.hasSel = false
}

// Len returns the number of expanded occurrences.
func (s *ExpansionState) Len() int {
	return len(s.expanded)
}

// Clone returns a deep copy. Render passes that run off the writer
// goroutine read a clone, so the event loop can keep mutating the live
// state without racing the pass.
func (s *ExpansionState) Clone() *ExpansionState {
	c := NewExpansionState()
	for k := range s.expanded {
		c.expanded[k] = struct{}{}
	}
	for p, set := range s.children {
		dst := make(map[string]struct{}, len(set))
		for k := range set {
			dst[k] = struct{}{}
		}
		c.children[p] = dst
	}
	for ch, set := range s.parents {
		dst := make(map[string]struct{}, len(set))
		for k := range set {
			dst[k] = struct{}{}
		}
		c.parents[ch] = dst
	}
	c.selected = s.selected
	c.hasSel = s.hasSel
	return c
}

// Expanded returns the expanded identifier strings, sorted for
// deterministic inspection.
func (s *ExpansionState) Expanded() []string {
	keys := make([]string, 0, len(s.expanded))
	for k := range s.expanded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
