package graphtree_test

import (
	"testing"

	"github.com/vanderheijden86/burrow/pkg/graphtree"
)

func TestWouldCycleChecksWholeChain(t *testing.T) {
	p := graphtree.Path{}.
		Push("flights", "1").
		Push("aircraft", "3").
		Push("manufacturers", "7")

	tests := []struct {
		entity, id string
		want       bool
	}{
		{"manufacturers", "7", true}, // immediate parent
		{"aircraft", "3", true},      // one hop up
		{"flights", "1", true},       // the root itself
		{"aircraft", "4", false},     // same entity, different record
		{"crew_assignments", "3", false},
	}
	for _, tt := range tests {
		if got := p.WouldCycle(tt.entity, tt.id); got != tt.want {
			t.Errorf("WouldCycle(%s, %s) = %v, want %v", tt.entity, tt.id, got, tt.want)
		}
	}
}

func TestWouldCycleEmptyPath(t *testing.T) {
	var p graphtree.Path
	if p.WouldCycle("flights", "1") {
		t.Error("empty path reported a cycle")
	}
}

func TestPushDoesNotAliasSiblings(t *testing.T) {
	base := graphtree.Path{}.Push("flights", "1")

	left := base.Push("aircraft", "3")
	right := base.Push("crew_assignments", "21")

	if !left.WouldCycle("aircraft", "3") {
		t.Error("left branch lost its own entry")
	}
	if left.WouldCycle("crew_assignments", "21") {
		t.Error("right branch entry leaked into left")
	}
	if right.WouldCycle("aircraft", "3") {
		t.Error("left branch entry leaked into right")
	}
	if len(base) != 1 {
		t.Errorf("base path grew to %d entries", len(base))
	}
}

func TestPushOrderPreserved(t *testing.T) {
	p := graphtree.Path{}.Push("a", "1").Push("b", "2").Push("c", "3")
	want := []graphtree.PathEntry{{"a", "1"}, {"b", "2"}, {"c", "3"}}
	if len(p) != len(want) {
		t.Fatalf("len = %d, want %d", len(p), len(want))
	}
	for i := range want {
		if p[i] != want[i] {
			t.Errorf("p[%d] = %+v, want %+v", i, p[i], want[i])
		}
	}
}
