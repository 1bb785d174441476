package graphtree_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/vanderheijden86/burrow/pkg/graphtree"
	"github.com/vanderheijden86/burrow/pkg/model"
	"github.com/vanderheijden86/burrow/pkg/testutil"
)

func newRenderer(store *testutil.FixtureStore, state *graphtree.ExpansionState, opts graphtree.Options) *graphtree.Renderer {
	return graphtree.NewRenderer(store, store, state, nil, opts)
}

// findByID returns the first node whose identity renders to the given
// string, or nil.
func findByID(root *graphtree.ViewNode, id string) *graphtree.ViewNode {
	var found *graphtree.ViewNode
	root.Walk(func(n *graphtree.ViewNode) bool {
		if found == nil && !n.ID.IsZero() && n.ID.String() == id {
			found = n
		}
		return found == nil
	})
	return found
}

func childKinds(n *graphtree.ViewNode) []graphtree.ViewNodeKind {
	kinds := make([]graphtree.ViewNodeKind, len(n.Children))
	for i, c := range n.Children {
		kinds[i] = c.Kind
	}
	return kinds
}

func mustFlight1(t *testing.T, store *testutil.FixtureStore) model.Record {
	t.Helper()
	rec, err := store.GetByID(context.Background(), "flights", "1")
	if err != nil {
		t.Fatalf("fixture flight: %v", err)
	}
	store.GetByIDCalls.Store(0)
	return rec
}

func TestRenderRootCollapsed(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	r := newRenderer(store, graphtree.NewExpansionState(), graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	if tree.Kind != graphtree.ViewRoot {
		t.Errorf("Kind = %v, want root", tree.Kind)
	}
	if got := tree.ID.String(); got != "flights-1" {
		t.Errorf("ID = %q, want flights-1", got)
	}
	if tree.Label != "UA512" {
		t.Errorf("Label = %q, want UA512", tree.Label)
	}
	if !tree.Expandable || tree.Expanded {
		t.Errorf("collapsed root: expandable=%v expanded=%v", tree.Expandable, tree.Expanded)
	}
	if len(tree.Children) != 0 {
		t.Errorf("collapsed root has %d children", len(tree.Children))
	}
}

func TestRenderRootExpanded(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	want := []graphtree.ViewNodeKind{
		graphtree.ViewAttributeRow, graphtree.ViewFK, graphtree.ViewBackRefGroup,
	}
	if got := childKinds(tree); !reflect.DeepEqual(got, want) {
		t.Fatalf("child kinds = %v, want %v", got, want)
	}

	// Row layout: one row node carrying the visible non-reference columns.
	// System (id, created_at) and hidden (internal_notes) columns stay out.
	row := tree.Children[0]
	if len(row.Cells) != 2 {
		t.Fatalf("attribute cells = %d, want 2 (%+v)", len(row.Cells), row.Cells)
	}
	if row.Cells[0].Column != "number" || row.Cells[0].Value != "UA512" {
		t.Errorf("cell 0 = %+v, want number=UA512", row.Cells[0])
	}
	if row.Cells[1].Column != "status" || row.Cells[1].Value != "boarding" {
		t.Errorf("cell 1 = %+v, want status=boarding", row.Cells[1])
	}

	fk := tree.Children[1]
	if got := fk.ID.String(); got != "fk-aircraft-3-from-1" {
		t.Errorf("fk ID = %q", got)
	}
	if fk.Via != "aircraft_id" {
		t.Errorf("fk Via = %q, want aircraft_id", fk.Via)
	}
	if fk.Parent != tree.ID {
		t.Errorf("fk Parent = %v, want %v", fk.Parent, tree.ID)
	}

	group := tree.Children[2]
	if got := group.ID.String(); got != "backref-crew_assignments-to-flights-1" {
		t.Errorf("group ID = %q", got)
	}
	if group.TotalCount != 2 {
		t.Errorf("group TotalCount = %d, want 2", group.TotalCount)
	}
}

// The first occurrence of a record expands normally; a second occurrence
// of the same record further down the same branch renders as a cycle
// marker and never recurses.
func TestCycleDetectedOnRevisit(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	state.Expand(graphtree.FKID("aircraft", "3", "1"))
	state.Expand(graphtree.FKID("manufacturers", "7", "3"))
	state.Expand(graphtree.BackRefGroupID("aircraft", "manufacturers", "7"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	first := findByID(tree, "fk-aircraft-3-from-1")
	if first == nil {
		t.Fatal("first aircraft occurrence missing")
	}
	if first.Cycle {
		t.Error("first occurrence flagged as cycle")
	}
	if !first.Expanded || len(first.Children) == 0 {
		t.Error("first occurrence did not expand")
	}

	revisit := findByID(tree, "backref-row-aircraft-3-in-manufacturers-7")
	if revisit == nil {
		t.Fatal("revisited aircraft row missing from manufacturer back-references")
	}
	if !revisit.Cycle {
		t.Error("revisit not flagged as cycle")
	}
	if revisit.Expandable {
		t.Error("cycle marker is expandable")
	}
	if len(revisit.Children) != 0 {
		t.Error("cycle marker recursed")
	}
	if revisit.Label != "N747UA" {
		t.Errorf("cycle label = %q, want the record label N747UA", revisit.Label)
	}
}

// A record blocked as a cycle in one branch stays expandable in another:
// detection state is per branch, not global.
func TestCycleScopePerBranch(t *testing.T) {
	store := testutil.SelfRefFixture()
	rec, err := store.GetByID(context.Background(), "employees", "1")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("employees", "1"))
	// FK branch: 1 -> 2. Back-reference branch: 1 <- 3 (manager_id=1).
	state.Expand(graphtree.FKID("employees", "2", "1"))
	state.Expand(graphtree.BackRefGroupID("employees", "employees", "1"))
	state.Expand(graphtree.BackRefRowID("employees", "3", "employees", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "employees", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	// The FK branch (1 -> 2) expands normally: nothing on its own path
	// repeats yet.
	fk := findByID(tree, "fk-employees-2-from-1")
	if fk == nil || fk.Cycle || !fk.Expanded {
		t.Fatalf("fk branch: %+v", fk)
	}

	// The back-reference branch (1 <- 3) expands independently of the FK
	// branch; only its own ancestors count. Employee 3's manager FK points
	// back to 1, which is on this branch's path, so that leaf cycles.
	row := findByID(tree, "backref-row-employees-3-in-employees-1")
	if row == nil || row.Cycle || !row.Expanded {
		t.Fatalf("backref branch: %+v", row)
	}
	leaf := findByID(row, "fk-employees-1-from-3")
	if leaf == nil {
		t.Fatal("manager fk under employee 3 missing")
	}
	if !leaf.Cycle {
		t.Error("loop back to the root not flagged")
	}
}

// The root's own (entity, id) pair is part of the path from the start, so
// a record referencing itself cycles immediately.
func TestRootSelfReferenceCycles(t *testing.T) {
	store := testutil.NewFixtureStore()
	store.AddSchema(&model.Schema{
		Entity: "employees",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
			{Name: "manager_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "employees"}},
		},
	})
	store.Add("employees", model.Record{"id": int64(5), "name": "Own boss", "manager_id": int64(5)})

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("employees", "5"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	rec, _ := store.GetByID(context.Background(), "employees", "5")
	tree, err := r.RenderRoot(context.Background(), "employees", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	self := findByID(tree, "fk-employees-5-from-5")
	if self == nil {
		t.Fatal("self reference missing")
	}
	if !self.Cycle {
		t.Error("self reference not flagged as cycle")
	}
}

func TestShowCyclesFalseOmitsMarkers(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	state.Expand(graphtree.FKID("aircraft", "3", "1"))
	state.Expand(graphtree.FKID("manufacturers", "7", "3"))
	state.Expand(graphtree.BackRefGroupID("aircraft", "manufacturers", "7"))

	opts := graphtree.DefaultOptions()
	opts.ShowCycles = false
	r := newRenderer(store, state, opts)

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	cycles := 0
	tree.Walk(func(n *graphtree.ViewNode) bool {
		if n.Cycle {
			cycles++
		}
		return true
	})
	if cycles != 0 {
		t.Errorf("found %d cycle markers with ShowCycles off", cycles)
	}
	if findByID(tree, "backref-row-aircraft-3-in-manufacturers-7") != nil {
		t.Error("revisited row still rendered")
	}
}

// Collapsing a mid-branch node cascades: re-rendering shows nothing below
// it expanded, and its former descendants are no longer tracked.
func TestCollapseCascadeAcrossRenders(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	root := graphtree.RootID("flights", "1")
	fk := graphtree.FKID("aircraft", "3", "1")
	deep := graphtree.FKID("manufacturers", "7", "3")
	state.Expand(root)
	state.ExpandChild(root, fk)
	state.ExpandChild(fk, deep)
	r := newRenderer(store, state, graphtree.DefaultOptions())

	before, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	if n := findByID(before, deep.String()); n == nil || !n.Expanded {
		t.Fatal("deep node should be expanded before collapse")
	}

	state.Collapse(fk)

	after, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	fkNode := findByID(after, fk.String())
	if fkNode == nil {
		t.Fatal("fk node missing after collapse")
	}
	if fkNode.Expanded || len(fkNode.Children) != 0 {
		t.Error("fk node still expanded after collapse")
	}
	if state.IsExpanded(deep) {
		t.Error("descendant expansion survived in state")
	}
}

func TestPreJoinedLabelSkipsFetch(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	fk := findByID(tree, "fk-aircraft-3-from-1")
	if fk == nil {
		t.Fatal("fk node missing")
	}
	if fk.Label != "N747UA" {
		t.Errorf("Label = %q, want pre-joined N747UA", fk.Label)
	}
	if got := store.GetByIDCalls.Load(); got != 0 {
		t.Errorf("GetByIDCalls = %d, want 0 (collapsed node with pre-joined label)", got)
	}
}

func TestFKWithoutPreJoinedLabelFetches(t *testing.T) {
	store := testutil.AviationFixture()
	rec, err := store.GetByID(context.Background(), "flights", "2")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	store.GetByIDCalls.Store(0)

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "2"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	fk := findByID(tree, "fk-aircraft-3-from-2")
	if fk == nil {
		t.Fatal("fk node missing")
	}
	if fk.Label != "N747UA" {
		t.Errorf("Label = %q, want N747UA from the fetched record", fk.Label)
	}
	if got := store.GetByIDCalls.Load(); got != 1 {
		t.Errorf("GetByIDCalls = %d, want 1", got)
	}
}

func TestMissingTargetMarker(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	store.Remove("aircraft", "3")

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	state.Expand(graphtree.FKID("aircraft", "3", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	fk := findByID(tree, "fk-aircraft-3-from-1")
	if fk == nil {
		t.Fatal("fk node missing")
	}
	if !fk.Missing {
		t.Error("vanished target not marked missing")
	}
	if fk.Expandable || fk.Expanded {
		t.Error("missing target still expandable")
	}
	if fk.Label != "N747UA" {
		t.Errorf("Label = %q, want the pre-joined fallback", fk.Label)
	}
}

func TestFKFetchErrorMarker(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	boom := errors.New("disk error")
	store.FailGetByID["aircraft/3"] = boom

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	state.Expand(graphtree.FKID("aircraft", "3", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot should not fail for a subtree error: %v", err)
	}

	fk := findByID(tree, "fk-aircraft-3-from-1")
	if fk == nil {
		t.Fatal("fk node missing")
	}
	if !errors.Is(fk.Err, boom) {
		t.Errorf("Err = %v, want %v", fk.Err, boom)
	}
	if fk.Expanded {
		t.Error("errored node renders expanded")
	}
}

func TestFKSchemaErrorMarker(t *testing.T) {
	store := testutil.NewFixtureStore()
	store.AddSchema(&model.Schema{
		Entity: "flights",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "number", Type: "TEXT", Label: true},
			{Name: "ghost_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "ghosts"}},
		},
	})
	store.Add("flights", model.Record{"id": int64(1), "number": "UA512", "ghost_id": int64(9)})

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	rec, _ := store.GetByID(context.Background(), "flights", "1")
	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	fk := findByID(tree, "fk-ghosts-9-from-1")
	if fk == nil {
		t.Fatal("fk node missing")
	}
	if fk.Err == nil {
		t.Error("schema failure not carried on the node")
	}
	if fk.Label != "ghosts #9" {
		t.Errorf("Label = %q, want fallback ghosts #9", fk.Label)
	}
}

func TestBackRefCollapsedCountsOnly(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	group := findByID(tree, "backref-crew_assignments-to-flights-1")
	if group == nil {
		t.Fatal("group missing")
	}
	if group.TotalCount != 2 || group.Shown != 0 || len(group.Children) != 0 {
		t.Errorf("collapsed group: total=%d shown=%d children=%d", group.TotalCount, group.Shown, len(group.Children))
	}
	if got := store.CountCalls.Load(); got != 1 {
		t.Errorf("CountCalls = %d, want 1", got)
	}
	if got := store.PreviewCalls.Load(); got != 0 {
		t.Errorf("PreviewCalls = %d, want 0 for a collapsed group", got)
	}
}

func TestBackRefZeroCountSuppressed(t *testing.T) {
	store := testutil.AviationFixture()
	rec, err := store.GetByID(context.Background(), "flights", "2")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "2"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	tree.Walk(func(n *graphtree.ViewNode) bool {
		if n.Kind == graphtree.ViewBackRefGroup {
			t.Errorf("zero-count group rendered: %+v", n)
		}
		return true
	})
}

func TestBackRefExpandedRows(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	state.Expand(graphtree.BackRefGroupID("crew_assignments", "flights", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	group := findByID(tree, "backref-crew_assignments-to-flights-1")
	if group == nil {
		t.Fatal("group missing")
	}
	if group.TotalCount != 2 || group.Shown != 2 || group.Truncated {
		t.Errorf("group accounting: total=%d shown=%d truncated=%v", group.TotalCount, group.Shown, group.Truncated)
	}
	if len(group.Children) != 2 {
		t.Fatalf("rows = %d, want 2", len(group.Children))
	}

	wantLabels := []string{"captain", "first officer"}
	for i, row := range group.Children {
		if row.Kind != graphtree.ViewBackRefRow {
			t.Errorf("row %d kind = %v", i, row.Kind)
		}
		if row.Label != wantLabels[i] {
			t.Errorf("row %d label = %q, want %q", i, row.Label, wantLabels[i])
		}
		if row.Via != "flight_id" {
			t.Errorf("row %d via = %q", i, row.Via)
		}
		if row.Parent != group.ID {
			t.Errorf("row %d parent = %v", i, row.Parent)
		}
	}
}

func TestBackRefTruncationHonest(t *testing.T) {
	store := testutil.WideBackRefFixture(25)
	rec, err := store.GetByID(context.Background(), "customers", "1")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("customers", "1"))
	state.Expand(graphtree.BackRefGroupID("orders", "customers", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "customers", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	group := findByID(tree, "backref-orders-to-customers-1")
	if group == nil {
		t.Fatal("group missing")
	}
	if group.TotalCount != 25 {
		t.Errorf("TotalCount = %d, want the true total 25", group.TotalCount)
	}
	if group.Shown != 10 || len(group.Children) != 10 {
		t.Errorf("shown = %d children = %d, want 10/10", group.Shown, len(group.Children))
	}
	if !group.Truncated {
		t.Error("truncation not reported")
	}
}

func TestBackRefGroupErrorMarker(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	boom := errors.New("backend down")
	store.FailBackRefs["crew_assignments"] = boom

	for _, expandGroup := range []bool{false, true} {
		state := graphtree.NewExpansionState()
		state.Expand(graphtree.RootID("flights", "1"))
		if expandGroup {
			state.Expand(graphtree.BackRefGroupID("crew_assignments", "flights", "1"))
		}
		r := newRenderer(store, state, graphtree.DefaultOptions())

		tree, err := r.RenderRoot(context.Background(), "flights", rec)
		if err != nil {
			t.Fatalf("RenderRoot (expanded=%v): %v", expandGroup, err)
		}
		group := findByID(tree, "backref-crew_assignments-to-flights-1")
		if group == nil {
			t.Fatalf("group missing (expanded=%v)", expandGroup)
		}
		if !errors.Is(group.Err, boom) {
			t.Errorf("group Err = %v (expanded=%v), want %v", group.Err, expandGroup, boom)
		}
	}
}

func TestReferencePositionOrdering(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)

	tests := []struct {
		name   string
		layout graphtree.AttributeLayout
		pos    graphtree.ReferencePosition
		want   []graphtree.ViewNodeKind
	}{
		{
			"list refs end", graphtree.LayoutList, graphtree.RefsEnd,
			[]graphtree.ViewNodeKind{graphtree.ViewAttribute, graphtree.ViewAttribute, graphtree.ViewFK, graphtree.ViewBackRefGroup},
		},
		{
			"list refs start", graphtree.LayoutList, graphtree.RefsStart,
			[]graphtree.ViewNodeKind{graphtree.ViewFK, graphtree.ViewBackRefGroup, graphtree.ViewAttribute, graphtree.ViewAttribute},
		},
		{
			"list refs inline", graphtree.LayoutList, graphtree.RefsInline,
			[]graphtree.ViewNodeKind{graphtree.ViewAttribute, graphtree.ViewFK, graphtree.ViewAttribute, graphtree.ViewBackRefGroup},
		},
		{
			"row layout ignores refs start", graphtree.LayoutRow, graphtree.RefsStart,
			[]graphtree.ViewNodeKind{graphtree.ViewAttributeRow, graphtree.ViewFK, graphtree.ViewBackRefGroup},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := graphtree.NewExpansionState()
			state.Expand(graphtree.RootID("flights", "1"))
			opts := graphtree.DefaultOptions()
			opts.AttributeLayout = tt.layout
			opts.ReferencePosition = tt.pos
			r := newRenderer(store, state, opts)

			tree, err := r.RenderRoot(context.Background(), "flights", rec)
			if err != nil {
				t.Fatalf("RenderRoot: %v", err)
			}
			if got := childKinds(tree); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("child kinds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttributeOrderAlpha(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))

	opts := graphtree.DefaultOptions()
	opts.AttributeLayout = graphtree.LayoutList
	opts.AttributeOrder = graphtree.OrderAlpha
	opts.ShowSystemColumns = true
	r := newRenderer(store, state, opts)

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	var attrs []string
	for _, c := range tree.Children {
		if c.Kind == graphtree.ViewAttribute {
			attrs = append(attrs, c.Label)
		}
	}
	want := []string{"created_at", "id", "number", "status"}
	if !reflect.DeepEqual(attrs, want) {
		t.Errorf("attribute order = %v, want %v", attrs, want)
	}
}

func TestShowSystemColumns(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))

	opts := graphtree.DefaultOptions()
	opts.ShowSystemColumns = true
	r := newRenderer(store, state, opts)

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	row := tree.Children[0]
	var cols []string
	for _, c := range row.Cells {
		cols = append(cols, c.Column)
	}
	want := []string{"id", "number", "status", "created_at"}
	if !reflect.DeepEqual(cols, want) {
		t.Errorf("columns = %v, want %v", cols, want)
	}
	for _, c := range cols {
		if c == "internal_notes" {
			t.Error("hidden column leaked into the row")
		}
	}
}

func TestExpandToDepth(t *testing.T) {
	store := testutil.ChainFixture(4)
	rec, err := store.GetByID(context.Background(), "links", "1")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	r := newRenderer(store, graphtree.NewExpansionState(), graphtree.DefaultOptions())

	tree, err := r.ExpandToDepth(context.Background(), "links", rec, 2)
	if err != nil {
		t.Fatalf("ExpandToDepth: %v", err)
	}

	if !tree.Expanded {
		t.Error("root not expanded")
	}
	l2 := findByID(tree, "fk-links-2-from-1")
	if l2 == nil || !l2.Expanded {
		t.Fatalf("link 2 should be expanded: %+v", l2)
	}
	l3 := findByID(tree, "fk-links-3-from-2")
	if l3 == nil {
		t.Fatal("link 3 missing")
	}
	if l3.Expanded {
		t.Error("link 3 expanded beyond the depth bound")
	}
	var sawLink4 bool
	tree.Walk(func(n *graphtree.ViewNode) bool {
		if n.RecordID == "4" {
			sawLink4 = true
		}
		return true
	})
	if sawLink4 {
		t.Error("link 4 rendered past a collapsed node")
	}
}

// A reference loop must not keep ExpandToDepth iterating: cycle markers
// are not expandable, so the fixpoint terminates.
func TestExpandToDepthTerminatesOnLoop(t *testing.T) {
	store := testutil.SelfRefFixture()
	rec, err := store.GetByID(context.Background(), "employees", "1")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	r := newRenderer(store, graphtree.NewExpansionState(), graphtree.DefaultOptions())

	tree, err := r.ExpandToDepth(context.Background(), "employees", rec, 10)
	if err != nil {
		t.Fatalf("ExpandToDepth: %v", err)
	}

	cycles := 0
	tree.Walk(func(n *graphtree.ViewNode) bool {
		if n.Cycle {
			cycles++
		}
		return true
	})
	if cycles == 0 {
		t.Error("loop fixture rendered without any cycle markers")
	}
}

func TestRenderRootErrors(t *testing.T) {
	store := testutil.AviationFixture()
	r := newRenderer(store, graphtree.NewExpansionState(), graphtree.DefaultOptions())

	if _, err := r.RenderRoot(context.Background(), "flights", nil); err == nil {
		t.Error("nil record accepted")
	}
	rec := model.Record{"id": int64(1)}
	if _, err := r.RenderRoot(context.Background(), "no_such_entity", rec); err == nil {
		t.Error("unknown entity accepted")
	}
}

func TestRenderDeterministic(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	state.Expand(graphtree.FKID("aircraft", "3", "1"))
	state.Expand(graphtree.BackRefGroupID("crew_assignments", "flights", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	first, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	second, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("same state rendered two different trees")
	}
}

func TestSetOptionsRebuildsPreviewLimit(t *testing.T) {
	store := testutil.WideBackRefFixture(25)
	rec, err := store.GetByID(context.Background(), "customers", "1")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("customers", "1"))
	state.Expand(graphtree.BackRefGroupID("orders", "customers", "1"))

	opts := graphtree.DefaultOptions()
	opts.BackRefPreviewLimit = 5
	r := newRenderer(store, state, opts)

	tree, err := r.RenderRoot(context.Background(), "customers", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	if group := findByID(tree, "backref-orders-to-customers-1"); group == nil || group.Shown != 5 {
		t.Errorf("group = %+v, want Shown 5", group)
	}

	opts.BackRefPreviewLimit = 3
	r.SetOptions(opts)

	tree, err = r.RenderRoot(context.Background(), "customers", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	if group := findByID(tree, "backref-orders-to-customers-1"); group == nil || group.Shown != 3 {
		t.Errorf("group = %+v, want Shown 3 after SetOptions", group)
	}
}

func TestWithStateRendersSnapshot(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	live := graphtree.NewExpansionState()
	live.Expand(graphtree.RootID("flights", "1"))
	r := newRenderer(store, live, graphtree.DefaultOptions())

	snapshot := live.Clone()
	live.Collapse(graphtree.RootID("flights", "1"))

	tree, err := r.WithState(snapshot).RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	if !tree.Expanded {
		t.Error("snapshot renderer saw the live mutation")
	}

	tree, err = r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}
	if tree.Expanded {
		t.Error("live renderer missed the live mutation")
	}
}

// Sibling FK targets are fetched concurrently; the emitted order must
// still match schema order no matter which fetch finishes first.
func TestStarSiblingsKeepSchemaOrder(t *testing.T) {
	const spokes = 12
	store := testutil.StarFixture(spokes)
	rec, err := store.GetByID(context.Background(), "hubs", "1")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("hubs", "1"))
	for i := 1; i <= spokes; i++ {
		state.Expand(graphtree.FKID(fmt.Sprintf("spoke%d", i), fmt.Sprintf("%d", i), "1"))
	}
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "hubs", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	var vias []string
	for _, c := range tree.Children {
		if c.Kind == graphtree.ViewFK {
			vias = append(vias, c.Via)
			if !c.Expanded || len(c.Children) == 0 {
				t.Errorf("spoke %s did not expand", c.Via)
			}
		}
	}
	if len(vias) != spokes {
		t.Fatalf("got %d fk children, want %d", len(vias), spokes)
	}
	for i, via := range vias {
		if want := fmt.Sprintf("spoke%d_id", i+1); via != want {
			t.Errorf("fk %d = %s, want %s", i, via, want)
		}
	}
}

// A loop spanning several entities terminates at the occurrence that
// closes it, not earlier.
func TestMultiEntityCycleLoop(t *testing.T) {
	store := testutil.CycleFixture()
	rec, err := store.GetByID(context.Background(), "regions", "1")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("regions", "1"))
	state.Expand(graphtree.FKID("zones", "2", "1"))
	state.Expand(graphtree.FKID("racks", "3", "2"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "regions", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	zone := findByID(tree, "fk-zones-2-from-1")
	if zone == nil || zone.Cycle {
		t.Fatalf("zone hop should be clean: %+v", zone)
	}
	rack := findByID(zone, "fk-racks-3-from-2")
	if rack == nil || rack.Cycle {
		t.Fatalf("rack hop should be clean: %+v", rack)
	}
	loop := findByID(rack, "fk-regions-1-from-3")
	if loop == nil {
		t.Fatal("closing hop missing")
	}
	if !loop.Cycle || loop.Expandable || len(loop.Children) != 0 {
		t.Errorf("closing hop should be a terminal cycle marker: %+v", loop)
	}
}

func TestWalkStopsDescent(t *testing.T) {
	store := testutil.AviationFixture()
	rec := mustFlight1(t, store)
	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID("flights", "1"))
	state.Expand(graphtree.FKID("aircraft", "3", "1"))
	r := newRenderer(store, state, graphtree.DefaultOptions())

	tree, err := r.RenderRoot(context.Background(), "flights", rec)
	if err != nil {
		t.Fatalf("RenderRoot: %v", err)
	}

	var visited int
	tree.Walk(func(n *graphtree.ViewNode) bool {
		visited++
		return n.Kind != graphtree.ViewFK // stop below the fk node
	})
	if visited >= tree.CountNodes() {
		t.Errorf("walk visited %d of %d nodes despite early stop", visited, tree.CountNodes())
	}
}
