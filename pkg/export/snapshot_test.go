package export

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/burrow/pkg/analysis"
	"github.com/vanderheijden86/burrow/pkg/model"
)

func col(name string) model.Column {
	return model.Column{Name: name, Type: "TEXT"}
}

func fkCol(name, target string) model.Column {
	return model.Column{Name: name, Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: target}}
}

func testSchema(entity string, cols ...model.Column) *model.Schema {
	all := append([]model.Column{{Name: "id", Type: "INTEGER", System: true}}, cols...)
	return &model.Schema{Entity: entity, Columns: all}
}

// aviationSchemas is a reference chain four entities deep:
// crew_assignments -> flights -> aircraft -> manufacturers.
func aviationSchemas() []*model.Schema {
	manufacturers := testSchema("manufacturers", col("name"), col("country"))
	manufacturers.AreaColor = "#bb9af7"
	return []*model.Schema{
		manufacturers,
		testSchema("aircraft", col("tail_number"), fkCol("manufacturer_id", "manufacturers")),
		testSchema("flights", col("number"), fkCol("aircraft_id", "aircraft")),
		testSchema("crew_assignments", col("role"), fkCol("flight_id", "flights")),
	}
}

func cycleSchemas() []*model.Schema {
	return []*model.Schema{
		testSchema("employees", col("name"), fkCol("team_id", "teams")),
		testSchema("teams", col("name"), fkCol("lead_id", "employees")),
	}
}

func TestSaveSchemaSnapshot_SVGAndPNG(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	tmp := t.TempDir()
	cases := []struct {
		name string
		file string
	}{
		{"svg", "schema.svg"},
		{"png", "schema.png"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(tmp, tc.file)
			err := SaveSchemaSnapshot(SchemaSnapshotOptions{
				Path:    out,
				Source:  "flights.db",
				Schemas: schemas,
				Stats:   stats,
			})
			if err != nil {
				t.Fatalf("SaveSchemaSnapshot error: %v", err)
			}
			info, err := os.Stat(out)
			if err != nil {
				t.Fatalf("output not created: %v", err)
			}
			if info.Size() == 0 {
				t.Fatalf("output file is empty")
			}
		})
	}
}

func TestSaveSchemaSnapshot_InvalidFormat(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	err := SaveSchemaSnapshot(SchemaSnapshotOptions{
		Path:    "schema.txt",
		Format:  "txt",
		Schemas: schemas,
		Stats:   stats,
	})
	if err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestSaveSchemaSnapshot_EmptySchemas(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	err := SaveSchemaSnapshot(SchemaSnapshotOptions{
		Path:    "schema.svg",
		Schemas: nil,
		Stats:   stats,
	})
	if err == nil {
		t.Fatalf("expected error for empty schemas")
	}
}

func TestSaveSchemaSnapshot_NilStats(t *testing.T) {
	err := SaveSchemaSnapshot(SchemaSnapshotOptions{
		Path:    "schema.svg",
		Schemas: aviationSchemas(),
		Stats:   nil,
	})
	if err == nil {
		t.Fatalf("expected error for nil stats")
	}
}

func TestSaveSchemaSnapshot_EmptyPath(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	err := SaveSchemaSnapshot(SchemaSnapshotOptions{
		Path:    "",
		Schemas: schemas,
		Stats:   stats,
	})
	if err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSaveSchemaSnapshot_FormatInference(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	tmp := t.TempDir()
	cases := []struct {
		name string
		path string
	}{
		{"svg extension", filepath.Join(tmp, "test.svg")},
		{"png extension", filepath.Join(tmp, "test.png")},
		{"no extension defaults to svg", filepath.Join(tmp, "test_noext")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := SaveSchemaSnapshot(SchemaSnapshotOptions{
				Path:    tc.path,
				Schemas: schemas,
				Stats:   stats,
			})
			if err != nil {
				t.Fatalf("SaveSchemaSnapshot error: %v", err)
			}

			if _, err := os.Stat(tc.path); err != nil {
				// extensionless paths get .svg appended
				if _, err := os.Stat(tc.path + ".svg"); err != nil {
					t.Fatalf("output not created: %v", err)
				}
			}
		})
	}
}

func TestSaveSchemaSnapshot_RoomyPreset(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "roomy.svg")

	err := SaveSchemaSnapshot(SchemaSnapshotOptions{
		Path:    out,
		Preset:  "roomy",
		Schemas: schemas,
		Stats:   stats,
	})
	if err != nil {
		t.Fatalf("SaveSchemaSnapshot error: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output not created: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("output file is empty")
	}
}

func TestBuildLayout_MinDimensions(t *testing.T) {
	schemas := []*model.Schema{testSchema("airports", col("code"))}
	stats := analysis.NewAnalyzer(schemas).Analyze()

	layout := buildLayout(SchemaSnapshotOptions{
		Schemas: schemas,
		Stats:   stats,
	})

	if layout.Width < 640 {
		t.Errorf("expected minimum width of 640, got %d", layout.Width)
	}
	if layout.Height < 480 {
		t.Errorf("expected minimum height of 480, got %d", layout.Height)
	}
	if len(layout.Nodes) != 1 {
		t.Errorf("expected 1 node, got %d", len(layout.Nodes))
	}
}

func TestBuildLayout_LevelPlacement(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	layout := buildLayout(SchemaSnapshotOptions{
		Schemas: schemas,
		Stats:   stats,
	})

	xByEntity := make(map[string]float64, len(layout.Nodes))
	for _, n := range layout.Nodes {
		xByEntity[n.Entity] = n.X
	}

	// Deep referencing entities sit left, referenced-only leaves right.
	order := []string{"crew_assignments", "flights", "aircraft", "manufacturers"}
	for i := 0; i < len(order)-1; i++ {
		if xByEntity[order[i]] >= xByEntity[order[i+1]] {
			t.Errorf("%s (x=%.0f) should be left of %s (x=%.0f)",
				order[i], xByEntity[order[i]], order[i+1], xByEntity[order[i+1]])
		}
	}
}

func TestBuildLayout_NodeMetadata(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	layout := buildLayout(SchemaSnapshotOptions{
		Schemas: schemas,
		Stats:   stats,
	})

	var aircraft *layoutNode
	for i := range layout.Nodes {
		if layout.Nodes[i].Entity == "aircraft" {
			aircraft = &layout.Nodes[i]
		}
	}
	if aircraft == nil {
		t.Fatal("aircraft node missing from layout")
	}
	if aircraft.Columns != 3 {
		t.Errorf("aircraft Columns = %d, want 3", aircraft.Columns)
	}
	if aircraft.In != 1 || aircraft.Out != 1 {
		t.Errorf("aircraft degrees = in %d out %d, want in 1 out 1", aircraft.In, aircraft.Out)
	}
}

func TestBuildLayout_EdgeLabels(t *testing.T) {
	schemas := []*model.Schema{
		testSchema("employees", col("name")),
		testSchema("flights", col("number"),
			fkCol("pilot_id", "employees"),
			fkCol("copilot_id", "employees")),
	}
	stats := analysis.NewAnalyzer(schemas).Analyze()

	layout := buildLayout(SchemaSnapshotOptions{
		Schemas: schemas,
		Stats:   stats,
	})

	if len(layout.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(layout.Edges))
	}
	if layout.Edges[0].Label != "pilot_id +1" {
		t.Errorf("edge label = %q, want %q", layout.Edges[0].Label, "pilot_id +1")
	}
}

func TestBuildLayout_BackEdgeFlagged(t *testing.T) {
	schemas := cycleSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	layout := buildLayout(SchemaSnapshotOptions{
		Schemas: schemas,
		Stats:   stats,
	})

	if len(layout.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(layout.Edges))
	}
	back := make(map[string]bool, 2)
	for _, e := range layout.Edges {
		back[e.From+"->"+e.To] = e.Back
	}
	if back["employees->teams"] == back["teams->employees"] {
		t.Errorf("exactly one edge of the cycle should point against the level flow, got %v", back)
	}
	if layout.Summary.CycleCount != 1 {
		t.Errorf("CycleCount = %d, want 1", layout.Summary.CycleCount)
	}
}

func TestBuildLayout_SummaryCounts(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	layout := buildLayout(SchemaSnapshotOptions{
		Title:   "Flights DB",
		Source:  "flights.db",
		Schemas: schemas,
		Stats:   stats,
	})

	s := layout.Summary
	if s.Title != "Flights DB" {
		t.Errorf("Title = %q, want %q", s.Title, "Flights DB")
	}
	if s.EntityCount != 4 || s.EdgeCount != 3 {
		t.Errorf("counts = %d entities %d edges, want 4 and 3", s.EntityCount, s.EdgeCount)
	}
	if s.MostReferenced == "n/a" {
		t.Errorf("MostReferenced should name an entity, got %q", s.MostReferenced)
	}
}

func TestBuildLayout_DefaultTitle(t *testing.T) {
	schemas := []*model.Schema{testSchema("airports", col("code"))}
	stats := analysis.NewAnalyzer(schemas).Analyze()

	layout := buildLayout(SchemaSnapshotOptions{
		Schemas: schemas,
		Stats:   stats,
	})
	if layout.Summary.Title != "Schema Snapshot" {
		t.Errorf("default title = %q, want %q", layout.Summary.Title, "Schema Snapshot")
	}
}

func TestMostReferenced(t *testing.T) {
	tests := []struct {
		name     string
		inDegree map[string]int
		entities []string
		want     string
	}{
		{"clear winner", map[string]int{"a": 1, "b": 3}, []string{"a", "b"}, "b (in 3)"},
		{"tie alphabetical", map[string]int{"b": 2, "a": 2}, []string{"a", "b"}, "a (in 2)"},
		{"all zero", map[string]int{}, []string{"b", "a"}, "a (in 0)"},
		{"no entities", map[string]int{}, nil, "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mostReferenced(tt.inDegree, tt.entities)
			if got != tt.want {
				t.Errorf("mostReferenced() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want color.RGBA
		ok   bool
	}{
		{"with hash", "#bb9af7", color.RGBA{0xbb, 0x9a, 0xf7, 0xff}, true},
		{"without hash", "7dcfff", color.RGBA{0x7d, 0xcf, 0xff, 0xff}, true},
		{"empty", "", color.RGBA{}, false},
		{"short", "#fff", color.RGBA{}, false},
		{"garbage", "#zzzzzz", color.RGBA{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseHexColor(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseHexColor(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTint(t *testing.T) {
	black := color.RGBA{0, 0, 0, 0xff}
	if got := tint(black, 1); got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("tint(black, 1) = %v, want white", got)
	}
	if got := tint(black, 0); got != black {
		t.Errorf("tint(black, 0) = %v, want black", got)
	}
	mid := tint(black, 0.5)
	if mid.R != 127 || mid.G != 127 || mid.B != 127 {
		t.Errorf("tint(black, 0.5) = %v, want mid gray", mid)
	}
}

func TestNodeFill_FallsBackWithoutAreaColor(t *testing.T) {
	plain := testSchema("airports", col("code"))
	if got := nodeFill(plain); got != colorNodeFill {
		t.Errorf("nodeFill without area color = %v, want %v", got, colorNodeFill)
	}

	tinted := testSchema("aircraft", col("tail_number"))
	tinted.AreaColor = "#000000"
	if got := nodeFill(tinted); got == colorNodeFill {
		t.Errorf("nodeFill with area color should differ from fallback")
	}
}

func TestCss(t *testing.T) {
	tests := []struct {
		name     string
		c        color.RGBA
		expected string
	}{
		{"black", color.RGBA{0, 0, 0, 255}, "#000000"},
		{"white", color.RGBA{255, 255, 255, 255}, "#ffffff"},
		{"mixed", color.RGBA{171, 205, 239, 255}, "#abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := css(tt.c)
			if result != tt.expected {
				t.Errorf("css(%v) = %q, want %q", tt.c, result, tt.expected)
			}
		})
	}
}
