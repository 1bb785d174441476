package export

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/vanderheijden86/burrow/pkg/analysis"
)

func renderAviationSVG(t *testing.T) string {
	t.Helper()

	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	out := filepath.Join(t.TempDir(), "schema.svg")
	err := SaveSchemaSnapshot(SchemaSnapshotOptions{
		Path:    out,
		Format:  "svg",
		Source:  "flights.db",
		Schemas: schemas,
		Stats:   stats,
	})
	if err != nil {
		t.Fatalf("SaveSchemaSnapshot error: %v", err)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(content)
}

func TestSVG_ValidXMLStructure(t *testing.T) {
	svgStr := renderAviationSVG(t)

	var doc interface{}
	if err := xml.Unmarshal([]byte(svgStr), &doc); err != nil {
		t.Errorf("SVG is not valid XML: %v\nContent:\n%s", err, svgStr)
	}

	if !strings.Contains(svgStr, "<svg") || !strings.Contains(svgStr, "</svg>") {
		t.Error("SVG must be wrapped in <svg>...</svg>")
	}
	if !regexp.MustCompile(`width="[0-9]+"`).MatchString(svgStr) {
		t.Error("SVG should have a numeric width attribute")
	}
	if !regexp.MustCompile(`height="[0-9]+"`).MatchString(svgStr) {
		t.Error("SVG should have a numeric height attribute")
	}
}

func TestSVG_ContainsEntitiesAndSummary(t *testing.T) {
	svgStr := renderAviationSVG(t)

	for _, entity := range []string{"manufacturers", "aircraft", "flights", "crew_assignments"} {
		if !strings.Contains(svgStr, entity) {
			t.Errorf("SVG should contain entity %q", entity)
		}
	}
	if !strings.Contains(svgStr, "entities: 4  references: 3") {
		t.Error("SVG should contain the entity/reference counts line")
	}
	if !strings.Contains(svgStr, "source: flights.db") {
		t.Error("SVG should contain the source line")
	}
	if !strings.Contains(svgStr, footerCaption) {
		t.Error("SVG should contain the footer caption")
	}
}

func TestSVG_EdgeLabels(t *testing.T) {
	svgStr := renderAviationSVG(t)

	for _, label := range []string{"manufacturer_id", "aircraft_id", "flight_id"} {
		if !strings.Contains(svgStr, label) {
			t.Errorf("SVG should label the edge with FK column %q", label)
		}
	}
}

func TestSVG_BackEdgeHighlighted(t *testing.T) {
	schemas := cycleSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()

	var buf bytes.Buffer
	layout := buildLayout(SchemaSnapshotOptions{Schemas: schemas, Stats: stats})
	if err := renderSVGToWriter(&buf, layout); err != nil {
		t.Fatalf("renderSVGToWriter error: %v", err)
	}

	svgStr := buf.String()
	if !strings.Contains(svgStr, css(colorEdgeBack)) {
		t.Errorf("cycle snapshot should draw a back edge in %s", css(colorEdgeBack))
	}
	if !strings.Contains(svgStr, css(colorEdge)) {
		t.Errorf("cycle snapshot should still draw the forward edge in %s", css(colorEdge))
	}
	if !strings.Contains(svgStr, "cycles: 1") {
		t.Error("summary should report the reference cycle")
	}
}

func TestSVG_AreaColorTintsNode(t *testing.T) {
	svgStr := renderAviationSVG(t)

	// manufacturers carries an area color; its fill is the tinted variant
	want := css(nodeFill(aviationSchemas()[0]))
	if want == css(colorNodeFill) {
		t.Fatal("fixture should tint the manufacturers node away from the fallback fill")
	}
	if !strings.Contains(svgStr, want) {
		t.Errorf("SVG should fill the manufacturers node with %s", want)
	}
}

func TestSVG_Deterministic(t *testing.T) {
	schemas := aviationSchemas()
	stats := analysis.NewAnalyzer(schemas).Analyze()
	opts := SchemaSnapshotOptions{Source: "flights.db", Schemas: schemas, Stats: stats}

	var first, second bytes.Buffer
	if err := renderSVGToWriter(&first, buildLayout(opts)); err != nil {
		t.Fatalf("first render: %v", err)
	}
	if err := renderSVGToWriter(&second, buildLayout(opts)); err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("two renders of the same schemas should be byte-identical")
	}
}
