// Package export renders static schema snapshots (SVG or PNG) for
// sharing a database's reference structure outside the terminal.
package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vanderheijden86/burrow/pkg/analysis"
	"github.com/vanderheijden86/burrow/pkg/format"
	"github.com/vanderheijden86/burrow/pkg/model"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// SchemaSnapshotOptions controls schema snapshot export behaviour.
type SchemaSnapshotOptions struct {
	Path    string                // Output path; format inferred from extension when Format empty
	Format  string                // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title   string                // Optional title rendered in summary block
	Preset  string                // Layout preset: "compact" (default) or "roomy"
	Source  string                // Database path rendered for provenance
	Schemas []*model.Schema       // Entities to render
	Stats   *analysis.SchemaStats // Analysis over the same schemas; drives layout and summary
}

// SaveSchemaSnapshot renders the entity/FK graph as a static image with a
// minimal summary block. Entities sit in columns by reference depth, with
// the most referenced tables on the right, so the picture reads in the
// same direction the data is explored.
func SaveSchemaSnapshot(opts SchemaSnapshotOptions) error {
	if len(opts.Schemas) == 0 {
		return fmt.Errorf("no entities to export")
	}
	if opts.Stats == nil {
		return fmt.Errorf("schema analysis is required for snapshot export")
	}

	kind := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if kind == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			kind = "svg"
		case ".png":
			kind = "png"
		default:
			kind = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if kind != "svg" && kind != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", kind)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildLayout(opts)

	switch kind {
	case "svg":
		return renderSVG(opts, layout)
	case "png":
		return renderPNG(opts, layout)
	default:
		return fmt.Errorf("unhandled format %q", kind)
	}
}

// --- layout computation ----------------------------------------------------

type layoutNode struct {
	Entity  string
	Columns int
	In, Out int
	Level   int
	Rank    float64 // pagerank for intra-level ordering
	X, Y    float64
	NodeW   float64
	NodeH   float64
	Fill    color.RGBA
}

type layoutEdge struct {
	From  string
	To    string
	Label string // FK column(s) carrying the reference
	Back  bool   // points against the level flow (reference cycle)
}

type layoutResult struct {
	Nodes   []layoutNode
	Edges   []layoutEdge
	Width   int
	Height  int
	Header  float64
	Summary summaryInfo
}

type summaryInfo struct {
	Title          string
	Source         string
	EntityCount    int
	EdgeCount      int
	CycleCount     int
	MostReferenced string
}

func buildLayout(opts SchemaSnapshotOptions) layoutResult {
	const (
		nodeWCompact  = 170.0
		nodeHCompact  = 70.0
		nodeWRoomy    = 190.0
		nodeHRoomy    = 82.0
		colGapCompact = 80.0
		rowGapCompact = 40.0
		colGapRoomy   = 110.0
		rowGapRoomy   = 55.0
		padding       = 36.0
		headerHeight  = 120.0
	)

	roomy := strings.EqualFold(opts.Preset, "roomy")
	nodeW := nodeWCompact
	nodeH := nodeHCompact
	colGap := colGapCompact
	rowGap := rowGapCompact
	if roomy {
		nodeW = nodeWRoomy
		nodeH = nodeHRoomy
		colGap = colGapRoomy
		rowGap = rowGapRoomy
	}

	// The analyzer owns edge semantics (hidden columns, unknown targets,
	// several FK columns collapsing onto one edge), so rebuild it here
	// rather than re-deriving edges from raw schemas.
	an := analysis.NewAnalyzer(opts.Schemas)
	entities := an.Entities()

	schemaByEntity := make(map[string]*model.Schema, len(entities))
	for _, s := range opts.Schemas {
		if s == nil || s.Entity == "" {
			continue
		}
		if _, dup := schemaByEntity[s.Entity]; dup {
			continue
		}
		schemaByEntity[s.Entity] = s
	}

	maxLevel := 0
	for _, e := range entities {
		if lvl := opts.Stats.Levels[e]; lvl > maxLevel {
			maxLevel = lvl
		}
	}

	// group nodes by level for column placement
	levelBuckets := make(map[int][]layoutNode, maxLevel+1)
	for _, e := range entities {
		s := schemaByEntity[e]
		lvl := opts.Stats.Levels[e]
		n := layoutNode{
			Entity:  e,
			Columns: len(s.Columns),
			In:      opts.Stats.InDegree[e],
			Out:     opts.Stats.OutDegree[e],
			Level:   lvl,
			Rank:    opts.Stats.PageRank[e],
			NodeW:   nodeW,
			NodeH:   nodeH,
			Fill:    nodeFill(s),
		}
		levelBuckets[lvl] = append(levelBuckets[lvl], n)
	}

	// sort each level by rank then name for deterministic layout
	for lvl := 0; lvl <= maxLevel; lvl++ {
		nodes := levelBuckets[lvl]
		sort.Slice(nodes, func(i, j int) bool {
			// Epsilon comparison keeps the ordering stable when PageRank
			// is effectively tied but differs by floating point noise.
			const eps = 1e-6
			if diff := nodes[i].Rank - nodes[j].Rank; math.Abs(diff) > eps {
				return diff > 0
			}
			return nodes[i].Entity < nodes[j].Entity
		})
		levelBuckets[lvl] = nodes
	}

	// assign coordinates; the x axis is flipped so deep referencing
	// entities land on the left and referenced-only leaves on the right
	var nodes []layoutNode
	maxRows := 0
	for lvl := 0; lvl <= maxLevel; lvl++ {
		bucket := levelBuckets[lvl]
		if len(bucket) > maxRows {
			maxRows = len(bucket)
		}
		for idx := range bucket {
			bucket[idx].X = padding + float64(maxLevel-lvl)*(nodeW+colGap)
			bucket[idx].Y = padding + headerHeight + float64(idx)*(nodeH+rowGap)
			nodes = append(nodes, bucket[idx])
		}
	}

	width := int(padding*2 + float64(maxLevel)*(nodeW+colGap) + nodeW)
	if width < 640 {
		width = 640
	}
	height := int(padding*2 + headerHeight + float64(maxRows)*(nodeH+rowGap) + nodeH)
	if height < 480 {
		height = 480
	}

	var edges []layoutEdge
	for _, e := range an.Edges() {
		label := e.Via[0]
		if len(e.Via) > 1 {
			label = fmt.Sprintf("%s +%d", e.Via[0], len(e.Via)-1)
		}
		edges = append(edges, layoutEdge{
			From:  e.Source,
			To:    e.Target,
			Label: label,
			// A forward reference always sits one level above its target;
			// anything else is a back edge closing a cycle.
			Back: opts.Stats.Levels[e.Source] <= opts.Stats.Levels[e.Target],
		})
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Schema Snapshot"
	}

	return layoutResult{
		Nodes:  nodes,
		Edges:  edges,
		Width:  width,
		Height: height,
		Header: headerHeight,
		Summary: summaryInfo{
			Title:          title,
			Source:         opts.Source,
			EntityCount:    len(nodes),
			EdgeCount:      len(edges),
			CycleCount:     len(opts.Stats.Cycles),
			MostReferenced: mostReferenced(opts.Stats.InDegree, entities),
		},
	}
}

// mostReferenced names the entity with the highest in-degree, ties broken
// alphabetically. A schema where nothing references anything still gets a
// zero-score leader instead of "n/a" so the summary line stays parseable.
func mostReferenced(inDegree map[string]int, entities []string) string {
	var bestID string
	bestVal := -1
	for _, e := range entities {
		v := inDegree[e]
		if v > bestVal || (v == bestVal && e < bestID) {
			bestID = e
			bestVal = v
		}
	}
	if bestVal < 0 {
		return "n/a"
	}
	return fmt.Sprintf("%s (in %d)", bestID, bestVal)
}

func (s summaryInfo) lines() []string {
	counts := fmt.Sprintf("entities: %d  references: %d", s.EntityCount, s.EdgeCount)
	if s.CycleCount > 0 {
		counts += fmt.Sprintf("  cycles: %d", s.CycleCount)
	}
	lines := make([]string, 0, 3)
	if s.Source != "" {
		lines = append(lines, fmt.Sprintf("source: %s", s.Source))
	}
	lines = append(lines, counts)
	lines = append(lines, fmt.Sprintf("most referenced: %s", s.MostReferenced))
	return lines
}

// --- rendering -------------------------------------------------------------

var (
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge     = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorEdgeBack = color.RGBA{0xc0, 0x54, 0x54, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorNodeFill = color.RGBA{0xe8, 0xea, 0xf2, 0xff}
)

const footerCaption = "arrows point at the referenced entity; red arrows close a cycle"

// nodeFill derives a pale fill from the entity's area color so the
// snapshot matches the accents used in the interactive tree.
func nodeFill(s *model.Schema) color.RGBA {
	c, ok := parseHexColor(s.AreaColor)
	if !ok {
		return colorNodeFill
	}
	return tint(c, 0.72)
}

func parseHexColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

// tint mixes c toward white; f=0 keeps the color, f=1 is white.
func tint(c color.RGBA, f float64) color.RGBA {
	mix := func(v uint8) uint8 {
		return uint8(float64(v) + (255-float64(v))*f)
	}
	return color.RGBA{R: mix(c.R), G: mix(c.G), B: mix(c.B), A: 0xff}
}

// edgeEndpoints picks the box sides an edge attaches to. Forward edges
// run left to right; back edges attach on the opposite sides so the
// arrow still meets the target box edge-on.
func edgeEndpoints(from, to layoutNode, back bool) (x1, y1, x2, y2 float64) {
	x1 = from.X + from.NodeW
	x2 = to.X
	if back {
		x1 = from.X
		x2 = to.X + to.NodeW
	}
	y1 = from.Y + from.NodeH/2
	y2 = to.Y + to.NodeH/2
	return x1, y1, x2, y2
}

func renderPNG(opts SchemaSnapshotOptions, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	// header
	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawSummaryBlock(dc, layout)

	nodePos := make(map[string]layoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.Entity] = n
	}

	for _, e := range layout.Edges {
		from := nodePos[e.From]
		to := nodePos[e.To]
		x1, y1, x2, y2 := edgeEndpoints(from, to, e.Back)

		ec := colorEdge
		tipDX := -8.0
		if e.Back {
			ec = colorEdgeBack
			tipDX = 8.0
		}
		dc.SetColor(ec)
		dc.SetLineWidth(2)
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
		drawArrow(dc, ec, x2, y2, tipDX)

		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(format.Truncate(e.Label, 18), (x1+x2)/2, (y1+y2)/2-8, 0.5, 0.5)
	}

	for _, n := range layout.Nodes {
		drawNode(dc, n)
	}

	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(footerCaption, 32, float64(layout.Height)-16, 0, 0.5)

	return dc.SavePNG(opts.Path)
}

func renderSVG(opts SchemaSnapshotOptions, layout layoutResult) error {
	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSVGToWriter(file, layout)
}

func renderSVGToWriter(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	drawSummaryBlockSVG(canvas, layout)

	nodePos := make(map[string]layoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.Entity] = n
	}

	for _, e := range layout.Edges {
		from := nodePos[e.From]
		to := nodePos[e.To]
		x1, y1, x2, y2 := edgeEndpoints(from, to, e.Back)

		ec := colorEdge
		tipDX := -8
		if e.Back {
			ec = colorEdgeBack
			tipDX = 8
		}
		canvas.Line(int(x1), int(y1), int(x2), int(y2), fmt.Sprintf("stroke:%s;stroke-width:2", css(ec)))
		// arrow head, tip on the target box edge, base trailing up the line
		bx := int(x2) + tipDX
		canvas.Polygon(
			[]int{int(x2), bx, bx},
			[]int{int(y2), int(y2) + 4, int(y2) - 4},
			fmt.Sprintf("fill:%s", css(ec)),
		)
		canvas.Text(int((x1+x2)/2), int((y1+y2)/2)-6, format.Truncate(e.Label, 18),
			fmt.Sprintf("fill:%s;font-size:10px;font-family:monospace;text-anchor:middle", css(colorSubtle)))
	}

	for _, n := range layout.Nodes {
		x := int(n.X)
		y := int(n.Y)
		canvas.Roundrect(x, y, int(n.NodeW), int(n.NodeH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(n.Fill), css(colorStroke)))
		canvas.Text(x+10, y+22, format.Truncate(n.Entity, 20),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		canvas.Text(x+10, y+42, fmt.Sprintf("%d columns", n.Columns),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
		canvas.Text(x+10, y+60, fmt.Sprintf("in %d  out %d", n.In, n.Out),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	}

	canvas.Text(32, layout.Height-16, footerCaption,
		fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))

	canvas.End()
	return nil
}

func drawNode(dc *gg.Context, n layoutNode) {
	dc.SetColor(n.Fill)
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(format.Truncate(n.Entity, 20), n.X+10, n.Y+18, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("%d columns", n.Columns), n.X+10, n.Y+36, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("in %d  out %d", n.In, n.Out), n.X+10, n.Y+54, 0, 0.5)
}

func drawArrow(dc *gg.Context, c color.RGBA, x, y, dx float64) {
	dc.SetColor(c)
	dc.NewSubPath()
	dc.MoveTo(x, y)
	dc.LineTo(x+dx, y+4)
	dc.LineTo(x+dx, y-4)
	dc.ClosePath()
	dc.Fill()
}

func drawSummaryBlock(dc *gg.Context, layout layoutResult) {
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 44, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, line := range layout.Summary.lines() {
		dc.DrawStringAnchored(line, 32, 64+float64(i)*20, 0, 0.5)
	}
}

func drawSummaryBlockSVG(canvas *svg.SVG, layout layoutResult) {
	canvas.Text(32, 44, layout.Summary.Title,
		fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, line := range layout.Summary.lines() {
		canvas.Text(32, 64+i*20, line,
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	}
}

// --- helpers ---------------------------------------------------------------

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
