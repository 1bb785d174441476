package graphtree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/burrow/pkg/metrics"
	"github.com/vanderheijden86/burrow/pkg/model"
)

// fetchConcurrency bounds concurrent sibling fetches under one node.
// Ordering of the output never depends on completion order.
const fetchConcurrency = 8

// Renderer is the recursive traversal that turns a root record plus a live
// schema into a ViewNode tree, consulting ExpansionState for what is open,
// the path for what must stop, and the back-reference loader for inbound
// previews.
type Renderer struct {
	schemas SchemaProvider
	records RecordService
	format  Formatter
	state   *ExpansionState
	loader  *BackRefLoader
	opts    Options
}

// NewRenderer wires a renderer. A nil formatter falls back to a minimal
// rendering; state must not be nil.
func NewRenderer(schemas SchemaProvider, records RecordService, state *ExpansionState, format Formatter, opts Options) *Renderer {
	if format == nil {
		format = defaultFormat
	}
	return &Renderer{
		schemas: schemas,
		records: records,
		format:  format,
		state:   state,
		loader:  NewBackRefLoader(records, opts.BackRefPreviewLimit),
		opts:    opts,
	}
}

// Options returns the active rendering policy.
func (r *Renderer) Options() Options { return r.opts }

// SetOptions replaces the rendering policy. The back-reference loader is
// rebuilt so preview-limit changes take effect on the next pass.
func (r *Renderer) SetOptions(opts Options) {
	r.opts = opts
	r.loader = NewBackRefLoader(r.records, opts.BackRefPreviewLimit)
}

// State returns the bound expansion state.
func (r *Renderer) State() *ExpansionState { return r.state }

// WithState returns a copy of the renderer bound to a different expansion
// state. Used by hosts that render against a snapshot while the live state
// keeps mutating.
func (r *Renderer) WithState(state *ExpansionState) *Renderer {
	c := *r
	c.state = state
	return &c
}

// RenderRoot renders one root record. The traversal path is seeded with
// the root's own (entity, id) pair so a root can detect a cycle back to
// itself. Errors are returned only for root-level failures (nil record,
// root schema unavailable); everything below degrades to inline markers.
func (r *Renderer) RenderRoot(ctx context.Context, entity string, record model.Record) (*ViewNode, error) {
	defer metrics.Timer(metrics.RenderPass)()

	if record == nil {
		return nil, fmt.Errorf("render root %s: nil record", entity)
	}
	schema, err := r.schemas.Schema(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", entity, err)
	}

	id := record.ID()
	rootID := RootID(entity, id)
	node := &ViewNode{
		Kind:       ViewRoot,
		ID:         rootID,
		Entity:     entity,
		RecordID:   id,
		Label:      record.Label(schema),
		AreaColor:  schema.AreaColor,
		Expandable: true,
		Expanded:   r.state.IsExpanded(rootID),
	}
	if node.Expanded {
		node.Children = r.renderBody(ctx, node, record, schema, Path{}.Push(entity, id))
	}
	return node, nil
}

// ExpandToDepth expands every reachable occurrence above the given depth
// and returns the resulting tree. It iterates render-expand rounds to a
// fixpoint: contents below a node are unknown until the node is rendered
// expanded. The cycle guard and the depth bound make the rounds finite.
func (r *Renderer) ExpandToDepth(ctx context.Context, entity string, record model.Record, depth int) (*ViewNode, error) {
	if record == nil {
		return nil, fmt.Errorf("expand %s: nil record", entity)
	}
	r.state.Expand(RootID(entity, record.ID()))
	for {
		tree, err := r.RenderRoot(ctx, entity, record)
		if err != nil {
			return nil, err
		}
		grew := false
		tree.Walk(func(n *ViewNode) bool {
			if n.Expandable && !n.Expanded && !n.Cycle && !n.Missing &&
				n.Err == nil && !n.ID.IsZero() && n.Depth < depth {
				r.state.ExpandChild(n.Parent, n.ID)
				grew = true
			}
			return true
		})
		if !grew {
			return tree, nil
		}
	}
}

// renderBody produces the children of an expanded node: attribute content,
// outbound-FK subtrees, and back-reference groups, interleaved per the
// configured reference position. path already contains the node itself.
func (r *Renderer) renderBody(ctx context.Context, parent *ViewNode, record model.Record, schema *model.Schema, path Path) []*ViewNode {
	depth := parent.Depth + 1

	visible := schema.VisibleColumns(r.opts.ShowSystemColumns)
	if r.opts.AttributeOrder == OrderAlpha {
		visible = append([]model.Column(nil), visible...)
		sort.Slice(visible, func(i, j int) bool { return visible[i].Name < visible[j].Name })
	}

	var attrCols, fkCols []model.Column
	for _, c := range visible {
		if c.IsFK() {
			fkCols = append(fkCols, c)
		} else {
			attrCols = append(attrCols, c)
		}
	}

	fkNodes := r.renderFKs(ctx, parent, record, fkCols, path, depth)
	refNodes := r.renderBackRefs(ctx, parent, schema, path, depth)
	attrNodes := r.renderAttributes(record, schema, attrCols, depth)

	out := make([]*ViewNode, 0, len(attrNodes)+len(fkNodes)+len(refNodes))
	appendFKs := func() {
		for _, n := range fkNodes {
			if n != nil {
				out = append(out, n)
			}
		}
	}

	switch {
	case r.opts.AttributeLayout == LayoutRow:
		// Row layout always leads with the attribute block regardless of
		// reference position.
		out = append(out, attrNodes...)
		appendFKs()
		out = append(out, refNodes...)

	case r.opts.ReferencePosition == RefsStart:
		appendFKs()
		out = append(out, refNodes...)
		out = append(out, attrNodes...)

	case r.opts.ReferencePosition == RefsInline:
		byColumn := make(map[string]*ViewNode, len(attrNodes))
		for _, n := range attrNodes {
			byColumn[n.Cells[0].Column] = n
		}
		fkByColumn := make(map[string]*ViewNode, len(fkCols))
		for i, c := range fkCols {
			if fkNodes[i] != nil {
				fkByColumn[c.Name] = fkNodes[i]
			}
		}
		for _, c := range visible {
			if n, ok := byColumn[c.Name]; ok {
				out = append(out, n)
			} else if n, ok := fkByColumn[c.Name]; ok {
				out = append(out, n)
			}
		}
		out = append(out, refNodes...)

	default: // RefsEnd
		out = append(out, attrNodes...)
		appendFKs()
		out = append(out, refNodes...)
	}
	return out
}

// renderAttributes emits either a single multi-cell row or one node per
// attribute column, per the configured layout.
func (r *Renderer) renderAttributes(record model.Record, schema *model.Schema, attrCols []model.Column, depth int) []*ViewNode {
	if len(attrCols) == 0 {
		return nil
	}

	if r.opts.AttributeLayout == LayoutRow {
		cells := make([]AttributeCell, 0, len(attrCols))
		for _, c := range attrCols {
			v, _ := record.Value(c.Name)
			cells = append(cells, AttributeCell{Column: c.Name, Value: r.format(v, c, schema)})
		}
		return []*ViewNode{{Kind: ViewAttributeRow, Cells: cells, Depth: depth}}
	}

	nodes := make([]*ViewNode, 0, len(attrCols))
	for _, c := range attrCols {
		v, _ := record.Value(c.Name)
		nodes = append(nodes, &ViewNode{
			Kind:  ViewAttribute,
			Label: c.Name,
			Cells: []AttributeCell{{Column: c.Name, Value: r.format(v, c, schema)}},
			Depth: depth,
		})
	}
	return nodes
}

// renderFKs renders the outbound reference subtrees for the given FK
// columns. Targets are fetched concurrently; the result slice stays
// parallel to fkCols (nil = suppressed) so assembly remains column-order
// deterministic.
func (r *Renderer) renderFKs(ctx context.Context, parent *ViewNode, record model.Record, fkCols []model.Column, path Path, depth int) []*ViewNode {
	nodes := make([]*ViewNode, len(fkCols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for i, col := range fkCols {
		v, ok := record.Value(col.Name)
		if !ok || v == nil {
			continue
		}
		targetID := model.FormatID(v)
		if targetID == "" {
			continue
		}
		target := col.ForeignKey.TargetEntity
		nodeID := FKID(target, targetID, parent.RecordID)

		if path.WouldCycle(target, targetID) {
			if r.opts.ShowCycles {
				nodes[i] = r.cycleNode(ViewFK, nodeID, parent.ID, col.Name, record, depth)
			}
			continue
		}

		g.Go(func() error {
			nodes[i] = r.renderFKNode(gctx, parent, nodeID, col, record, path, depth)
			return nil
		})
	}
	_ = g.Wait()
	return nodes
}

// renderFKNode resolves one outbound reference: label from the pre-joined
// field when present (skipping the fetch entirely for collapsed nodes),
// else from the lazily fetched target record. Missing targets and fetch
// failures degrade to inline markers.
func (r *Renderer) renderFKNode(ctx context.Context, parent *ViewNode, nodeID NodeID, col model.Column, record model.Record, path Path, depth int) *ViewNode {
	node := &ViewNode{
		Kind:       ViewFK,
		ID:         nodeID,
		Parent:     parent.ID,
		Entity:     nodeID.Entity,
		RecordID:   nodeID.ID,
		Via:        col.Name,
		Depth:      depth,
		Expandable: true,
		Expanded:   r.state.IsExpanded(nodeID),
	}

	preLabel, hasPre := record.PreJoinedLabel(col.Name)
	if hasPre && !node.Expanded {
		node.Label = preLabel
		return node
	}

	targetSchema, err := r.schemas.Schema(ctx, nodeID.Entity)
	if err != nil {
		node.Err = err
		node.Expanded = false
		node.Label = r.referenceFallbackLabel(nodeID, preLabel)
		return node
	}
	node.AreaColor = targetSchema.AreaColor

	start := time.Now()
	target, err := r.records.GetByID(ctx, nodeID.Entity, nodeID.ID)
	metrics.RecordFetch.Record(time.Since(start))
	if errors.Is(err, model.ErrNotFound) {
		node.Missing = true
		node.Expandable = false
		node.Expanded = false
		node.Label = r.referenceFallbackLabel(nodeID, preLabel)
		return node
	}
	if err != nil {
		node.Err = err
		node.Expanded = false
		node.Label = r.referenceFallbackLabel(nodeID, preLabel)
		return node
	}

	node.Label = target.Label(targetSchema)
	if node.Expanded {
		node.Children = r.renderBody(ctx, node, target, targetSchema, path.Push(nodeID.Entity, nodeID.ID))
	}
	return node
}

// renderBackRefs renders the inbound reference groups declared on the
// schema, loading concurrently and assembling in definition order.
// Zero-count groups are suppressed entirely.
func (r *Renderer) renderBackRefs(ctx context.Context, parent *ViewNode, schema *model.Schema, path Path, depth int) []*ViewNode {
	defs := schema.BackRefs
	if len(defs) == 0 {
		return nil
	}

	nodes := make([]*ViewNode, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, def := range defs {
		groupID := BackRefGroupID(def.SourceEntity, parent.Entity, parent.RecordID)
		g.Go(func() error {
			nodes[i] = r.renderBackRefGroup(gctx, parent, groupID, def, path, depth)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*ViewNode, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// renderBackRefGroup renders one inbound group. Collapsed groups cost only
// a count; expanded groups load a preview and render each row with its own
// cycle test and expansion state. Returns nil for the zero-count no-render
// case.
func (r *Renderer) renderBackRefGroup(ctx context.Context, parent *ViewNode, groupID NodeID, def model.BackReferenceDef, path Path, depth int) *ViewNode {
	node := &ViewNode{
		Kind:       ViewBackRefGroup,
		ID:         groupID,
		Parent:     parent.ID,
		Entity:     def.SourceEntity,
		Via:        def.ViaColumn,
		Label:      def.SourceEntity,
		AreaColor:  def.AreaColor,
		Depth:      depth,
		Expandable: true,
		Expanded:   r.state.IsExpanded(groupID),
	}

	if !node.Expanded {
		total, err := r.loader.Count(ctx, def, parent.Entity, parent.RecordID)
		if err != nil {
			node.Err = err
			return node
		}
		if total == 0 {
			return nil
		}
		node.TotalCount = total
		node.Truncated = total > r.loader.Limit()
		return node
	}

	preview := r.loader.Load(ctx, def, parent.Entity, parent.RecordID)
	if preview.Err != nil {
		node.Err = preview.Err
		return node
	}
	if preview.TotalCount == 0 {
		return nil
	}
	node.TotalCount = preview.TotalCount
	node.Shown = len(preview.Rows)
	node.Truncated = preview.Truncated

	refSchema, err := r.schemas.Schema(ctx, def.SourceEntity)
	if err != nil {
		node.Err = err
		return node
	}
	if refSchema.AreaColor != "" {
		node.AreaColor = refSchema.AreaColor
	}

	for _, row := range preview.Rows {
		rowID := row.ID()
		rid := BackRefRowID(def.SourceEntity, rowID, parent.Entity, parent.RecordID)

		if path.WouldCycle(def.SourceEntity, rowID) {
			if r.opts.ShowCycles {
				cyc := r.cycleNode(ViewBackRefRow, rid, groupID, def.ViaColumn, nil, depth+1)
				cyc.Label = row.Label(refSchema)
				node.Children = append(node.Children, cyc)
			}
			continue
		}

		rowNode := &ViewNode{
			Kind:       ViewBackRefRow,
			ID:         rid,
			Parent:     groupID,
			Entity:     def.SourceEntity,
			RecordID:   rowID,
			Via:        def.ViaColumn,
			Label:      row.Label(refSchema),
			AreaColor:  refSchema.AreaColor,
			Depth:      depth + 1,
			Expandable: true,
			Expanded:   r.state.IsExpanded(rid),
		}
		if rowNode.Expanded {
			rowNode.Children = r.renderBody(ctx, rowNode, row, refSchema, path.Push(def.SourceEntity, rowID))
		}
		node.Children = append(node.Children, rowNode)
	}
	return node
}

// cycleNode builds the terminal marker for an occurrence already on the
// path. It is intentionally non-expandable: expansion state is advisory,
// cycle safety wins.
func (r *Renderer) cycleNode(kind ViewNodeKind, id, parent NodeID, via string, record model.Record, depth int) *ViewNode {
	n := &ViewNode{
		Kind:     kind,
		ID:       id,
		Parent:   parent,
		Entity:   id.Entity,
		RecordID: id.ID,
		Via:      via,
		Cycle:    true,
		Depth:    depth,
	}
	if record != nil {
		if label, ok := record.PreJoinedLabel(via); ok {
			n.Label = label
			return n
		}
	}
	n.Label = r.referenceFallbackLabel(id, "")
	return n
}

func (r *Renderer) referenceFallbackLabel(id NodeID, preJoined string) string {
	if preJoined != "" {
		return preJoined
	}
	return fmt.Sprintf("%s #%s", id.Entity, id.ID)
}

// defaultFormat is the fallback when no Formatter is supplied.
func defaultFormat(v any, _ model.Column, _ *model.Schema) string {
	if v == nil {
		return "∅"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
