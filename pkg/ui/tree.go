package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/burrow/pkg/format"
	"github.com/vanderheijden86/burrow/pkg/graphtree"
)

// flatNode is one visible row: the engine node plus the parent link and
// sibling position the branch prefix needs. The engine materializes
// children only under expanded nodes, so flattening never filters.
type flatNode struct {
	node   *graphtree.ViewNode
	parent *flatNode
	last   bool // last among its parent's children
}

// TreeModel renders one rendered view tree as navigable rows with a
// cursor and windowed scrolling. It is a pure view: expansion changes go
// through the engine and arrive here as a fresh tree via SetTree.
type TreeModel struct {
	theme Theme

	root *graphtree.ViewNode
	flat []*flatNode

	cursor         int
	viewportOffset int

	width  int
	height int
}

// NewTreeModel creates an empty tree view.
func NewTreeModel(theme Theme) TreeModel {
	return TreeModel{theme: theme}
}

// SetTree swaps in a freshly rendered tree. The cursor stays on the same
// node identity when it survived the re-render, else it clamps in place.
func (t *TreeModel) SetTree(root *graphtree.ViewNode) {
	var prev graphtree.NodeID
	if n := t.CursorNode(); n != nil {
		prev = n.ID
	}

	t.root = root
	t.rebuildFlat()

	if prev.IsZero() || !t.SelectByID(prev) {
		if t.cursor >= len(t.flat) {
			t.cursor = len(t.flat) - 1
		}
		if t.cursor < 0 {
			t.cursor = 0
		}
	}
	t.ensureCursorVisible()
}

// rebuildFlat flattens the tree pre-order into the visible row list.
func (t *TreeModel) rebuildFlat() {
	t.flat = t.flat[:0]
	if t.root == nil {
		return
	}
	t.appendVisible(&flatNode{node: t.root, last: true})
}

func (t *TreeModel) appendVisible(fn *flatNode) {
	t.flat = append(t.flat, fn)
	children := fn.node.Children
	for i, child := range children {
		t.appendVisible(&flatNode{
			node:   child,
			parent: fn,
			last:   i == len(children)-1,
		})
	}
}

// SetSize updates the viewport dimensions.
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// Len returns the number of visible rows.
func (t *TreeModel) Len() int { return len(t.flat) }

// CursorNode returns the engine node under the cursor, or nil.
func (t *TreeModel) CursorNode() *graphtree.ViewNode {
	if t.cursor < 0 || t.cursor >= len(t.flat) {
		return nil
	}
	return t.flat[t.cursor].node
}

// CursorRecordNode returns the nearest node at or above the cursor that
// carries a record identity. Attribute rows resolve to their parent.
func (t *TreeModel) CursorRecordNode() *graphtree.ViewNode {
	if t.cursor < 0 || t.cursor >= len(t.flat) {
		return nil
	}
	for fn := t.flat[t.cursor]; fn != nil; fn = fn.parent {
		if fn.node.RecordID != "" {
			return fn.node
		}
	}
	return nil
}

// MoveDown moves the cursor down one row.
func (t *TreeModel) MoveDown() {
	if t.cursor < len(t.flat)-1 {
		t.cursor++
		t.ensureCursorVisible()
	}
}

// MoveUp moves the cursor up one row.
func (t *TreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
		t.ensureCursorVisible()
	}
}

// JumpToTop moves the cursor to the first row.
func (t *TreeModel) JumpToTop() {
	t.cursor = 0
	t.ensureCursorVisible()
}

// JumpToBottom moves the cursor to the last row.
func (t *TreeModel) JumpToBottom() {
	if len(t.flat) > 0 {
		t.cursor = len(t.flat) - 1
		t.ensureCursorVisible()
	}
}

// JumpToParent moves the cursor to the parent of the current row.
func (t *TreeModel) JumpToParent() {
	if t.cursor < 0 || t.cursor >= len(t.flat) {
		return
	}
	parent := t.flat[t.cursor].parent
	if parent == nil {
		return
	}
	for i, fn := range t.flat {
		if fn == parent {
			t.cursor = i
			t.ensureCursorVisible()
			return
		}
	}
}

// PageForward moves the cursor forward by one viewport page.
func (t *TreeModel) PageForward() {
	pageSize := t.effectiveVisibleCount()
	if pageSize < 1 {
		pageSize = 1
	}
	t.cursor += pageSize
	if t.cursor >= len(t.flat) {
		t.cursor = len(t.flat) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureCursorVisible()
}

// PageBackward moves the cursor backward by one viewport page.
func (t *TreeModel) PageBackward() {
	pageSize := t.effectiveVisibleCount()
	if pageSize < 1 {
		pageSize = 1
	}
	t.cursor -= pageSize
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureCursorVisible()
}

// SelectByID moves the cursor to the row with the given node identity.
// Returns true when found. Useful for preserving the cursor across
// re-renders where row indexes shift.
func (t *TreeModel) SelectByID(id graphtree.NodeID) bool {
	if id.IsZero() {
		return false
	}
	for i, fn := range t.flat {
		if fn.node.ID == id {
			t.cursor = i
			t.ensureCursorVisible()
			return true
		}
	}
	return false
}

// ViewportOffset returns the current scroll offset.
func (t *TreeModel) ViewportOffset() int { return t.viewportOffset }

// effectiveVisibleCount returns how many rows fit in the viewport,
// reserving a line for the position indicator once scrolling is needed.
func (t *TreeModel) effectiveVisibleCount() int {
	visibleCount := t.height
	if visibleCount <= 0 {
		visibleCount = 20
	}
	if len(t.flat) > visibleCount {
		visibleCount--
	}
	if visibleCount < 1 {
		visibleCount = 1
	}
	return visibleCount
}

// visibleRange returns the half-open row window to render.
func (t *TreeModel) visibleRange() (start, end int) {
	if len(t.flat) == 0 {
		return 0, 0
	}

	visibleCount := t.effectiveVisibleCount()

	start = t.viewportOffset
	if start < 0 {
		start = 0
	}
	end = start + visibleCount
	if end > len(t.flat) {
		end = len(t.flat)
		start = end - visibleCount
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

// ensureCursorVisible scrolls just enough to keep the cursor in view.
func (t *TreeModel) ensureCursorVisible() {
	if len(t.flat) == 0 {
		return
	}

	visibleCount := t.effectiveVisibleCount()

	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	}
	if t.cursor >= t.viewportOffset+visibleCount {
		t.viewportOffset = t.cursor - visibleCount + 1
	}

	maxOffset := len(t.flat) - visibleCount
	if maxOffset < 0 {
		maxOffset = 0
	}
	if t.viewportOffset > maxOffset {
		t.viewportOffset = maxOffset
	}
	if t.viewportOffset < 0 {
		t.viewportOffset = 0
	}
}

// View renders the visible window of rows.
func (t *TreeModel) View() string {
	if len(t.flat) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	start, end := t.visibleRange()

	for i := start; i < end; i++ {
		line := t.renderNode(t.flat[i], i == t.cursor)
		if i == t.cursor {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(t.flat) > t.effectiveVisibleCount() {
		sb.WriteString(t.renderPositionIndicator(start, end))
	}

	return sb.String()
}

func (t *TreeModel) renderEmptyState() string {
	return t.theme.MutedText.Render("Nothing to show. The root has not rendered yet.")
}

// renderPositionIndicator renders the scroll position line using
// 1-indexed numbers.
func (t *TreeModel) renderPositionIndicator(start, end int) string {
	total := len(t.flat)
	pageSize := t.effectiveVisibleCount()
	currentPage, totalPages := t.pageInfo(pageSize)
	return t.theme.MutedText.Render(
		fmt.Sprintf(" Page %d/%d (%d-%d of %d)", currentPage, totalPages, start+1, end, total))
}

func (t *TreeModel) pageInfo(pageSize int) (currentPage, totalPages int) {
	total := len(t.flat)
	if pageSize <= 0 {
		pageSize = 1
	}
	totalPages = (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	currentPage = t.cursor/pageSize + 1
	if currentPage > totalPages {
		currentPage = totalPages
	}
	return currentPage, totalPages
}

// renderNode renders one row: [branch prefix] [indicator] [kind-specific
// body], truncated and padded to the viewport width.
func (t *TreeModel) renderNode(fn *flatNode, isSelected bool) string {
	node := fn.node
	r := t.theme.Renderer
	width := t.width
	if width <= 0 {
		width = 80
	}
	// Reduce width by 1 to prevent terminal wrapping on the exact edge.
	width = width - 1

	var leftSide strings.Builder

	prefix := t.buildTreePrefix(fn)
	leftSide.WriteString(prefix)

	indicator, indicatorStyle := t.expandIndicator(node)
	leftSide.WriteString(indicatorStyle.Render(indicator))
	leftSide.WriteString(" ")

	head, tail := t.nodeBody(node, isSelected)
	leftSide.WriteString(head)

	// The tail fills the remaining space and absorbs the truncation.
	used := lipgloss.Width(leftSide.String())
	tailWidth := width - used - lipgloss.Width(tail.suffix)
	if tailWidth < 5 {
		tailWidth = 5
	}
	text := format.Truncate(tail.text, tailWidth)
	leftSide.WriteString(tail.style.Render(text))
	leftSide.WriteString(tail.suffix)

	row := leftSide.String()
	pad := width - lipgloss.Width(row)
	if pad > 0 {
		row += strings.Repeat(" ", pad)
	}

	return r.NewStyle().Width(width).MaxWidth(width).Render(row)
}

// rowTail is the variable-width last segment of a row.
type rowTail struct {
	text   string
	style  lipgloss.Style
	suffix string // styled annotation kept outside the truncation
}

// nodeBody returns the fixed lead-in (already styled) and the flexible
// tail for one node.
func (t *TreeModel) nodeBody(node *graphtree.ViewNode, isSelected bool) (string, rowTail) {
	r := t.theme.Renderer
	var head strings.Builder
	tail := rowTail{style: t.theme.Base}

	entityStyle := t.theme.AreaStyle(node.AreaColor)
	if isSelected {
		entityStyle = entityStyle.Bold(true)
	}

	switch node.Kind {
	case graphtree.ViewRoot:
		head.WriteString(t.theme.PrimaryBold.Render(fmt.Sprintf("%s #%s", node.Entity, node.RecordID)))
		if node.Label != "" {
			head.WriteString(t.theme.MutedText.Render(" · "))
			tail.text = node.Label
			tail.style = r.NewStyle().Bold(true)
		}

	case graphtree.ViewFK:
		head.WriteString(t.theme.MutedText.Render(node.Via + " "))
		head.WriteString(r.NewStyle().Foreground(t.theme.Reference).Render("→ "))
		head.WriteString(entityStyle.Render(node.Entity))
		head.WriteString(t.theme.SecondaryText.Render(fmt.Sprintf(" #%s ", node.RecordID)))
		tail.text = node.Label
		tail.suffix = t.nodeAnnotation(node)

	case graphtree.ViewBackRefGroup:
		head.WriteString(entityStyle.Render(node.Entity))
		head.WriteString(r.NewStyle().Foreground(t.theme.BackRef).Render(" ← "))
		head.WriteString(t.theme.MutedText.Render(node.Via + " "))
		tail.text = t.groupCount(node)
		tail.style = t.theme.SecondaryText
		tail.suffix = t.nodeAnnotation(node)

	case graphtree.ViewBackRefRow:
		head.WriteString(t.theme.SecondaryText.Render(fmt.Sprintf("#%s ", node.RecordID)))
		tail.text = node.Label
		tail.suffix = t.nodeAnnotation(node)

	case graphtree.ViewAttribute:
		head.WriteString(t.theme.MutedText.Render(node.Label + ": "))
		tail.text = node.Cells[0].Value

	case graphtree.ViewAttributeRow:
		parts := make([]string, 0, len(node.Cells))
		for _, c := range node.Cells {
			parts = append(parts, c.Column+": "+c.Value)
		}
		tail.text = strings.Join(parts, "  ")
		tail.style = t.theme.SecondaryText

	default:
		tail.text = node.Label
	}

	return head.String(), tail
}

// groupCount formats the row accounting of a back-reference group.
func (t *TreeModel) groupCount(node *graphtree.ViewNode) string {
	if node.Shown > 0 && node.Truncated {
		return fmt.Sprintf("(%d of %d)", node.Shown, node.TotalCount)
	}
	return fmt.Sprintf("(%d)", node.TotalCount)
}

// nodeAnnotation renders the trailing state marker for degraded nodes.
func (t *TreeModel) nodeAnnotation(node *graphtree.ViewNode) string {
	switch {
	case node.Cycle:
		return t.theme.CycleText.Render(" (cycle)")
	case node.Missing:
		return t.theme.MissingText.Render(" (missing)")
	case node.Err != nil:
		return t.theme.ErrorText.Render(" (unavailable)")
	}
	return ""
}

// expandIndicator returns the state glyph for a node. Degraded states win
// over the expandable arrows so the eye lands on them first.
func (t *TreeModel) expandIndicator(node *graphtree.ViewNode) (string, lipgloss.Style) {
	r := t.theme.Renderer
	switch {
	case node.Cycle:
		return "↺", t.theme.CycleText
	case node.Missing:
		return "✗", t.theme.MissingText
	case node.Err != nil:
		return "⚠", t.theme.ErrorText
	case !node.Expandable:
		return "•", t.theme.MutedText
	case node.Expanded:
		return "▾", r.NewStyle().Foreground(t.theme.Secondary)
	default:
		return "▸", r.NewStyle().Foreground(t.theme.Secondary)
	}
}

// buildTreePrefix builds the indentation and branch characters for a row.
func (t *TreeModel) buildTreePrefix(fn *flatNode) string {
	if fn.node.Depth == 0 {
		return ""
	}

	var prefixParts []string

	ancestors := ancestorsOf(fn)
	for i := 0; i < len(ancestors)-1; i++ {
		if hasSiblingsBelow(ancestors[i]) {
			prefixParts = append(prefixParts, "│   ")
		} else {
			prefixParts = append(prefixParts, "    ")
		}
	}

	if fn.last {
		prefixParts = append(prefixParts, "└── ")
	} else {
		prefixParts = append(prefixParts, "├── ")
	}

	return t.theme.MutedText.Render(strings.Join(prefixParts, ""))
}

// ancestorsOf returns the chain root..parent with the row itself at the
// end; buildTreePrefix iterates to len-1.
func ancestorsOf(fn *flatNode) []*flatNode {
	var ancestors []*flatNode
	for current := fn.parent; current != nil; current = current.parent {
		ancestors = append([]*flatNode{current}, ancestors...)
	}
	return append(ancestors, fn)
}

func hasSiblingsBelow(fn *flatNode) bool {
	return !fn.last
}
