package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/burrow/pkg/debug"
	"github.com/vanderheijden86/burrow/pkg/format"
	"github.com/vanderheijden86/burrow/pkg/graphtree"
	"github.com/vanderheijden86/burrow/pkg/metrics"
	"github.com/vanderheijden86/burrow/pkg/model"
	"github.com/vanderheijden86/burrow/pkg/watcher"
)

// keyMap declares every binding the host understands. It implements
// help.KeyMap so the footer and the expanded help render from one source.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Parent   key.Binding

	Toggle  key.Binding
	Select  key.Binding
	Goto    key.Binding
	Back    key.Binding
	Detail  key.Binding
	Refresh key.Binding

	YankID   key.Binding
	YankJSON key.Binding

	CycleOrder    key.Binding
	CyclePosition key.Binding
	CycleLayout   key.Binding
	ToggleCycles  key.Binding
	ToggleSystem  key.Binding
	MoreRefs      key.Binding
	FewerRefs     key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Top:      key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "top")),
		Bottom:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Parent:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "parent")),

		Toggle:  key.NewBinding(key.WithKeys("enter", " ", "l", "h"), key.WithHelp("enter", "toggle")),
		Select:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "select")),
		Goto:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "open as root")),
		Back:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "back")),
		Detail:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "detail")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),

		YankID:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yank id")),
		YankJSON: key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "yank json")),

		CycleOrder:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "attr order")),
		CyclePosition: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "ref position")),
		CycleLayout:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "layout")),
		ToggleCycles:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cycle markers")),
		ToggleSystem:  key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "system columns")),
		MoreRefs:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "more refs")),
		FewerRefs:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "fewer refs")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp is the one-line footer hint set.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Goto, k.Back, k.Detail, k.YankID, k.Help, k.Quit}
}

// FullHelp is the expanded help, grouped by concern.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom, k.Parent},
		{k.Toggle, k.Select, k.Goto, k.Back, k.Detail, k.Refresh},
		{k.YankID, k.YankJSON, k.CycleOrder, k.CyclePosition, k.CycleLayout},
		{k.ToggleCycles, k.ToggleSystem, k.MoreRefs, k.FewerRefs, k.Help, k.Quit},
	}
}

// crumb is one breadcrumb entry: the root the user navigated away from.
type crumb struct {
	entity string
	id     string
}

// Params configures a host model.
type Params struct {
	Source        DataProvider
	Watcher       *watcher.Watcher // nil disables live reload
	Theme         *Theme           // nil uses DefaultTheme on the default renderer
	Options       graphtree.Options
	Entity        string // initial root entity
	ID            string // initial root record id
	CompactHeader bool   // drop the app title and database name from the header
}

// Model is the Bubble Tea host around the graphtree engine. Update is the
// single writer of the expansion state; render passes run against clones
// on background commands and come back as generation-tagged messages.
type Model struct {
	theme   Theme
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	source   DataProvider
	watcher  *watcher.Watcher
	renderer *graphtree.Renderer

	rootEntity string
	rootID     string
	rootSchema *model.Schema
	crumbs     []crumb

	tree     TreeModel
	viewport viewport.Model

	renderGen     uint64
	renderPending bool

	showDetail  bool
	detailTitle string

	statusMsg     string
	statusIsError bool

	width         int
	height        int
	ready         bool
	compactHeader bool
}

// NewModel builds the host. The initial root starts expanded; the first
// render pass is dispatched by Init.
func NewModel(p Params) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	if p.Theme != nil {
		theme = *p.Theme
	}

	state := graphtree.NewExpansionState()
	state.Expand(graphtree.RootID(p.Entity, p.ID))

	sp := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Renderer.NewStyle().Foreground(theme.Primary)),
	)

	return Model{
		theme:    theme,
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  sp,
		source:   p.Source,
		watcher:  p.Watcher,
		renderer: graphtree.NewRenderer(p.Source, p.Source, state, format.Format, p.Options),

		rootEntity: p.Entity,
		rootID:     p.ID,

		tree:     NewTreeModel(theme),
		viewport: viewport.New(80, 20),

		renderGen:     1,
		renderPending: true,
		compactHeader: p.CompactHeader,
	}
}

// Options returns the active rendering policy, for persisting after the
// program exits.
func (m Model) Options() graphtree.Options { return m.renderer.Options() }

// RootEntity returns the current root entity.
func (m Model) RootEntity() string { return m.rootEntity }

// Init dispatches the first render pass and arms the file watcher.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		renderTreeCmd(m.renderGen, m.renderSnapshot(), m.source, m.rootEntity, m.rootID),
	}
	if m.watcher != nil {
		cmds = append(cmds, watchChangedCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

// renderSnapshot binds the renderer to a clone of the live expansion state
// so the pass can run off the event loop.
func (m Model) renderSnapshot() *graphtree.Renderer {
	return m.renderer.WithState(m.renderer.State().Clone())
}

// scheduleRender bumps the generation and dispatches a pass. Results from
// earlier generations are dropped on arrival.
func (m Model) scheduleRender() (Model, tea.Cmd) {
	m.renderGen++
	m.renderPending = true
	return m, renderTreeCmd(m.renderGen, m.renderSnapshot(), m.source, m.rootEntity, m.rootID)
}

func (m *Model) setStatus(msg string, isError bool) {
	m.statusMsg = msg
	m.statusIsError = isError
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.tree.SetSize(msg.Width, m.bodyHeight())
		m.viewport.Width = m.detailWidth()
		m.viewport.Height = m.bodyHeight() - 2
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case renderResultMsg:
		if msg.gen != m.renderGen {
			debug.Logf("ui: dropping stale render gen=%d current=%d", msg.gen, m.renderGen)
			return m, nil
		}
		m.renderPending = false
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.tree.SetTree(msg.tree)
		m.rootSchema = msg.schema
		return m, nil

	case detailResultMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.showDetail = true
		m.detailTitle = msg.title
		m.viewport.SetContent(msg.content)
		m.viewport.GotoTop()
		return m, nil

	case yankResultMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("clipboard: %v", msg.err), true)
		} else {
			m.setStatus("copied "+msg.what, false)
		}
		return m, nil

	case fileChangedMsg:
		m.setStatus("database changed on disk · reloading", false)
		cmds := []tea.Cmd{reloadCmd(m.source, m.rootEntity, m.rootSchema)}
		if m.watcher != nil {
			cmds = append(cmds, watchChangedCmd(m.watcher))
		}
		return m, tea.Batch(cmds...)

	case reloadDoneMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.rootSchema = msg.schema
		if !msg.diff.Empty() {
			state := m.renderer.State()
			state.Clear()
			state.Expand(graphtree.RootID(m.rootEntity, m.rootID))
			m.setStatus("schema changed · "+msg.diff.Summary(), false)
		} else {
			m.setStatus("database reloaded", false)
		}
		return m.scheduleRender()
	}

	return m, nil
}

// handleKey routes key presses. The detail pane owns navigation keys while
// open; everything else lands on the tree.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showDetail {
		switch {
		case key.Matches(msg, m.keys.Detail), msg.String() == "esc":
			m.showDetail = false
			return m, nil
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown()
	case key.Matches(msg, m.keys.PageUp):
		m.tree.PageBackward()
	case key.Matches(msg, m.keys.PageDown):
		m.tree.PageForward()
	case key.Matches(msg, m.keys.Top):
		m.tree.JumpToTop()
	case key.Matches(msg, m.keys.Bottom):
		m.tree.JumpToBottom()
	case key.Matches(msg, m.keys.Parent):
		m.tree.JumpToParent()

	case key.Matches(msg, m.keys.Toggle):
		return m.toggleCursor()
	case key.Matches(msg, m.keys.Select):
		m.selectCursor()
	case key.Matches(msg, m.keys.Goto):
		return m.gotoCursor()
	case key.Matches(msg, m.keys.Back):
		return m.goBack()
	case key.Matches(msg, m.keys.Detail):
		return m.openDetail()
	case key.Matches(msg, m.keys.Refresh):
		m.setStatus("reloading "+filepath.Base(m.source.Path()), false)
		return m, reloadCmd(m.source, m.rootEntity, m.rootSchema)

	case key.Matches(msg, m.keys.YankID):
		m.yankIdentity()
	case key.Matches(msg, m.keys.YankJSON):
		if n := m.tree.CursorRecordNode(); n != nil {
			return m, yankJSONCmd(m.source, n.Entity, n.RecordID)
		}

	case key.Matches(msg, m.keys.CycleOrder):
		opts := m.renderer.Options()
		opts.AttributeOrder = nextAttributeOrder(opts.AttributeOrder)
		return m.applyOptions(opts, "attribute order: "+opts.AttributeOrder.String())
	case key.Matches(msg, m.keys.CyclePosition):
		opts := m.renderer.Options()
		opts.ReferencePosition = nextReferencePosition(opts.ReferencePosition)
		return m.applyOptions(opts, "reference position: "+opts.ReferencePosition.String())
	case key.Matches(msg, m.keys.CycleLayout):
		opts := m.renderer.Options()
		opts.AttributeLayout = nextAttributeLayout(opts.AttributeLayout)
		return m.applyOptions(opts, "attribute layout: "+opts.AttributeLayout.String())
	case key.Matches(msg, m.keys.ToggleCycles):
		opts := m.renderer.Options()
		opts.ShowCycles = !opts.ShowCycles
		return m.applyOptions(opts, "cycle markers: "+onOff(opts.ShowCycles))
	case key.Matches(msg, m.keys.ToggleSystem):
		opts := m.renderer.Options()
		opts.ShowSystemColumns = !opts.ShowSystemColumns
		return m.applyOptions(opts, "system columns: "+onOff(opts.ShowSystemColumns))
	case key.Matches(msg, m.keys.MoreRefs):
		opts := m.renderer.Options()
		opts.BackRefPreviewLimit++
		return m.applyOptions(opts, fmt.Sprintf("preview limit: %d", opts.BackRefPreviewLimit))
	case key.Matches(msg, m.keys.FewerRefs):
		opts := m.renderer.Options()
		if opts.BackRefPreviewLimit > 1 {
			opts.BackRefPreviewLimit--
		}
		return m.applyOptions(opts, fmt.Sprintf("preview limit: %d", opts.BackRefPreviewLimit))

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

// toggleCursor flips expansion of the cursor node through the engine state
// and schedules a re-render. Degraded nodes explain themselves instead.
func (m Model) toggleCursor() (tea.Model, tea.Cmd) {
	n := m.tree.CursorNode()
	if n == nil {
		return m, nil
	}
	switch {
	case n.Cycle:
		m.setStatus("already on this branch · expansion stops here", false)
		return m, nil
	case n.Missing:
		m.setStatus("referenced record no longer exists", true)
		return m, nil
	case n.ID.IsZero() || !n.Expandable:
		return m, nil
	}
	m.renderer.State().ToggleChild(n.Parent, n.ID)
	return m.scheduleRender()
}

// selectCursor toggles root selection on the cursor node.
func (m *Model) selectCursor() {
	n := m.tree.CursorNode()
	if n == nil {
		return
	}
	if m.renderer.State().Select(n.ID) {
		m.setStatus("selected "+n.ID.String(), false)
	} else if n.ID.Kind == graphtree.KindRoot && !n.ID.IsZero() {
		m.setStatus("selection cleared", false)
	} else {
		m.setStatus("only root records can be selected", true)
	}
}

// gotoCursor makes the record under the cursor the new root. Expansion
// state never survives a root change.
func (m Model) gotoCursor() (tea.Model, tea.Cmd) {
	n := m.tree.CursorRecordNode()
	if n == nil || n.RecordID == "" {
		m.setStatus("no record under the cursor", true)
		return m, nil
	}
	if n.Entity == m.rootEntity && n.RecordID == m.rootID {
		m.setStatus("already viewing this record", false)
		return m, nil
	}
	m.crumbs = append(m.crumbs, crumb{entity: m.rootEntity, id: m.rootID})
	m.setRoot(n.Entity, n.RecordID)
	m.setStatus(fmt.Sprintf("viewing %s #%s", n.Entity, n.RecordID), false)
	return m.scheduleRender()
}

// goBack pops the breadcrumb stack.
func (m Model) goBack() (tea.Model, tea.Cmd) {
	if len(m.crumbs) == 0 {
		m.setStatus("no previous root", false)
		return m, nil
	}
	last := m.crumbs[len(m.crumbs)-1]
	m.crumbs = m.crumbs[:len(m.crumbs)-1]
	m.setRoot(last.entity, last.id)
	m.setStatus(fmt.Sprintf("back to %s #%s", last.entity, last.id), false)
	return m.scheduleRender()
}

// setRoot rebases the session on a new root record.
func (m *Model) setRoot(entity, id string) {
	m.rootEntity = entity
	m.rootID = id
	m.rootSchema = nil
	state := m.renderer.State()
	state.Clear()
	state.Expand(graphtree.RootID(entity, id))
	m.tree.JumpToTop()
}

// openDetail fetches the cursor record and opens the detail pane.
func (m Model) openDetail() (tea.Model, tea.Cmd) {
	n := m.tree.CursorRecordNode()
	if n == nil || n.RecordID == "" {
		m.setStatus("no record under the cursor", true)
		return m, nil
	}
	return m, detailCmd(m.source, n.Entity, n.RecordID, m.detailWrapWidth())
}

// yankIdentity copies the cursor node's identity string. Attribute rows
// resolve to the record node above them.
func (m *Model) yankIdentity() {
	n := m.tree.CursorNode()
	if n == nil || n.ID.IsZero() {
		n = m.tree.CursorRecordNode()
	}
	if n == nil || n.ID.IsZero() {
		m.setStatus("nothing to yank here", true)
		return
	}
	id := n.ID.String()
	if err := clipboard.WriteAll(id); err != nil {
		m.setStatus(fmt.Sprintf("clipboard: %v", err), true)
		return
	}
	m.setStatus("copied "+id, false)
}

// applyOptions swaps the rendering policy and schedules a re-render.
func (m Model) applyOptions(opts graphtree.Options, status string) (tea.Model, tea.Cmd) {
	m.renderer.SetOptions(opts)
	m.setStatus(status, false)
	return m.scheduleRender()
}

func nextAttributeOrder(o graphtree.AttributeOrder) graphtree.AttributeOrder {
	if o == graphtree.OrderSchema {
		return graphtree.OrderAlpha
	}
	return graphtree.OrderSchema
}

func nextReferencePosition(p graphtree.ReferencePosition) graphtree.ReferencePosition {
	switch p {
	case graphtree.RefsEnd:
		return graphtree.RefsStart
	case graphtree.RefsStart:
		return graphtree.RefsInline
	default:
		return graphtree.RefsEnd
	}
}

func nextAttributeLayout(l graphtree.AttributeLayout) graphtree.AttributeLayout {
	if l == graphtree.LayoutRow {
		return graphtree.LayoutList
	}
	return graphtree.LayoutRow
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (m Model) bodyHeight() int {
	h := m.height - 2 // header + footer
	if m.help.ShowAll {
		h -= 3
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) detailWidth() int {
	w := m.width - 4 // panel border and padding
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) detailWrapWidth() int {
	w := m.detailWidth() - 2
	if w > 100 {
		w = 100
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	defer metrics.Timer(metrics.UIRender)()

	header := m.renderHeader()
	footer := m.renderFooter()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	if m.showDetail {
		m.viewport.Width = m.detailWidth()
		m.viewport.Height = bodyHeight - 2
		if m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		title := m.theme.PrimaryBold.Render(m.detailTitle)
		body = lipgloss.JoinVertical(lipgloss.Left, title, PanelStyle.Render(m.viewport.View()))
	} else {
		m.tree.SetSize(m.width, bodyHeight)
		body = m.tree.View()
	}

	finalStyle := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		MaxHeight(m.height)

	return finalStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}

// renderHeader renders the top bar: program, database, current root,
// breadcrumb depth and selection, with the busy spinner on the right.
func (m Model) renderHeader() string {
	var parts []string
	if !m.compactHeader {
		parts = append(parts,
			m.theme.Header.Render("burrow"),
			m.theme.SecondaryText.Render(filepath.Base(m.source.Path())),
		)
	}
	parts = append(parts, m.theme.PrimaryBold.Render(fmt.Sprintf("%s #%s", m.rootEntity, m.rootID)))
	if len(m.crumbs) > 0 {
		parts = append(parts, m.theme.MutedText.Render(fmt.Sprintf("◂ %d back", len(m.crumbs))))
	}
	if sel, ok := m.renderer.State().Selected(); ok {
		parts = append(parts, m.theme.SecondaryText.Render("◉ "+sel.String()))
	}

	left := strings.Join(parts, " ")
	right := ""
	if m.renderPending {
		right = m.spinner.View() + " "
	}

	pad := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

// renderFooter renders the status message when present, else the key help.
func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		style := statusOKStyle
		prefix := "✓ "
		if m.statusIsError {
			style = statusErrStyle
			prefix = "✗ "
		}
		section := style.Render(prefix + m.statusMsg)
		remaining := m.width - lipgloss.Width(section)
		if remaining < 0 {
			remaining = 0
		}
		return lipgloss.JoinHorizontal(lipgloss.Bottom, section,
			lipgloss.NewStyle().Width(remaining).Render(""))
	}
	return m.help.View(m.keys)
}
