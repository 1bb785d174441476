package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	gojson "github.com/goccy/go-json"

	"github.com/vanderheijden86/burrow/internal/datasource"
	"github.com/vanderheijden86/burrow/pkg/format"
	"github.com/vanderheijden86/burrow/pkg/graphtree"
	"github.com/vanderheijden86/burrow/pkg/model"
	"github.com/vanderheijden86/burrow/pkg/watcher"
)

// renderTimeout bounds one full tree pass including every sibling fetch.
const renderTimeout = 10 * time.Second

// DataProvider is the data access surface the host needs: the engine's
// provider pair plus the reload hooks. *datasource.SQLiteSource
// implements it.
type DataProvider interface {
	graphtree.SchemaProvider
	graphtree.RecordService
	Invalidate(ctx context.Context) error
	Path() string
}

// renderResultMsg carries one finished tree pass. gen identifies the
// dispatch; results from superseded dispatches are dropped.
type renderResultMsg struct {
	gen    uint64
	tree   *graphtree.ViewNode
	schema *model.Schema
	err    error
}

// detailResultMsg carries the rendered detail view for one record.
type detailResultMsg struct {
	title   string
	content string
	err     error
}

// yankResultMsg reports a clipboard write.
type yankResultMsg struct {
	what string
	err  error
}

// fileChangedMsg arrives when the watched database file changed on disk.
type fileChangedMsg struct{}

// reloadDoneMsg carries the schema re-introspection after a file change.
type reloadDoneMsg struct {
	schema *model.Schema
	diff   datasource.SchemaDiff
	err    error
}

// renderTreeCmd runs one render pass off the event loop. The renderer must
// be bound to a state snapshot (Clone) so the live state can keep mutating.
func renderTreeCmd(gen uint64, r *graphtree.Renderer, source DataProvider, entity, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()

		schema, err := source.Schema(ctx, entity)
		if err != nil {
			return renderResultMsg{gen: gen, err: fmt.Errorf("load schema for %s: %w", entity, err)}
		}
		rec, err := source.GetByID(ctx, entity, id)
		if err != nil {
			return renderResultMsg{gen: gen, err: fmt.Errorf("fetch %s #%s: %w", entity, id, err)}
		}
		tree, err := r.RenderRoot(ctx, entity, rec)
		return renderResultMsg{gen: gen, tree: tree, schema: schema, err: err}
	}
}

// watchChangedCmd blocks on the watcher's change channel and re-arms after
// every delivery. The goroutine parks on the channel until the program
// exits.
func watchChangedCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return fileChangedMsg{}
	}
}

// reloadCmd re-introspects after a database change: invalidate the schema
// cache, reload the root entity's schema and diff it against the one the
// tree was rendered with.
func reloadCmd(source DataProvider, entity string, old *model.Schema) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()

		if err := source.Invalidate(ctx); err != nil {
			return reloadDoneMsg{err: fmt.Errorf("reload %s: %w", source.Path(), err)}
		}
		schema, err := source.Schema(ctx, entity)
		if err != nil {
			return reloadDoneMsg{err: fmt.Errorf("reload schema for %s: %w", entity, err)}
		}
		return reloadDoneMsg{schema: schema, diff: datasource.DiffSchemas(old, schema)}
	}
}

// yankJSONCmd fetches the record and copies it to the clipboard as JSON.
func yankJSONCmd(source DataProvider, entity, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()

		rec, err := source.GetByID(ctx, entity, id)
		if err != nil {
			return yankResultMsg{err: err}
		}
		data, err := rec.JSON()
		if err != nil {
			return yankResultMsg{err: err}
		}
		if err := clipboard.WriteAll(string(data)); err != nil {
			return yankResultMsg{err: err}
		}
		return yankResultMsg{what: fmt.Sprintf("%s #%s as JSON", entity, id)}
	}
}

// detailCmd fetches one record and renders the full-record detail view
// through glamour at the given wrap width.
func detailCmd(source DataProvider, entity, id string, width int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
		defer cancel()

		schema, err := source.Schema(ctx, entity)
		if err != nil {
			return detailResultMsg{err: err}
		}
		rec, err := source.GetByID(ctx, entity, id)
		if err != nil {
			return detailResultMsg{err: err}
		}

		md := buildDetailMarkdown(entity, rec, schema)
		content := md
		if renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		); err == nil {
			if out, err := renderer.Render(md); err == nil {
				content = out
			}
		}

		return detailResultMsg{
			title:   fmt.Sprintf("%s #%s", entity, id),
			content: content,
		}
	}
}

// longFieldThreshold is where a column value stops being a list line and
// becomes its own section in the detail view.
const longFieldThreshold = 160

// buildDetailMarkdown lays the full record out as a markdown document:
// scalar columns as a definition list, long text fields as their own
// sections so embedded markdown and JSON render properly.
func buildDetailMarkdown(entity string, rec model.Record, schema *model.Schema) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s #%s\n\n", entity, rec.ID())
	if label := rec.Label(schema); label != "" && label != rec.ID() {
		fmt.Fprintf(&sb, "**%s**\n\n", label)
	}

	var long []model.Column
	for _, col := range schema.Columns {
		v, ok := rec.Value(col.Name)
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && (len(s) > longFieldThreshold || strings.Contains(s, "\n")) {
			long = append(long, col)
			continue
		}
		fmt.Fprintf(&sb, "- **%s**: %s\n", col.Name, format.Format(v, col, schema))
	}

	for _, col := range long {
		v, _ := rec.Value(col.Name)
		s := v.(string)
		fmt.Fprintf(&sb, "\n## %s\n\n", col.Name)
		if looksLikeJSON(s) {
			fmt.Fprintf(&sb, "```json\n%s\n```\n", s)
		} else {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return gojson.Valid([]byte(trimmed))
}
