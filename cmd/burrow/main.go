package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/vanderheijden86/burrow/internal/datasource"
	"github.com/vanderheijden86/burrow/pkg/analysis"
	"github.com/vanderheijden86/burrow/pkg/config"
	"github.com/vanderheijden86/burrow/pkg/export"
	"github.com/vanderheijden86/burrow/pkg/format"
	"github.com/vanderheijden86/burrow/pkg/graphtree"
	"github.com/vanderheijden86/burrow/pkg/model"
	"github.com/vanderheijden86/burrow/pkg/ui"
	"github.com/vanderheijden86/burrow/pkg/version"
	"github.com/vanderheijden86/burrow/pkg/watcher"
)

func main() {
	dbPath := flag.String("db", "", "Path to the SQLite database (discovered in the current directory when omitted)")
	entityFlag := flag.String("entity", "", "Entity (table) to open as the root")
	idFlag := flag.String("id", "", "Record id to open (first row when omitted)")
	printFlag := flag.Bool("print", false, "Render the tree to stdout and exit (no TUI, no ANSI)")
	depthFlag := flag.Int("depth", 1, "Reference depth to expand with --print")
	previewFlag := flag.Int("preview-limit", 0, "Back-reference preview rows per group (overrides config)")
	svgFlag := flag.String("schema-svg", "", "Write a schema snapshot SVG to the given path and exit")
	pngFlag := flag.String("schema-png", "", "Write a schema snapshot PNG to the given path and exit")
	reportFlag := flag.Bool("schema-report", false, "Print the schema analysis report and exit")
	helpFlag := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *helpFlag {
		fmt.Println("Usage: burrow [options]")
		fmt.Println("\nAn interactive tree explorer for relational databases.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("burrow %s\n", version.Version)
		os.Exit(0)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		// Non-fatal: continue with defaults.
		cfg = config.DefaultConfig()
	}
	for _, warning := range cfg.Validate() {
		fmt.Fprintln(os.Stderr, "config:", warning)
	}

	robot := *printFlag || *svgFlag != "" || *pngFlag != "" || *reportFlag
	interactive := !robot && term.IsTerminal(int(os.Stdin.Fd()))

	path, err := resolveDatabase(ctx, *dbPath, interactive)
	if err != nil {
		fatalf("%v", err)
	}

	source, err := datasource.NewSQLiteSource(path)
	if err != nil {
		fatalf("open %s: %v", path, err)
	}
	defer source.Close()

	// Catalog-level surfaces run and exit before any record is touched.
	if *reportFlag || *svgFlag != "" || *pngFlag != "" {
		if err := runSchemaSurfaces(ctx, source, *reportFlag, *svgFlag, *pngFlag); err != nil {
			fatalf("%v", err)
		}
		return
	}

	entity, err := resolveEntity(ctx, source, *entityFlag, interactive)
	if err != nil {
		fatalf("%v", err)
	}

	id, record, err := resolveRecord(ctx, source, entity, *idFlag)
	if err != nil {
		fatalf("%v", err)
	}

	opts := cfg.Options()
	if *previewFlag > 0 {
		opts.BackRefPreviewLimit = *previewFlag
	}

	if *printFlag {
		state := graphtree.NewExpansionState()
		renderer := graphtree.NewRenderer(source, source, state, format.Format, opts)
		tree, err := renderer.ExpandToDepth(ctx, entity, record, *depthFlag)
		if err != nil {
			fatalf("render %s #%s: %v", entity, id, err)
		}
		printViewTree(os.Stdout, tree)
		return
	}

	w, err := watcher.NewWatcher(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "live reload disabled: %v\n", err)
		w = nil
	}
	if w != nil {
		defer w.Stop()
	}

	theme := themeFor(cfg.UI.Theme)
	m := ui.NewModel(ui.Params{
		Source:        source,
		Watcher:       w,
		Theme:         &theme,
		Options:       opts,
		Entity:        entity,
		ID:            id,
		CompactHeader: cfg.UI.CompactHeader,
	})

	final, err := runTUIProgram(m)
	if err != nil {
		fatalf("error running burrow: %v", err)
	}

	// Persist the options the session ended with, plus the database for
	// next time's discovery ordering.
	if fm, ok := final.(ui.Model); ok {
		persistOptions(&cfg, fm.Options())
	}
	cfg.RememberDatabase(path)
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "save config: %v\n", err)
	}
}

func fatalf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

// resolveDatabase picks the database file to open: the --db flag, the only
// valid candidate, a huh picker on a terminal, or the freshest candidate
// everywhere else.
func resolveDatabase(ctx context.Context, flagPath string, interactive bool) (string, error) {
	if flagPath != "" {
		abs, err := filepath.Abs(flagPath)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("database %s: %w", flagPath, err)
		}
		return abs, nil
	}

	sources, err := datasource.Discover(ctx, "")
	if err != nil {
		return "", err
	}
	var valid []datasource.DataSource
	for _, s := range sources {
		if s.Valid {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return "", fmt.Errorf("no SQLite database found in the current directory (use --db)")
	}
	if len(valid) == 1 || !interactive {
		best, _ := datasource.SelectBestSource(valid)
		return best.Path, nil
	}
	return pickDatabase(valid)
}

func pickDatabase(candidates []datasource.DataSource) (string, error) {
	var chosen string
	options := make([]huh.Option[string], 0, len(candidates))
	for _, c := range candidates {
		label := fmt.Sprintf("%s · %d tables · %s",
			filepath.Base(c.Path), c.TableCount, format.FormatTimeRel(c.ModTime))
		options = append(options, huh.NewOption(label, c.Path))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Several databases found").
				Options(options...).
				Value(&chosen),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return "", err
	}
	return chosen, nil
}

// resolveEntity picks the root entity: the --entity flag, the only table,
// a ranked huh picker on a terminal, or the top-ranked entity elsewhere.
func resolveEntity(ctx context.Context, source *datasource.SQLiteSource, flagEntity string, interactive bool) (string, error) {
	entities := source.Entities()
	if len(entities) == 0 {
		return "", fmt.Errorf("%s has no user tables", source.Path())
	}

	if flagEntity != "" {
		for _, e := range entities {
			if e == flagEntity {
				return flagEntity, nil
			}
		}
		return "", fmt.Errorf("unknown entity %q (have: %s)", flagEntity, strings.Join(entities, ", "))
	}

	if len(entities) == 1 {
		return entities[0], nil
	}

	schemas, err := loadAllSchemas(ctx, source)
	if err != nil {
		return "", err
	}
	ranked := analysis.NewAnalyzer(schemas).Analyze().Rank()
	if !interactive {
		return ranked[0], nil
	}
	return pickEntity(ranked)
}

func pickEntity(ranked []string) (string, error) {
	var chosen string
	options := make([]huh.Option[string], 0, len(ranked))
	for _, e := range ranked {
		options = append(options, huh.NewOption(e, e))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Open which entity?").
				Description("Most connected first").
				Options(options...).
				Value(&chosen),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return "", err
	}
	return chosen, nil
}

// resolveRecord validates --id against the database, or takes the first
// row of the entity when the flag is absent.
func resolveRecord(ctx context.Context, source *datasource.SQLiteSource, entity, flagID string) (string, model.Record, error) {
	if flagID != "" {
		rec, err := source.GetByID(ctx, entity, flagID)
		if err != nil {
			return "", nil, fmt.Errorf("fetch %s #%s: %w", entity, flagID, err)
		}
		return flagID, rec, nil
	}

	recs, err := source.GetAll(ctx, entity, 1)
	if err != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", entity, err)
	}
	if len(recs) == 0 {
		return "", nil, fmt.Errorf("%s has no rows", entity)
	}
	return recs[0].ID(), recs[0], nil
}

func loadAllSchemas(ctx context.Context, source *datasource.SQLiteSource) ([]*model.Schema, error) {
	entities := source.Entities()
	schemas := make([]*model.Schema, 0, len(entities))
	for _, e := range entities {
		s, err := source.Schema(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("load schema for %s: %w", e, err)
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// runSchemaSurfaces handles --schema-report, --schema-svg and --schema-png,
// which can combine in one invocation.
func runSchemaSurfaces(ctx context.Context, source *datasource.SQLiteSource, report bool, svgPath, pngPath string) error {
	schemas, err := loadAllSchemas(ctx, source)
	if err != nil {
		return err
	}
	stats := analysis.NewAnalyzer(schemas).Analyze()

	if report {
		fmt.Print(stats.Report())
	}

	outputs := []struct{ path, kind string }{
		{svgPath, "svg"},
		{pngPath, "png"},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		err := export.SaveSchemaSnapshot(export.SchemaSnapshotOptions{
			Path:    out.path,
			Format:  out.kind,
			Title:   filepath.Base(source.Path()),
			Source:  source.Path(),
			Schemas: schemas,
			Stats:   stats,
		})
		if err != nil {
			return fmt.Errorf("schema snapshot: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", out.path)
	}
	return nil
}

// persistOptions writes the engine options back into the config so the
// next session starts where this one left off.
func persistOptions(cfg *config.Config, opts graphtree.Options) {
	cfg.Render.AttributeOrder = opts.AttributeOrder.String()
	cfg.Render.ReferencePosition = opts.ReferencePosition.String()
	cfg.Render.AttributeLayout = opts.AttributeLayout.String()
	show := opts.ShowCycles
	cfg.Render.ShowCycles = &show
	cfg.Render.ShowSystemColumns = opts.ShowSystemColumns
	cfg.Render.PreviewLimit = opts.BackRefPreviewLimit
}

// themeFor maps the configured theme name onto a renderer. "light" and
// "dark" force the background assumption; anything else lets lipgloss
// detect it.
func themeFor(name string) ui.Theme {
	r := lipgloss.DefaultRenderer()
	switch name {
	case "light":
		r.SetHasDarkBackground(false)
	case "dark":
		r.SetHasDarkBackground(true)
	}
	return ui.DefaultTheme(r)
}

func runTUIProgram(m ui.Model) (tea.Model, error) {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set BURROW_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("BURROW_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	final, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return final, nil
	}
	return final, err
}
