package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/burrow/pkg/model"
)

// ErrUnknownEntity is returned for table names absent from the catalog.
var ErrUnknownEntity = errors.New("unknown entity")

// systemColumns are bookkeeping columns hidden from the default view.
// Primary-key columns are treated the same way regardless of name.
var systemColumns = map[string]struct{}{
	"id":          {},
	"uuid":        {},
	"created_at":  {},
	"updated_at":  {},
	"deleted_at":  {},
	"modified_at": {},
}

// labelCandidates are column names preferred as record labels, in
// priority order.
var labelCandidates = []string{
	"name", "title", "label", "display_name", "number", "reference",
	"summary", "slug", "email", "username",
}

// areaPalette is the stable accent color assignment per entity. Hashing
// keeps colors identical across sessions without storing anything.
var areaPalette = []string{
	"#7aa2f7", "#9ece6a", "#e0af68", "#f7768e",
	"#bb9af7", "#7dcfff", "#ff9e64", "#73daca",
}

func areaColor(entity string) string {
	h := fnv.New32a()
	h.Write([]byte(entity))
	return areaPalette[h.Sum32()%uint32(len(areaPalette))]
}

// SQLiteSource reads schemas and records from a SQLite database opened
// read-only. It serves the engine's schema and record contracts, plus the
// preview/count fast paths so collapsed back-reference groups never pull
// full row sets.
type SQLiteSource struct {
	db    *sql.DB
	path  string
	cache *SchemaCache

	mu       sync.RWMutex
	tables   map[string]struct{}
	names    []string
	backRefs map[string][]model.BackReferenceDef
	rowKeys  map[string]string
}

// NewSQLiteSource opens the database at path for reading and loads the
// table catalog. Opening a file that is not a SQLite database fails here,
// not on first query.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	// Read-only mode with pragmas tuned for read traffic.
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA cache_size = -64000",   // 64MB cache
		"PRAGMA mmap_size = 268435456", // 256MB mmap
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		_, _ = db.Exec(pragma) // non-fatal
	}

	s := &SQLiteSource{
		db:      db,
		path:    path,
		rowKeys: make(map[string]string),
	}
	s.cache = NewSchemaCache(s.introspectSchema)

	if err := s.loadCatalog(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("read catalog of %s: %w", path, err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteSource) Path() string { return s.path }

// Entities returns the table names, sorted.
func (s *SQLiteSource) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// LastModified returns the database file's modification time, used by the
// live-reload status line.
func (s *SQLiteSource) LastModified() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Invalidate drops all cached schemas and re-reads the table catalog.
// Called when the file changes on disk.
func (s *SQLiteSource) Invalidate(ctx context.Context) error {
	s.cache.Invalidate()
	return s.loadCatalog(ctx)
}

// SchemaCacheStats exposes the cache counters for the status line.
func (s *SQLiteSource) SchemaCacheStats() (hits, misses int64) {
	return s.cache.Stats()
}

// loadCatalog reads the table list and builds the reverse foreign-key
// index that back-reference definitions come from.
func (s *SQLiteSource) loadCatalog(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	tables := make(map[string]struct{})
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables[name] = struct{}{}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	backRefs := make(map[string][]model.BackReferenceDef)
	for _, tbl := range names {
		fks, err := s.foreignKeys(ctx, tbl)
		if err != nil {
			return fmt.Errorf("foreign keys of %s: %w", tbl, err)
		}
		for col, target := range fks {
			backRefs[target] = append(backRefs[target], model.BackReferenceDef{
				SourceEntity: tbl,
				ViaColumn:    col,
				AreaColor:    areaColor(tbl),
			})
		}
	}
	for _, defs := range backRefs {
		sort.Slice(defs, func(i, j int) bool {
			if defs[i].SourceEntity != defs[j].SourceEntity {
				return defs[i].SourceEntity < defs[j].SourceEntity
			}
			return defs[i].ViaColumn < defs[j].ViaColumn
		})
	}

	s.mu.Lock()
	s.tables = tables
	s.names = names
	s.backRefs = backRefs
	s.mu.Unlock()
	return nil
}

// foreignKeys returns column -> target table for one table.
func (s *SQLiteSource) foreignKeys(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, seq int
		var target, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		// Composite keys (seq > 0) cannot be followed as a single column.
		if seq > 0 {
			delete(out, from)
			continue
		}
		out[from] = target
	}
	return out, rows.Err()
}

// Schema implements the schema provider contract through the read-through
// cache.
func (s *SQLiteSource) Schema(ctx context.Context, entity string) (*model.Schema, error) {
	return s.cache.Schema(ctx, entity)
}

// introspectSchema builds one entity schema from PRAGMA table_info plus
// the catalog's reverse foreign-key index.
func (s *SQLiteSource) introspectSchema(ctx context.Context, entity string) (*model.Schema, error) {
	s.mu.RLock()
	_, known := s.tables[entity]
	s.mu.RUnlock()
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}

	fks, err := s.foreignKeys(ctx, entity)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(entity)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []model.Column
	var pkCols []string
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}

		c := model.Column{Name: name, Type: strings.ToUpper(typ)}
		if target, ok := fks[name]; ok {
			c.ForeignKey = &model.ForeignKey{TargetEntity: target}
		}
		if _, sys := systemColumns[strings.ToLower(name)]; sys || pk > 0 {
			c.System = true
		}
		if strings.HasPrefix(name, "_") {
			c.Hidden = true
		}
		if pk > 0 {
			pkCols = append(pkCols, name)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}

	markLabelColumn(cols)

	s.mu.Lock()
	s.rowKeys[entity] = rowKeyFor(cols, pkCols)
	defs := append([]model.BackReferenceDef(nil), s.backRefs[entity]...)
	s.mu.Unlock()

	return &model.Schema{
		Entity:    entity,
		Columns:   cols,
		BackRefs:  defs,
		AreaColor: areaColor(entity),
	}, nil
}

// markLabelColumn flags the best display column: the highest-priority
// candidate name with text affinity, else the first plain text column.
func markLabelColumn(cols []model.Column) {
	for _, want := range labelCandidates {
		for i := range cols {
			if strings.EqualFold(cols[i].Name, want) && hasTextAffinity(cols[i].Type) && !cols[i].IsFK() {
				cols[i].Label = true
				return
			}
		}
	}
	for i := range cols {
		if hasTextAffinity(cols[i].Type) && !cols[i].IsFK() && !cols[i].System && !cols[i].Hidden {
			cols[i].Label = true
			return
		}
	}
}

func hasTextAffinity(typ string) bool {
	return strings.Contains(typ, "CHAR") || strings.Contains(typ, "TEXT") || strings.Contains(typ, "CLOB")
}

// rowKeyFor picks the column records are addressed by: "id" when present,
// else a single-column primary key, else the implicit rowid.
func rowKeyFor(cols []model.Column, pkCols []string) string {
	for _, c := range cols {
		if c.Name == model.IDColumn {
			return model.IDColumn
		}
	}
	if len(pkCols) == 1 {
		return pkCols[0]
	}
	return "rowid"
}

func (s *SQLiteSource) rowKey(entity string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.rowKeys[entity]; ok {
		return k
	}
	return model.IDColumn
}

// GetByID implements the record service contract.
func (s *SQLiteSource) GetByID(ctx context.Context, entity, id string) (model.Record, error) {
	schema, err := s.Schema(ctx, entity)
	if err != nil {
		return nil, err
	}
	q, err := s.selectQuery(ctx, schema)
	if err != nil {
		return nil, err
	}
	key := s.rowKey(entity)
	q += fmt.Sprintf(" WHERE t.%s = ? LIMIT 1", quoteIdent(key))

	recs, err := s.queryRecords(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", entity, id, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", entity, id, model.ErrNotFound)
	}
	return recs[0], nil
}

// GetAll lists records ordered by the row key. limit <= 0 means all.
func (s *SQLiteSource) GetAll(ctx context.Context, entity string, limit int) ([]model.Record, error) {
	schema, err := s.Schema(ctx, entity)
	if err != nil {
		return nil, err
	}
	q, err := s.selectQuery(ctx, schema)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	key := s.rowKey(entity)
	q += fmt.Sprintf(" ORDER BY t.%s LIMIT ?", quoteIdent(key))

	recs, err := s.queryRecords(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	return recs, nil
}

// GetBackReferences returns all inbound rows grouped by source entity.
// Totals are exact; rows are not limited on this path.
func (s *SQLiteSource) GetBackReferences(ctx context.Context, entity, id string) (map[string]model.BackRefGroup, error) {
	schema, err := s.Schema(ctx, entity)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.BackRefGroup, len(schema.BackRefs))
	for _, def := range schema.BackRefs {
		rows, err := s.backRefRows(ctx, def, id, -1)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		g := out[def.SourceEntity]
		g.TotalCount += len(rows)
		g.Records = append(g.Records, rows...)
		out[def.SourceEntity] = g
	}
	return out, nil
}

// GetBackRefPreview is the server-side-limit fast path: an exact COUNT(*)
// plus at most limit rows.
func (s *SQLiteSource) GetBackRefPreview(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string, limit int) (model.BackRefGroup, error) {
	total, err := s.CountBackRefs(ctx, def, parentEntity, parentID)
	if err != nil {
		return model.BackRefGroup{}, err
	}
	if total == 0 {
		return model.BackRefGroup{}, nil
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.backRefRows(ctx, def, parentID, limit)
	if err != nil {
		return model.BackRefGroup{}, err
	}
	return model.BackRefGroup{TotalCount: total, Records: rows}, nil
}

// CountBackRefs is the count-only fast path for collapsed groups.
func (s *SQLiteSource) CountBackRefs(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string) (int, error) {
	s.mu.RLock()
	_, known := s.tables[def.SourceEntity]
	s.mu.RUnlock()
	if !known {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEntity, def.SourceEntity)
	}

	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`,
		quoteIdent(def.SourceEntity), quoteIdent(def.ViaColumn))
	var n int
	if err := s.db.QueryRowContext(ctx, q, parentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s via %s: %w", def.SourceEntity, def.ViaColumn, err)
	}
	return n, nil
}

func (s *SQLiteSource) backRefRows(ctx context.Context, def model.BackReferenceDef, parentID string, limit int) ([]model.Record, error) {
	srcSchema, err := s.Schema(ctx, def.SourceEntity)
	if err != nil {
		return nil, err
	}
	q, err := s.selectQuery(ctx, srcSchema)
	if err != nil {
		return nil, err
	}
	key := s.rowKey(def.SourceEntity)
	q += fmt.Sprintf(" WHERE t.%s = ? ORDER BY t.%s LIMIT ?", quoteIdent(def.ViaColumn), quoteIdent(key))

	rows, err := s.queryRecords(ctx, q, parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("back references %s via %s: %w", def.SourceEntity, def.ViaColumn, err)
	}
	return rows, nil
}

// selectQuery builds the projection for one entity: every table column,
// the row key aliased to "id" when it is not literally id, and a
// pre-joined "{col}_label" for each foreign key whose target declares a
// label column. The labels let collapsed reference nodes render without a
// fetch per row.
func (s *SQLiteSource) selectQuery(ctx context.Context, schema *model.Schema) (string, error) {
	var sel, joins strings.Builder
	sel.WriteString("SELECT t.*")

	key := s.rowKey(schema.Entity)
	if key != model.IDColumn {
		fmt.Fprintf(&sel, ", t.%s AS %s", quoteIdent(key), quoteIdent(model.IDColumn))
	}

	for i, col := range schema.Columns {
		if !col.IsFK() {
			continue
		}
		target := col.ForeignKey.TargetEntity
		targetSchema, err := s.Schema(ctx, target)
		if err != nil {
			continue // dangling FK target: no label join
		}
		labels := targetSchema.LabelColumns()
		if len(labels) == 0 {
			continue
		}
		alias := fmt.Sprintf("r%d", i)
		fmt.Fprintf(&sel, ", %s.%s AS %s", alias, quoteIdent(labels[0]), quoteIdent(col.Name+model.LabelSuffix))
		fmt.Fprintf(&joins, " LEFT JOIN %s %s ON %s.%s = t.%s",
			quoteIdent(target), alias,
			alias, quoteIdent(s.rowKey(target)), quoteIdent(col.Name))
	}

	fmt.Fprintf(&sel, " FROM %s t", quoteIdent(schema.Entity))
	sel.WriteString(joins.String())
	return sel.String(), nil
}

// queryRecords runs a built query and scans each row into a Record. Typed
// text stays raw (JSON payloads included); []byte becomes string.
func (s *SQLiteSource) queryRecords(ctx context.Context, query string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []model.Record
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			rec[c] = normalizeValue(vals[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return v
	}
}

// quoteIdent quotes a SQL identifier. Table names are additionally checked
// against the catalog before any query is built.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
