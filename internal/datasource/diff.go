package datasource

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/burrow/pkg/model"
)

// SchemaDiff captures structural drift of one entity between two schema
// snapshots. The reload path uses it to decide whether expansion state can
// survive a database change: cosmetic data edits keep the tree, structural
// drift clears it.
type SchemaDiff struct {
	Entity string
	// AddedColumns are column names present only in the new schema.
	AddedColumns []string
	// RemovedColumns are column names present only in the old schema.
	RemovedColumns []string
	// RetypedColumns changed declared type or foreign-key target.
	RetypedColumns []string
	// AddedRefs/RemovedRefs are back-reference sources that appeared or
	// vanished, as "source.via" strings.
	AddedRefs   []string
	RemovedRefs []string
}

// Empty reports whether the two snapshots are structurally identical.
func (d SchemaDiff) Empty() bool {
	return len(d.AddedColumns) == 0 && len(d.RemovedColumns) == 0 &&
		len(d.RetypedColumns) == 0 && len(d.AddedRefs) == 0 && len(d.RemovedRefs) == 0
}

// Summary returns a one-line description of the drift.
func (d SchemaDiff) Summary() string {
	if d.Empty() {
		return fmt.Sprintf("%s: unchanged", d.Entity)
	}
	var parts []string
	if n := len(d.AddedColumns); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d column(s)", n))
	}
	if n := len(d.RemovedColumns); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d column(s)", n))
	}
	if n := len(d.RetypedColumns); n > 0 {
		parts = append(parts, fmt.Sprintf("%d retyped", n))
	}
	if n := len(d.AddedRefs) + len(d.RemovedRefs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d reference change(s)", n))
	}
	return fmt.Sprintf("%s: %s", d.Entity, strings.Join(parts, ", "))
}

// DiffSchemas compares two snapshots of the same entity. A nil side is
// treated as the entity being absent there.
func DiffSchemas(old, updated *model.Schema) SchemaDiff {
	var d SchemaDiff
	switch {
	case old == nil && updated == nil:
		return d
	case old == nil:
		d.Entity = updated.Entity
		for _, c := range updated.Columns {
			d.AddedColumns = append(d.AddedColumns, c.Name)
		}
		for _, r := range updated.BackRefs {
			d.AddedRefs = append(d.AddedRefs, refKey(r))
		}
		return d
	case updated == nil:
		d.Entity = old.Entity
		for _, c := range old.Columns {
			d.RemovedColumns = append(d.RemovedColumns, c.Name)
		}
		for _, r := range old.BackRefs {
			d.RemovedRefs = append(d.RemovedRefs, refKey(r))
		}
		return d
	}

	d.Entity = updated.Entity

	oldCols := make(map[string]model.Column, len(old.Columns))
	for _, c := range old.Columns {
		oldCols[c.Name] = c
	}
	for _, c := range updated.Columns {
		prev, ok := oldCols[c.Name]
		if !ok {
			d.AddedColumns = append(d.AddedColumns, c.Name)
			continue
		}
		delete(oldCols, c.Name)
		if prev.Type != c.Type || fkTarget(prev) != fkTarget(c) {
			d.RetypedColumns = append(d.RetypedColumns, c.Name)
		}
	}
	for _, c := range old.Columns {
		if _, unmatched := oldCols[c.Name]; unmatched {
			d.RemovedColumns = append(d.RemovedColumns, c.Name)
		}
	}

	oldRefs := make(map[string]struct{}, len(old.BackRefs))
	for _, r := range old.BackRefs {
		oldRefs[refKey(r)] = struct{}{}
	}
	for _, r := range updated.BackRefs {
		key := refKey(r)
		if _, ok := oldRefs[key]; ok {
			delete(oldRefs, key)
			continue
		}
		d.AddedRefs = append(d.AddedRefs, key)
	}
	for _, r := range old.BackRefs {
		if _, unmatched := oldRefs[refKey(r)]; unmatched {
			d.RemovedRefs = append(d.RemovedRefs, refKey(r))
		}
	}

	return d
}

func refKey(r model.BackReferenceDef) string {
	return r.SourceEntity + "." + r.ViaColumn
}

func fkTarget(c model.Column) string {
	if c.ForeignKey == nil {
		return ""
	}
	return c.ForeignKey.TargetEntity
}
