// Package model defines the relational data types shared by the schema
// provider, the record service, and the graph tree engine: entity schemas,
// columns with foreign-key metadata, back-reference definitions, and
// records fetched on demand.
package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNotFound is returned by record services when a row does not exist or
// vanished between listing and fetch.
var ErrNotFound = errors.New("record not found")

// IDColumn is the identifier column every entity must expose.
const IDColumn = "id"

// LabelSuffix marks pre-joined display labels: a record may carry
// "{fkColumn}_label" alongside "{fkColumn}" so a reference can be labeled
// without fetching the target record.
const LabelSuffix = "_label"

// ForeignKey describes the outbound reference carried by a column.
type ForeignKey struct {
	TargetEntity string `json:"target_entity"`
}

// Column describes one attribute of an entity.
type Column struct {
	Name       string            `json:"name"`
	Type       string            `json:"type,omitempty"`
	ForeignKey *ForeignKey       `json:"foreign_key,omitempty"`
	Hidden     bool              `json:"hidden,omitempty"`
	System     bool              `json:"system,omitempty"`
	Label      bool              `json:"label,omitempty"`
	Enum       map[string]string `json:"enum,omitempty"`
}

// IsFK reports whether the column carries an outbound reference.
func (c Column) IsFK() bool { return c.ForeignKey != nil }

// BackReferenceDef describes an inbound reference: rows of SourceEntity
// whose ViaColumn points at a record of the owning entity.
type BackReferenceDef struct {
	SourceEntity string `json:"source_entity"`
	ViaColumn    string `json:"via_column"`
	AreaColor    string `json:"area_color,omitempty"`
}

// Schema is the session-immutable description of one entity: ordered
// columns, inbound reference definitions, and display metadata. Schemas
// are cached by entity name and treated as read-only after load.
type Schema struct {
	Entity    string             `json:"entity"`
	Columns   []Column           `json:"columns"`
	BackRefs  []BackReferenceDef `json:"back_refs,omitempty"`
	AreaColor string             `json:"area_color,omitempty"`
}

// Column returns the named column, if present.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// LabelColumns returns the names of label-role columns in schema order.
func (s *Schema) LabelColumns() []string {
	var names []string
	for _, c := range s.Columns {
		if c.Label {
			names = append(names, c.Name)
		}
	}
	return names
}

// VisibleColumns returns columns eligible for display: hidden columns are
// always excluded, system columns only when includeSystem is set.
func (s *Schema) VisibleColumns(includeSystem bool) []Column {
	cols := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Hidden {
			continue
		}
		if c.System && !includeSystem {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// FKColumns returns the visible foreign-key columns in schema order.
func (s *Schema) FKColumns(includeSystem bool) []Column {
	var cols []Column
	for _, c := range s.VisibleColumns(includeSystem) {
		if c.IsFK() {
			cols = append(cols, c)
		}
	}
	return cols
}

// BackRefGroup is one entity's inbound rows for a single record, as
// returned by the record service: the true total plus the rows actually
// fetched (which may be capped by a preview limit).
type BackRefGroup struct {
	TotalCount int      `json:"total_count"`
	Records    []Record `json:"records"`
}

// FormatID renders a record identifier value as its canonical string.
// Integer-valued floats (a common artifact of JSON decoding) render
// without a decimal point so identities stay stable across sources.
func FormatID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case []byte:
		return string(id)
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		if id == math.Trunc(id) && !math.IsInf(id, 0) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
