package model

import (
	"strings"

	json "github.com/goccy/go-json"
)

// Record is one row of an entity: a mapping from column name to scalar (or
// structured) value, always including an "id". Records are fetched on
// demand and not retained beyond the rendering pass.
type Record map[string]any

// ID returns the record identifier as a string, or "" when absent.
func (r Record) ID() string {
	v, ok := r[IDColumn]
	if !ok {
		return ""
	}
	return FormatID(v)
}

// Value returns the raw value for a column.
func (r Record) Value(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// PreJoinedLabel returns the pre-joined display label for a foreign-key
// column ("{column}_label"), when the source supplied one.
func (r Record) PreJoinedLabel(column string) (string, bool) {
	v, ok := r[column+LabelSuffix]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Label resolves the record's display label: the first non-empty
// label-role column in schema order, else "{entity} #{id}".
func (r Record) Label(s *Schema) string {
	if s != nil {
		for _, name := range s.LabelColumns() {
			if v, ok := r[name]; ok {
				if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
					return str
				}
			}
		}
	}
	entity := ""
	if s != nil {
		entity = s.Entity
	}
	if entity == "" {
		return "#" + r.ID()
	}
	return entity + " #" + r.ID()
}

// JSON renders the record as indented JSON, used by clipboard yank and
// robot output.
func (r Record) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
