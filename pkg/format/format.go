// Package format renders raw record values for terminal display. All
// functions are pure; the tree renderer, the detail view, and the robot
// printer share them.
package format

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/burrow/pkg/model"
)

// Null is the display placeholder for SQL NULL and absent values.
const Null = "∅"

// maxCellWidth bounds a single formatted cell. URLs and JSON payloads are
// the usual offenders; anything longer truncates with an ellipsis.
const maxCellWidth = 80

// Format renders one column value. It satisfies the tree renderer's
// Formatter contract: nil becomes Null, enums decode through the column
// map, timestamps humanize, JSON compacts, and everything else prints
// plainly.
func Format(value any, column model.Column, schema *model.Schema) string {
	if value == nil {
		return Null
	}
	if len(column.Enum) > 0 {
		if decoded, ok := column.Enum[model.FormatID(value)]; ok {
			return decoded
		}
	}

	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return formatInt(int64(v), column)
	case int32:
		return formatInt(int64(v), column)
	case int64:
		return formatInt(v, column)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return formatFloat(v)
	case time.Time:
		return FormatTime(v)
	case []byte:
		if utf8.Valid(v) {
			return formatString(string(v), column)
		}
		return Truncate(fmt.Sprintf("0x%x", v), maxCellWidth)
	case string:
		return formatString(v, column)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatInt renders an integer, decoding 0/1 as booleans when the column
// is declared boolean.
func formatInt(v int64, column model.Column) string {
	if isBoolType(column.Type) {
		switch v {
		case 0:
			return "false"
		case 1:
			return "true"
		}
	}
	return strconv.FormatInt(v, 10)
}

// formatFloat drops the decimal point for whole values, which SQLite REAL
// columns produce constantly.
func formatFloat(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatString(s string, column model.Column) string {
	if s == "" {
		return s
	}
	if t, ok := parseTime(s, column); ok {
		return FormatTime(t)
	}
	if isJSONPayload(s) {
		return compactJSON(s)
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return Truncate(s, maxCellWidth)
	}
	// Cells are single-line; keep the first line and mark the cut.
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimRight(s[:i], "\r") + "…"
	}
	return Truncate(s, maxCellWidth)
}

func isBoolType(typ string) bool {
	return strings.Contains(strings.ToUpper(typ), "BOOL")
}

// timeHinted reports whether the column's declared type or name marks it
// as a timestamp. SQLite stores timestamps as TEXT, so the name carries
// most of the signal.
func timeHinted(column model.Column) bool {
	typ := strings.ToUpper(column.Type)
	if strings.Contains(typ, "DATE") || strings.Contains(typ, "TIME") {
		return true
	}
	name := strings.ToLower(column.Name)
	return strings.HasSuffix(name, "_at") ||
		strings.HasSuffix(name, "_on") ||
		strings.HasSuffix(name, "_date") ||
		strings.HasSuffix(name, "_time") ||
		name == "date" || name == "timestamp"
}

// timeLayouts are tried in order for hinted columns. Unhinted columns only
// accept strict RFC3339, which cannot be mistaken for anything else.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string, column model.Column) (time.Time, bool) {
	if len(s) < 10 || len(s) > 35 || s[0] < '0' || s[0] > '9' {
		return time.Time{}, false
	}
	if !timeHinted(column) {
		t, err := time.Parse(time.RFC3339, s)
		return t, err == nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders a timestamp: relative within the last day, date plus
// time otherwise, date alone for midnight values.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return Null
	}
	if d := time.Since(t); d >= 0 && d < 24*time.Hour {
		return FormatTimeRel(t)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

// FormatTimeRel returns a relative time string (e.g., "2h ago", "3d ago").
func FormatTimeRel(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	d := time.Since(t)
	if d < 0 {
		// Future timestamps treated as now
		return "now"
	}
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(d.Hours()/(24*7)))
	default:
		return fmt.Sprintf("%dmo ago", int(d.Hours()/(24*30)))
	}
}

func isJSONPayload(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return false
	}
	switch trimmed[0] {
	case '{', '[':
	default:
		return false
	}
	return json.Valid([]byte(trimmed))
}

func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(strings.TrimSpace(s))); err != nil {
		return Truncate(s, maxCellWidth)
	}
	return Truncate(buf.String(), maxCellWidth)
}

// Truncate shortens a string to max visual width (cells), appending an
// ellipsis when anything was cut. Wide characters count as two cells.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	const suffix = "…"
	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth-suffixWidth, "") + suffix
}

// PadRight pads s with spaces to the given visual width.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// Cell renders s into a fixed-width column: truncated when too long,
// padded when too short.
func Cell(s string, width int) string {
	return PadRight(Truncate(s, width), width)
}
