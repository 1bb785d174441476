package graphtree

// AttributeOrder controls how visible columns are ordered.
type AttributeOrder int

const (
	// OrderSchema keeps the schema-declared column order.
	OrderSchema AttributeOrder = iota
	// OrderAlpha sorts columns alphabetically by name.
	OrderAlpha
)

func (o AttributeOrder) String() string {
	if o == OrderAlpha {
		return "alpha"
	}
	return "schema"
}

// ParseAttributeOrder maps a config string to an order.
func ParseAttributeOrder(s string) (AttributeOrder, bool) {
	switch s {
	case "schema", "":
		return OrderSchema, true
	case "alpha":
		return OrderAlpha, true
	default:
		return OrderSchema, false
	}
}

// ReferencePosition controls where reference subtrees appear relative to
// attribute content.
type ReferencePosition int

const (
	// RefsEnd renders attributes, then FK subtrees, then back-references.
	RefsEnd ReferencePosition = iota
	// RefsStart renders FK subtrees and back-references before attributes
	// (list layout only; row layout always emits the attribute block
	// first).
	RefsStart
	// RefsInline renders attributes and FK subtrees in original column
	// order, back-references always last.
	RefsInline
)

func (p ReferencePosition) String() string {
	switch p {
	case RefsStart:
		return "start"
	case RefsInline:
		return "inline"
	default:
		return "end"
	}
}

// ParseReferencePosition maps a config string to a position.
func ParseReferencePosition(s string) (ReferencePosition, bool) {
	switch s {
	case "end", "":
		return RefsEnd, true
	case "start":
		return RefsStart, true
	case "inline":
		return RefsInline, true
	default:
		return RefsEnd, false
	}
}

// AttributeLayout controls whether attributes render as one multi-column
// row or one line per attribute.
type AttributeLayout int

const (
	// LayoutRow emits a single row node carrying all attribute cells.
	LayoutRow AttributeLayout = iota
	// LayoutList emits one attribute node per column.
	LayoutList
)

func (l AttributeLayout) String() string {
	if l == LayoutList {
		return "list"
	}
	return "row"
}

// ParseAttributeLayout maps a config string to a layout.
func ParseAttributeLayout(s string) (AttributeLayout, bool) {
	switch s {
	case "row", "":
		return LayoutRow, true
	case "list":
		return LayoutList, true
	default:
		return LayoutRow, false
	}
}

// Options bundles the session-level rendering policy.
type Options struct {
	AttributeOrder      AttributeOrder
	ReferencePosition   ReferencePosition
	AttributeLayout     AttributeLayout
	ShowCycles          bool
	ShowSystemColumns   bool
	BackRefPreviewLimit int
}

// DefaultOptions returns the defaults: schema column order, references at
// the end, row layout, cycle markers shown, system columns hidden, preview
// limit 10.
func DefaultOptions() Options {
	return Options{
		ShowCycles:          true,
		BackRefPreviewLimit: DefaultPreviewLimit,
	}
}
