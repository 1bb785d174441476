// Package graphtree turns a root record plus a live relational schema into
// a recursively expandable tree of typed nodes: attributes, outbound
// foreign-key subtrees, and inbound back-reference subtrees.
//
// The engine is deliberately UI-agnostic: RenderRoot produces an abstract
// ViewNode tree and the host decides how to paint it. State is confined to
// an explicit ExpansionState instance (which node occurrences are open,
// plus at most one selected root) so several trees can coexist without
// cross-talk. Every occurrence of a record at a distinct path owns its own
// expansion state, reference cycles terminate traversal instead of
// recursing, collapsing a node cascades to everything opened beneath it,
// and back-reference fan-out is bounded by a preview limit with honest
// total counts.
//
// All blocking collaborator calls take a context. The engine itself is
// single-writer: callers mutate ExpansionState only from one goroutine
// (typically a UI event loop) and re-render after each mutation.
package graphtree

import (
	"context"

	"github.com/vanderheijden86/burrow/pkg/model"
)

// SchemaProvider supplies per-entity schemas. Implementations must be
// idempotent for a given entity name; callers cache results for the
// session.
type SchemaProvider interface {
	Schema(ctx context.Context, entity string) (*model.Schema, error)
}

// RecordService fetches records on demand. GetByID returns
// model.ErrNotFound when the row vanished between listing and fetch.
type RecordService interface {
	GetByID(ctx context.Context, entity, id string) (model.Record, error)
	GetAll(ctx context.Context, entity string, limit int) ([]model.Record, error)
	GetBackReferences(ctx context.Context, entity, id string) (map[string]model.BackRefGroup, error)
}

// BackRefPreviewer is an optional RecordService fast path: fetch a single
// back-reference group with a server-side row limit while still reporting
// the true total. Services that cannot limit server-side simply omit it
// and the loader truncates client-side.
type BackRefPreviewer interface {
	GetBackRefPreview(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string, limit int) (model.BackRefGroup, error)
}

// BackRefCounter is an optional RecordService fast path for collapsed
// groups, where only the total matters.
type BackRefCounter interface {
	CountBackRefs(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string) (int, error)
}

// Formatter renders a raw column value for display. It must be pure: no
// I/O, no mutation. The zero value (nil) falls back to a minimal
// fmt-based rendering.
type Formatter func(value any, column model.Column, schema *model.Schema) string
