// Package testutil provides deterministic schema/record fixtures for
// exercising the graph tree engine against various reference topologies.
// All builders produce the same data on every call, so tests stay
// reproducible without seeds or golden files.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/vanderheijden86/burrow/pkg/model"
)

// FixtureStore is an in-memory schema provider and record service. It
// satisfies the engine's collaborator interfaces (including the optional
// preview/count fast paths) without importing the engine package.
//
// Build it fully before handing it to a renderer: reads may run
// concurrently, writes may not.
type FixtureStore struct {
	schemas map[string]*model.Schema
	records map[string]map[string]model.Record
	order   map[string][]string

	// FailGetByID injects fetch failures keyed by "entity/id".
	FailGetByID map[string]error
	// FailBackRefs injects load failures keyed by source entity.
	FailBackRefs map[string]error

	// Call counters for asserting which paths were taken.
	GetByIDCalls atomic.Int64
	PreviewCalls atomic.Int64
	CountCalls   atomic.Int64
	GroupedCalls atomic.Int64
	SchemaCalls  atomic.Int64
}

// NewFixtureStore returns an empty store.
func NewFixtureStore() *FixtureStore {
	return &FixtureStore{
		schemas:      make(map[string]*model.Schema),
		records:      make(map[string]map[string]model.Record),
		order:        make(map[string][]string),
		FailGetByID:  make(map[string]error),
		FailBackRefs: make(map[string]error),
	}
}

// AddSchema registers an entity schema.
func (f *FixtureStore) AddSchema(s *model.Schema) {
	f.schemas[s.Entity] = s
}

// Add inserts a record, preserving insertion order for deterministic
// listing.
func (f *FixtureStore) Add(entity string, rec model.Record) {
	if f.records[entity] == nil {
		f.records[entity] = make(map[string]model.Record)
	}
	id := rec.ID()
	if _, exists := f.records[entity][id]; !exists {
		f.order[entity] = append(f.order[entity], id)
	}
	f.records[entity][id] = rec
}

// Remove deletes a record, for vanished-row scenarios.
func (f *FixtureStore) Remove(entity, id string) {
	delete(f.records[entity], id)
	ids := f.order[entity]
	for i, v := range ids {
		if v == id {
			f.order[entity] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// Schema implements the schema provider contract.
func (f *FixtureStore) Schema(ctx context.Context, entity string) (*model.Schema, error) {
	f.SchemaCalls.Add(1)
	s, ok := f.schemas[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	return s, nil
}

// GetByID implements the record service contract.
func (f *FixtureStore) GetByID(ctx context.Context, entity, id string) (model.Record, error) {
	f.GetByIDCalls.Add(1)
	if err, ok := f.FailGetByID[entity+"/"+id]; ok {
		return nil, err
	}
	rec, ok := f.records[entity][id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec, nil
}

// GetAll lists records in insertion order, up to limit (<=0 = all).
func (f *FixtureStore) GetAll(ctx context.Context, entity string, limit int) ([]model.Record, error) {
	ids := f.order[entity]
	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, f.records[entity][id])
	}
	return out, nil
}

// GetBackReferences groups inbound rows by source entity, derived from the
// registered schemas' foreign keys.
func (f *FixtureStore) GetBackReferences(ctx context.Context, entity, id string) (map[string]model.BackRefGroup, error) {
	f.GroupedCalls.Add(1)
	out := make(map[string]model.BackRefGroup)
	for _, s := range f.schemas {
		for _, col := range s.Columns {
			if !col.IsFK() || col.ForeignKey.TargetEntity != entity {
				continue
			}
			if err, ok := f.FailBackRefs[s.Entity]; ok {
				return nil, err
			}
			rows := f.matching(s.Entity, col.Name, id)
			if len(rows) == 0 {
				continue
			}
			g := out[s.Entity]
			g.TotalCount += len(rows)
			g.Records = append(g.Records, rows...)
			out[s.Entity] = g
		}
	}
	return out, nil
}

// GetBackRefPreview implements the server-side-limit fast path.
func (f *FixtureStore) GetBackRefPreview(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string, limit int) (model.BackRefGroup, error) {
	f.PreviewCalls.Add(1)
	if err, ok := f.FailBackRefs[def.SourceEntity]; ok {
		return model.BackRefGroup{}, err
	}
	rows := f.matching(def.SourceEntity, def.ViaColumn, parentID)
	g := model.BackRefGroup{TotalCount: len(rows), Records: rows}
	if limit > 0 && len(g.Records) > limit {
		g.Records = g.Records[:limit]
	}
	return g, nil
}

// CountBackRefs implements the count-only fast path.
func (f *FixtureStore) CountBackRefs(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string) (int, error) {
	f.CountCalls.Add(1)
	if err, ok := f.FailBackRefs[def.SourceEntity]; ok {
		return 0, err
	}
	return len(f.matching(def.SourceEntity, def.ViaColumn, parentID)), nil
}

func (f *FixtureStore) matching(entity, via, parentID string) []model.Record {
	var rows []model.Record
	for _, id := range f.order[entity] {
		rec := f.records[entity][id]
		if v, ok := rec[via]; ok && v != nil && model.FormatID(v) == parentID {
			rows = append(rows, rec)
		}
	}
	return rows
}

// CoreOnly wraps a store exposing only the base record service methods,
// forcing callers onto the grouped/client-side-truncation paths.
type CoreOnly struct {
	Store *FixtureStore
}

func (c CoreOnly) GetByID(ctx context.Context, entity, id string) (model.Record, error) {
	return c.Store.GetByID(ctx, entity, id)
}

func (c CoreOnly) GetAll(ctx context.Context, entity string, limit int) ([]model.Record, error) {
	return c.Store.GetAll(ctx, entity, limit)
}

func (c CoreOnly) GetBackReferences(ctx context.Context, entity, id string) (map[string]model.BackRefGroup, error) {
	return c.Store.GetBackReferences(ctx, entity, id)
}
