package datasource

import (
	"context"
	"sync"

	"github.com/vanderheijden86/burrow/pkg/metrics"
	"github.com/vanderheijden86/burrow/pkg/model"
)

// SchemaCache memoizes schema introspection per entity. PRAGMA walks are
// cheap but happen on every render pass for every visible entity, so the
// cache sits between the engine and the database and is dropped as a whole
// when the file changes.
type SchemaCache struct {
	load func(ctx context.Context, entity string) (*model.Schema, error)

	mu      sync.RWMutex
	schemas map[string]*model.Schema
}

// NewSchemaCache wraps a loader function in a read-through cache.
func NewSchemaCache(load func(ctx context.Context, entity string) (*model.Schema, error)) *SchemaCache {
	return &SchemaCache{
		load:    load,
		schemas: make(map[string]*model.Schema),
	}
}

// Schema returns the cached schema or loads and caches it. Hits and misses
// feed the schema cache metric; load time feeds the schema load timer.
func (c *SchemaCache) Schema(ctx context.Context, entity string) (*model.Schema, error) {
	c.mu.RLock()
	s, ok := c.schemas[entity]
	c.mu.RUnlock()
	if ok {
		metrics.SchemaCache.Hit()
		return s, nil
	}
	metrics.SchemaCache.Miss()

	done := metrics.Timer(metrics.SchemaLoad)
	s, err := c.load(ctx, entity)
	done()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.schemas[entity] = s
	c.mu.Unlock()
	return s, nil
}

// Invalidate drops every cached schema. The next lookup per entity
// re-introspects.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	c.schemas = make(map[string]*model.Schema)
	c.mu.Unlock()
}

// Len returns the number of cached entities.
func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

// Stats returns the global schema-cache hit/miss counters.
func (c *SchemaCache) Stats() (hits, misses int64) {
	return metrics.SchemaCache.Hits(), metrics.SchemaCache.Misses()
}
