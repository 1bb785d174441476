package graphtree

import (
	"context"

	"github.com/vanderheijden86/burrow/pkg/metrics"
	"github.com/vanderheijden86/burrow/pkg/model"
)

// DefaultPreviewLimit bounds how many back-reference rows are eagerly
// rendered before truncation.
const DefaultPreviewLimit = 10

// Preview is the outcome of loading one back-reference group: the true
// total, the rows actually available for rendering (at most the preview
// limit), and whether rows were held back. A service failure is carried in
// Err; the group renders an inline error marker instead of aborting the
// pass.
type Preview struct {
	TotalCount int
	Rows       []model.Record
	Truncated  bool
	Err        error
}

// BackRefLoader obtains grouped inbound records with a preview limit.
type BackRefLoader struct {
	svc   RecordService
	limit int
}

// NewBackRefLoader binds a loader to a record service. A non-positive
// limit falls back to DefaultPreviewLimit.
func NewBackRefLoader(svc RecordService, limit int) *BackRefLoader {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	return &BackRefLoader{svc: svc, limit: limit}
}

// Limit returns the effective preview limit.
func (l *BackRefLoader) Limit() int { return l.limit }

// Load fetches the group for one back-reference definition. When the
// service supports server-side limiting (BackRefPreviewer) rows beyond the
// limit are never fetched; otherwise the loader truncates client-side but
// still reports the true total.
func (l *BackRefLoader) Load(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string) Preview {
	defer metrics.Timer(metrics.BackRefLoad)()

	if p, ok := l.svc.(BackRefPreviewer); ok {
		group, err := p.GetBackRefPreview(ctx, def, parentEntity, parentID, l.limit)
		if err != nil {
			return Preview{Err: err}
		}
		return l.preview(group)
	}

	groups, err := l.svc.GetBackReferences(ctx, parentEntity, parentID)
	if err != nil {
		return Preview{Err: err}
	}
	return l.preview(groups[def.SourceEntity])
}

// Count returns just the group total, for collapsed groups where rows are
// not needed yet. Falls back to a full Load when the service has no
// counting fast path.
func (l *BackRefLoader) Count(ctx context.Context, def model.BackReferenceDef, parentEntity, parentID string) (int, error) {
	if c, ok := l.svc.(BackRefCounter); ok {
		return c.CountBackRefs(ctx, def, parentEntity, parentID)
	}
	p := l.Load(ctx, def, parentEntity, parentID)
	return p.TotalCount, p.Err
}

func (l *BackRefLoader) preview(g model.BackRefGroup) Preview {
	total := g.TotalCount
	if total < len(g.Records) {
		total = len(g.Records)
	}
	rows := g.Records
	if len(rows) > l.limit {
		rows = rows[:l.limit]
	}
	return Preview{
		TotalCount: total,
		Rows:       rows,
		Truncated:  total > len(rows),
	}
}
