package save

import (
	"context"
	"fmt"
	"time"

	"github.com/jacentio/changeset/internal/metrics"
	"github.com/jacentio/changeset/store"
)

// typeGroup is the prepared documents of one type.
type typeGroup struct {
	md   *TypeMetadata
	docs []*Document
}

// dispatch opens each group's collection and issues every document as its
// own goroutine. The tracker is armed before the first operation starts and
// marked dispatched after the last one, so completion is observed once.
func (s *Saver) dispatch(ctx context.Context, groups []typeGroup) {
	total := 0
	for _, g := range groups {
		total += len(g.docs)
	}
	s.tracker.arm(total)

	opCtx := context.WithoutCancel(ctx)
	for _, g := range groups {
		if len(g.docs) == 0 {
			continue
		}
		coll, err := s.store.Collection(ctx, g.md.CollectionName, g.md.KeyField.Name)
		if err != nil {
			s.cfg.Logger.Warn("failed to open collection",
				"collection", g.md.CollectionName,
				"type", g.md.TypeName,
				"operations", len(g.docs),
				"error", err,
			)
			s.agg.recordGroupFailure(g.md, len(g.docs), err)
			if s.tracker.done(len(g.docs)) {
				s.complete(opCtx)
			}
			continue
		}
		for _, doc := range g.docs {
			go s.run(opCtx, coll, g.md, doc)
		}
	}

	s.cfg.Logger.Debug("batch dispatched", "operations", total, "types", len(groups))
	if s.tracker.markDispatched() {
		s.complete(opCtx)
	}
}

// run performs one store call and reports its outcome.
func (s *Saver) run(ctx context.Context, coll store.Collection, md *TypeMetadata, doc *Document) {
	start := time.Now()
	n, err := call(ctx, coll, doc)
	entry := s.agg.record(md, doc, n, err)
	metrics.RecordOperation(doc.Op.String(), entry == nil, time.Since(start).Seconds())
	if entry != nil {
		s.cfg.Logger.Warn("operation failed",
			"operation", doc.Op.String(),
			"type", md.TypeName,
			"key", doc.Key,
			"status", entry.Status,
			"message", entry.Message,
		)
	}
	if s.tracker.done(1) {
		s.complete(ctx)
	}
}

// call issues the store operation for doc, turning a panic into an error.
func call(ctx context.Context, coll store.Collection, doc *Document) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()
	switch doc.Op {
	case OpInsert:
		return coll.Insert(ctx, doc.Body)
	case OpUpdate:
		return coll.Update(ctx, doc.Filter, doc.Delta)
	case OpDelete:
		return coll.Remove(ctx, doc.Filter)
	}
	return 0, fmt.Errorf("unknown operation %v", doc.Op)
}
