package save

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jacentio/changeset/internal/metrics"
	"github.com/jacentio/changeset/store"
)

// Phase is the lifecycle position of a Saver.
type Phase int

const (
	PhaseBuilding Phase = iota
	PhasePreparing
	PhaseFixingUp
	PhaseDispatching
	PhaseCompleting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseBuilding:
		return "building"
	case PhasePreparing:
		return "preparing"
	case PhaseFixingUp:
		return "fixing up"
	case PhaseDispatching:
		return "dispatching"
	case PhaseCompleting:
		return "completing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase is Done or Failed.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Request is one batch of entity mutations with the metadata of their types.
type Request struct {
	Entities    []*Entity                `json:"entities"`
	Metadata    map[string]*TypeMetadata `json:"metadata"`
	SaveOptions SaveOptions              `json:"saveOptions"`
}

// SaveOptions carries caller-supplied options through to hooks.
type SaveOptions struct {
	Tag any `json:"tag,omitempty"`
}

// Callback receives the terminal outcome of a batch. It is called at most once.
type Callback func(res *Result, err error)

// Saver persists one batch. A Saver is single-use.
type Saver struct {
	cfg    Config
	store  store.Store
	req    *Request
	onDone Callback
	hooks  Hooks

	prep       *preparer
	agg        *aggregator
	tracker    tracker
	serverDocs []*Document

	mu      sync.Mutex // guards everything below
	phase   Phase
	started time.Time
	groups  map[string][]*Entity
	order   []string
	queued  []*Entity
}

// New creates a Saver for req that reports to onDone.
func New(st store.Store, req *Request, onDone Callback, opts ...Option) *Saver {
	s := &Saver{
		cfg:    DefaultConfig(),
		store:  st,
		req:    req,
		onDone: onDone,
		prep:   newPreparer(),
		agg:    newAggregator(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.cfg.validate()
	if s.req == nil {
		s.req = &Request{}
	}
	if s.req.Metadata == nil {
		s.req.Metadata = map[string]*TypeMetadata{}
	}
	return s
}

// SaveBatch runs a batch to completion and returns its outcome.
func SaveBatch(ctx context.Context, st store.Store, req *Request, opts ...Option) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)
	s := New(st, req, func(res *Result, err error) {
		ch <- outcome{res, err}
	}, opts...)
	s.Save(ctx)

	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Request returns the batch request.
func (s *Saver) Request() *Request {
	return s.req
}

// Phase returns the current lifecycle phase.
func (s *Saver) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Result returns the result being built. Hooks may read it; it is final once
// the callback has fired.
func (s *Saver) Result() *Result {
	return s.agg.result
}

// TypeNames returns the grouped type names in first-seen order.
func (s *Saver) TypeNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Entities returns a copy of the grouped entities of one type.
func (s *Saver) Entities(typeName string) []*Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entity(nil), s.groups[typeName]...)
}

// AddEntity registers a server-originated entity. It may be called before
// Save or from a BeforeSave hook; the entity bypasses the filter and is
// reported in Result.ServerCreated.
func (s *Saver) AddEntity(e *Entity) error {
	if e == nil {
		return errors.New("changeset: nil entity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseBuilding {
		return &Error{Kind: KindInternal, Op: "add entity", TypeName: e.Aspect.TypeName,
			Msg: "batch is already " + s.phase.String()}
	}
	e.serverCreated = true
	if s.groups == nil {
		s.queued = append(s.queued, e)
		return nil
	}
	s.order = appendGroup(s.groups, s.order, e)
	return nil
}

// Save runs the batch. Preparation happens on the calling goroutine; store
// operations run on their own goroutines and the callback fires from
// whichever finishes last. Only the first call has any effect.
func (s *Saver) Save(ctx context.Context) {
	s.mu.Lock()
	if !s.started.IsZero() {
		s.mu.Unlock()
		return
	}
	s.started = time.Now()
	s.mu.Unlock()

	s.cfg.Logger.Info("save started", "entities", len(s.req.Entities))

	groups, order, err := buildGroups(s.req.Entities, s.hooks.Filter)
	if err != nil {
		s.fail(err)
		return
	}
	s.mu.Lock()
	for _, e := range s.queued {
		order = appendGroup(groups, order, e)
	}
	s.queued = nil
	s.groups, s.order = groups, order
	s.mu.Unlock()

	if err := reviewMetadata(s.req.Metadata, s.cfg.KeyField, order); err != nil {
		s.fail(err)
		return
	}

	if err := s.runBeforeSave(ctx, func() { s.prepareAndDispatch(ctx) }); err != nil {
		s.fail(err)
	}
}

// prepareAndDispatch prepares every entity, resolves placeholder keys and
// dispatches. Any preparation error fails the batch before the first store call.
func (s *Saver) prepareAndDispatch(ctx context.Context) {
	if !s.advance(PhasePreparing) {
		return
	}

	groups := make([]typeGroup, 0, len(s.order))
	for _, name := range s.order {
		md, err := reviewType(s.req.Metadata, s.cfg.KeyField, name)
		if err != nil {
			s.fail(err)
			return
		}
		docs, err := s.prep.prepareGroup(md, s.groups[name])
		if err != nil {
			s.fail(err)
			return
		}
		for _, d := range docs {
			if d.Entity.serverCreated {
				s.serverDocs = append(s.serverDocs, d)
			}
		}
		groups = append(groups, typeGroup{md: md, docs: docs})
	}

	if !s.advance(PhaseFixingUp) {
		return
	}
	fixed, err := resolveFixups(s.prep.fixups, s.prep.mappings)
	if err != nil {
		s.fail(err)
		return
	}
	s.agg.update(func(r *Result) {
		r.KeyMappings = append(r.KeyMappings, s.prep.mappings...)
	})
	metrics.KeyMappings.Add(float64(len(s.prep.mappings)))
	s.cfg.Logger.Debug("keys fixed up",
		"mappings", len(s.prep.mappings),
		"candidates", len(s.prep.fixups),
		"rewritten", fixed,
	)

	if !s.advance(PhaseDispatching) {
		return
	}
	s.dispatch(ctx, groups)
}

// complete runs once, after every dispatched operation reported back.
func (s *Saver) complete(ctx context.Context) {
	if !s.advance(PhaseCompleting) {
		return
	}
	s.agg.update(func(r *Result) {
		for _, d := range s.serverDocs {
			r.ServerCreated = append(r.ServerCreated, createdView(d))
		}
	})

	if err := s.runAfterSave(ctx, s.finish); err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Result = s.agg.freeze()
		}
		s.fail(err)
	}
}

// finish delivers the aggregated outcome.
func (s *Saver) finish() {
	res := s.agg.freeze()
	if len(res.Errors) > 0 {
		s.deliver(PhaseFailed, res, &Error{
			Kind:   KindPartialFailure,
			Op:     "save",
			Msg:    fmt.Sprintf("%d operations failed", len(res.Errors)),
			Result: res,
		})
		return
	}
	s.deliver(PhaseDone, res, nil)
}

// fail delivers err as the terminal outcome.
func (s *Saver) fail(err error) {
	s.deliver(PhaseFailed, s.agg.freeze(), err)
}

// advance moves to phase unless the batch already ended.
func (s *Saver) advance(phase Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return false
	}
	s.phase = phase
	return true
}

// deliver enters a terminal phase and calls the callback, at most once.
func (s *Saver) deliver(phase Phase, res *Result, err error) {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	s.phase = phase
	elapsed := time.Since(s.started)
	s.mu.Unlock()

	switch {
	case err == nil:
		metrics.RecordBatch("ok", elapsed.Seconds())
		s.cfg.Logger.Info("save completed",
			"inserted", len(res.InsertedKeys),
			"updated", len(res.UpdatedKeys),
			"deleted", len(res.DeletedKeys),
			"keyMappings", len(res.KeyMappings),
			"duration", elapsed,
		)
	case errors.Is(err, ErrPartialFailure):
		metrics.RecordBatch("partial", elapsed.Seconds())
		s.cfg.Logger.Error("save partially failed",
			"errors", len(res.Errors),
			"inserted", len(res.InsertedKeys),
			"updated", len(res.UpdatedKeys),
			"deleted", len(res.DeletedKeys),
		)
	default:
		metrics.RecordBatch("failed", elapsed.Seconds())
		s.cfg.Logger.Error("save failed", "error", err)
	}

	if s.onDone != nil {
		s.onDone(res, err)
	}
}

// createdView reports a server-created entity with the fields actually written.
func createdView(d *Document) *Entity {
	fields := d.Entity.Fields
	if d.Op == OpInsert {
		fields = d.Body.Clone()
	}
	return &Entity{Fields: fields, Aspect: d.Entity.Aspect, serverCreated: true}
}
