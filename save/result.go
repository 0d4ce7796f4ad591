package save

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jacentio/changeset/store"
)

// EntityKey identifies a saved entity.
type EntityKey struct {
	TypeName string `json:"entityTypeName"`
	Key      any    `json:"key"`
}

// KeyMapping records a placeholder key replaced by a server-assigned key.
type KeyMapping struct {
	TypeName  string `json:"entityTypeName"`
	TempValue any    `json:"tempValue"`
	RealValue any    `json:"realValue"`
}

// ErrorEntry is one failed operation.
type ErrorEntry struct {
	Kind     Kind        `json:"kind"`
	Status   int         `json:"status"`
	Message  string      `json:"message"`
	TypeName string      `json:"entityTypeName,omitempty"`
	Key      any         `json:"key,omitempty"`
	State    EntityState `json:"entityState,omitempty"`

	// Concurrency is set on not-found entries of types that declare a
	// concurrency field: the operation may have failed on a stale token
	// rather than a missing document.
	Concurrency bool `json:"concurrency,omitempty"`

	Err error `json:"-"`
}

// Result is the aggregated outcome of a batch.
type Result struct {
	InsertedKeys  []EntityKey  `json:"insertedKeys"`
	UpdatedKeys   []EntityKey  `json:"updatedKeys"`
	DeletedKeys   []EntityKey  `json:"deletedKeys"`
	KeyMappings   []KeyMapping `json:"keyMappings"`
	ServerCreated []*Entity    `json:"entitiesCreatedOnServer"`
	Errors        []ErrorEntry `json:"errors"`
}

func newResult() *Result {
	return &Result{
		InsertedKeys:  []EntityKey{},
		UpdatedKeys:   []EntityKey{},
		DeletedKeys:   []EntityKey{},
		KeyMappings:   []KeyMapping{},
		ServerCreated: []*Entity{},
		Errors:        []ErrorEntry{},
	}
}

// aggregator records per-operation outcomes into a Result. Once frozen it
// ignores further records.
type aggregator struct {
	mu     sync.Mutex
	result *Result
	frozen bool
}

func newAggregator() *aggregator {
	return &aggregator{result: newResult()}
}

// freeze stops further recording and returns the result.
func (a *aggregator) freeze() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
	return a.result
}

// update runs fn against the result unless frozen.
func (a *aggregator) update(fn func(r *Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return
	}
	fn(a.result)
}

// record classifies the outcome of one dispatched document.
func (a *aggregator) record(md *TypeMetadata, doc *Document, n int, err error) *ErrorEntry {
	entry := classify(md, doc, n, err)
	key := EntityKey{TypeName: md.TypeName, Key: doc.Key}
	a.update(func(r *Result) {
		if entry != nil {
			r.Errors = append(r.Errors, *entry)
			return
		}
		switch doc.Op {
		case OpInsert:
			r.InsertedKeys = append(r.InsertedKeys, key)
		case OpUpdate:
			r.UpdatedKeys = append(r.UpdatedKeys, key)
		case OpDelete:
			r.DeletedKeys = append(r.DeletedKeys, key)
		}
	})
	return entry
}

// recordGroupFailure records one entry for a type group whose collection could not be opened.
func (a *aggregator) recordGroupFailure(md *TypeMetadata, count int, err error) {
	a.update(func(r *Result) {
		r.Errors = append(r.Errors, ErrorEntry{
			Kind:     KindInternal,
			Status:   KindInternal.Status(),
			Message:  fmt.Sprintf("open collection %s: %d operations not issued: %v", md.CollectionName, count, err),
			TypeName: md.TypeName,
			Err:      err,
		})
	})
}

// classify applies the per-operation outcome policy; nil means success.
func classify(md *TypeMetadata, doc *Document, n int, err error) *ErrorEntry {
	entry := &ErrorEntry{TypeName: md.TypeName, Key: doc.Key, State: doc.Entity.Aspect.State, Err: err}
	switch {
	case err != nil && doc.Op == OpInsert && errors.Is(err, store.ErrDuplicateKey):
		entry.Kind = KindConflict
		entry.Message = "duplicate key"
	case err != nil:
		entry.Kind = KindInternal
		entry.Message = fmt.Sprintf("%s failed: %v", doc.Op, err)
	case n == 1:
		return nil
	case doc.Op == OpInsert:
		entry.Kind = KindInternal
		entry.Message = fmt.Sprintf("insert created %d documents, expected 1", n)
	case n == 0:
		entry.Kind = KindNotFound
		entry.Concurrency = md.ConcurrencyField != nil
		if entry.Concurrency {
			entry.Message = fmt.Sprintf("%s matched no document: not found or concurrency token changed", doc.Op)
		} else {
			entry.Message = fmt.Sprintf("%s matched no document: may have been deleted", doc.Op)
		}
	default:
		entry.Kind = KindInternal
		entry.Message = fmt.Sprintf("%s matched %d documents, expected 1", doc.Op, n)
	}
	entry.Status = entry.Kind.Status()
	return entry
}
