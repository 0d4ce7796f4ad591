package save

import (
	"context"
	"fmt"
	"sync"
)

// EntityFilter decides whether an incoming entity takes part in the batch.
type EntityFilter func(e *Entity) (bool, error)

// BeforeSaveHook runs once after the change set is grouped. It must call
// next for the batch to proceed; next may be called later from another
// goroutine. Returning an error fails the batch before anything is written.
type BeforeSaveHook func(ctx context.Context, s *Saver, next func()) error

// AfterSaveHook runs once after every operation reported back. It may inspect
// s.Result() and must call done to deliver the outcome.
type AfterSaveHook func(ctx context.Context, s *Saver, done func()) error

// Hooks are the optional interceptors of a Saver. A nil hook is skipped.
type Hooks struct {
	Filter     EntityFilter
	BeforeSave BeforeSaveHook
	AfterSave  AfterSaveHook
}

// callFilter runs the entity filter, turning a panic into an error.
func callFilter(filter EntityFilter, e *Entity) (keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return filter(e)
}

// runHook calls a continuation-passing hook, or cont directly when the hook
// is absent. cont runs at most once however often the hook calls it.
func runHook(name string, hook func(cont func()) error, present bool, cont func()) (err error) {
	if !present {
		cont()
		return nil
	}
	var once sync.Once
	defer func() {
		if r := recover(); r != nil {
			err = wrapHookError(name, fmt.Errorf("panic: %v", r))
		}
	}()
	if herr := hook(func() { once.Do(cont) }); herr != nil {
		return wrapHookError(name, herr)
	}
	return nil
}

func (s *Saver) runBeforeSave(ctx context.Context, cont func()) error {
	h := s.hooks.BeforeSave
	return runHook("before save hook", func(next func()) error { return h(ctx, s, next) }, h != nil, cont)
}

func (s *Saver) runAfterSave(ctx context.Context, cont func()) error {
	h := s.hooks.AfterSave
	return runHook("after save hook", func(done func()) error { return h(ctx, s, done) }, h != nil, cont)
}
