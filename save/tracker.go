package save

import "sync"

// tracker counts outstanding operations. Exactly one call to done or
// markDispatched returns true: the one that observes zero pending operations
// after everything was dispatched.
type tracker struct {
	mu         sync.Mutex
	pending    int
	dispatched bool
	finished   bool
}

// arm sets the number of operations about to be dispatched.
func (t *tracker) arm(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = total
}

// done retires n operations.
func (t *tracker) done(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending -= n
	return t.check()
}

// markDispatched records that the last operation has been issued.
func (t *tracker) markDispatched() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatched = true
	return t.check()
}

func (t *tracker) check() bool {
	if t.finished || t.pending > 0 || !t.dispatched {
		return false
	}
	t.finished = true
	return true
}
