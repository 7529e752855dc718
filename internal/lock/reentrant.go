package lock

import (
	"sync"

	"github.com/openmined/corectl/internal/session"
)

// reentrantMutex implements the reentrant-per-owner discipline spec §5
// requires for the registry: the same owner may acquire it repeatedly
// (nested public calls, or the beginUpdate/endUpdate batching protocol)
// without blocking on itself, while a different owner blocks until the
// current owner's outermost acquisition releases. Modeled as an explicit
// Guard rather than a stateful "savingDisabled" flag, per the design note
// in spec §9.
type reentrantMutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner *session.Handle
	depth int
}

func newReentrantMutex() *reentrantMutex {
	m := &reentrantMutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Guard represents one held (possibly nested) acquisition of the registry's
// reentrant mutex, returned by BeginUpdate so callers get a scoped handle
// with guaranteed release via End or Cancel.
type Guard struct {
	reg   *Registry
	owner session.Handle
	// journalDirty, when set, makes End write the journal before releasing.
	// No registry operation sets it: Lock, Unlock and the other mutating
	// calls write the journal themselves.
	journalDirty bool
}

// acquire blocks until owner holds the mutex, reentering if owner already
// holds it (possibly via a different goroutine acting on its behalf is not
// supported — sessions are single-threaded callers per spec §5).
func (m *reentrantMutex) acquire(owner session.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.owner != nil && *m.owner != owner {
		m.cond.Wait()
	}
	o := owner
	m.owner = &o
	m.depth++
}

func (m *reentrantMutex) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth--
	if m.depth == 0 {
		m.owner = nil
		m.cond.Broadcast()
	}
}
