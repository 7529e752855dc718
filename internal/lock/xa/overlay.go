// Package xa implements the transactional overlay (C3): a batch of staged
// lock/unlock operations that validate together and apply atomically,
// grounded on banks-go-immutable-radix's txn.go (shadow writes over a
// shared tree, applied on Commit) and SharedCode-sop's
// twophasecommittransaction.go (explicit pending/committed/rolledback
// state machine).
package xa

import (
	"errors"
	"fmt"
	"time"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/lock"
	"github.com/openmined/corectl/internal/session"
)

// state mirrors SOP's transaction state machine.
type state int

const (
	statePending state = iota
	statePrepared
	stateCommitted
	stateRolledBack
)

var (
	// ErrAlreadyFinalized is returned by Prepare/Commit/Rollback once the
	// overlay has already committed or rolled back.
	ErrAlreadyFinalized = errors.New("xa: overlay already finalized")
	// ErrNotPrepared is returned by Commit if Prepare was never called or
	// failed.
	ErrNotPrepared = errors.New("xa: overlay not prepared")
	// ErrConflict is returned when a staged operation would double-stage
	// the same node, or Prepare finds the live registry state no longer
	// matches what was staged against.
	ErrConflict = errors.New("xa: conflicting operation")
)

type opKind int

const (
	opLock opKind = iota
	opUnlock
)

type op struct {
	kind          opKind
	nid           ident.NID
	deep          bool
	sessionScoped bool
	timeout       time.Duration
	owner         string
}

// Overlay batches Lock/Unlock operations against a Registry so they
// validate and apply as one atomic unit (spec §6's "transactional
// overlay" requirement: either every staged operation takes effect, or
// none do).
type Overlay struct {
	reg   *lock.Registry
	owner session.Handle

	ops       []op
	tentative map[ident.NID]op      // last staged op per NID, for conflict detection
	tombstone map[ident.NID]struct{} // NIDs staged for unlock

	st    state
	guard *lock.Guard
}

// New creates an overlay of staged operations performed on behalf of
// owner against reg. Nothing is validated or applied until Prepare and
// Commit are called.
func New(reg *lock.Registry, owner session.Handle) *Overlay {
	return &Overlay{
		reg:       reg,
		owner:     owner,
		tentative: make(map[ident.NID]op),
		tombstone: make(map[ident.NID]struct{}),
	}
}

// StageLock records an intent to lock nid once committed. Staging a
// second operation against the same NID before Commit is a conflict.
func (o *Overlay) StageLock(nid ident.NID, deep, sessionScoped bool, timeout time.Duration, owner string) error {
	if o.st != statePending {
		return ErrAlreadyFinalized
	}
	if _, staged := o.tentative[nid]; staged {
		return fmt.Errorf("%w: %s already staged", ErrConflict, nid)
	}
	operation := op{kind: opLock, nid: nid, deep: deep, sessionScoped: sessionScoped, timeout: timeout, owner: owner}
	o.tentative[nid] = operation
	o.ops = append(o.ops, operation)
	delete(o.tombstone, nid)
	return nil
}

// StageUnlock records an intent to unlock nid once committed.
func (o *Overlay) StageUnlock(nid ident.NID) error {
	if o.st != statePending {
		return ErrAlreadyFinalized
	}
	if _, staged := o.tentative[nid]; staged {
		return fmt.Errorf("%w: %s already staged", ErrConflict, nid)
	}
	operation := op{kind: opUnlock, nid: nid}
	o.tentative[nid] = operation
	o.ops = append(o.ops, operation)
	o.tombstone[nid] = struct{}{}
	return nil
}

// Prepare acquires the registry's write mutex for the overlay's owner and
// revalidates every staged operation against live state without applying
// any of them. A failed Prepare releases the mutex and leaves the
// registry untouched.
func (o *Overlay) Prepare() error {
	if o.st != statePending {
		return ErrAlreadyFinalized
	}
	guard := o.reg.BeginUpdate(o.owner)
	for _, operation := range o.ops {
		if err := o.validate(operation); err != nil {
			guard.Cancel()
			return err
		}
	}
	o.guard = guard
	o.st = statePrepared
	return nil
}

func (o *Overlay) validate(operation op) error {
	switch operation.kind {
	case opLock:
		if o.reg.IsLocked(operation.nid) {
			return fmt.Errorf("%w: %s already locked", ErrConflict, operation.nid)
		}
	case opUnlock:
		if !o.reg.HoldsLock(operation.nid, o.owner) {
			return fmt.Errorf("%w: %s not held by overlay owner", ErrConflict, operation.nid)
		}
	}
	return nil
}

// Commit applies every staged operation in order and releases the
// registry's write mutex. Must be called after a successful Prepare. If
// any individual operation fails despite having validated cleanly during
// Prepare (e.g. a concurrent system-level expiry), Commit rolls back
// everything applied so far and returns the error: the overlay is
// all-or-nothing.
func (o *Overlay) Commit() error {
	if o.st != statePrepared {
		return ErrNotPrepared
	}
	defer func() {
		o.guard.Cancel()
		o.guard = nil
	}()

	var applied []op
	for _, operation := range o.ops {
		if err := o.apply(operation); err != nil {
			o.undo(applied)
			o.st = stateRolledBack
			return fmt.Errorf("xa: commit failed, rolled back: %w", err)
		}
		applied = append(applied, operation)
	}
	o.st = stateCommitted
	return nil
}

func (o *Overlay) apply(operation op) error {
	switch operation.kind {
	case opLock:
		_, err := o.reg.Lock(operation.nid, operation.deep, operation.sessionScoped, operation.timeout, operation.owner, o.owner)
		return err
	case opUnlock:
		return o.reg.Unlock(operation.nid, o.owner)
	}
	return nil
}

// undo best-effort reverses operations already applied during a failed
// Commit, in reverse order.
func (o *Overlay) undo(applied []op) {
	for i := len(applied) - 1; i >= 0; i-- {
		operation := applied[i]
		switch operation.kind {
		case opLock:
			_ = o.reg.Unlock(operation.nid, o.owner)
		case opUnlock:
			_, _ = o.reg.Lock(operation.nid, operation.deep, operation.sessionScoped, operation.timeout, operation.owner, o.owner)
		}
	}
}

// IsLocked reports whether nid appears locked from inside this
// transaction: shared registry state with tombstoned NIDs hidden and
// tentatively-locked NIDs shown as locked, giving the overlay
// read-your-writes semantics before Commit runs.
func (o *Overlay) IsLocked(nid ident.NID) bool {
	if _, tombstoned := o.tombstone[nid]; tombstoned {
		return false
	}
	if operation, staged := o.tentative[nid]; staged && operation.kind == opLock {
		return true
	}
	return o.reg.IsLocked(nid)
}

// Rollback discards every staged operation. If called after a successful
// Prepare, it releases the write mutex without applying anything.
func (o *Overlay) Rollback() error {
	if o.st == stateCommitted || o.st == stateRolledBack {
		return ErrAlreadyFinalized
	}
	if o.guard != nil {
		o.guard.Cancel()
		o.guard = nil
	}
	o.st = stateRolledBack
	return nil
}
