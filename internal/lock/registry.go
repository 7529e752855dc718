// Package lock implements the hierarchical lock registry (spec §4.2, C2):
// deep/shallow locks rooted at trie leaves, session-scoped vs open-scoped
// lifetime, journal persistence, cluster propagation, and a cooperative
// expiry worker.
package lock

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
	"github.com/openmined/corectl/internal/session"
)

// Registry holds live lock records at trie leaves and enforces deep/shallow
// lock semantics. The zero value is not usable; construct with New.
type Registry struct {
	mu      *reentrantMutex
	trie    *pathtrie.Trie[*Record]
	dead    map[ident.NID]*Record // resolution failures kept off the trie
	deadMu  sync.Mutex
	expiry  *expiryQueue
	journal JournalStore
	cluster ClusterNotifier
	audit   AuditSink
	paths   PathResolver

	tickerStop chan struct{}
	tickerOnce sync.Once
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithJournal installs the journal persistence collaborator.
func WithJournal(j JournalStore) Option {
	return func(r *Registry) { r.journal = j }
}

// WithCluster installs the cluster broadcast collaborator.
func WithCluster(c ClusterNotifier) Option {
	return func(r *Registry) { r.cluster = c }
}

// WithAudit installs a history-mirroring collaborator, independent of the
// restore-on-startup JournalStore.
func WithAudit(a AuditSink) Option {
	return func(r *Registry) { r.audit = a }
}

// New constructs a Registry backed by the given hierarchy path resolver.
func New(paths PathResolver, opts ...Option) *Registry {
	r := &Registry{
		mu:      newReentrantMutex(),
		trie:    pathtrie.New[*Record](),
		dead:    make(map[ident.NID]*Record),
		expiry:  newExpiryQueue(),
		journal: noopJournal{},
		cluster: noopCluster{},
		audit:   noopAudit{},
		paths:   paths,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BeginUpdate acquires the registry's reentrant mutex for owner and returns
// a Guard. Nested Lock/Unlock/etc. calls made by the same owner while the
// Guard is held reenter instead of blocking. Each of those calls still
// writes the journal itself; holding a Guard does not defer or batch
// journal writes.
func (r *Registry) BeginUpdate(owner session.Handle) *Guard {
	r.mu.acquire(owner)
	return &Guard{reg: r, owner: owner}
}

// End releases the guard's acquisition, first writing the journal if
// journalDirty is set. No registry operation sets that flag, so End itself
// does not write the journal.
func (g *Guard) End() error {
	defer g.reg.mu.release()
	if g.journalDirty {
		return g.reg.saveJournal()
	}
	return nil
}

// Cancel releases the guard's acquisition without persisting.
func (g *Guard) Cancel() {
	g.reg.mu.release()
}

func (r *Registry) withLock(owner session.Handle, suppressJournal bool, fn func() error) error {
	r.mu.acquire(owner)
	defer r.mu.release()
	err := fn()
	if err == nil && !suppressJournal {
		// nothing is flushed here: each mutating operation writes the
		// journal itself, nested under a Guard or not.
	}
	return err
}

// Lock installs a new record at nodeID's current path. See spec §4.2.
func (r *Registry) Lock(nodeID ident.NID, deep, sessionScoped bool, timeoutHint time.Duration, owner string, sess session.Handle) (string, error) {
	var token string
	err := r.withLock(sess, false, func() error {
		path, ok := r.paths.ResolvePath(nodeID)
		if !ok {
			return ErrNodeNotFound
		}

		if rec, exact := r.trie.Map(path, true); exact && rec != nil {
			if v, _ := rec.Payload(); v != nil && v.Live {
				return ErrAlreadyLocked
			}
		}

		if parentPath, hasParent := path.Parent(); hasParent {
			if node, exact := r.trie.Map(parentPath, false); node != nil {
				if v, has := node.Payload(); has && v.Live && v.Deep {
					if !exact || node.Path().Equal(parentPath) {
						return ErrParentDeepLocked
					}
				}
			}
		}

		if deep {
			if locked := r.anyLiveDescendant(path); locked {
				return ErrChildLocked
			}
		}

		rec := &Record{
			HolderNID:     nodeID,
			Deep:          deep,
			SessionScoped: sessionScoped,
			Owner:         owner,
			TimeoutHint:   timeoutHint,
			CreatedAt:     time.Now(),
			Live:          true,
			HolderSession: &sess,
		}
		r.trie.Put(path, rec)
		r.expiry.schedule(nodeID, rec.expiresAt())
		token = rec.Token()
		r.audit.RecordLock(rec)

		if !sessionScoped {
			if err := r.saveJournal(); err != nil {
				slog.Error("lock journal save failed", "error", err)
			}
			r.cluster.NotifyLock(rec)
		}
		slog.Debug("lock acquired", "path", path.String(), "deep", deep, "sessionScoped", sessionScoped, "token", token)
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Unlock releases the live record rooted exactly at nodeID's path, if sess
// is its holder.
func (r *Registry) Unlock(nodeID ident.NID, sess session.Handle) error {
	return r.withLock(sess, false, func() error {
		return r.unlockLocked(nodeID, sess, false)
	})
}

// unlockLocked performs the unlock under an already-held mutex. allowSystem
// permits session.System to act as holder during expiry handling.
func (r *Registry) unlockLocked(nodeID ident.NID, sess session.Handle, allowSystem bool) error {
	path, ok := r.paths.ResolvePath(nodeID)
	if !ok {
		return ErrNotLocked
	}

	node, exact := r.trie.Map(path, true)
	if !exact || node == nil {
		return ErrNotLocked
	}
	rec, has := node.Payload()
	if !has || !rec.Live {
		return ErrNotLocked
	}
	if rec.HolderSession == nil || (*rec.HolderSession != sess && !(allowSystem && sess == session.System)) {
		return ErrNotHolder
	}

	rec.Live = false
	node.ClearPayload()
	r.audit.RecordUnlock(rec)

	if !rec.SessionScoped {
		if err := r.saveJournal(); err != nil {
			slog.Error("lock journal save failed", "error", err)
		}
		r.cluster.NotifyUnlock(nodeID)
	}
	slog.Debug("lock released", "path", path.String(), "token", rec.Token())
	return nil
}

// CheckLock returns nil if no live lock applies to path, or if the
// applicable lock is held by sess; otherwise ErrLocked.
func (r *Registry) CheckLock(path pathtrie.Path, sess session.Handle) error {
	rec, applicable := r.applicable(path)
	if !applicable {
		return nil
	}
	if rec.HolderSession != nil && *rec.HolderSession == sess {
		return nil
	}
	return ErrLocked
}

// GetLock returns the applicable live record for nodeID, if any.
func (r *Registry) GetLock(nodeID ident.NID) (*Record, bool) {
	path, ok := r.paths.ResolvePath(nodeID)
	if !ok {
		return nil, false
	}
	rec, applicable := r.applicable(path)
	if !applicable {
		return nil, false
	}
	return rec.clone(), true
}

// HoldsLock reports whether sess is the holder of the applicable lock on
// nodeID.
func (r *Registry) HoldsLock(nodeID ident.NID, sess session.Handle) bool {
	rec, ok := r.GetLock(nodeID)
	if !ok {
		return false
	}
	return rec.HolderSession != nil && *rec.HolderSession == sess
}

// IsLocked reports whether any live lock applies to nodeID, regardless of
// holder.
func (r *Registry) IsLocked(nodeID ident.NID) bool {
	_, ok := r.GetLock(nodeID)
	return ok
}

// applicable resolves the nearest live record applying to path: an exact
// match, or the nearest ancestor if its record is deep (spec §4.2).
func (r *Registry) applicable(path pathtrie.Path) (*Record, bool) {
	node, exact := r.trie.Map(path, false)
	if node == nil {
		return nil, false
	}
	rec, has := node.Payload()
	if !has || !rec.Live {
		return nil, false
	}
	if !exact && !rec.Deep {
		return nil, false
	}
	return rec, true
}

func (r *Registry) anyLiveDescendant(path pathtrie.Path) bool {
	node := r.trie.GetNode(path)
	if !node.Path().Equal(path) {
		return false
	}
	found := false
	r.trie.Traverse(func(n *pathtrie.Node[*Record]) {
		if n == node {
			return
		}
		if rec, has := n.Payload(); has && rec.Live {
			found = true
		}
	}, true)
	return found
}

// AddToken attaches an open-scoped lock's ownership to sess. Fails with
// ErrOtherHolder if another session currently holds it.
func (r *Registry) AddToken(sess session.Handle, token string) error {
	nodeID, err := ident.DecodeToken(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ident.ErrBadToken, err)
	}
	return r.withLock(sess, false, func() error {
		path, ok := r.paths.ResolvePath(nodeID)
		if !ok {
			return ErrNotLocked
		}
		node, exact := r.trie.Map(path, true)
		if !exact || node == nil {
			return ErrNotLocked
		}
		rec, has := node.Payload()
		if !has || !rec.Live {
			return ErrNotLocked
		}
		if rec.HolderSession != nil && *rec.HolderSession != sess {
			return ErrOtherHolder
		}
		rec.HolderSession = &sess
		return nil
	})
}

// RemoveToken detaches an open-scoped lock from sess, allowing another
// session to later re-attach it.
func (r *Registry) RemoveToken(sess session.Handle, token string) error {
	nodeID, err := ident.DecodeToken(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ident.ErrBadToken, err)
	}
	return r.withLock(sess, false, func() error {
		path, ok := r.paths.ResolvePath(nodeID)
		if !ok {
			return ErrNotLocked
		}
		node, exact := r.trie.Map(path, true)
		if !exact || node == nil {
			return ErrNotLocked
		}
		rec, has := node.Payload()
		if !has || !rec.Live {
			return ErrNotLocked
		}
		if rec.HolderSession == nil || *rec.HolderSession != sess {
			return ErrOtherHolder
		}
		rec.HolderSession = nil
		return nil
	})
}

// Logout releases every session-scoped lock held by sess, and detaches
// (without releasing) every open-scoped lock it held, per spec §4.2.
func (r *Registry) Logout(sess session.Handle) {
	_ = r.withLock(sess, false, func() error {
		var toRelease []ident.NID
		r.trie.Traverse(func(n *pathtrie.Node[*Record]) {
			rec, has := n.Payload()
			if !has || !rec.Live || rec.HolderSession == nil || *rec.HolderSession != sess {
				return
			}
			if rec.SessionScoped {
				toRelease = append(toRelease, rec.HolderNID)
			} else {
				rec.HolderSession = nil
			}
		}, true)

		for _, nid := range toRelease {
			path, ok := r.paths.ResolvePath(nid)
			if !ok {
				continue
			}
			node, exact := r.trie.Map(path, true)
			if !exact || node == nil {
				continue
			}
			if rec, has := node.Payload(); has {
				rec.Live = false
			}
			node.ClearPayload()
		}
		return nil
	})
}

func (r *Registry) saveJournal() error {
	var open []*Record
	r.trie.Traverse(func(n *pathtrie.Node[*Record]) {
		rec, has := n.Payload()
		if has && rec.Live && !rec.SessionScoped {
			open = append(open, rec)
		}
	}, true)
	return r.journal.Save(open)
}

// ApplyExternalLock installs a record announced by a cluster peer (spec
// §6's externalLock(nid, deep, owner) inbound event), bypassing
// transactional overlays and the conflict checks a local Lock call would
// apply, since the peer's own registry already validated it. Journaled
// locally but never re-broadcast, since it originated from the cluster.
func (r *Registry) ApplyExternalLock(nodeID ident.NID, deep bool, owner string, timeoutHint time.Duration) error {
	return r.withLock(session.System, false, func() error {
		path, ok := r.paths.ResolvePath(nodeID)
		if !ok {
			return ErrNodeNotFound
		}
		rec := &Record{
			HolderNID:   nodeID,
			Deep:        deep,
			Owner:       owner,
			TimeoutHint: timeoutHint,
			CreatedAt:   time.Now(),
			Live:        true,
		}
		r.trie.Put(path, rec)
		r.expiry.schedule(nodeID, rec.expiresAt())
		if err := r.saveJournal(); err != nil {
			slog.Error("lock journal save failed applying external lock", "error", err)
		}
		return nil
	})
}

// ApplyExternalUnlock releases the record at nodeID's path announced by a
// cluster peer (spec §6's externalUnlock(nid)), without re-broadcasting.
func (r *Registry) ApplyExternalUnlock(nodeID ident.NID) error {
	return r.withLock(session.System, false, func() error {
		path, ok := r.paths.ResolvePath(nodeID)
		if !ok {
			return ErrNotLocked
		}
		node, exact := r.trie.Map(path, true)
		if !exact || node == nil {
			return ErrNotLocked
		}
		rec, has := node.Payload()
		if !has || !rec.Live {
			return ErrNotLocked
		}
		rec.Live = false
		node.ClearPayload()
		if err := r.saveJournal(); err != nil {
			slog.Error("lock journal save failed applying external unlock", "error", err)
		}
		return nil
	})
}

// Restore reloads persisted open-scoped records from the journal at
// startup, reinstalling each whose node still exists.
func (r *Registry) Restore() error {
	records, err := r.journal.Load()
	if err != nil {
		return fmt.Errorf("lock: restore journal: %w", err)
	}
	return r.withLock(session.System, false, func() error {
		for _, rec := range records {
			path, ok := r.paths.ResolvePath(rec.HolderNID)
			if !ok {
				slog.Warn("journal record references missing node, skipping", "token", rec.Token())
				continue
			}
			rec.Live = true
			r.trie.Put(path, rec)
			r.expiry.schedule(rec.HolderNID, rec.expiresAt())
		}
		return nil
	})
}
