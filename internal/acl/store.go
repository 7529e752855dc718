package acl

import (
	"sync"

	"github.com/openmined/corectl/internal/pathtrie"
)

// NodeState tracks an access-controlled node's progression through the
// state machine named in spec §4.10. Transitions happen only through
// Store operations; each one notifies the change notifier.
type NodeState int

const (
	// StateNone: the node does not declare AccessControllable.
	StateNone NodeState = iota
	// StateMixinOnly: AccessControllable declared, no policy child yet.
	StateMixinOnly
	// StatePolicyEmpty: a policy node exists but has no entries.
	StatePolicyEmpty
	// StatePolicyPopulated: a policy node exists with at least one entry.
	StatePolicyPopulated
)

// ChangeKind classifies a policy mutation for the change notifier (C9,
// spec §4.9).
type ChangeKind int

const (
	PolicyAdded ChangeKind = iota
	PolicyRemoved
	PolicyModified
	PolicyMoved
)

// ChangeListener is notified after every Store mutation.
type ChangeListener interface {
	OnPolicyChange(path pathtrie.Path, kind ChangeKind)
}

// Store is the ACL Store (C6): a path trie whose payloads are ACLs bound
// to access-controlled nodes, grounded on the teacher's ACLTree/ACLNode
// (per-node RWMutex, version-stamped children) generalized via
// internal/pathtrie.
type Store struct {
	mu        sync.RWMutex
	trie      *pathtrie.Trie[*ACL]
	states    map[string]NodeState
	listeners []ChangeListener
}

// NewStore creates an empty ACL store.
func NewStore() *Store {
	return &Store{
		trie:   pathtrie.New[*ACL](),
		states: make(map[string]NodeState),
	}
}

// Subscribe registers l to be notified of every future policy mutation.
func (s *Store) Subscribe(l ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// DeclareMixin marks path as AccessControllable without yet creating a
// policy node (StateMixinOnly), a no-op if the node already has a policy.
func (s *Store) DeclareMixin(path pathtrie.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := path.String()
	if _, ok := s.states[key]; !ok {
		s.states[key] = StateMixinOnly
	}
}

// IsAccessControlled reports whether path currently carries a policy node
// (StatePolicyEmpty or StatePolicyPopulated).
func (s *Store) IsAccessControlled(path pathtrie.Path) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.states[path.String()]
	return st == StatePolicyEmpty || st == StatePolicyPopulated
}

// ACLAt returns the ACL bound to path, if any.
func (s *Store) ACLAt(path pathtrie.Path) (*ACL, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, exact := s.trie.Map(path, true)
	if !exact || node == nil {
		return nil, false
	}
	a, has := node.Payload()
	return a, has
}

// SetACL installs a (possibly already-persisted, possibly unnormalized)
// ACL at path wholesale, notifying listeners as PolicyAdded. Used by the
// journal/content loader at startup rather than by interactive entry
// mutation, which goes through AddEntry/RemoveEntry instead.
func (s *Store) SetACL(path pathtrie.Path, a *ACL) {
	s.mu.Lock()
	s.trie.Put(path, a)
	key := path.String()
	if a.Empty() {
		s.states[key] = StatePolicyEmpty
	} else {
		s.states[key] = StatePolicyPopulated
	}
	s.mu.Unlock()
	s.notify(path, PolicyAdded)
}

// AddEntry creates a policy node at path if none exists, merges the entry
// per spec §4.6 with no glob path filter, and notifies listeners. See
// AddEntryGlob.
func (s *Store) AddEntry(path pathtrie.Path, principal string, allow bool, privs PrivBits) {
	s.AddEntryGlob(path, principal, allow, privs, "")
}

// AddEntryGlob creates a policy node at path if none exists, merges the
// entry per spec §4.6, restricted to descendants matching glob ("" matches
// everything beneath path), and notifies listeners.
func (s *Store) AddEntryGlob(path pathtrie.Path, principal string, allow bool, privs PrivBits, glob string) {
	s.mu.Lock()
	key := path.String()
	wasAC := s.states[key] == StatePolicyEmpty || s.states[key] == StatePolicyPopulated

	node := s.trie.GetNode(path)
	var a *ACL
	if node.Path().Equal(path) {
		if existing, has := node.Payload(); has {
			a = existing
		}
	}
	if a == nil {
		a = NewACL()
		s.trie.Put(path, a)
	}
	a.AddEntryGlob(principal, allow, privs, glob)

	if a.Empty() {
		s.states[key] = StatePolicyEmpty
	} else {
		s.states[key] = StatePolicyPopulated
	}
	s.mu.Unlock()

	kind := PolicyModified
	if !wasAC {
		kind = PolicyAdded
	}
	s.notify(path, kind)
}

// RemoveEntry removes the (principal, allow, glob="") entry at path, if
// present, and notifies listeners. See RemoveEntryGlob.
func (s *Store) RemoveEntry(path pathtrie.Path, principal string, allow bool) {
	s.RemoveEntryGlob(path, principal, allow, "")
}

// RemoveEntryGlob removes the (principal, allow, glob) entry at path, if
// present, and notifies listeners.
func (s *Store) RemoveEntryGlob(path pathtrie.Path, principal string, allow bool, glob string) {
	a, ok := s.ACLAt(path)
	if !ok {
		return
	}
	s.mu.Lock()
	a.RemoveEntryGlob(principal, allow, glob)
	key := path.String()
	if a.Empty() {
		s.states[key] = StatePolicyEmpty
	}
	s.mu.Unlock()
	s.notify(path, PolicyModified)
}

// RemovePolicy deletes the policy node at path entirely (back to
// StateNone), notifying listeners with PolicyRemoved.
func (s *Store) RemovePolicy(path pathtrie.Path) {
	s.mu.Lock()
	if node, ok := s.trie.Map(path, true); ok {
		node.ClearPayload()
	}
	delete(s.states, path.String())
	s.mu.Unlock()
	s.notify(path, PolicyRemoved)
}

// NotifyMove tells listeners that the subtree rooted at oldPath moved,
// without itself changing any stored ACL (the hierarchy service updates
// paths via node identifiers, not the ACL store).
func (s *Store) NotifyMove(oldPath pathtrie.Path) {
	s.notify(oldPath, PolicyMoved)
}

// NearestAccessControlled returns the nearest access-controlled ancestor
// of path (including path itself), reusing the trie's nearest-ancestor
// Map lookup — the same mechanism the lock registry uses to resolve deep
// locks, since both are "nearest node carrying a payload" queries over
// the same kind of tree.
func (s *Store) NearestAccessControlled(path pathtrie.Path) (pathtrie.Path, *ACL, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, _ := s.trie.Map(path, false)
	if node == nil {
		return nil, nil, false
	}
	a, has := node.Payload()
	if !has {
		return nil, nil, false
	}
	return node.Path(), a, true
}

func (s *Store) notify(path pathtrie.Path, kind ChangeKind) {
	s.mu.RLock()
	listeners := append([]ChangeListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l.OnPolicyChange(path, kind)
	}
}
