package hierarchy

import (
	"log/slog"
	"sync"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
)

// Subscriber is notified once per consolidated event so it can refresh
// whatever it keeps indexed by path (the lock registry's trie, the ACL
// engine's policy trie). AffectedPath() on the event tells the subscriber
// which subtree to refresh.
type Subscriber interface {
	Refresh(affected pathtrie.Path)
}

// Service is the hierarchy service external collaborator named throughout
// the spec: it owns the authoritative NID -> path mapping and fans out
// consolidated structural events to subscribers (C2's lock registry, C9's
// ACL policy trie).
type Service struct {
	mu          sync.RWMutex
	paths       map[ident.NID]pathtrie.Path
	subscribers []Subscriber
}

// New creates an empty hierarchy service.
func New() *Service {
	return &Service{paths: make(map[ident.NID]pathtrie.Path)}
}

// Subscribe registers s to be refreshed after every future Apply call.
func (s *Service) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// ResolvePath implements lock.PathResolver.
func (s *Service) ResolvePath(nid ident.NID) (pathtrie.Path, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.paths[nid]
	return p, ok
}

// Exists implements lock.PathResolver.
func (s *Service) Exists(nid ident.NID) bool {
	_, ok := s.ResolvePath(nid)
	return ok
}

// Snapshot copies the current nid -> path map, for a caller that wants to
// persist it (a standalone CLI inspection index) without holding the
// service's lock.
func (s *Service) Snapshot() map[ident.NID]pathtrie.Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ident.NID]pathtrie.Path, len(s.paths))
	for nid, path := range s.paths {
		out[nid] = path
	}
	return out
}

// Apply consolidates raw and applies the resulting events to the
// authoritative path map, then notifies every subscriber once per
// affected subtree (spec §4.4's "then refreshes C1").
func (s *Service) Apply(raw []RawEvent) []Event {
	events := Consolidate(raw)

	s.mu.Lock()
	for _, e := range events {
		switch e.Kind {
		case EventAdd:
			s.paths[e.NID] = e.Path
		case EventRemove:
			delete(s.paths, e.NID)
		case EventMove:
			s.paths[e.NID] = e.Path
		}
	}
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.Unlock()

	for _, e := range events {
		affected := e.AffectedPath()
		for _, sub := range subs {
			sub.Refresh(affected)
		}
		slog.Debug("hierarchy event consolidated", "nid", e.NID.HexUpper(), "kind", e.Kind, "affected", affected.String())
	}
	return events
}
