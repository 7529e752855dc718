// Package itemstore defines the item store external collaborator (spec §2):
// the thing that actually reads and writes node/property state
// transactionally. The real item store is out of scope for this core (spec
// §1 Non-goals); this package only defines the narrow slice of it the lock
// registry and ACL engine depend on, plus an in-memory reference
// implementation for tests and standalone CLI use.
package itemstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
)

// Store is the path-resolution slice of the item store that the lock
// registry (as a lock.PathResolver) and the ACL engine depend on. A real
// item store satisfies this alongside its full read/write surface; this
// module never needs more than path resolution.
type Store interface {
	ResolvePath(nid ident.NID) (pathtrie.Path, bool)
	Exists(nid ident.NID) bool
}

// Memory is an in-memory reference Store, keyed by NID, written to or read
// from disk only through explicit SaveJSON/LoadJSON calls, and with no
// event emission of its own — callers that need move/add/remove
// notifications should route mutations through internal/hierarchy.Service
// instead, which both tracks paths and fans out RawEvents.
type Memory struct {
	mu     sync.RWMutex
	paths  map[ident.NID]pathtrie.Path
	byPath map[string]ident.NID
}

// NewMemory returns an empty in-memory item store.
func NewMemory() *Memory {
	return &Memory{paths: make(map[ident.NID]pathtrie.Path), byPath: make(map[string]ident.NID)}
}

// Put records nid as living at path, overwriting any previous path.
func (m *Memory) Put(nid ident.NID, path pathtrie.Path) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.paths[nid]; ok {
		delete(m.byPath, old.String())
	}
	m.paths[nid] = path
	m.byPath[path.String()] = nid
}

// Remove forgets nid entirely.
func (m *Memory) Remove(nid ident.NID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path, ok := m.paths[nid]; ok {
		delete(m.byPath, path.String())
	}
	delete(m.paths, nid)
}

// Lookup reverse-resolves path to the node identity currently recorded at
// it, if any. It never assigns a new identity: a path the store has never
// observed simply isn't found.
func (m *Memory) Lookup(path pathtrie.Path) (ident.NID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nid, ok := m.byPath[path.String()]
	return nid, ok
}

// ResolvePath implements Store.
func (m *Memory) ResolvePath(nid ident.NID) (pathtrie.Path, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.paths[nid]
	return p, ok
}

// Exists implements Store.
func (m *Memory) Exists(nid ident.NID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.paths[nid]
	return ok
}

// snapshot copies nid -> path as a plain map, keyed by the node identity's
// hex encoding, suitable for JSON persistence.
func (m *Memory) snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.paths))
	for nid, path := range m.paths {
		out[nid.HexUpper()] = path.String()
	}
	return out
}

// SaveJSON writes the store's current nid -> path mapping to path as JSON,
// for a standalone CLI invocation to load later against the same data
// directory a running node is (or was) watching.
func (m *Memory) SaveJSON(path string) error {
	data, err := json.MarshalIndent(m.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("itemstore: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("itemstore: write %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads a node-identity index previously written by SaveJSON. A
// missing file is not an error: it yields an empty store, the same state a
// node that has never run sees.
func LoadJSON(path string) (*Memory, error) {
	m := NewMemory()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, fmt.Errorf("itemstore: read %s: %w", path, err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("itemstore: parse %s: %w", path, err)
	}
	for hex, rawPath := range raw {
		nid, err := ident.ParseHex(hex)
		if err != nil {
			return nil, fmt.Errorf("itemstore: parse %s: node identity %q: %w", path, hex, err)
		}
		m.Put(nid, pathtrie.ParseSimple(rawPath))
	}
	return m, nil
}
