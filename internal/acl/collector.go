package acl

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openmined/corectl/internal/pathtrie"
)

// EffectiveEntries is the per-access-controlled-node cache payload (C7):
// the node's own entries plus a skip pointer to the next
// access-controlled ancestor above it, so repeated collection doesn't
// have to walk one parent at a time.
type EffectiveEntries struct {
	LocalEntries []Entry
	NextPath     pathtrie.Path
	HasNext      bool
}

// Collector is the Entry Collector (C7): walks from a target node upward
// gathering inherited entries via the ACL store's skip pointers, cached
// per access-controlled node. Spec §5 requires its cache to use a single
// monitor, serializing fills but never blocking a hit; the
// *lru.Cache[string, *EffectiveEntries] below is guarded by exactly one
// mutex for that reason, grounded on the teacher's ACLCache wrapping a
// hashicorp LRU behind one lock.
type Collector struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *EffectiveEntries]
	store *Store
}

// NewCollector creates a Collector backed by store with an LRU cache
// bounded at maxSize entries (spec §6's cachingEntryCollector.maxSize,
// default 5000).
func NewCollector(store *Store, maxSize int) *Collector {
	if maxSize <= 0 {
		maxSize = 5000
	}
	cache, _ := lru.New[string, *EffectiveEntries](maxSize)
	return &Collector{cache: cache, store: store}
}

// CollectedEntry pairs an Entry with the access-controlled node path it
// was defined on, so the compiled-permissions evaluator can tell whether
// an entry is local to the queried node or inherited from its parent.
type CollectedEntry struct {
	Entry
	NodePath pathtrie.Path
}

// Collect returns, in inheritance order (deepest first, root last), every
// entry applicable to any name in principals, starting at the nearest
// access-controlled ancestor of path (or path itself). An entry whose
// glob path filter does not cover path (expressed relative to the
// access-controlled node it is defined on) is excluded, per spec §4.7.
func (c *Collector) Collect(path pathtrie.Path, principals mapset.Set[string]) []CollectedEntry {
	var out []CollectedEntry
	cur, ok := c.skipChainStart(path)
	for ok {
		ee := c.entriesFor(cur)
		relPath, _ := path.RelativeTo(cur)
		for _, e := range ee.LocalEntries {
			if !principals.Contains(e.Principal) {
				continue
			}
			if !e.Matches(relPath) {
				continue
			}
			out = append(out, CollectedEntry{Entry: e, NodePath: cur})
		}
		if !ee.HasNext {
			break
		}
		cur = ee.NextPath
	}
	return out
}

// skipChainStart resolves the nearest access-controlled ancestor of path,
// including path itself.
func (c *Collector) skipChainStart(path pathtrie.Path) (pathtrie.Path, bool) {
	acPath, _, ok := c.store.NearestAccessControlled(path)
	return acPath, ok
}

// entriesFor returns the cached EffectiveEntries for the access-controlled
// node at acPath, computing and inserting it on a miss. Held under the
// single collector monitor for the full duration of a miss, so concurrent
// collectors serialize on fills but a cache hit never blocks behind one.
func (c *Collector) entriesFor(acPath pathtrie.Path) *EffectiveEntries {
	key := acPath.String()

	if ee, ok := c.cache.Get(key); ok {
		return ee
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ee, ok := c.cache.Get(key); ok {
		return ee
	}

	a, _ := c.store.ACLAt(acPath)
	var local []Entry
	if a != nil {
		local = a.Entries()
	}

	ee := &EffectiveEntries{LocalEntries: local}
	if parent, hasParent := acPath.Parent(); hasParent {
		if nextPath, _, found := c.store.NearestAccessControlled(parent); found {
			ee.NextPath = nextPath
			ee.HasNext = true
		}
	}

	c.cache.Add(key, ee)
	return ee
}

// InvalidateAll clears the full cache (POLICY_ADDED and MOVE per §4.9:
// any descendant's skip pointer may now be stale).
func (c *Collector) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// InvalidateNode removes only path's cached entry (POLICY_MODIFIED), or,
// for POLICY_REMOVED, removes path's entry and repairs any cached entry
// whose skip pointer referenced it by pointing those entries at path's
// own (pre-removal) next pointer.
func (c *Collector) InvalidateNode(path pathtrie.Path, replacement *EffectiveEntries) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := path.String()
	c.cache.Remove(key)

	if replacement == nil {
		return
	}
	for _, k := range c.cache.Keys() {
		ee, ok := c.cache.Peek(k)
		if !ok || !ee.HasNext || !ee.NextPath.Equal(path) {
			continue
		}
		patched := &EffectiveEntries{LocalEntries: ee.LocalEntries, NextPath: replacement.NextPath, HasNext: replacement.HasNext}
		c.cache.Add(k, patched)
	}
}

// Peek returns the cached EffectiveEntries for path without triggering a
// fill, used by the change notifier to find a removed node's next
// pointer before evicting it.
func (c *Collector) Peek(path pathtrie.Path) (*EffectiveEntries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Peek(path.String())
}
