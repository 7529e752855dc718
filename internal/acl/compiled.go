package acl

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openmined/corectl/internal/pathtrie"
)

// CompiledResult is the outcome of evaluating a path's inherited entries
// for one principal set (spec §3's CompiledResult payload).
type CompiledResult struct {
	Allows     PermBits
	Denies     PermBits
	AllowPrivs PrivBits
	DenyPrivs  PrivBits
}

// CanPerform reports whether every bit in mask is present in the compiled
// allow set and absent from the compiled deny set.
func (r CompiledResult) CanPerform(mask PermBits) bool {
	return r.Allows&mask == mask && r.Denies&mask == 0
}

// Permissions is the Compiled Permissions evaluator (C8): bound to one
// principal set, it compiles a (path -> bool) read decision function with
// a per-instance LRU read cache, guarded by its own monitor per spec §5.
type Permissions struct {
	principals mapset.Set[string]
	collector  *Collector

	mu        sync.Mutex
	readCache *lru.Cache[string, bool]
}

// NewPermissions creates a Permissions evaluator for principals, backed by
// collector, with a read cache bounded at maxSize (spec §6's
// readCache.maxSize, default 5000).
func NewPermissions(collector *Collector, principals []string, maxSize int) *Permissions {
	if maxSize <= 0 {
		maxSize = 5000
	}
	cache, _ := lru.New[string, bool](maxSize)
	return &Permissions{principals: mapset.NewSet(principals...), collector: collector, readCache: cache}
}

// isACItem reports whether path lies within a policy subtree: any
// segment literally named "policy" marks everything beneath it as
// AC-managed rather than content (spec §3's "AC item" definition).
func isACItem(path pathtrie.Path) bool {
	for _, seg := range path {
		if seg.Name == "policy" {
			return true
		}
	}
	return false
}

// Build compiles the full CompiledResult for path, per spec §4.8: deny
// wins over allow on first match of any given bit. An entry hosted
// directly on the parent node additionally feeds parentAllows/parentDenies
// so it can contribute to child-scoped permissions like add-node and
// remove-node, on top of (not instead of) its ordinary contribution to the
// read/write permissions at path. "Matches the parent" is read here as
// "defined directly on the parent node" rather than "glob-covers the
// parent path from any ancestor": the latter reading would swallow every
// unrestricted inherited entry into the parent-scoped accumulators and
// never let it contribute to ordinary read/write permissions at path.
func (p *Permissions) Build(path pathtrie.Path) CompiledResult {
	entries := p.collector.Collect(path, p.principals)
	acItem := isACItem(path)

	var result CompiledResult
	var parentAllows, parentDenies PrivBits

	parentPath, hasParent := path.Parent()

	for _, ce := range entries {
		isLocal := ce.NodePath.Equal(path)
		matchesParent := false
		if !isLocal && hasParent && ce.NodePath.Equal(parentPath) {
			if relToParent, ok := parentPath.RelativeTo(ce.NodePath); ok {
				matchesParent = ce.Matches(relToParent)
			}
		}

		if matchesParent {
			if ce.Allow {
				parentAllows |= ce.Privs &^ parentDenies
			} else {
				parentDenies |= ce.Privs &^ parentAllows
			}
		}

		if ce.Allow {
			newBits := ce.Privs &^ result.DenyPrivs
			result.AllowPrivs |= newBits
			granted := calculatePermissions(result.AllowPrivs, parentAllows, acItem)
			result.Allows |= granted &^ result.Denies
		} else {
			newBits := ce.Privs &^ result.AllowPrivs
			result.DenyPrivs |= newBits
			denied := calculatePermissions(result.DenyPrivs, parentDenies, acItem)
			result.Denies |= denied &^ result.Allows
		}
	}

	return result
}

// CanRead is C8's short path: a cache hit returns immediately, a miss
// runs Build and remembers only the READ bit.
func (p *Permissions) CanRead(path pathtrie.Path) bool {
	key := path.String()

	p.mu.Lock()
	if v, ok := p.readCache.Get(key); ok {
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()

	result := p.Build(path)
	canRead := result.CanPerform(PermRead)

	p.mu.Lock()
	p.readCache.Add(key, canRead)
	p.mu.Unlock()

	return canRead
}

// ClearReadCache discards every cached read decision but keeps the
// principal set (spec §4.9: "clear their read_cache but keep the
// principal set").
func (p *Permissions) ClearReadCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readCache.Purge()
}
