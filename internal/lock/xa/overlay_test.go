package xa

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/lock"
	"github.com/openmined/corectl/internal/pathtrie"
	"github.com/openmined/corectl/internal/session"
)

type fakeResolver struct {
	mu    sync.Mutex
	paths map[ident.NID]pathtrie.Path
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{paths: make(map[ident.NID]pathtrie.Path)}
}

func (f *fakeResolver) set(nid ident.NID, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths[nid] = pathtrie.ParseSimple(path)
}

func (f *fakeResolver) ResolvePath(nid ident.NID) (pathtrie.Path, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.paths[nid]
	return p, ok
}

func (f *fakeResolver) Exists(nid ident.NID) bool {
	_, ok := f.ResolvePath(nid)
	return ok
}

func TestOverlayCommitAppliesAllStagedOperations(t *testing.T) {
	resolver := newFakeResolver()
	a, b := ident.New(), ident.New()
	resolver.set(a, "/root/a")
	resolver.set(b, "/root/b")
	reg := lock.New(resolver)

	owner := session.New()
	ov := New(reg, owner)
	require.NoError(t, ov.StageLock(a, false, false, lock.InfiniteTimeout, "alice"))
	require.NoError(t, ov.StageLock(b, true, false, lock.InfiniteTimeout, "alice"))

	require.NoError(t, ov.Prepare())
	require.NoError(t, ov.Commit())

	assert.True(t, reg.IsLocked(a))
	assert.True(t, reg.IsLocked(b))
}

func TestOverlayPrepareFailsOnConflict(t *testing.T) {
	resolver := newFakeResolver()
	a := ident.New()
	resolver.set(a, "/root/a")
	reg := lock.New(resolver)

	owner := session.New()
	_, err := reg.Lock(a, false, false, lock.InfiniteTimeout, "bob", session.New())
	require.NoError(t, err)

	ov := New(reg, owner)
	require.NoError(t, ov.StageLock(a, false, false, lock.InfiniteTimeout, "alice"))

	err = ov.Prepare()
	assert.ErrorIs(t, err, ErrConflict)
}

func TestOverlayRollbackLeavesRegistryUntouched(t *testing.T) {
	resolver := newFakeResolver()
	a := ident.New()
	resolver.set(a, "/root/a")
	reg := lock.New(resolver)

	owner := session.New()
	ov := New(reg, owner)
	require.NoError(t, ov.StageLock(a, false, false, lock.InfiniteTimeout, "alice"))
	require.NoError(t, ov.Prepare())
	require.NoError(t, ov.Rollback())

	assert.False(t, reg.IsLocked(a))
}

func TestOverlayStageDuplicateConflicts(t *testing.T) {
	resolver := newFakeResolver()
	a := ident.New()
	resolver.set(a, "/root/a")
	reg := lock.New(resolver)

	ov := New(reg, session.New())
	require.NoError(t, ov.StageLock(a, false, false, lock.InfiniteTimeout, "alice"))
	err := ov.StageLock(a, false, false, lock.InfiniteTimeout, "alice")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestOverlayCommitWithoutPrepareFails(t *testing.T) {
	resolver := newFakeResolver()
	reg := lock.New(resolver)
	ov := New(reg, session.New())
	err := ov.Commit()
	assert.ErrorIs(t, err, ErrNotPrepared)
}
