package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
	"github.com/openmined/corectl/internal/session"
)

// fakeResolver is an in-memory stand-in for the hierarchy service's NID ->
// path resolution, mutable so tests can simulate moves.
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

func (f *fakeResolver) remove(nid ident.NID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.paths, nid)
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

type fakeJournal struct {
	mu    sync.Mutex
	saved []*Record
}

func (f *fakeJournal) Save(records []*Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = records
	return nil
}

func (f *fakeJournal) Load() ([]*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved, nil
}

type fakeCluster struct {
	mu       sync.Mutex
	locked   []ident.NID
	unlocked []ident.NID
}

func (f *fakeCluster) NotifyLock(rec *Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, rec.HolderNID)
}

func (f *fakeCluster) NotifyUnlock(nid ident.NID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocked = append(f.unlocked, nid)
}

func newTestRegistry() (*Registry, *fakeResolver, *fakeJournal, *fakeCluster) {
	resolver := newFakeResolver()
	journal := &fakeJournal{}
	cluster := &fakeCluster{}
	reg := New(resolver, WithJournal(journal), WithCluster(cluster))
	return reg, resolver, journal, cluster
}

// S1: a deep lock on a parent blocks locking a descendant.
func TestDeepLockBlocksDescendant(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	parent := ident.New()
	child := ident.New()
	resolver.set(parent, "/root/parent")
	resolver.set(child, "/root/parent/child")

	owner := session.New()
	_, err := reg.Lock(parent, true, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	other := session.New()
	_, err = reg.Lock(child, false, false, InfiniteTimeout, "bob", other)
	assert.ErrorIs(t, err, ErrParentDeepLocked)
}

// S1 (deeper): a deep lock on an ancestor blocks locking a descendant even
// when the intermediate path segment between them was never itself
// created in the trie (e.g. "/root/parent/mid" was never locked or
// otherwise materialized).
func TestDeepLockBlocksGrandchildWithoutIntermediateNode(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	parent := ident.New()
	grandchild := ident.New()
	resolver.set(parent, "/root/parent")
	resolver.set(grandchild, "/root/parent/mid/grandchild")

	owner := session.New()
	_, err := reg.Lock(parent, true, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	other := session.New()
	_, err = reg.Lock(grandchild, false, false, InfiniteTimeout, "bob", other)
	assert.ErrorIs(t, err, ErrParentDeepLocked)
}

func TestShallowLockDoesNotBlockDescendant(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	parent := ident.New()
	child := ident.New()
	resolver.set(parent, "/root/parent")
	resolver.set(child, "/root/parent/child")

	owner := session.New()
	_, err := reg.Lock(parent, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	other := session.New()
	_, err = reg.Lock(child, false, false, InfiniteTimeout, "bob", other)
	assert.NoError(t, err)
}

func TestDeepLockRejectedWhenDescendantAlreadyLocked(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	parent := ident.New()
	child := ident.New()
	resolver.set(parent, "/root/parent")
	resolver.set(child, "/root/parent/child")

	owner := session.New()
	_, err := reg.Lock(child, false, false, InfiniteTimeout, "bob", owner)
	require.NoError(t, err)

	_, err = reg.Lock(parent, true, false, InfiniteTimeout, "alice", session.New())
	assert.ErrorIs(t, err, ErrChildLocked)
}

func TestUnlockRequiresHolder(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")

	owner := session.New()
	_, err := reg.Lock(nid, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	err = reg.Unlock(nid, session.New())
	assert.ErrorIs(t, err, ErrNotHolder)

	err = reg.Unlock(nid, owner)
	assert.NoError(t, err)
	assert.False(t, reg.IsLocked(nid))
}

func TestCheckLockAllowsHolderDeniesOthers(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")
	owner := session.New()
	_, err := reg.Lock(nid, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	path := pathtrie.ParseSimple("/root/a")
	assert.NoError(t, reg.CheckLock(path, owner))
	assert.ErrorIs(t, reg.CheckLock(path, session.New()), ErrLocked)
}

// Spec §4.2's applicability rule: a shallow lock only ever applies to its
// own path, never to a descendant, no matter how many unvisited path
// segments lie between the lock and the queried descendant.
func TestShallowLockDoesNotApplyToUnvisitedDescendant(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")
	owner := session.New()
	_, err := reg.Lock(nid, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	descendant := pathtrie.ParseSimple("/root/a/mid/deep")
	assert.NoError(t, reg.CheckLock(descendant, session.New()))
}

// The deep counterpart: a deep lock does apply to a descendant several
// levels below it, even when the intermediate segments were never
// otherwise materialized in the trie.
func TestDeepLockAppliesToUnvisitedDescendant(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")
	owner := session.New()
	_, err := reg.Lock(nid, true, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	descendant := pathtrie.ParseSimple("/root/a/mid/deep")
	assert.ErrorIs(t, reg.CheckLock(descendant, session.New()), ErrLocked)
}

// S3: a move refresh relocates a live record to its new resolved path.
func TestRefreshRelocatesLiveLock(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/old/child")

	owner := session.New()
	_, err := reg.Lock(nid, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	resolver.set(nid, "/root/new/child")
	reg.Refresh(pathtrie.ParseSimple("/root/old"))

	assert.True(t, reg.HoldsLock(nid, owner))
	err = reg.CheckLock(pathtrie.ParseSimple("/root/new/child"), session.New())
	assert.ErrorIs(t, err, ErrLocked)
	err = reg.CheckLock(pathtrie.ParseSimple("/root/old/child"), session.New())
	assert.NoError(t, err)
}

func TestRefreshMarksUnresolvableRecordsDead(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/doomed/child")

	owner := session.New()
	_, err := reg.Lock(nid, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	resolver.remove(nid)
	reg.Refresh(pathtrie.ParseSimple("/root/doomed"))

	assert.False(t, reg.IsLocked(nid))
}

// S5: an expired lock is released by the timeout worker.
func TestExpireDueReleasesExpiredLock(t *testing.T) {
	reg, resolver, _, cluster := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")

	owner := session.New()
	_, err := reg.Lock(nid, false, false, 10*time.Millisecond, "alice", owner)
	require.NoError(t, err)

	reg.expireDue(time.Now().Add(time.Hour))

	assert.False(t, reg.IsLocked(nid))
	cluster.mu.Lock()
	assert.Contains(t, cluster.unlocked, nid)
	cluster.mu.Unlock()
}

func TestExpireDueIgnoresLiveUnexpiredLock(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")

	owner := session.New()
	_, err := reg.Lock(nid, false, false, time.Hour, "alice", owner)
	require.NoError(t, err)

	reg.expireDue(time.Now())
	assert.True(t, reg.IsLocked(nid))
}

func TestLogoutReleasesSessionScopedAndDetachesOpenScoped(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	sessionScoped := ident.New()
	openScoped := ident.New()
	resolver.set(sessionScoped, "/root/s")
	resolver.set(openScoped, "/root/o")

	owner := session.New()
	_, err := reg.Lock(sessionScoped, false, true, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)
	token, err := reg.Lock(openScoped, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	reg.Logout(owner)

	assert.False(t, reg.IsLocked(sessionScoped))
	assert.True(t, reg.IsLocked(openScoped))
	assert.False(t, reg.HoldsLock(openScoped, owner))

	err = reg.AddToken(session.New(), token)
	assert.NoError(t, err)
}

func TestAddTokenRejectsOtherHolder(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")
	owner := session.New()
	token, err := reg.Lock(nid, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)

	err = reg.AddToken(session.New(), token)
	assert.ErrorIs(t, err, ErrOtherHolder)
}

func TestBeginUpdateReentersForSameOwner(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	a := ident.New()
	b := ident.New()
	resolver.set(a, "/root/a")
	resolver.set(b, "/root/b")
	owner := session.New()

	guard := reg.BeginUpdate(owner)
	_, err := reg.Lock(a, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)
	_, err = reg.Lock(b, false, false, InfiniteTimeout, "alice", owner)
	require.NoError(t, err)
	require.NoError(t, guard.End())

	assert.True(t, reg.IsLocked(a))
	assert.True(t, reg.IsLocked(b))
}

func TestBeginUpdateBlocksOtherOwner(t *testing.T) {
	reg, resolver, _, _ := newTestRegistry()
	nid := ident.New()
	resolver.set(nid, "/root/a")
	owner := session.New()

	guard := reg.BeginUpdate(owner)

	done := make(chan struct{})
	go func() {
		_, _ = reg.Lock(nid, false, false, InfiniteTimeout, "bob", session.New())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("other owner should not have acquired the lock while guard held")
	case <-time.After(20 * time.Millisecond):
	}

	guard.Cancel()
	<-done
}
