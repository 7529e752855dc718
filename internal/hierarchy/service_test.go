package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
)

type fakeSubscriber struct {
	refreshed []pathtrie.Path
}

func (f *fakeSubscriber) Refresh(p pathtrie.Path) {
	f.refreshed = append(f.refreshed, p)
}

func TestServiceApplyUpdatesPathMap(t *testing.T) {
	svc := New()
	nid := ident.New()

	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd}})

	path, ok := svc.ResolvePath(nid)
	assert.True(t, ok)
	assert.True(t, path.Equal(pathtrie.ParseSimple("/a")))
	assert.True(t, svc.Exists(nid))
}

func TestServiceApplyRemoveForgetsNID(t *testing.T) {
	svc := New()
	nid := ident.New()
	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd}})
	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindRemove}})

	_, ok := svc.ResolvePath(nid)
	assert.False(t, ok)
	assert.False(t, svc.Exists(nid))
}

func TestServiceApplyNotifiesSubscribers(t *testing.T) {
	svc := New()
	sub := &fakeSubscriber{}
	svc.Subscribe(sub)

	nid := ident.New()
	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd}})

	assert.Len(t, sub.refreshed, 1)
}

func TestServiceSnapshotReflectsLiveMapAndIsACopy(t *testing.T) {
	svc := New()
	nid := ident.New()
	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd}})

	snap := svc.Snapshot()
	assert.Equal(t, pathtrie.ParseSimple("/a"), snap[nid])

	snap[nid] = pathtrie.ParseSimple("/mutated")
	path, _ := svc.ResolvePath(nid)
	assert.True(t, path.Equal(pathtrie.ParseSimple("/a")), "mutating the snapshot must not affect the service's live map")
}
