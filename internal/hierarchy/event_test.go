package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
)

func TestConsolidateSingleAdd(t *testing.T) {
	nid := ident.New()
	events := Consolidate([]RawEvent{
		{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd},
	})
	require.Len(t, events, 1)
	assert.Equal(t, EventAdd, events[0].Kind)
	assert.True(t, events[0].Path.Equal(pathtrie.ParseSimple("/a")))
}

func TestConsolidateSingleRemove(t *testing.T) {
	nid := ident.New()
	events := Consolidate([]RawEvent{
		{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindRemove},
	})
	require.Len(t, events, 1)
	assert.Equal(t, EventRemove, events[0].Kind)
	assert.True(t, events[0].OldPath.Equal(pathtrie.ParseSimple("/a")))
}

func TestConsolidatePairedRemoveAddIsMove(t *testing.T) {
	nid := ident.New()
	events := Consolidate([]RawEvent{
		{NID: nid, Path: pathtrie.ParseSimple("/foo/bar"), Kind: KindRemove},
		{NID: nid, Path: pathtrie.ParseSimple("/baz/bar"), Kind: KindAdd},
	})
	require.Len(t, events, 1)
	assert.Equal(t, EventMove, events[0].Kind)
	assert.True(t, events[0].OldPath.Equal(pathtrie.ParseSimple("/foo/bar")))
	assert.True(t, events[0].Path.Equal(pathtrie.ParseSimple("/baz/bar")))
	assert.True(t, events[0].AffectedPath().Equal(pathtrie.ParseSimple("/foo/bar")))
}

func TestConsolidatePreservesFirstSeenOrder(t *testing.T) {
	a, b := ident.New(), ident.New()
	events := Consolidate([]RawEvent{
		{NID: b, Path: pathtrie.ParseSimple("/b"), Kind: KindAdd},
		{NID: a, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd},
	})
	require.Len(t, events, 2)
	assert.Equal(t, b, events[0].NID)
	assert.Equal(t, a, events[1].NID)
}

func TestConsolidateAddThenRemoveYieldsRemove(t *testing.T) {
	nid := ident.New()
	events := Consolidate([]RawEvent{
		{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd},
		{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindRemove},
	})
	require.Len(t, events, 1)
	assert.Equal(t, EventRemove, events[0].Kind)
}

type recordingSubscriber struct {
	refreshed []pathtrie.Path
}

func (r *recordingSubscriber) Refresh(p pathtrie.Path) {
	r.refreshed = append(r.refreshed, p)
}

func TestServiceApplyUpdatesPathsAndNotifiesSubscribers(t *testing.T) {
	svc := New()
	sub := &recordingSubscriber{}
	svc.Subscribe(sub)

	nid := ident.New()
	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd}})

	path, ok := svc.ResolvePath(nid)
	require.True(t, ok)
	assert.True(t, path.Equal(pathtrie.ParseSimple("/a")))
	require.Len(t, sub.refreshed, 1)
	assert.True(t, sub.refreshed[0].Equal(pathtrie.ParseSimple("/a")))
}

func TestServiceApplyRemoveDeletesPath(t *testing.T) {
	svc := New()
	nid := ident.New()
	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindAdd}})
	svc.Apply([]RawEvent{{NID: nid, Path: pathtrie.ParseSimple("/a"), Kind: KindRemove}})

	assert.False(t, svc.Exists(nid))
}
