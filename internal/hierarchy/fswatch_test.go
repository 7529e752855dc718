package hierarchy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherTranslateCreateAssignsNID(t *testing.T) {
	svc := New()
	w := NewWatcher("/root", svc)

	raw := w.translate(fakeEventInfo{event: notify.Create, path: "/root/a/b"})
	require.Len(t, raw, 1)
	assert.Equal(t, KindAdd, raw[0].Kind)
	assert.Equal(t, "/a/b", raw[0].Path.String())
}

func TestWatcherTranslateRemoveRetiresKnownNID(t *testing.T) {
	svc := New()
	w := NewWatcher("/root", svc)

	created := w.translate(fakeEventInfo{event: notify.Create, path: "/root/a"})
	require.Len(t, created, 1)

	removed := w.translate(fakeEventInfo{event: notify.Remove, path: "/root/a"})
	require.Len(t, removed, 1)
	assert.Equal(t, KindRemove, removed[0].Kind)
	assert.Equal(t, created[0].NID, removed[0].NID)
}

func TestWatcherTranslateRemoveUnknownPathIsNoop(t *testing.T) {
	svc := New()
	w := NewWatcher("/root", svc)

	raw := w.translate(fakeEventInfo{event: notify.Remove, path: "/root/never-seen"})
	assert.Empty(t, raw)
}

func TestWatcherTranslateRenameFoldsIntoSameNID(t *testing.T) {
	svc := New()
	w := NewWatcher("/root", svc)

	created := w.translate(fakeEventInfo{event: notify.Create, path: "/root/old"})
	require.Len(t, created, 1)
	originalNID := created[0].NID

	away := w.translate(fakeEventInfo{event: notify.Rename, path: "/root/old"})
	require.Len(t, away, 1)
	assert.Equal(t, KindRemove, away[0].Kind)
	assert.Equal(t, originalNID, away[0].NID)

	arrived := w.translate(fakeEventInfo{event: notify.Rename, path: "/root/new"})
	require.Len(t, arrived, 1)
	assert.Equal(t, KindAdd, arrived[0].Kind)
	assert.Equal(t, originalNID, arrived[0].NID, "rename should carry the retiring NID to the new path")
}

func TestWatcherTranslateIgnoresPathsOutsideRoot(t *testing.T) {
	svc := New()
	w := NewWatcher("/root/watched", svc)

	raw := w.translate(fakeEventInfo{event: notify.Create, path: "/root/elsewhere/file"})
	assert.Empty(t, raw)
}

func TestWatcherAppliesTranslatedEventsToService(t *testing.T) {
	svc := New()
	w := NewWatcher("/root", svc)

	raw := w.translate(fakeEventInfo{event: notify.Create, path: "/root/doc.txt"})
	require.Len(t, raw, 1)
	svc.Apply(raw)

	p, ok := svc.ResolvePath(raw[0].NID)
	require.True(t, ok)
	assert.Equal(t, "/doc.txt", p.String())
}

func TestWatcherStartStopLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	tempDir, err := filepath.EvalSymlinks(tempDir)
	require.NoError(t, err)

	svc := New()
	w := NewWatcher(tempDir, svc)

	require.NoError(t, w.Start(t.Context()))

	testFile := filepath.Join(tempDir, "created.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("x"), 0o644))

	var found bool
	deadline := time.After(2 * time.Second)
	for !found {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for watched directory entry to register")
		case <-time.After(20 * time.Millisecond):
			w.mu.Lock()
			_, found = w.known["created.txt"]
			w.mu.Unlock()
		}
	}

	w.Stop()
}

type fakeEventInfo struct {
	event notify.Event
	path  string
}

func (f fakeEventInfo) Event() notify.Event { return f.event }
func (f fakeEventInfo) Path() string        { return f.path }
func (f fakeEventInfo) Sys() interface{}    { return nil }
