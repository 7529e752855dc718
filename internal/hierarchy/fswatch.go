package hierarchy

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rjeczalik/notify"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
)

// Watcher feeds a Service from real filesystem structural changes under
// root, translating OS events into RawEvents, grounded on the teacher's
// internal/client/sync3.FileWatcher (notify.Watch over a "/..." recursive
// spec, a buffered notify.EventInfo channel, Start/Stop lifecycle).
//
// Filesystem paths carry no native stable identifier, so Watcher assigns
// one the first time it observes a path and retires it on removal. A
// rename is reported by the OS as a remove of the old path followed by a
// create of the new one; Watcher reuses the retiring NID for the very next
// create it sees so the two halves fold into a single Move via Consolidate
// instead of a spurious remove+add pair. This is a same-batch heuristic,
// not an inode-level guarantee.
type Watcher struct {
	root string
	svc  *Service

	mu            sync.Mutex
	known         map[string]ident.NID
	pendingRename ident.NID
	hasPending    bool

	events chan notify.EventInfo
	stop   chan struct{}
}

// NewWatcher creates a Watcher over root, feeding svc on every Start'd run.
func NewWatcher(root string, svc *Service) *Watcher {
	return &Watcher{
		root:   root,
		svc:    svc,
		known:  make(map[string]ident.NID),
		events: make(chan notify.EventInfo, 64),
	}
}

// Start subscribes to recursive filesystem events under root and launches
// the translation loop. Stop must be called to release the watch.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("hierarchy watcher start", "root", w.root)
	if err := notify.Watch(w.root+"/...", w.events, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}
	w.stop = make(chan struct{})
	go w.run(ctx)
	return nil
}

// Stop releases the OS watch and terminates the translation loop.
func (w *Watcher) Stop() {
	notify.Stop(w.events)
	if w.stop != nil {
		close(w.stop)
	}
	slog.Info("hierarchy watcher stop", "root", w.root)
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ei, ok := <-w.events:
			if !ok {
				return
			}
			if raw := w.translate(ei); len(raw) > 0 {
				w.svc.Apply(raw)
			}
		}
	}
}

func (w *Watcher) translate(ei notify.EventInfo) []RawEvent {
	rel := w.relativePath(ei.Path())
	if rel == "" {
		return nil
	}
	path := pathtrie.ParseSimple(rel)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch ei.Event() {
	case notify.Remove:
		nid, ok := w.known[rel]
		if !ok {
			return nil
		}
		delete(w.known, rel)
		return []RawEvent{{NID: nid, Path: path, Kind: KindRemove}}

	case notify.Rename:
		if nid, ok := w.known[rel]; ok {
			delete(w.known, rel)
			w.pendingRename, w.hasPending = nid, true
			return []RawEvent{{NID: nid, Path: path, Kind: KindRemove}}
		}
		nid := w.nextNID()
		w.known[rel] = nid
		return []RawEvent{{NID: nid, Path: path, Kind: KindAdd}}

	case notify.Create:
		nid := w.nextNID()
		w.known[rel] = nid
		return []RawEvent{{NID: nid, Path: path, Kind: KindAdd}}

	default:
		return nil
	}
}

func (w *Watcher) nextNID() ident.NID {
	if w.hasPending {
		w.hasPending = false
		return w.pendingRename
	}
	return ident.New()
}

func (w *Watcher) relativePath(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}
