package lock

import (
	"log/slog"

	"github.com/openmined/corectl/internal/pathtrie"
	"github.com/openmined/corectl/internal/session"
)

// Refresh reconciles the registry against a hierarchy mutation rooted at
// oldPath (an add, remove, or move consolidated event from the hierarchy
// service, spec §4.4/C4). Every live record found under oldPath is
// re-resolved through PathResolver and reinstalled at its current path;
// records whose node no longer exists are marked dead so future queries
// simply never see them, matching the spec's "a dead record must not be
// returned by any query" invariant by construction (it is absent from the
// trie).
func (r *Registry) Refresh(oldPath pathtrie.Path) {
	_ = r.withLock(session.System, false, func() error {
		var affected []*Record
		r.trie.Traverse(func(n *pathtrie.Node[*Record]) {
			if !oldPath.IsAncestorOf(n.Path()) && !oldPath.Equal(n.Path()) {
				return
			}
			if rec, has := n.Payload(); has && rec.Live {
				affected = append(affected, rec)
			}
		}, true)
		if len(affected) == 0 {
			return nil
		}

		r.trie.RemoveSubtree(oldPath)

		needsResave := false
		for _, rec := range affected {
			newPath, ok := r.paths.ResolvePath(rec.HolderNID)
			if !ok {
				rec.Live = false
				r.deadMu.Lock()
				r.dead[rec.HolderNID] = rec
				r.deadMu.Unlock()
				if !rec.SessionScoped {
					needsResave = true
				}
				slog.Warn("lock orphaned by hierarchy change", "token", rec.Token())
				continue
			}
			r.trie.Put(newPath, rec)
		}

		if needsResave {
			if err := r.saveJournal(); err != nil {
				slog.Error("lock journal save failed during refresh", "error", err)
			}
		}
		return nil
	})
}
