package lock

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/session"
)

// timeoutInterval is how often the registry sweeps the expiry queue for
// due lock records (spec §4.2 / scenario S5).
const timeoutInterval = 1 * time.Second

// StartTimeoutWorker launches the background goroutine that expires timed
// out locks. Stop must be called to release it. Calls after the first are
// no-ops.
func (r *Registry) StartTimeoutWorker() {
	r.tickerOnce.Do(func() {
		r.tickerStop = make(chan struct{})
		go r.runTimeoutWorker()
	})
}

// StopTimeoutWorker signals the background goroutine to exit. Idempotent
// if the worker was never started.
func (r *Registry) StopTimeoutWorker() {
	if r.tickerStop != nil {
		close(r.tickerStop)
	}
}

func (r *Registry) runTimeoutWorker() {
	ticker := time.NewTicker(timeoutInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.tickerStop:
			return
		case now := <-ticker.C:
			r.expireDue(now)
		}
	}
}

// expireDue pops every due deadline from the expiry queue and, for any
// record still live and still actually expired, releases it under the
// system session and rebroadcasts.
func (r *Registry) expireDue(now time.Time) {
	for _, nid := range r.expiry.due(now) {
		r.expireOne(nid, now)
	}
}

func (r *Registry) expireOne(nid ident.NID, now time.Time) {
	_ = r.withLock(session.System, false, func() error {
		path, ok := r.paths.ResolvePath(nid)
		if !ok {
			return nil
		}
		node, exact := r.trie.Map(path, true)
		if !exact || node == nil {
			return nil
		}
		rec, has := node.Payload()
		if !has || !rec.Live || !rec.expired(now) {
			return nil
		}
		holder := session.System
		if rec.HolderSession != nil {
			holder = *rec.HolderSession
		}
		if err := r.unlockLocked(nid, holder, true); err != nil {
			slog.Warn("timeout expiry unlock failed", "error", err, "path", path.String())
			return nil
		}
		slog.Info("lock expired", "path", path.String(), "owner", rec.Owner, "held_since", humanize.Time(rec.CreatedAt))
		return nil
	})
}
