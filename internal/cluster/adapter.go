package cluster

import (
	"log/slog"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/lock"
)

// LockNotifier adapts a Channel to lock.ClusterNotifier, broadcasting
// lock/unlock events to peers (spec §2's cluster channel collaborator).
type LockNotifier struct {
	ch     Channel
	origin string
}

// NewLockNotifier wires ch to publish lock events tagged with origin
// (typically this node's cluster identity), so peers can recognize and
// ignore their own echoed events.
func NewLockNotifier(ch Channel, origin string) *LockNotifier {
	return &LockNotifier{ch: ch, origin: origin}
}

func (n *LockNotifier) NotifyLock(rec *lock.Record) {
	err := n.ch.Broadcast(Event{
		Kind:        EventExternalLock,
		NID:         rec.HolderNID,
		Deep:        rec.Deep,
		Owner:       rec.Owner,
		TimeoutHint: rec.TimeoutHint,
		Origin:      n.origin,
	})
	if err != nil {
		slog.Error("cluster broadcast of lock failed", "error", err)
	}
}

func (n *LockNotifier) NotifyUnlock(nid ident.NID) {
	err := n.ch.Broadcast(Event{Kind: EventExternalUnlock, NID: nid, Origin: n.origin})
	if err != nil {
		slog.Error("cluster broadcast of unlock failed", "error", err)
	}
}
