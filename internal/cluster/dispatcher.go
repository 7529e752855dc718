package cluster

import (
	"log/slog"

	"github.com/openmined/corectl/internal/lock"
)

// PolicyInvalidator receives a signal-only notice that some peer's policy
// changed, without a payload describing what (the peer's own content
// replication carries the actual ACL data); it exists so externalPolicyChange
// can still invalidate local caches per spec §6.
type PolicyInvalidator interface {
	InvalidateAll()
}

// Dispatcher implements Handler, applying inbound cluster events directly
// to the local lock registry and ACL cache, bypassing any transactional
// overlay (spec §6: "these bypass transactional overlays").
type Dispatcher struct {
	Registry *lock.Registry
	Policy   PolicyInvalidator
}

func (d *Dispatcher) HandleClusterEvent(e Event) {
	switch e.Kind {
	case EventExternalLock:
		if err := d.Registry.ApplyExternalLock(e.NID, e.Deep, e.Owner, e.TimeoutHint); err != nil {
			slog.Warn("failed to apply external lock", "error", err, "nid", e.NID.HexUpper())
		}
	case EventExternalUnlock:
		if err := d.Registry.ApplyExternalUnlock(e.NID); err != nil {
			slog.Warn("failed to apply external unlock", "error", err, "nid", e.NID.HexUpper())
		}
	case EventExternalPolicyChange:
		if d.Policy != nil {
			d.Policy.InvalidateAll()
		}
	default:
		slog.Warn("cluster dispatcher received unknown event kind", "kind", e.Kind)
	}
}
