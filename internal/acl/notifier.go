package acl

import (
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/openmined/corectl/internal/pathtrie"
)

// Notifier is the Change Notifier (C9): a Store ChangeListener that keeps
// the Collector's cache coherent with policy mutations and republishes an
// AccessControlModifications signal to every subscribed Permissions
// instance so their read caches clear without losing their principal set.
type Notifier struct {
	collector *Collector

	mu        sync.Mutex
	observers []*Permissions
}

// NewNotifier wires a Notifier to invalidate collector and fan out to
// observers registered via Observe.
func NewNotifier(collector *Collector) *Notifier {
	return &Notifier{collector: collector}
}

// Observe registers p to have its read cache cleared after every future
// policy change.
func (n *Notifier) Observe(p *Permissions) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, p)
}

// OnPolicyChange implements Store's ChangeListener, applying the
// invalidation rules of spec §4.9.
func (n *Notifier) OnPolicyChange(path pathtrie.Path, kind ChangeKind) {
	switch kind {
	case PolicyAdded, PolicyMoved:
		n.collector.InvalidateAll()
	case PolicyRemoved:
		replacement, _ := n.collector.Peek(path)
		n.collector.InvalidateNode(path, replacement)
	case PolicyModified:
		n.collector.InvalidateNode(path, nil)
	}
	n.publish()
}

func (n *Notifier) publish() {
	n.mu.Lock()
	observers := append([]*Permissions(nil), n.observers...)
	n.mu.Unlock()
	for _, p := range observers {
		p.ClearReadCache()
	}
	slog.Debug("acl policy change published", "component", "acl", "observers", humanize.Comma(int64(len(observers))))
}
