package lock

import (
	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
)

// PathResolver is the hierarchy service external collaborator: it resolves
// a stable node identifier to its current path. The registry never
// resolves paths itself.
type PathResolver interface {
	ResolvePath(nid ident.NID) (pathtrie.Path, bool)
	Exists(nid ident.NID) bool
}

// JournalStore persists the set of live open-scoped lock records. It is
// intentionally minimal: the registry always passes the *complete* set of
// open-scoped records it wants persisted, matching the teacher's
// batching-friendly, last-writer-wins journal writes (spec §4.2/§9).
type JournalStore interface {
	Save(records []*Record) error
	Load() ([]*Record, error)
}

// ClusterNotifier publishes lock events to peer nodes (spec §2's "Cluster
// channel" collaborator). Session-scoped locks are never announced.
type ClusterNotifier interface {
	NotifyLock(rec *Record)
	NotifyUnlock(nid ident.NID)
}

// AuditSink mirrors lock/unlock activity to a history store (the
// supplemental sqlite audit mirror), independent of the JournalStore used
// to restore state on startup.
type AuditSink interface {
	RecordLock(rec *Record)
	RecordUnlock(rec *Record)
}

type noopAudit struct{}

func (noopAudit) RecordLock(*Record)   {}
func (noopAudit) RecordUnlock(*Record) {}

// noopJournal and noopCluster let tests and single-node operation run
// without wiring a real persistence/cluster backend.
type noopJournal struct{}

func (noopJournal) Save([]*Record) error     { return nil }
func (noopJournal) Load() ([]*Record, error) { return nil, nil }

type noopCluster struct{}

func (noopCluster) NotifyLock(*Record)     {}
func (noopCluster) NotifyUnlock(ident.NID) {}
