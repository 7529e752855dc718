// Package hierarchy implements the external hierarchy service boundary:
// resolving stable node identifiers to current paths, and consolidating a
// raw stream of structural change events into one Add/Remove/Move per
// node (C4).
package hierarchy

import (
	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/pathtrie"
)

// Kind identifies the low-level structural change a RawEvent reports.
type Kind int

const (
	KindAdd Kind = iota
	KindRemove
)

// RawEvent is a single low-level structural change as the hierarchy
// emits it, before consolidation.
type RawEvent struct {
	NID  ident.NID
	Path pathtrie.Path
	Kind Kind
}

// EventKind identifies a consolidated event's shape.
type EventKind int

const (
	// EventAdd: the node appeared at Path and did not previously exist.
	EventAdd EventKind = iota
	// EventRemove: the node at Path no longer exists.
	EventRemove
	// EventMove: the node moved from OldPath to Path (a paired
	// REMOVE+ADD for the same NID).
	EventMove
)

// Event is one consolidated structural change, keyed by NID (spec §4.4).
type Event struct {
	NID     ident.NID
	Kind    EventKind
	OldPath pathtrie.Path // set only for EventMove
	Path    pathtrie.Path // the node's current path; unset for EventRemove
}

// AffectedPath returns the subtree root that a lock/ACL consumer should
// refresh in response to this event: the old path for a remove or move,
// the new path for a pure add.
func (e Event) AffectedPath() pathtrie.Path {
	switch e.Kind {
	case EventRemove, EventMove:
		return e.OldPath
	default:
		return e.Path
	}
}

// consolidationEntry tracks accumulated state for one NID while folding
// the raw event stream.
type consolidationEntry struct {
	firstKind Kind
	oldPath   pathtrie.Path
	curPath   pathtrie.Path
	hasOld    bool
	hasCur    bool
}

// Consolidate merges a stream of low-level ADD/REMOVE events into one
// event per NID, preserving the order each NID was first seen in (spec
// §4.4: "monotonic and order-preserving on first appearance of each
// NID"), grounded on prysmaticlabs-prysm's forkchoice store pattern of
// folding incremental updates into a NID-keyed map alongside an
// insertion-order key slice (Go maps do not preserve iteration order).
func Consolidate(raw []RawEvent) []Event {
	entries := make(map[ident.NID]*consolidationEntry)
	var order []ident.NID

	for _, re := range raw {
		e, ok := entries[re.NID]
		if !ok {
			e = &consolidationEntry{}
			entries[re.NID] = e
			order = append(order, re.NID)
		}
		switch re.Kind {
		case KindAdd:
			e.curPath = re.Path
			e.hasCur = true
		case KindRemove:
			if !e.hasOld {
				e.oldPath = re.Path
				e.hasOld = true
			}
			e.hasCur = false
		}
	}

	out := make([]Event, 0, len(order))
	for _, nid := range order {
		e := entries[nid]
		switch {
		case e.hasOld && e.hasCur:
			out = append(out, Event{NID: nid, Kind: EventMove, OldPath: e.oldPath, Path: e.curPath})
		case e.hasOld && !e.hasCur:
			out = append(out, Event{NID: nid, Kind: EventRemove, OldPath: e.oldPath})
		case !e.hasOld && e.hasCur:
			out = append(out, Event{NID: nid, Kind: EventAdd, Path: e.curPath})
		}
	}
	return out
}
