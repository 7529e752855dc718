// Package cluster implements the cluster channel external collaborator
// named throughout the spec: inbound events a peer node announces
// (externalLock, externalUnlock, externalPolicyChange) bypass
// transactional overlays and apply directly to the local registry/ACL
// store.
package cluster

import (
	"time"

	"github.com/openmined/corectl/internal/ident"
)

// EventKind identifies which of the three inbound cluster events a
// message carries (spec §6).
type EventKind string

const (
	EventExternalLock          EventKind = "externalLock"
	EventExternalUnlock        EventKind = "externalUnlock"
	EventExternalPolicyChange  EventKind = "externalPolicyChange"
)

// Event is the wire envelope for a cluster channel message.
type Event struct {
	Kind EventKind `json:"kind"`

	NID         ident.NID     `json:"nid"`
	Deep        bool          `json:"deep,omitempty"`
	Owner       string        `json:"owner,omitempty"`
	TimeoutHint time.Duration `json:"timeoutHint,omitempty"`

	PolicyChangeKind string `json:"policyChangeKind,omitempty"`

	Origin string `json:"origin"`
}

// Handler reacts to inbound cluster events. Implemented by whatever glue
// wires a Channel to the lock registry and ACL store.
type Handler interface {
	HandleClusterEvent(Event)
}
