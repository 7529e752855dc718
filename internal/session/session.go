// Package session models the external session-lifecycle collaborator: an
// authenticated caller identity that lock and ACL operations are scoped to,
// and whose logout the core must react to (release session-scoped locks,
// detach open-scoped ones).
package session

import "github.com/google/uuid"

// Handle identifies one authenticated session. Two Handles compare equal
// iff they name the same session.
type Handle struct {
	id uuid.UUID
}

// New returns a fresh, unique session Handle.
func New() Handle {
	return Handle{id: uuid.New()}
}

// System is the well-known handle the lock registry temporarily assigns
// itself when expiring a lock whose session has already detached.
var System = Handle{id: uuid.Nil}

// String renders the handle for logging.
func (h Handle) String() string {
	return h.id.String()
}

// IsSystem reports whether h is the reserved system handle.
func (h Handle) IsSystem() bool {
	return h.id == uuid.Nil
}

// Principals carries the resolved principal names (user + group names) for
// an authenticated session, as produced by the external principal
// resolver collaborator.
type Principals struct {
	Handle Handle
	Names  []string
}

// Resolver enumerates principals and group memberships for a session. It is
// an external collaborator; this module only consumes it.
type Resolver interface {
	Resolve(h Handle) (Principals, error)
}

// Lifecycle is notified when a session ends so that session-scoped state can
// be cleaned up.
type Lifecycle interface {
	OnLogout(func(Handle))
}
