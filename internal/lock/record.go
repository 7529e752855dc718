package lock

import (
	"math"
	"time"

	"github.com/openmined/corectl/internal/ident"
	"github.com/openmined/corectl/internal/session"
)

// InfiniteTimeout marks a lock record that never expires.
const InfiniteTimeout = time.Duration(math.MaxInt64)

// Record is the payload the lock trie carries at the node a lock is rooted
// on (spec §3 "Lock Record"). It is always addressed by the NID of the
// node it locks; the trie maps the node's current path to it.
type Record struct {
	HolderNID     ident.NID
	Deep          bool
	SessionScoped bool
	Owner         string
	TimeoutHint   time.Duration
	CreatedAt     time.Time
	Live          bool
	HolderSession *session.Handle
}

// Token returns the wire-format lock token for this record.
func (r *Record) Token() string {
	return ident.EncodeToken(r.HolderNID)
}

// expiresAt returns the instant the record's timeout hint elapses, or the
// zero time if it never expires.
func (r *Record) expiresAt() time.Time {
	if r.TimeoutHint == InfiniteTimeout {
		return time.Time{}
	}
	return r.CreatedAt.Add(r.TimeoutHint)
}

func (r *Record) expired(now time.Time) bool {
	deadline := r.expiresAt()
	return !deadline.IsZero() && now.After(deadline)
}

func (r *Record) clone() *Record {
	cp := *r
	if r.HolderSession != nil {
		h := *r.HolderSession
		cp.HolderSession = &h
	}
	return &cp
}
