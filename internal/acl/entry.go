package acl

import "github.com/bmatcuk/doublestar/v4"

// Entry is one (principal, allow/deny, privilege-bits) triple within an
// ACL (spec §3/§4.6), optionally restricted to a subset of the
// access-controlled node's descendants via a glob path filter (spec
// §4.7). An empty PathGlob applies to the node itself and everything
// beneath it.
type Entry struct {
	Principal string
	Allow     bool
	Privs     PrivBits
	PathGlob  string
}

// Matches reports whether the entry's glob path filter covers relPath, the
// path of some node expressed relative to the access-controlled node the
// entry is defined on (see pathtrie.Path.RelativeTo). A malformed glob
// never matches, the same failure mode doublestar.Match itself returns.
func (e Entry) Matches(relPath string) bool {
	if e.PathGlob == "" {
		return true
	}
	ok, err := doublestar.Match(e.PathGlob, relPath)
	return err == nil && ok
}

// ACL is the ordered sequence of entries bound to one access-controlled
// node (C6). Order matters: ties are resolved first-match, so the entry
// list preserves insertion order rather than being resorted.
type ACL struct {
	entries []Entry
}

// NewACL creates an empty ACL.
func NewACL() *ACL {
	return &ACL{}
}

// NewACLFromEntries builds an ACL directly from entries in the given
// order, without applying AddEntry's merge/normalization rules. Used when
// loading previously-persisted ACL content, which may already contain
// entries recorded before normalization was applied, or scenarios a test
// wants to exercise directly against the compiler (spec §4.8's
// deny-before-allow first-match rule applies regardless of how a list
// came to contain contradicting entries).
func NewACLFromEntries(entries []Entry) *ACL {
	a := &ACL{entries: append([]Entry(nil), entries...)}
	return a
}

// Entries returns a copy of the ACL's entries in list order.
func (a *ACL) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// AddEntry installs privs as an allow or deny grant for principal with no
// glob path filter. See AddEntryGlob.
func (a *ACL) AddEntry(principal string, allow bool, privs PrivBits) {
	a.AddEntryGlob(principal, allow, privs, "")
}

// AddEntryGlob installs privs as an allow or deny grant for principal,
// restricted to descendants matching glob ("" matches everything),
// implementing the merge rules of spec §4.6:
//  1. if an existing (principal, allow, glob) entry already covers privs,
//     no-op;
//  2. otherwise OR-merge privs into that entry (creating it if absent),
//     keeping the earliest involved insertion index;
//  3. subtract the newly granted bits from the opposite-polarity entry
//     for the same (principal, glob), removing it entirely if it becomes
//     empty.
//
// Entries with different glob filters for the same principal are distinct:
// they scope different sets of descendants, so merging or subtracting
// across them would silently widen or narrow a grant the caller never
// asked for.
func (a *ACL) AddEntryGlob(principal string, allow bool, privs PrivBits, glob string) {
	sameIdx := a.indexOf(principal, allow, glob)
	if sameIdx >= 0 && a.entries[sameIdx].Privs&privs == privs {
		return
	}

	if sameIdx >= 0 {
		a.entries[sameIdx].Privs |= privs
	} else {
		a.entries = append(a.entries, Entry{Principal: principal, Allow: allow, Privs: privs, PathGlob: glob})
		sameIdx = len(a.entries) - 1
	}

	oppIdx := a.indexOf(principal, !allow, glob)
	if oppIdx >= 0 {
		a.entries[oppIdx].Privs &^= privs
		if a.entries[oppIdx].Privs == 0 {
			a.entries = append(a.entries[:oppIdx], a.entries[oppIdx+1:]...)
			if sameIdx > oppIdx {
				sameIdx--
			}
		}
	}
}

// RemoveEntry deletes the (principal, allow, glob="") entry entirely, if
// present. See RemoveEntryGlob for glob-scoped entries.
func (a *ACL) RemoveEntry(principal string, allow bool) {
	a.RemoveEntryGlob(principal, allow, "")
}

// RemoveEntryGlob deletes the (principal, allow, glob) entry entirely, if
// present.
func (a *ACL) RemoveEntryGlob(principal string, allow bool, glob string) {
	idx := a.indexOf(principal, allow, glob)
	if idx < 0 {
		return
	}
	a.entries = append(a.entries[:idx], a.entries[idx+1:]...)
}

func (a *ACL) indexOf(principal string, allow bool, glob string) int {
	for i, e := range a.entries {
		if e.Principal == principal && e.Allow == allow && e.PathGlob == glob {
			return i
		}
	}
	return -1
}

// Empty reports whether the ACL carries no entries (the
// "policy-node-present, empty" state of spec §4.10's state machine).
func (a *ACL) Empty() bool {
	return len(a.entries) == 0
}
