// Package pathtrie implements the path-indexed tree shared by the
// lock registry and the access-control engine.
package pathtrie

import (
	"strings"
)

// PathSep is the canonical separator between path segments.
const PathSep = "/"

// Segment identifies one step in a Path: a name plus a 1-based sibling
// index, distinguishing same-named siblings (same-name-sibling nodes).
type Segment struct {
	Name  string
	Index int
}

// Path is an ordered sequence of segments. The empty Path denotes the root.
type Path []Segment

// String renders the path using "name[index]" for any non-default sibling
// index and "name" otherwise, joined by PathSep.
func (p Path) String() string {
	if len(p) == 0 {
		return PathSep
	}
	parts := make([]string, len(p))
	for i, seg := range p {
		if seg.Index > 1 {
			parts[i] = seg.Name + "[" + itoa(seg.Index) + "]"
		} else {
			parts[i] = seg.Name
		}
	}
	return PathSep + strings.Join(parts, PathSep)
}

// Equal reports whether two paths denote the same node.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p Path) IsAncestorOf(other Path) bool {
	if len(p) >= len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Parent returns the path's parent and true, or the root and false if p is
// already the root.
func (p Path) Parent() (Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1], true
}

// RelativeTo renders p's segment names, joined by PathSep with no leading
// separator, starting after base's length (e.g. base "/a", p "/a/b/c" ->
// "b/c"). The second result is false if base is not p itself or an
// ancestor of p. Used to test an entry's glob path filter, which is
// expressed relative to the access-controlled node the entry is defined
// on rather than as an absolute path.
func (p Path) RelativeTo(base Path) (string, bool) {
	if len(base) > len(p) {
		return "", false
	}
	for i := range base {
		if base[i] != p[i] {
			return "", false
		}
	}
	if len(p) == len(base) {
		return "", true
	}
	names := make([]string, 0, len(p)-len(base))
	for _, seg := range p[len(base):] {
		names = append(names, seg.Name)
	}
	return strings.Join(names, PathSep), true
}

// ParseSimple splits a plain slash-separated string into a Path where every
// segment has sibling index 1. It does not resolve same-name-sibling
// indices; callers that need SNS semantics should build a Path directly.
func ParseSimple(s string) Path {
	s = strings.Trim(s, PathSep)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, PathSep)
	segs := make(Path, len(parts))
	for i, name := range parts {
		segs[i] = Segment{Name: name, Index: 1}
	}
	return segs
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
