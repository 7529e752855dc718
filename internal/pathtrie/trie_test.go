package pathtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriePutAndMapExact(t *testing.T) {
	trie := New[string]()
	path := ParseSimple("a/b/c")

	trie.Put(path, "payload")

	node, ok := trie.Map(path, true)
	require.True(t, ok)
	val, has := node.Payload()
	require.True(t, has)
	assert.Equal(t, "payload", val)
}

func TestTrieMapExactMissing(t *testing.T) {
	trie := New[string]()
	trie.Put(ParseSimple("a/b"), "x")

	_, ok := trie.Map(ParseSimple("a/b/c"), true)
	assert.False(t, ok)
}

func TestTrieMapNearestAncestor(t *testing.T) {
	trie := New[string]()
	trie.Put(ParseSimple("a"), "root-payload")

	node, exact := trie.Map(ParseSimple("a/b/c"), false)
	require.NotNil(t, node)
	assert.False(t, exact)
	val, _ := node.Payload()
	assert.Equal(t, "root-payload", val)
}

func TestTrieMapNearestAncestorExactMatch(t *testing.T) {
	trie := New[string]()
	trie.Put(ParseSimple("a/b"), "payload")

	node, exact := trie.Map(ParseSimple("a/b"), false)
	require.NotNil(t, node)
	assert.True(t, exact)
	val, _ := node.Payload()
	assert.Equal(t, "payload", val)
}

func TestTriePutPreservesChildren(t *testing.T) {
	trie := New[string]()
	trie.Put(ParseSimple("a/b/c"), "leaf")
	trie.Put(ParseSimple("a"), "root")

	node, ok := trie.Map(ParseSimple("a/b/c"), true)
	require.True(t, ok)
	val, _ := node.Payload()
	assert.Equal(t, "leaf", val)
}

func TestTrieRemoveSubtree(t *testing.T) {
	trie := New[string]()
	trie.Put(ParseSimple("a/b/c"), "leaf")

	removed := trie.RemoveSubtree(ParseSimple("a/b"))
	assert.True(t, removed)

	_, ok := trie.Map(ParseSimple("a/b/c"), true)
	assert.False(t, ok)
}

func TestTrieRemoveSubtreeMissing(t *testing.T) {
	trie := New[string]()
	assert.False(t, trie.RemoveSubtree(ParseSimple("nope")))
}

func TestTrieTraverseCountsAllNodes(t *testing.T) {
	trie := New[string]()
	trie.Put(ParseSimple("a/b"), "1")
	trie.Put(ParseSimple("a/c"), "2")

	count := 0
	trie.Traverse(func(n *Node[string]) { count++ }, true)

	// root, a, a/b, a/c
	assert.Equal(t, 4, count)
}

func TestSameNameSiblingsDistinctByIndex(t *testing.T) {
	trie := New[string]()
	p1 := Path{{Name: "item", Index: 1}}
	p2 := Path{{Name: "item", Index: 2}}

	trie.Put(p1, "first")
	trie.Put(p2, "second")

	n1, ok := trie.Map(p1, true)
	require.True(t, ok)
	n2, ok := trie.Map(p2, true)
	require.True(t, ok)

	v1, _ := n1.Payload()
	v2, _ := n2.Payload()
	assert.Equal(t, "first", v1)
	assert.Equal(t, "second", v2)
}

func TestPathEqualAndAncestor(t *testing.T) {
	a := ParseSimple("a/b")
	b := ParseSimple("a/b")
	c := ParseSimple("a/b/c")

	assert.True(t, a.Equal(b))
	assert.True(t, a.IsAncestorOf(c))
	assert.False(t, c.IsAncestorOf(a))
}
