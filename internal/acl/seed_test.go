package acl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/corectl/internal/pathtrie"
)

const seedYAML = `
policies:
  - path: /
    entries:
      - principal: everyone
        allow: true
        privileges: [READ]
  - path: /docs
    entries:
      - principal: writers
        allow: true
        privileges: [READ, MODIFY_PROPERTIES]
        pathGlob: "**"
`

func TestLoadSeedReaderAndApply(t *testing.T) {
	sf, err := LoadSeedReader(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, sf.Policies, 2)

	store := NewStore()
	require.NoError(t, sf.Apply(store))

	rootACL, ok := store.ACLAt(pathtrie.Path{})
	require.True(t, ok)
	entries := rootACL.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "everyone", entries[0].Principal)
	assert.Equal(t, PrivRead, entries[0].Privs)

	docsACL, ok := store.ACLAt(pathtrie.ParseSimple("/docs"))
	require.True(t, ok)
	docsEntries := docsACL.Entries()
	require.Len(t, docsEntries, 1)
	assert.Equal(t, "**", docsEntries[0].PathGlob)
	assert.Equal(t, PrivRead|PrivModifyProperties, docsEntries[0].Privs)
}

func TestSeedFileApplyRejectsUnknownPrivilege(t *testing.T) {
	sf := &SeedFile{Policies: []SeedPolicy{
		{Path: "/", Entries: []SeedEntry{{Principal: "p", Allow: true, Privileges: []string{"NOT_A_PRIVILEGE"}}}},
	}}

	store := NewStore()
	err := sf.Apply(store)
	assert.Error(t, err)
}
