package acl

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openmined/corectl/internal/pathtrie"
)

// SeedEntry is one YAML-declared ACE for a seed policy file, grounded on
// the teacher's internal/aclspec.RuleSet YAML shape (a path plus an
// ordered rule list), adapted from glob-rule access control to this
// engine's principal/privilege entries.
type SeedEntry struct {
	Principal  string   `yaml:"principal"`
	Allow      bool     `yaml:"allow"`
	Privileges []string `yaml:"privileges"`
	PathGlob   string   `yaml:"pathGlob,omitempty"`
}

// SeedPolicy is one access-controlled node's bulk-loaded policy: the node
// path the entries attach to, plus the entries themselves in list order.
type SeedPolicy struct {
	Path    string      `yaml:"path"`
	Entries []SeedEntry `yaml:"entries"`
}

// SeedFile is the top-level YAML document a deployment supplies to
// pre-populate ACLs beyond the single default root policy SeedRootPolicy
// installs (spec §4.10 only covers the root; everything else is this
// enrichment).
type SeedFile struct {
	Policies []SeedPolicy `yaml:"policies"`
}

// LoadSeedFile reads and parses a seed policy document from path.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("acl: open seed file %s: %w", path, err)
	}
	defer f.Close()
	return LoadSeedReader(f)
}

// LoadSeedReader parses a seed policy document from r.
func LoadSeedReader(r io.Reader) (*SeedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("acl: read seed file: %w", err)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("acl: parse seed file: %w", err)
	}
	return &sf, nil
}

// Apply installs every policy in sf into store, in document order, via
// AddEntryGlob so existing entries merge per spec §4.6 rather than being
// silently overwritten by a re-applied seed file. An unrecognized
// privilege name is a hard error: a seed file is operator-authored
// configuration, not untrusted input to degrade gracefully for.
func (sf *SeedFile) Apply(store *Store) error {
	for _, policy := range sf.Policies {
		path := pathtrie.ParseSimple(policy.Path)
		for _, e := range policy.Entries {
			var bits PrivBits
			for _, name := range e.Privileges {
				b, ok := PrivilegeByName(name)
				if !ok {
					return fmt.Errorf("acl: seed file: unknown privilege %q for principal %q at %q", name, e.Principal, policy.Path)
				}
				bits |= b
			}
			store.AddEntryGlob(path, e.Principal, e.Allow, bits, e.PathGlob)
		}
	}
	return nil
}
