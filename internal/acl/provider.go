package acl

import (
	"log/slog"

	"github.com/openmined/corectl/internal/pathtrie"
)

const (
	// AdministratorsPrincipal is the designated principal the default
	// root policy grants ALL to, if it exists.
	AdministratorsPrincipal = "administrators"
	// EveryonePrincipal is the designated principal the default root
	// policy grants READ to unconditionally.
	EveryonePrincipal = "everyone"
)

// Config carries the policy provider's recognized options (spec §6).
type Config struct {
	OmitDefaultPermissions bool
	EntryCollectorMaxSize  int
	ReadCacheMaxSize       int
}

// KnownPrincipals resolves whether a principal name is registered, used
// to decide whether the administrators grant should be installed.
type KnownPrincipals interface {
	Exists(name string) bool
}

// Provider is the Policy Provider (C10): orchestrates the Store,
// Collector, and Notifier, and seeds a workspace's root policy on
// initialization.
type Provider struct {
	Store     *Store
	Collector *Collector
	Notifier  *Notifier
	cfg       Config
}

// NewProvider wires a fresh Store/Collector/Notifier triple per cfg.
func NewProvider(cfg Config) *Provider {
	store := NewStore()
	collector := NewCollector(store, cfg.EntryCollectorMaxSize)
	notifier := NewNotifier(collector)
	store.Subscribe(notifier)
	return &Provider{Store: store, Collector: collector, Notifier: notifier, cfg: cfg}
}

// NewPermissions compiles a fresh Permissions evaluator for principals,
// observed by the provider's notifier.
func (p *Provider) NewPermissions(principals []string) *Permissions {
	perm := NewPermissions(p.Collector, principals, p.cfg.ReadCacheMaxSize)
	p.Notifier.Observe(perm)
	return perm
}

// SeedRootPolicy installs the default root policy described in spec
// §4.10 unless OmitDefaultPermissions is set or the root already carries
// a policy: grant ALL to administrators (only if that principal is
// known) and READ to everyone.
func (p *Provider) SeedRootPolicy(known KnownPrincipals) {
	if p.cfg.OmitDefaultPermissions {
		return
	}
	root := pathtrie.Path{}
	if p.Store.IsAccessControlled(root) {
		return
	}

	if known == nil || known.Exists(AdministratorsPrincipal) {
		p.Store.AddEntry(root, AdministratorsPrincipal, true, PrivAll)
	} else {
		slog.Warn("administrators principal not found, skipping default ALL grant")
	}
	p.Store.AddEntry(root, EveryonePrincipal, true, PrivRead)
}
