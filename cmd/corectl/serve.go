package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openmined/corectl/internal/acl"
	"github.com/openmined/corectl/internal/cluster"
	"github.com/openmined/corectl/internal/config"
	"github.com/openmined/corectl/internal/hierarchy"
	"github.com/openmined/corectl/internal/itemstore"
	"github.com/openmined/corectl/internal/journal"
	"github.com/openmined/corectl/internal/lock"
	"github.com/openmined/corectl/internal/pathtrie"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lock registry and access-control engine against a watched directory",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(cmd)
	if err != nil {
		cmd.SilenceUsage = false
		return err
	}
	slog.Info("corectl config", "dotenvLoaded", dotenvLoaded, "config", cfg.LogValue())

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("serve: create data dir: %w", err)
	}

	hier := hierarchy.New()

	journalPath := cfg.Journal.Path
	if journalPath == "" {
		journalPath = filepath.Join(cfg.DataDir, "lock.journal")
	}
	fileStore := journal.NewFileStore(journalPath)

	auditPath := cfg.Journal.AuditDBPath
	if auditPath == "" {
		auditPath = filepath.Join(cfg.DataDir, "audit.db")
	}
	auditMirror, err := journal.OpenAuditMirror(auditPath)
	if err != nil {
		return fmt.Errorf("serve: open audit mirror: %w", err)
	}
	defer auditMirror.Close()

	ch, err := newClusterChannel(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("serve: cluster channel: %w", err)
	}
	defer ch.Close()

	origin, err := os.Hostname()
	if err != nil {
		origin = "corectl"
	}
	clusterNotifier := cluster.NewLockNotifier(ch, origin)

	registry := lock.New(hier,
		lock.WithJournal(fileStore),
		lock.WithCluster(clusterNotifier),
		lock.WithAudit(auditMirror),
	)
	if err := registry.Restore(); err != nil {
		return fmt.Errorf("serve: restore lock journal: %w", err)
	}
	registry.StartTimeoutWorker()
	defer registry.StopTimeoutWorker()
	hier.Subscribe(registry)

	provider := acl.NewProvider(acl.Config{
		OmitDefaultPermissions: cfg.ACL.OmitDefaultPermissions,
		EntryCollectorMaxSize:  cfg.ACL.CollectorMaxSize,
		ReadCacheMaxSize:       cfg.ACL.ReadCacheMaxSize,
	})
	if cfg.ACL.SeedFile != "" {
		sf, err := acl.LoadSeedFile(cfg.ACL.SeedFile)
		if err != nil {
			return fmt.Errorf("serve: load acl seed file: %w", err)
		}
		if err := sf.Apply(provider.Store); err != nil {
			return fmt.Errorf("serve: apply acl seed file: %w", err)
		}
	} else {
		provider.SeedRootPolicy(nil)
	}

	ch.SetHandler(&cluster.Dispatcher{Registry: registry, Policy: provider.Collector})
	hier.Subscribe(policyMoveSubscriber{provider.Store})
	hier.Subscribe(pathIndexSubscriber{hier: hier, file: filepath.Join(cfg.DataDir, pathIndexFileName)})

	watcher := hierarchy.NewWatcher(cfg.DataDir, hier)
	if err := watcher.Start(cmd.Context()); err != nil {
		return fmt.Errorf("serve: start filesystem watcher: %w", err)
	}
	defer watcher.Stop()

	slog.Info("corectl serving", "data_dir", cfg.DataDir, "cluster_mode", cfg.Cluster.Mode)
	<-cmd.Context().Done()
	slog.Info("corectl shutting down")
	return nil
}

// policyMoveSubscriber adapts acl.Store onto hierarchy.Subscriber so a node
// move invalidates ACL inheritance caches the same way it reconciles the
// lock registry (spec §4.9's PolicyMoved reacting to a hierarchy move).
type policyMoveSubscriber struct{ store *acl.Store }

func (p policyMoveSubscriber) Refresh(oldPath pathtrie.Path) {
	p.store.NotifyMove(oldPath)
}

// pathIndexFileName is the node-identity index the `lock status` CLI
// inspection command loads to resolve a path argument against a node identity minted
// by a (possibly no-longer-running) serve process's filesystem watcher.
const pathIndexFileName = "paths.json"

// pathIndexSubscriber mirrors the hierarchy service's live nid -> path map
// to disk on every structural change, so the standalone inspection
// command in lock.go can resolve paths without a running daemon.
// Best-effort: a write failure is logged, not fatal, since the journal and
// in-memory registries remain the source of truth while serve is up.
type pathIndexSubscriber struct {
	hier *hierarchy.Service
	file string
}

func (p pathIndexSubscriber) Refresh(pathtrie.Path) {
	snap := p.hier.Snapshot()
	mem := itemstore.NewMemory()
	for nid, path := range snap {
		mem.Put(nid, path)
	}
	if err := mem.SaveJSON(p.file); err != nil {
		slog.Error("path index persist failed", "error", err, "file", p.file)
	}
}

func newClusterChannel(ctx context.Context, cfg *config.Config) (cluster.Channel, error) {
	switch cfg.Cluster.Mode {
	case "websocket":
		return cluster.DialWSChannel(ctx, cfg.Cluster.Addr)
	default:
		return cluster.NewMemoryChannel(), nil
	}
}
