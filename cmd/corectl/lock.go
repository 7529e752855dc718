package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openmined/corectl/internal/config"
	"github.com/openmined/corectl/internal/itemstore"
	"github.com/openmined/corectl/internal/journal"
	"github.com/openmined/corectl/internal/lock"
	"github.com/openmined/corectl/internal/pathtrie"
	"github.com/openmined/corectl/internal/session"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect lock state without a running serve process",
}

var lockStatusCmd = &cobra.Command{
	Use:   "status <path>",
	Short: "Report whether a path is locked, per the persisted journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockStatus,
}

func init() {
	lockCmd.AddCommand(lockStatusCmd)
}

// runLockStatus rebuilds a registry purely from the on-disk journal and the
// node-identity index a serve process last wrote (see pathIndexSubscriber
// in serve.go), then answers the same CheckLock query a live node would.
// If serve has never run against this data directory, the index is empty,
// no journal record resolves, and the path is reported as not locked. If a
// deep lock covers a path the index has not observed, the command reports
// it locked and says that owner detail is unavailable.
func runLockStatus(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	resolver, err := itemstore.LoadJSON(filepath.Join(cfg.DataDir, pathIndexFileName))
	if err != nil {
		return fmt.Errorf("lock status: load path index: %w", err)
	}

	journalPath := cfg.Journal.Path
	if journalPath == "" {
		journalPath = filepath.Join(cfg.DataDir, "lock.journal")
	}
	registry := lock.New(resolver, lock.WithJournal(journal.NewFileStore(journalPath)))
	if err := registry.Restore(); err != nil {
		return fmt.Errorf("lock status: restore journal: %w", err)
	}

	path := pathtrie.ParseSimple(args[0])
	checkErr := registry.CheckLock(path, session.New())
	if checkErr == nil {
		fmt.Printf("%s: not locked\n", args[0])
		return nil
	}
	if !errors.Is(checkErr, lock.ErrLocked) {
		return fmt.Errorf("lock status: %w", checkErr)
	}

	nid, ok := resolver.Lookup(path)
	if !ok {
		fmt.Printf("%s: locked (path index predates this path; owner detail unavailable)\n", args[0])
		return nil
	}
	rec, ok := registry.GetLock(nid)
	if !ok {
		fmt.Printf("%s: locked\n", args[0])
		return nil
	}
	fmt.Printf("%s: locked by %s (deep=%t session_scoped=%t created=%s)\n",
		args[0], rec.Owner, rec.Deep, rec.SessionScoped, rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
