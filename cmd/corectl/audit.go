package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openmined/corectl/internal/journal"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit <token>",
	Short: "List recent lock/unlock history for a token from the audit database",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum number of rows to print")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	dbPath := filepath.Join(dataDir, "audit.db")

	mirror, err := journal.OpenAuditMirror(dbPath)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", dbPath, err)
	}
	defer mirror.Close()

	rows, err := mirror.RecentForToken(args[0], auditLimit)
	if err != nil {
		return fmt.Errorf("audit: query: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("no audit history for token")
		return nil
	}
	for _, row := range rows {
		fmt.Printf("%s  %-6s  owner=%-20s deep=%-5t session_scoped=%-5t\n",
			row.RecordedAt.Format("2006-01-02T15:04:05Z07:00"), row.Action, row.Owner, row.Deep, row.SessionScoped)
	}
	return nil
}
