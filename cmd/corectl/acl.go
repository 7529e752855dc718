package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openmined/corectl/internal/acl"
	"github.com/openmined/corectl/internal/config"
	"github.com/openmined/corectl/internal/pathtrie"
)

var aclCmd = &cobra.Command{
	Use:   "acl",
	Short: "Inspect access-control policy without a running serve process",
}

var aclExplainCmd = &cobra.Command{
	Use:   "explain <path> <principal>",
	Short: "Show the compiled permissions a principal has at a path",
	Args:  cobra.ExactArgs(2),
	RunE:  runACLExplain,
}

func init() {
	aclCmd.AddCommand(aclExplainCmd)
}

// runACLExplain compiles permissions the same way the ACL engine would for
// a live session, seeded from the deployment's seed file (or the default
// root policy if none is configured). Since the ACL store itself is never
// journaled (spec: node-scoped entries live only in the item store's own
// policy nodes, out of scope for this core), this reflects the
// declaratively seeded policy tree, not a running process's in-memory
// mutations made since startup.
func runACLExplain(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	provider := acl.NewProvider(acl.Config{
		OmitDefaultPermissions: cfg.ACL.OmitDefaultPermissions,
		EntryCollectorMaxSize:  cfg.ACL.CollectorMaxSize,
		ReadCacheMaxSize:       cfg.ACL.ReadCacheMaxSize,
	})
	if cfg.ACL.SeedFile != "" {
		sf, err := acl.LoadSeedFile(cfg.ACL.SeedFile)
		if err != nil {
			return fmt.Errorf("acl explain: load seed file: %w", err)
		}
		if err := sf.Apply(provider.Store); err != nil {
			return fmt.Errorf("acl explain: apply seed file: %w", err)
		}
	} else {
		provider.SeedRootPolicy(nil)
	}

	path := pathtrie.ParseSimple(args[0])
	principal := args[1]

	perm := provider.NewPermissions([]string{principal})
	result := perm.Build(path)

	fmt.Printf("%s as %s:\n", args[0], principal)
	fmt.Printf("  permissions allow: %s\n", formatPerms(result.Allows))
	fmt.Printf("  permissions deny:  %s\n", formatPerms(result.Denies))
	fmt.Printf("  privileges allow:  %s\n", formatPrivs(result.AllowPrivs))
	fmt.Printf("  privileges deny:   %s\n", formatPrivs(result.DenyPrivs))
	fmt.Printf("  can read: %t\n", result.CanPerform(acl.PermRead))
	return nil
}

var permNames = []struct {
	bit  acl.PermBits
	name string
}{
	{acl.PermReadNode, "read_node"},
	{acl.PermReadProperty, "read_property"},
	{acl.PermAddNode, "add_node"},
	{acl.PermRemoveNode, "remove_node"},
	{acl.PermSetProperty, "set_property"},
	{acl.PermRemoveProperty, "remove_property"},
	{acl.PermReadAC, "read_ac"},
	{acl.PermWriteAC, "write_ac"},
}

func formatPerms(bits acl.PermBits) string {
	var names []string
	for _, p := range permNames {
		if bits&p.bit != 0 {
			names = append(names, p.name)
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

var privNames = []struct {
	name string
	bit  acl.PrivBits
}{
	{"READ", acl.PrivRead},
	{"MODIFY_PROPERTIES", acl.PrivModifyProperties},
	{"ADD_CHILD_NODES", acl.PrivAddChildNodes},
	{"REMOVE_CHILD_NODES", acl.PrivRemoveChildNodes},
	{"REMOVE_NODE", acl.PrivRemoveNode},
	{"READ_AC", acl.PrivReadAC},
	{"MODIFY_AC", acl.PrivModifyAC},
	{"LOCK_MANAGEMENT", acl.PrivLockManagement},
	{"VERSION_MANAGEMENT", acl.PrivVersionManagement},
	{"NODE_TYPE_MANAGEMENT", acl.PrivNodeTypeManagement},
}

func formatPrivs(bits acl.PrivBits) string {
	var names []string
	for _, p := range privNames {
		if bits&p.bit != 0 {
			names = append(names, p.name)
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
