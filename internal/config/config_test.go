package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringP("config", "f", "", "")
	cmd.Flags().StringP("data-dir", "d", DefaultDataDir, "")
	cmd.Flags().String("cluster-addr", DefaultClusterAddr, "")
	return cmd
}

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cmd := testCommand()
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultClusterAddr, cfg.Cluster.Addr)
	assert.Equal(t, "memory", cfg.Cluster.Mode)
	assert.Equal(t, DefaultLockTimeoutIntervalMs, cfg.Locks.TimeoutIntervalMs)
	assert.Equal(t, DefaultCollectorMaxSize, cfg.ACL.CollectorMaxSize)
	assert.False(t, cfg.ACL.OmitDefaultPermissions)
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	yaml := "data_dir: /srv/corectl\ncluster:\n  addr: cluster.internal:9090\n  mode: websocket\nlocks:\n  timeout_interval_ms: 5000\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("config", path))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "/srv/corectl", cfg.DataDir)
	assert.Equal(t, "cluster.internal:9090", cfg.Cluster.Addr)
	assert.Equal(t, "websocket", cfg.Cluster.Mode)
	assert.Equal(t, 5000, cfg.Locks.TimeoutIntervalMs)
}

func TestLoadRejectsMissingExplicitConfigFile(t *testing.T) {
	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("config", "/nonexistent/config.yaml"))

	_, err := Load(cmd)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidClusterMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster:\n  mode: carrier-pigeon\n"), 0o644))

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("config", path))

	_, err := Load(cmd)
	assert.Error(t, err)
}

func TestLockTimeoutIntervalConvertsMillisecondsToDuration(t *testing.T) {
	cfg := &Config{Locks: LocksConfig{TimeoutIntervalMs: 2500}}
	assert.Equal(t, 2500*1e6, float64(cfg.LockTimeoutInterval()))
}
