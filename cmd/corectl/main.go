package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openmined/corectl/internal/config"
	"github.com/openmined/corectl/internal/corelog"
	"github.com/openmined/corectl/internal/version"
)

var dotenvLoaded bool

var rootCmd = &cobra.Command{
	Use:     "corectl",
	Short:   "Content repository lock and access-control core",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "f", "", "Path to config file (e.g. config.yaml)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", config.DefaultDataDir, "Directory for journal, audit db, and watched content")
	rootCmd.PersistentFlags().String("cluster-addr", config.DefaultClusterAddr, "Cluster peer address (websocket mode only)")

	rootCmd.AddCommand(serveCmd, auditCmd, lockCmd, aclCmd)

	if err := godotenv.Load(".env"); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Println("error loading .env file", err)
			os.Exit(1)
		}
	} else {
		dotenvLoaded = true
	}
}

func main() {
	corelog.Setup(corelog.EnvFromString(os.Getenv("CORE_ENV")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
