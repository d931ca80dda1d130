// Command redlite launches the RESP2 server (spec's AMBIENT STACK CLI
// launcher section): load configuration from defaults + REDLITE_*
// environment variables + flags, open the storage engine, and serve
// until SIGINT/SIGTERM, mirroring the teacher's cmd/serve main.go
// process-lifecycle idiom.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-redlite/redlite/internal/config"
	"github.com/go-redlite/redlite/internal/dispatch"
	_ "github.com/go-redlite/redlite/internal/modules"
	"github.com/go-redlite/redlite/internal/notify"
	"github.com/go-redlite/redlite/internal/pubsub"
	"github.com/go-redlite/redlite/internal/rkit/configfx"
	"github.com/go-redlite/redlite/internal/rkit/logfx"
	"github.com/go-redlite/redlite/internal/rkit/processfx"
	"github.com/go-redlite/redlite/internal/server"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
	"github.com/go-redlite/redlite/internal/vacuum"
)

func main() {
	rootCmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "redlite",
		Short: "A Redis-wire-compatible server backed by a relational store",
		Long:  `redlite speaks RESP2 and persists every key to a SQL database instead of an in-memory heap.`,
		RunE:  run,
	}

	rootCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:6379)")
	rootCmd.Flags().String("db", "", "database file path, or :memory: (default redlite.db)")
	rootCmd.Flags().String("password", "", "require AUTH with this password")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) //nolint:forbidigo
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.Config

	manager := configfx.NewConfigManager()
	if err := manager.LoadDefaults(&cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	applyFlagOverrides(cmd, &cfg)

	logger := logfx.NewLogger(
		logfx.WithConfig(&cfg.Log),
		logfx.WithScopeName("redlite"),
	)
	logger.SetAsDefault()

	baseCtx := context.Background()

	store, err := storage.Open(baseCtx, cfg.DB)
	if err != nil {
		logger.ErrorContext(baseCtx, "failed to open storage", slog.Any("error", err))

		return fmt.Errorf("opening storage: %w", err)
	}

	hub := notify.New()
	store.SetNotifier(hub)

	ps := pubsub.New()
	pool := session.NewPool()

	dcfg := dispatch.NewConfig(cfg.Password)
	dcfg.Set("maxdisk", formatUintFlag(cfg.MaxDisk))
	dcfg.Set("maxmemory", formatUintFlag(cfg.MaxMemory))
	dcfg.Set("maxmemory-policy", cfg.MaxMemoryPolicy)
	dcfg.Set("persist-access-tracking", formatBoolFlag(cfg.PersistAccessTracking))
	dcfg.Set("access-flush-interval", formatIntFlag(cfg.AccessFlushInterval))
	dcfg.SetAutoVacuum(cfg.AutoVacuum, cfg.AutoVacuumInterval)

	d := dispatch.New(store, hub, ps, pool, dcfg)

	srv := server.New(cfg.Addr, d, pool, logger)

	process := processfx.New(baseCtx, logger)

	process.StartGoroutine("resp-server", srv.Serve)
	process.StartGoroutine("vacuum", vacuum.Loop(store, dcfg, logger))

	process.Wait()
	process.Shutdown()

	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}

	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DB = v
	}

	if v, _ := cmd.Flags().GetString("password"); v != "" {
		cfg.Password = v
	}
}

func formatUintFlag(n uint64) string {
	return fmt.Sprintf("%d", n)
}

func formatIntFlag(n int64) string {
	return fmt.Sprintf("%d", n)
}

func formatBoolFlag(b bool) string {
	if b {
		return "true"
	}

	return "false"
}
