package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alejandrodnm/propedge/config"
	"github.com/alejandrodnm/propedge/internal/adapters/cache"
	"github.com/alejandrodnm/propedge/internal/dataset"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "backfill":
		code = runBackfill(os.Args[2:])
	case "status":
		code = runStatus(os.Args[2:])
	case "plan":
		code = runPlan(os.Args[2:])
	case "usage":
		code = runUsage(os.Args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage(os.Stderr)
		code = 2
	}
	os.Exit(code)
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, `propedge — snapshot-first prop odds datasets and execution plans

Usage:
  propedge backfill [flags]   acquire day snapshots under the spend policy
  propedge status   [flags]   report per-day completeness from cache
  propedge plan     [flags]   generate the execution plan for a day
  propedge usage    [flags]   summarize provider credit usage

Exit codes: 0 complete, 1 degraded/partial, 2 hard failure.
Run 'propedge <command> -h' for command flags.`)
}

// appDeps agrupa las dependencias compartidas por los subcomandos.
type appDeps struct {
	cfg    *config.Config
	store  *cache.SnapshotStore
	global *cache.GlobalCacheStore
	index  *dataset.Index
}

// buildDeps carga la configuración y abre los stores locales.
func buildDeps(configPath string, verbose bool, logFormat string) (*appDeps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	setupLogger(cfg.Log)

	store, err := cache.NewSnapshotStore(cfg.Storage.DataRoot)
	if err != nil {
		return nil, err
	}
	global, err := cache.NewGlobalCacheStore(cfg.Storage.DataRoot)
	if err != nil {
		return nil, err
	}
	return &appDeps{
		cfg:    cfg,
		store:  store,
		global: global,
		index:  dataset.NewIndex(cfg.Storage.DataRoot),
	}, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
