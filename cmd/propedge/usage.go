package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/console"
	"github.com/alejandrodnm/propedge/internal/adapters/ledger"
	"github.com/alejandrodnm/propedge/internal/pipeline"
)

func runUsage(args []string) int {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional)")
	days := fs.Int("days", 30, "summarize the last N days")
	verbose := fs.Bool("verbose", false, "set log level to debug")
	logFormat := fs.String("format", "", "log format: text|json (overrides config)")
	fs.Parse(args)

	deps, err := buildDeps(*configPath, *verbose, *logFormat)
	if err != nil {
		slog.Error("failed to set up", "err", err)
		return pipeline.RunFailed.ExitCode()
	}
	cfg := deps.cfg

	usage, err := ledger.NewSQLiteLedger(cfg.Storage.LedgerDSN)
	if err != nil {
		slog.Error("failed to open usage ledger", "err", err, "dsn", cfg.Storage.LedgerDSN)
		return pipeline.RunFailed.ExitCode()
	}
	defer usage.Close()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -*days)
	summary, err := usage.Summarize(context.Background(), from, to)
	if err != nil {
		slog.Error("failed to summarize usage", "err", err)
		return pipeline.RunFailed.ExitCode()
	}

	console.New(os.Stdout).PrintUsage(from, to, summary)
	return pipeline.RunComplete.ExitCode()
}
