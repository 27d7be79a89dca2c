package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/console"
	"github.com/alejandrodnm/propedge/internal/adapters/ledger"
	"github.com/alejandrodnm/propedge/internal/adapters/oddsapi"
	"github.com/alejandrodnm/propedge/internal/dataset"
	"github.com/alejandrodnm/propedge/internal/normalize"
	"github.com/alejandrodnm/propedge/internal/pipeline"
	"github.com/alejandrodnm/propedge/internal/ports"
)

func runBackfill(args []string) int {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional)")
	days := fs.Int("days", 1, "backfill the last N days ending today")
	from := fs.String("from", "", "range start day YYYY-MM-DD (requires -to)")
	to := fs.String("to", "", "range end day YYYY-MM-DD (requires -from)")
	offline := fs.Bool("offline", false, "never touch the network; any cache miss is a hard miss")
	noSpend := fs.Bool("no-spend", false, "block paid calls; report misses as spend_blocked")
	maxCredits := fs.Int("max-credits", 0, "credit budget for this run (0 = config default)")
	refresh := fs.Bool("refresh", false, "ignore cached responses and re-fetch")
	resume := fs.Bool("resume", true, "skip requests already resolved in earlier runs")
	force := fs.Bool("force", false, "allow exceeding the estimated budget")
	dryRun := fs.Bool("dry-run", false, "estimate cost without paid fetches")
	workers := fs.Int("workers", 0, "concurrent event-odds fetches (0 = config default)")
	verbose := fs.Bool("verbose", false, "set log level to debug")
	logFormat := fs.String("format", "", "log format: text|json (overrides config)")
	fs.Parse(args)

	deps, err := buildDeps(*configPath, *verbose, *logFormat)
	if err != nil {
		slog.Error("failed to set up", "err", err)
		return pipeline.RunFailed.ExitCode()
	}
	cfg := deps.cfg

	if cfg.Provider.APIKey == "" && !*offline && !*noSpend {
		slog.Error("ODDS_API_KEY is not set; use -offline to work from cache only")
		return pipeline.RunFailed.ExitCode()
	}

	policy := dataset.SpendPolicy{
		Offline:    *offline,
		NoSpend:    *noSpend,
		MaxCredits: cfg.Dataset.MaxCredits,
		Refresh:    *refresh,
		Resume:     *resume,
		Force:      *force,
	}
	if *maxCredits > 0 {
		policy.MaxCredits = *maxCredits
	}

	spec := cfg.Spec()
	dayList, err := dataset.ResolveDays(*days, *from, *to, cfg.Dataset.TZName, time.Now())
	if err != nil {
		slog.Error("invalid day range", "err", err)
		return pipeline.RunFailed.ExitCode()
	}

	usage, err := ledger.NewSQLiteLedger(cfg.Storage.LedgerDSN)
	if err != nil {
		slog.Error("failed to open usage ledger", "err", err, "dsn", cfg.Storage.LedgerDSN)
		return pipeline.RunFailed.ExitCode()
	}
	defer usage.Close()

	identity, err := normalize.LoadIdentityMap(cfg.Pricing.IdentityMapPath)
	if err != nil {
		slog.Error("failed to load identity map", "err", err)
		return pipeline.RunFailed.ExitCode()
	}

	provider := oddsapi.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
	repo := dataset.NewRepository(deps.store, deps.global, usage, ports.SystemClock{})
	workerCount := cfg.Dataset.Workers
	if *workers > 0 {
		workerCount = *workers
	}
	backfiller := dataset.NewBackfiller(
		spec, cfg.Dataset.TZName, workerCount,
		deps.store, deps.global, repo, provider, deps.index,
		normalize.New(identity), ports.SystemClock{},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("backfill starting",
		"dataset", spec.ID()[:8],
		"days", len(dayList),
		"max_credits", policy.EffectiveMaxCredits(),
		"offline", policy.Offline,
		"dry_run", *dryRun,
	)

	summaries, err := backfiller.Run(ctx, dayList, policy, *dryRun)
	if err != nil {
		slog.Error("backfill failed", "err", err)
		return pipeline.RunFailed.ExitCode()
	}

	console.New(os.Stdout).PrintBackfill(summaries)
	return pipeline.StatusForBackfill(summaries).ExitCode()
}
