package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/console"
	"github.com/alejandrodnm/propedge/internal/pipeline"
	"github.com/alejandrodnm/propedge/internal/pricing"
	"github.com/alejandrodnm/propedge/internal/strategy"
)

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional)")
	day := fs.String("day", "", "day to plan YYYY-MM-DD (default: today in league tz)")
	profileName := fs.String("strategy", "", "strategy profile (default: config)")
	execBook := fs.String("exec-book", "", "execution bookmaker (default: config)")
	listProfiles := fs.Bool("list-strategies", false, "print known strategy profiles and exit")
	verbose := fs.Bool("verbose", false, "set log level to debug")
	logFormat := fs.String("format", "", "log format: text|json (overrides config)")
	fs.Parse(args)

	if *listProfiles {
		for _, name := range strategy.Names() {
			profile, _ := strategy.Get(name)
			slog.Info("strategy profile", "name", name, "description", profile.Description)
		}
		return pipeline.RunComplete.ExitCode()
	}

	deps, err := buildDeps(*configPath, *verbose, *logFormat)
	if err != nil {
		slog.Error("failed to set up", "err", err)
		return pipeline.RunFailed.ExitCode()
	}
	cfg := deps.cfg
	spec := cfg.Spec()

	planDay := *day
	if planDay == "" {
		loc, err := time.LoadLocation(cfg.Dataset.TZName)
		if err != nil {
			slog.Error("invalid timezone", "tz", cfg.Dataset.TZName, "err", err)
			return pipeline.RunFailed.ExitCode()
		}
		planDay = time.Now().In(loc).Format("2006-01-02")
	}

	book := cfg.Plan.ExecBook
	if *execBook != "" {
		book = *execBook
	}
	profile := cfg.Plan.Strategy
	if *profileName != "" {
		profile = *profileName
	}

	planner := pipeline.NewPlanner(
		deps.store, deps.global, deps.index,
		pricing.NewEngine(cfg.PricingEngine(), nil),
		nil, book, cfg.Plan.MinCoverage,
	)

	plan, err := planner.PlanDay(spec, planDay, cfg.Dataset.TZName, profile)
	if err != nil {
		slog.Error("plan failed", "day", planDay, "err", err)
		return pipeline.RunFailed.ExitCode()
	}

	console.New(os.Stdout).PrintPlan(plan)
	return pipeline.StatusForPlan(plan).ExitCode()
}
