package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/console"
	"github.com/alejandrodnm/propedge/internal/dataset"
	"github.com/alejandrodnm/propedge/internal/pipeline"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional)")
	days := fs.Int("days", 0, "limit to the last N days ending today (0 = all recorded)")
	from := fs.String("from", "", "range start day YYYY-MM-DD (requires -to)")
	to := fs.String("to", "", "range end day YYYY-MM-DD (requires -from)")
	recompute := fs.Bool("recompute", false, "re-derive each day status from cache before reporting")
	verbose := fs.Bool("verbose", false, "set log level to debug")
	logFormat := fs.String("format", "", "log format: text|json (overrides config)")
	fs.Parse(args)

	deps, err := buildDeps(*configPath, *verbose, *logFormat)
	if err != nil {
		slog.Error("failed to set up", "err", err)
		return pipeline.RunFailed.ExitCode()
	}
	cfg := deps.cfg
	spec := cfg.Spec()

	dayList, err := resolveStatusDays(deps, spec, *days, *from, *to, cfg.Dataset.TZName)
	if err != nil {
		slog.Error("invalid day range", "err", err)
		return pipeline.RunFailed.ExitCode()
	}
	if len(dayList) == 0 {
		slog.Warn("no days recorded for dataset", "dataset", spec.ID()[:8])
		return pipeline.RunDegraded.ExitCode()
	}

	var statuses []dataset.DayStatus
	for _, day := range dayList {
		status, err := loadOrCompute(deps, spec, day, cfg.Dataset.TZName, *recompute)
		if err != nil {
			slog.Error("failed to resolve day status", "day", day, "err", err)
			return pipeline.RunFailed.ExitCode()
		}
		statuses = append(statuses, status)
	}

	console.New(os.Stdout).PrintDayStatuses(statuses)
	return pipeline.StatusForDays(statuses).ExitCode()
}

// resolveStatusDays expande el rango pedido, o lista los días registrados si
// no se pidió ninguno.
func resolveStatusDays(deps *appDeps, spec dataset.Spec, n int, from, to, tzName string) ([]string, error) {
	if n <= 0 && from == "" && to == "" {
		return deps.index.ListDays(spec.ID())
	}
	return dataset.ResolveDays(n, from, to, tzName, time.Now())
}

// loadOrCompute lee el status persistido, o lo re-deriva desde cache si se
// pidió -recompute o no existe todavía.
func loadOrCompute(deps *appDeps, spec dataset.Spec, day, tzName string, recompute bool) (dataset.DayStatus, error) {
	if !recompute {
		if existing, err := deps.index.LoadDayStatus(spec.ID(), day); err == nil && existing != nil {
			return *existing, nil
		}
	}
	status, err := dataset.ComputeDayStatus(deps.store, deps.global, spec, day, tzName, nil)
	if err != nil {
		return dataset.DayStatus{}, err
	}
	if err := deps.index.SaveDayStatus(spec.ID(), status); err != nil {
		return dataset.DayStatus{}, err
	}
	return status, nil
}
