package pipeline

import (
	"github.com/alejandrodnm/propedge/internal/dataset"
	"github.com/alejandrodnm/propedge/internal/domain"
)

// RunStatus es el resultado agregado de un comando, mapeable a exit code.
type RunStatus int

const (
	// RunComplete: todo lo pedido quedó completo.
	RunComplete RunStatus = iota
	// RunDegraded: el comando terminó pero con días incompletos o en modo
	// watchlist; el resultado es usable con reservas.
	RunDegraded
	// RunFailed: fallo duro; el resultado no es usable.
	RunFailed
)

// ExitCode mapea el status al contrato de exit codes del CLI.
func (s RunStatus) ExitCode() int {
	switch s {
	case RunComplete:
		return 0
	case RunDegraded:
		return 1
	default:
		return 2
	}
}

// StatusForBackfill agrega los summaries de un backfill: cualquier día
// incompleto degrada el run.
func StatusForBackfill(summaries []dataset.DaySummary) RunStatus {
	if len(summaries) == 0 {
		return RunDegraded
	}
	for _, s := range summaries {
		if !s.Complete {
			return RunDegraded
		}
	}
	return RunComplete
}

// StatusForPlan deriva el status de un plan generado.
func StatusForPlan(plan domain.ExecutionPlan) RunStatus {
	if plan.Mode == domain.ModeWatchlistOnly {
		return RunDegraded
	}
	return RunComplete
}

// StatusForDays agrega statuses de día para el comando status.
func StatusForDays(statuses []dataset.DayStatus) RunStatus {
	if len(statuses) == 0 {
		return RunDegraded
	}
	for _, s := range statuses {
		if !s.Complete {
			return RunDegraded
		}
	}
	return RunComplete
}
