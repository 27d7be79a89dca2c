package console

// Renderizado de tablas para el operador. Solo presentación: los artefactos
// canónicos son los JSON derivados del snapshot, no esta salida.

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/propedge/internal/dataset"
	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/alejandrodnm/propedge/internal/ports"
)

// Console imprime resúmenes tabulares en el writer dado.
type Console struct {
	out io.Writer
}

// New crea la consola sobre el writer dado.
func New(out io.Writer) *Console {
	return &Console{out: out}
}

// PrintPlan imprime los picks del plan y el resumen de la watchlist.
func (c *Console) PrintPlan(plan domain.ExecutionPlan) {
	fmt.Fprintf(c.out, "\nplan %s — strategy %s, mode %s\n",
		plan.SnapshotID, plan.Strategy, plan.Mode)

	if len(plan.Picks) == 0 {
		fmt.Fprintln(c.out, "  no picks")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Event", "Player", "Market", "Line", "Book", "Price", "EV", "EV low", "Kelly", "Play to", "Tier")
		for _, pick := range plan.Picks {
			cand := pick.Candidate
			table.Append(
				fmt.Sprintf("%d", pick.Rank),
				cand.EventID,
				cand.Player,
				cand.Market,
				fmt.Sprintf("%s %.1f", cand.Side, cand.Point),
				cand.ExecBook,
				formatAmerican(cand.ExecPrice),
				fmt.Sprintf("%+.3f", cand.EV),
				fmt.Sprintf("%+.3f", cand.EVLow),
				fmt.Sprintf("%.3f", cand.Kelly),
				fmt.Sprintf("%.3f", cand.PlayTo),
				cand.Tier,
			)
		}
		table.Render()
	}

	if len(plan.Watchlist) > 0 {
		counts := map[string]int{}
		for _, ex := range plan.Watchlist {
			for _, reason := range ex.Reasons {
				counts[reason]++
			}
		}
		fmt.Fprintf(c.out, "  watchlist: %d lines — ", len(plan.Watchlist))
		first := true
		for _, reason := range sortedKeys(counts) {
			if !first {
				fmt.Fprint(c.out, ", ")
			}
			fmt.Fprintf(c.out, "%s:%d", reason, counts[reason])
			first = false
		}
		fmt.Fprintln(c.out)
	}
}

// PrintDayStatuses imprime la tabla de completitud por día.
func (c *Console) PrintDayStatuses(statuses []dataset.DayStatus) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Day", "Status", "Events", "Present", "Missing", "Coverage", "Error")
	for _, s := range statuses {
		table.Append(
			s.Day,
			s.StatusCode,
			fmt.Sprintf("%d", s.TotalEvents),
			fmt.Sprintf("%d", s.PresentEventOdds),
			fmt.Sprintf("%d", s.MissingCount),
			fmt.Sprintf("%.2f", s.OddsCoverageRatio),
			s.ErrorCode,
		)
	}
	table.Render()
}

// PrintBackfill imprime el resultado por día de un backfill.
func (c *Console) PrintBackfill(summaries []dataset.DaySummary) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Day", "Snapshot", "Complete", "Events", "Missing", "Est. credits", "Left", "Error")
	for _, s := range summaries {
		complete := "yes"
		if !s.Complete {
			complete = "no"
		}
		if s.Skipped {
			complete = "yes (resume)"
		}
		table.Append(
			s.Day,
			s.SnapshotID,
			complete,
			fmt.Sprintf("%d", s.Events),
			fmt.Sprintf("%d", s.Missing),
			fmt.Sprintf("%d", s.EstimatedCredits),
			fmt.Sprintf("%d", s.RemainingCredits),
			s.ErrorCode,
		)
	}
	table.Render()
}

// PrintUsage imprime el consumo agregado de un rango.
func (c *Console) PrintUsage(from, to time.Time, summary ports.UsageSummary) {
	fmt.Fprintf(c.out, "\nusage %s — %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	table := tablewriter.NewWriter(c.out)
	table.Header("Calls", "Errors", "Est. credits", "Quota used", "Quota left")
	table.Append(
		fmt.Sprintf("%d", summary.Calls),
		fmt.Sprintf("%d", summary.ErrorCalls),
		fmt.Sprintf("%d", summary.EstimatedCredits),
		orDash(summary.LastQuotaUsed),
		orDash(summary.LastQuotaLeft),
	)
	table.Render()
	fmt.Fprintln(c.out, "  Est. credits = pre-call estimate; Quota used/left = billed provider headers")
}

func formatAmerican(price float64) string {
	return fmt.Sprintf("%+d", int(price))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
