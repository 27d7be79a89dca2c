package console_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/console"
	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/alejandrodnm/propedge/internal/ports"
	"github.com/stretchr/testify/assert"
)

func TestConsole_PrintPlan(t *testing.T) {
	var buf bytes.Buffer
	c := console.New(&buf)

	plan := domain.ExecutionPlan{
		SnapshotID: "basketball_nba-2026-01-10",
		Strategy:   "core",
		Mode:       "paper",
		Picks: []domain.Ticket{
			{
				Rank: 1,
				Candidate: domain.Candidate{
					EventID:   "ev1",
					Player:    "Jayson Tatum",
					Market:    "player_points",
					Point:     27.5,
					Side:      domain.SideOver,
					ExecBook:  "fanduel",
					ExecPrice: -110,
					EV:        0.061,
					EVLow:     0.049,
					Kelly:     0.021,
					PlayTo:    0.532,
					Tier:      "A",
				},
			},
		},
		Watchlist: []domain.Exclusion{
			{Reasons: []string{"ev_below_threshold"}},
			{Reasons: []string{"ev_below_threshold"}},
		},
	}

	c.PrintPlan(plan)
	out := buf.String()
	assert.Contains(t, out, "Jayson Tatum")
	assert.Contains(t, out, "fanduel")
	assert.Contains(t, out, "watchlist: 2 lines")
	assert.Contains(t, out, "ev_below_threshold:2")
}

func TestConsole_PrintPlan_NoPicks(t *testing.T) {
	var buf bytes.Buffer
	c := console.New(&buf)

	c.PrintPlan(domain.ExecutionPlan{SnapshotID: "s", Strategy: "core", Mode: "paper"})
	assert.Contains(t, buf.String(), "no picks")
}

// Toda la salida de operador va en inglés, incluida la nota al pie de usage.
func TestConsole_PrintUsage_EnglishFootnote(t *testing.T) {
	var buf bytes.Buffer
	c := console.New(&buf)

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	c.PrintUsage(from, to, ports.UsageSummary{
		Calls:            12,
		ErrorCalls:       1,
		EstimatedCredits: 36,
		LastQuotaUsed:    "30",
		LastQuotaLeft:    "470",
	})

	out := buf.String()
	assert.Contains(t, out, "usage 2026-01-10 — 2026-01-12")
	assert.Contains(t, out, "Est. credits = pre-call estimate; Quota used/left = billed provider headers")
	assert.NotContains(t, out, "estimación")
}

func TestConsole_PrintUsage_DashOnMissingQuota(t *testing.T) {
	var buf bytes.Buffer
	c := console.New(&buf)

	c.PrintUsage(time.Now(), time.Now(), ports.UsageSummary{Calls: 1})
	assert.Contains(t, buf.String(), "-")
}
