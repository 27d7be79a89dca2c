package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/cache"
	"github.com/alejandrodnm/propedge/internal/dataset"
	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/alejandrodnm/propedge/internal/gates"
	"github.com/alejandrodnm/propedge/internal/normalize"
	"github.com/alejandrodnm/propedge/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var planNow = time.Date(2026, 1, 11, 1, 0, 0, 0, time.UTC)

func planSpec() dataset.Spec {
	return dataset.Spec{
		SportKey:   "basketball_nba",
		Markets:    []string{"player_points"},
		Bookmakers: "fanduel,booka,bookb,bookc",
	}
}

func quoteRow(book, side string, point, price float64) domain.QuoteRow {
	return domain.QuoteRow{
		EventID:          "ev1",
		Market:           "player_points",
		Player:           "Jayson Tatum",
		Side:             side,
		Book:             book,
		Point:            point,
		Price:            price,
		LastUpdate:       planNow.Add(-10 * time.Minute),
		CommenceTime:     planNow.Add(2 * time.Hour),
		IdentityResolved: true,
	}
}

func defaultRows() []domain.QuoteRow {
	return []domain.QuoteRow{
		quoteRow("booka", domain.SideOver, 14.5, -103),
		quoteRow("booka", domain.SideUnder, 14.5, -105),
		quoteRow("bookb", domain.SideOver, 14.5, 108),
		quoteRow("bookb", domain.SideUnder, 14.5, -112),
		quoteRow("bookc", domain.SideOver, 14.5, -110),
		quoteRow("bookc", domain.SideUnder, 14.5, 100),
		quoteRow("fanduel", domain.SideOver, 14.5, 150),
		quoteRow("fanduel", domain.SideUnder, 14.5, -130),
	}
}

// seedSnapshot deja un snapshot con la tabla derivada y su day status listos
// para planear: tres discovery books más el execution book en 14.5.
func seedSnapshot(t *testing.T, root string, complete bool) (*Planner, dataset.Spec, string) {
	t.Helper()
	return seedSnapshotRows(t, root, complete, defaultRows())
}

func seedSnapshotRows(t *testing.T, root string, complete bool, rows []domain.QuoteRow) (*Planner, dataset.Spec, string) {
	t.Helper()
	store, err := cache.NewSnapshotStore(root)
	require.NoError(t, err)
	global, err := cache.NewGlobalCacheStore(root)
	require.NoError(t, err)
	index := dataset.NewIndex(root)

	spec := planSpec()
	day := "2026-01-10"
	snapshotID := dataset.SnapshotIDForDay(spec, day)
	require.NoError(t, store.EnsureSnapshot(snapshotID, nil))

	asAny := make([]any, 0, len(rows))
	for _, r := range rows {
		asAny = append(asAny, r)
	}
	require.NoError(t, store.WriteJSONL(store.DerivedPath(snapshotID, "event_props.jsonl"), asAny))

	status := dataset.DayStatus{
		DatasetID:         spec.ID(),
		Day:               day,
		SnapshotID:        snapshotID,
		Complete:          complete,
		StatusCode:        "complete",
		TotalEvents:       1,
		PresentEventOdds:  1,
		OddsCoverageRatio: 1.0,
	}
	if !complete {
		status.StatusCode = "incomplete_missing_event_odds"
		status.OddsCoverageRatio = 0.5
	}
	require.NoError(t, index.SaveDayStatus(spec.ID(), status))

	clock := fixedClock{now: planNow}
	engine := pricing.NewEngine(pricing.DefaultConfig(), clock)
	planner := NewPlanner(store, global, index, engine, clock, "fanduel", 0.7)
	return planner, spec, day
}

func TestPlanDay_PicksAndWatchlist(t *testing.T) {
	planner, spec, day := seedSnapshot(t, t.TempDir(), true)

	plan, err := planner.PlanDay(spec, day, "America/New_York", "core")
	require.NoError(t, err)

	assert.Equal(t, domain.ModeFullBoard, plan.Mode)
	assert.Equal(t, "core", plan.Strategy)
	require.Len(t, plan.Picks, 1)

	pick := plan.Picks[0].Candidate
	assert.Equal(t, domain.SideOver, pick.Side)
	assert.Equal(t, "fanduel", pick.ExecBook)
	assert.InDelta(t, 150.0, pick.ExecPrice, 1e-9)
	assert.Equal(t, domain.MethodExactPointMedian, pick.Pricing.Method)
	assert.Equal(t, 3, pick.Pricing.Depth, "tres discovery books en 14.5")
	assert.Equal(t, domain.TierA, pick.Tier)
	assert.Greater(t, pick.EV, 0.03)
	assert.Greater(t, pick.EVLow, 0.0)

	// El under de fanduel tiene EV negativo y queda en watchlist
	require.Len(t, plan.Watchlist, 1)
	assert.Equal(t, domain.SideUnder, plan.Watchlist[0].Candidate.Side)
	assert.Contains(t, plan.Watchlist[0].Reasons, gates.CodeEVBelow)
}

// Un jugador resuelto vía alias del identity map conserva su flag de
// identidad a través de la tabla derivada: el gate de identidad nunca se
// recalcula sobre el nombre ya canónico.
func TestPlanDay_AliasResolvedPlayers(t *testing.T) {
	payload := `{
	  "id": "ev1",
	  "commence_time": "2026-01-11T03:00:00Z",
	  "bookmakers": [
	    {"key": "booka", "last_update": "2026-01-11T00:50:00Z", "markets": [
	      {"key": "player_points", "outcomes": [
	        {"name": "Over", "description": "J. Tatum", "price": -103, "point": 14.5},
	        {"name": "Under", "description": "J. Tatum", "price": -105, "point": 14.5}
	      ]}
	    ]},
	    {"key": "bookb", "last_update": "2026-01-11T00:50:00Z", "markets": [
	      {"key": "player_points", "outcomes": [
	        {"name": "Over", "description": "J. Tatum", "price": 108, "point": 14.5},
	        {"name": "Under", "description": "J. Tatum", "price": -112, "point": 14.5}
	      ]}
	    ]},
	    {"key": "bookc", "last_update": "2026-01-11T00:50:00Z", "markets": [
	      {"key": "player_points", "outcomes": [
	        {"name": "Over", "description": "J. Tatum", "price": -110, "point": 14.5},
	        {"name": "Under", "description": "J. Tatum", "price": 100, "point": 14.5}
	      ]}
	    ]},
	    {"key": "fanduel", "last_update": "2026-01-11T00:50:00Z", "markets": [
	      {"key": "player_points", "outcomes": [
	        {"name": "Over", "description": "J. Tatum", "price": 150, "point": 14.5},
	        {"name": "Under", "description": "J. Tatum", "price": -130, "point": 14.5}
	      ]}
	    ]}
	  ]
	}`
	norm := normalize.New(&normalize.IdentityMap{
		Players: map[string]string{"J. Tatum": "Jayson Tatum"},
	})
	rows, err := norm.EventOddsRows(json.RawMessage(payload))
	require.NoError(t, err)

	planner, spec, day := seedSnapshotRows(t, t.TempDir(), true, rows)
	plan, err := planner.PlanDay(spec, day, "America/New_York", "core")
	require.NoError(t, err)

	require.Len(t, plan.Picks, 1)
	assert.Equal(t, "Jayson Tatum", plan.Picks[0].Candidate.Player)
	for _, ex := range plan.Watchlist {
		assert.NotContains(t, ex.Reasons, gates.CodeIdentityUnresolved,
			"un alias resuelto nunca cae por identidad")
	}
}

func TestPlanDay_UnresolvedIdentityWatchlisted(t *testing.T) {
	rows := defaultRows()
	for i := range rows {
		rows[i].IdentityResolved = false
	}
	planner, spec, day := seedSnapshotRows(t, t.TempDir(), true, rows)

	plan, err := planner.PlanDay(spec, day, "America/New_York", "core")
	require.NoError(t, err)

	assert.Empty(t, plan.Picks)
	found := false
	for _, ex := range plan.Watchlist {
		for _, reason := range ex.Reasons {
			if reason == gates.CodeIdentityUnresolved {
				found = true
			}
		}
	}
	assert.True(t, found, "la identidad sin resolver excluye bajo el perfil core")
}

func TestPlanDay_Deterministic(t *testing.T) {
	root := t.TempDir()
	planner, spec, day := seedSnapshot(t, root, true)

	planA, err := planner.PlanDay(spec, day, "America/New_York", "core")
	require.NoError(t, err)
	planB, err := planner.PlanDay(spec, day, "America/New_York", "core")
	require.NoError(t, err)

	require.Equal(t, len(planA.Picks), len(planB.Picks))
	for i := range planA.Picks {
		a, b := planA.Picks[i].Candidate, planB.Picks[i].Candidate
		assert.Equal(t, a.IdentitySortKey(), b.IdentitySortKey())
		assert.InDelta(t, a.EV, b.EV, 1e-12)
		assert.InDelta(t, a.Pricing.POver, b.Pricing.POver, 1e-12)
	}
}

func TestPlanDay_ContextHealthDowngrade(t *testing.T) {
	planner, spec, day := seedSnapshot(t, t.TempDir(), false)

	plan, err := planner.PlanDay(spec, day, "America/New_York", "core")
	require.NoError(t, err)

	assert.Equal(t, domain.ModeWatchlistOnly, plan.Mode)
	assert.Empty(t, plan.Picks, "en watchlist_only no se recomienda ejecución")

	found := false
	for _, ex := range plan.Watchlist {
		for _, reason := range ex.Reasons {
			if reason == gates.CodeContextHealth {
				found = true
			}
		}
	}
	assert.True(t, found, "los elegibles bajan a watchlist con context_health")
}

func TestPlanDay_WritesDerivedArtifact(t *testing.T) {
	root := t.TempDir()
	planner, spec, day := seedSnapshot(t, root, true)

	plan, err := planner.PlanDay(spec, day, "America/New_York", "core")
	require.NoError(t, err)

	store, err := cache.NewSnapshotStore(root)
	require.NoError(t, err)
	assert.FileExists(t, store.DerivedPath(plan.SnapshotID, "execution_plan.json"))
}

func TestPlanDay_UnknownProfile(t *testing.T) {
	planner, spec, day := seedSnapshot(t, t.TempDir(), true)
	_, err := planner.PlanDay(spec, day, "America/New_York", "no_such_profile")
	assert.Error(t, err)
}

func TestRunStatus_ExitCodes(t *testing.T) {
	assert.Equal(t, 0, RunComplete.ExitCode())
	assert.Equal(t, 1, RunDegraded.ExitCode())
	assert.Equal(t, 2, RunFailed.ExitCode())

	assert.Equal(t, RunComplete, StatusForBackfill([]dataset.DaySummary{{Complete: true}}))
	assert.Equal(t, RunDegraded, StatusForBackfill([]dataset.DaySummary{{Complete: true}, {Complete: false}}))
	assert.Equal(t, RunDegraded, StatusForBackfill(nil))

	assert.Equal(t, RunComplete, StatusForPlan(domain.ExecutionPlan{Mode: domain.ModeFullBoard}))
	assert.Equal(t, RunDegraded, StatusForPlan(domain.ExecutionPlan{Mode: domain.ModeWatchlistOnly}))
}
