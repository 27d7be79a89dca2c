package pipeline

// planner.go — pasada de decisión sobre un snapshot cerrado.
//
// El plan es una función pura del snapshot y el perfil: la resolución de
// identidades viene ya fijada en las filas derivadas, así que el plan se
// puede regenerar meses después y produce las mismas selecciones.

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"

	"github.com/alejandrodnm/propedge/internal/adapters/cache"
	"github.com/alejandrodnm/propedge/internal/dataset"
	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/alejandrodnm/propedge/internal/gates"
	"github.com/alejandrodnm/propedge/internal/portfolio"
	"github.com/alejandrodnm/propedge/internal/ports"
	"github.com/alejandrodnm/propedge/internal/pricing"
	"github.com/alejandrodnm/propedge/internal/strategy"
)

// Planner genera execution plans desde snapshots ya adquiridos. No toca la
// red: planear es gratis y repetible.
type Planner struct {
	store       *cache.SnapshotStore
	global      *cache.GlobalCacheStore
	index       *dataset.Index
	engine      *pricing.Engine
	clock       ports.Clock
	execBook    string
	minCoverage float64
}

// NewPlanner crea el planner con sus dependencias inyectadas.
func NewPlanner(
	store *cache.SnapshotStore,
	global *cache.GlobalCacheStore,
	index *dataset.Index,
	engine *pricing.Engine,
	clock ports.Clock,
	execBook string,
	minCoverage float64,
) *Planner {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Planner{
		store:       store,
		global:      global,
		index:       index,
		engine:      engine,
		clock:       clock,
		execBook:    execBook,
		minCoverage: minCoverage,
	}
}

// PlanDay genera el execution plan del día y lo persiste como artefacto
// derivado del snapshot.
func (p *Planner) PlanDay(spec dataset.Spec, day, tzName, profileName string) (domain.ExecutionPlan, error) {
	profile, err := strategy.Get(profileName)
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("pipeline.PlanDay: %w", err)
	}

	spec = spec.Canonical()
	snapshotID := dataset.SnapshotIDForDay(spec, day)

	status, err := p.dayStatus(spec, day, tzName)
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("pipeline.PlanDay: %w", err)
	}

	mode := domain.ModeFullBoard
	if !status.Complete || status.OddsCoverageRatio < p.minCoverage {
		// Contexto degradado: el plan sigue siendo útil como watchlist pero
		// ninguna línea se recomienda para ejecución.
		mode = domain.ModeWatchlistOnly
		slog.Warn("context health degraded, plan downgraded to watchlist",
			"day", day,
			"complete", status.Complete,
			"coverage", status.OddsCoverageRatio,
		)
	}

	rows, err := p.loadDerivedRows(snapshotID)
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("pipeline.PlanDay: %w", err)
	}

	candidates := p.buildCandidates(rows, profile)

	var eligible []domain.Candidate
	var watchlist []domain.Exclusion
	for _, c := range candidates {
		reasons := gates.Evaluate(c, profile)
		if len(reasons) == 0 {
			eligible = append(eligible, c)
			continue
		}
		watchlist = append(watchlist, domain.Exclusion{Candidate: c, Reasons: reasons})
	}

	var picks []domain.Ticket
	if mode == domain.ModeWatchlistOnly {
		for _, c := range eligible {
			watchlist = append(watchlist, domain.Exclusion{
				Candidate: c,
				Reasons:   []string{gates.CodeContextHealth},
			})
		}
	} else {
		var capped []domain.Exclusion
		picks, capped = portfolio.Select(eligible, portfolio.Constraints{
			MaxPicks:              profile.MaxPicks,
			MaxPerPlayer:          profile.MaxPerPlayer,
			MaxPerGame:            profile.MaxPerGame,
			CorrelatedEVLowEscape: profile.CorrelatedEVLowEscape,
		})
		watchlist = append(watchlist, capped...)
	}

	sort.SliceStable(watchlist, func(i, j int) bool {
		return identityLess(watchlist[i].Candidate, watchlist[j].Candidate)
	})

	plan := domain.ExecutionPlan{
		RunID:          uuid.New().String(),
		SnapshotID:     snapshotID,
		Strategy:       profile.Name,
		GeneratedAtUTC: p.clock.Now().UTC(),
		Mode:           mode,
		Picks:          picks,
		Watchlist:      watchlist,
	}

	if err := p.store.WriteDerivedJSON(snapshotID, "execution_plan.json", plan); err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("pipeline.PlanDay: %w", err)
	}

	slog.Info("execution plan generated",
		"day", day,
		"snapshot", snapshotID,
		"strategy", profile.Name,
		"mode", mode,
		"picks", len(plan.Picks),
		"watchlist", len(plan.Watchlist),
	)
	return plan, nil
}

// dayStatus lee el status persistido o lo re-deriva desde cache.
func (p *Planner) dayStatus(spec dataset.Spec, day, tzName string) (dataset.DayStatus, error) {
	if existing, err := p.index.LoadDayStatus(spec.ID(), day); err == nil && existing != nil {
		return *existing, nil
	}
	return dataset.ComputeDayStatus(p.store, p.global, spec, day, tzName, p.clock)
}

// buildCandidates forma un candidato por cada línea cotizada por el execution
// book y la pricea contra los discovery books restantes.
func (p *Planner) buildCandidates(rows []domain.QuoteRow, profile strategy.Profile) []domain.Candidate {
	type lineKey struct {
		EventID string
		Market  string
		Player  string
	}
	groups := map[lineKey][]domain.QuoteRow{}
	var order []lineKey
	for _, r := range rows {
		key := lineKey{EventID: r.EventID, Market: r.Market, Player: r.Player}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		return a.Player < b.Player
	})

	var candidates []domain.Candidate
	for _, key := range order {
		group := groups[key]
		var execRows, discovery []domain.QuoteRow
		for _, r := range group {
			if r.Book == p.execBook {
				execRows = append(execRows, r)
			} else {
				discovery = append(discovery, r)
			}
		}
		if len(execRows) == 0 {
			continue
		}
		// Un PriceLine por point distinto del execution book.
		priced := map[float64]domain.PricingResult{}
		for _, exec := range execRows {
			result, ok := priced[exec.Point]
			if !ok {
				result = p.engine.PriceLine(discovery, exec.Point)
				priced[exec.Point] = result
			}
			c := domain.Candidate{
				EventID:          exec.EventID,
				GameLabel:        exec.EventID,
				Player:           exec.Player,
				Market:           exec.Market,
				Point:            exec.Point,
				Side:             exec.Side,
				CommenceTime:     exec.CommenceTime,
				ExecBook:         exec.Book,
				ExecPrice:        exec.Price,
				ExecLink:         exec.Link,
				Pricing:          result,
				IdentityResolved: exec.IdentityResolved,
			}
			gates.Assess(&c, profile)
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// loadDerivedRows lee la tabla normalizada event_props.jsonl del snapshot.
func (p *Planner) loadDerivedRows(snapshotID string) ([]domain.QuoteRow, error) {
	path := p.store.DerivedPath(snapshotID, "event_props.jsonl")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("derived rows missing for %s, run backfill first", snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("open derived rows: %w", err)
	}
	defer f.Close()

	var rows []domain.QuoteRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row domain.QuoteRow
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("parse derived row: %w", err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read derived rows: %w", err)
	}
	return rows, nil
}

func identityLess(a, b domain.Candidate) bool {
	ka, kb := a.IdentitySortKey(), b.IdentitySortKey()
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}
