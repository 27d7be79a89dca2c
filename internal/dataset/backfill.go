package dataset

// backfill.go — backfill resumable e idempotente de un rango de días.
//
// Cada día es independiente: un día malo registra su error code y el rango
// sigue. Matar y relanzar el backfill sobre el mismo rango re-deriva el mismo
// estado desde cache sin gasto adicional, salvo en días aún incompletos.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/propedge/internal/adapters/cache"
	"github.com/alejandrodnm/propedge/internal/adapters/oddsapi"
	"github.com/alejandrodnm/propedge/internal/normalize"
	"github.com/alejandrodnm/propedge/internal/ports"
)

const defaultWorkers = 5

// Backfiller orquesta la adquisición día a día de un dataset.
type Backfiller struct {
	spec     Spec
	tzName   string
	workers  int
	store    *cache.SnapshotStore
	global   *cache.GlobalCacheStore
	repo     *Repository
	provider ports.OddsProvider
	index    *Index
	norm     *normalize.Normalizer
	clock    ports.Clock
}

// NewBackfiller crea el Backfiller con sus dependencias inyectadas.
// workers <= 0 usa el pool por defecto (5 requests en vuelo).
func NewBackfiller(
	spec Spec,
	tzName string,
	workers int,
	store *cache.SnapshotStore,
	global *cache.GlobalCacheStore,
	repo *Repository,
	provider ports.OddsProvider,
	index *Index,
	norm *normalize.Normalizer,
	clock ports.Clock,
) *Backfiller {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Backfiller{
		spec:     spec.Canonical(),
		tzName:   tzName,
		workers:  workers,
		store:    store,
		global:   global,
		repo:     repo,
		provider: provider,
		index:    index,
		norm:     norm,
		clock:    clock,
	}
}

// DaySummary resume el resultado de un día del backfill.
type DaySummary struct {
	Day              string `json:"day"`
	SnapshotID       string `json:"snapshot_id"`
	Complete         bool   `json:"complete"`
	Skipped          bool   `json:"skipped"`
	Missing          int    `json:"missing"`
	Events           int    `json:"events"`
	EstimatedCredits int    `json:"estimated_paid_credits"`
	RemainingCredits int    `json:"remaining_credits"`
	ErrorCode        string `json:"error_code,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Run ejecuta el backfill sobre los días dados bajo la política de gasto.
// Nunca devuelve error por un día malo; el error de retorno es solo para
// fallos de infraestructura local (lock, disco).
func (b *Backfiller) Run(ctx context.Context, days []string, policy SpendPolicy, dryRun bool) ([]DaySummary, error) {
	if err := b.index.SaveSpec(b.spec); err != nil {
		return nil, fmt.Errorf("dataset.Backfill: %w", err)
	}

	remaining := policy.EffectiveMaxCredits()
	summaries := make([]DaySummary, 0, len(days))

	for _, day := range days {
		// Resume: un día ya completo no toca la red ni el snapshot.
		if policy.Resume && !policy.Refresh {
			if existing, err := b.index.LoadDayStatus(b.spec.ID(), day); err == nil &&
				existing != nil && existing.Complete {
				summaries = append(summaries, DaySummary{
					Day:              day,
					SnapshotID:       existing.SnapshotID,
					Complete:         true,
					Skipped:          true,
					Events:           existing.TotalEvents,
					RemainingCredits: remaining,
				})
				continue
			}
		}

		summary, err := b.runDay(ctx, day, policy, dryRun, &remaining)
		if err != nil {
			return summaries, fmt.Errorf("dataset.Backfill: day %s: %w", day, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// runDay adquiere (o verifica) un día completo bajo el lock del snapshot.
func (b *Backfiller) runDay(ctx context.Context, day string, policy SpendPolicy, dryRun bool, remaining *int) (DaySummary, error) {
	commenceFrom, commenceTo, err := DayWindow(day, b.tzName)
	if err != nil {
		return DaySummary{}, err
	}
	snapshotID := SnapshotIDForDay(b.spec, day)

	release, err := b.store.LockSnapshot(ctx, snapshotID)
	if err != nil {
		return DaySummary{}, err
	}
	defer release()

	runConfig := map[string]any{
		"mode":          "data_backfill_day",
		"dataset_id":    b.spec.ID(),
		"day":           day,
		"tz_name":       b.tzName,
		"sport_key":     b.spec.SportKey,
		"markets":       b.spec.Markets,
		"regions":       b.spec.Regions,
		"bookmakers":    b.spec.Bookmakers,
		"commence_from": commenceFrom,
		"commence_to":   commenceTo,
	}
	if err := b.store.EnsureSnapshot(snapshotID, runConfig); err != nil {
		return DaySummary{}, err
	}

	// 1. Lista de eventos del día (endpoint gratuito).
	eventsReq := EventsRequest(b.spec, commenceFrom, commenceTo)
	eventsResult, err := b.repo.GetOrFetch(ctx, snapshotID, eventsReq, func(ctx context.Context) (ports.ProviderResponse, error) {
		return b.provider.ListEvents(ctx, b.spec.SportKey, commenceFrom, commenceTo)
	}, policy, 0)
	if err != nil {
		return b.failDay(day, snapshotID, err, 0, *remaining)
	}

	eventIDs := parseEventIDs(eventsResult.Data)

	// 2. Qué event-odds faltan (refresh fuerza re-fetch de todos).
	var missingIDs []string
	for _, id := range eventIDs {
		if policy.Refresh {
			missingIDs = append(missingIDs, id)
			continue
		}
		key := EventOddsRequest(b.spec, id).Key()
		if b.store.HasResponse(snapshotID, key) || b.global.HasResponse(key) {
			continue
		}
		missingIDs = append(missingIDs, id)
	}

	// 2b. Mercados featured (game-level): un único fetch por día si la spec
	// los pide y aún no están en cache.
	featuredMissing := false
	if len(b.spec.FeaturedMarkets) > 0 {
		key := FeaturedRequest(b.spec, commenceFrom, commenceTo).Key()
		featuredMissing = policy.Refresh ||
			!(b.store.HasResponse(snapshotID, key) || b.global.HasResponse(key))
	}

	regionsFactor := RegionsEquivalent(b.spec.Regions, b.spec.Bookmakers)
	estimated := EstimateEventCredits(b.spec.Markets, regionsFactor, len(missingIDs))
	if featuredMissing {
		estimated += EstimateFeaturedCredits(b.spec.FeaturedMarkets, regionsFactor)
	}

	// 3. Chequeos de política ANTES de cualquier llamada de pago.
	if len(missingIDs) > 0 || featuredMissing {
		if policy.BlocksPaid() {
			err := fmt.Errorf("day %s missing %d event odds: %w", day, len(missingIDs), ErrSpendBlocked)
			return b.failDay(day, snapshotID, err, estimated, *remaining)
		}
		if estimated > *remaining && !policy.Force {
			err := fmt.Errorf("estimated %d credits exceed remaining %d for day %s: %w",
				estimated, *remaining, day, ErrBudgetExceeded)
			return b.failDay(day, snapshotID, err, estimated, *remaining)
		}
	}

	var dayErr error
	if !dryRun {
		// 4. Fetch concurrente de los event-odds que faltan, acotado por el
		// pool de workers para respetar los rate limits del proveedor.
		dayErr = b.fetchMissing(ctx, snapshotID, missingIDs, policy)

		if len(b.spec.FeaturedMarkets) > 0 {
			if err := b.fetchFeatured(ctx, snapshotID, commenceFrom, commenceTo, policy); err != nil {
				slog.Warn("featured odds fetch failed", "day", day, "err", err)
				if dayErr == nil {
					dayErr = err
				}
			}
		}

		// 5. Tablas derivadas canónicas del snapshot.
		if err := b.writeDerivedRows(snapshotID, eventIDs); err != nil {
			return DaySummary{}, err
		}
		if len(b.spec.FeaturedMarkets) > 0 {
			if err := b.writeFeaturedRows(snapshotID, commenceFrom, commenceTo); err != nil {
				return DaySummary{}, err
			}
		}

		if estimated > 0 {
			*remaining = maxInt(0, *remaining-estimated)
		}
	}

	// 6. Re-derivar el estado del día desde cache (idempotente).
	status, err := ComputeDayStatus(b.store, b.global, b.spec, day, b.tzName, b.clock)
	if err != nil {
		return DaySummary{}, err
	}
	if dayErr != nil {
		status = status.Downgrade(dayErr)
	}
	if err := b.index.SaveDayStatus(b.spec.ID(), status); err != nil {
		return DaySummary{}, err
	}

	slog.Info("backfill day done",
		"day", day,
		"snapshot", snapshotID,
		"complete", status.Complete,
		"events", status.TotalEvents,
		"missing", status.MissingCount,
		"estimated_credits", estimated,
		"remaining_credits", *remaining,
	)

	return DaySummary{
		Day:              day,
		SnapshotID:       snapshotID,
		Complete:         status.Complete,
		Missing:          status.MissingCount,
		Events:           status.TotalEvents,
		EstimatedCredits: estimated,
		RemainingCredits: *remaining,
		ErrorCode:        status.ErrorCode,
		Error:            status.Error,
	}, nil
}

// fetchMissing trae en paralelo los event-odds pendientes con un pool fijo.
// Devuelve el primer error observado; los demás eventos siguen intentándose.
func (b *Backfiller) fetchMissing(ctx context.Context, snapshotID string, eventIDs []string, policy SpendPolicy) error {
	if len(eventIDs) == 0 {
		return nil
	}

	query := ports.EventOddsQuery{
		Markets:      b.spec.Markets,
		Regions:      b.spec.Regions,
		Bookmakers:   b.spec.Bookmakers,
		IncludeLinks: b.spec.IncludeLinks,
		IncludeSids:  b.spec.IncludeSids,
	}
	regionsFactor := RegionsEquivalent(b.spec.Regions, b.spec.Bookmakers)
	perEvent := EstimateEventCredits(b.spec.Markets, regionsFactor, 1)

	workCh := make(chan string, len(eventIDs))
	errCh := make(chan error, len(eventIDs))

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for eventID := range workCh {
				req := EventOddsRequest(b.spec, eventID)
				_, err := b.repo.GetOrFetch(ctx, snapshotID, req, func(ctx context.Context) (ports.ProviderResponse, error) {
					return b.provider.GetEventOdds(ctx, b.spec.SportKey, eventID, query)
				}, policy, perEvent)
				if err != nil {
					slog.Warn("event odds fetch failed", "event", eventID, "err", err)
					errCh <- err
				}
			}
		}()
	}

	for _, id := range eventIDs {
		workCh <- id
	}
	close(workCh)
	wg.Wait()
	close(errCh)

	return <-errCh // nil si el canal está vacío
}

// fetchFeatured resuelve el request featured del día contra cache o red,
// bajo la misma política de gasto que los event-odds.
func (b *Backfiller) fetchFeatured(ctx context.Context, snapshotID, commenceFrom, commenceTo string, policy SpendPolicy) error {
	req := FeaturedRequest(b.spec, commenceFrom, commenceTo)
	query := ports.EventOddsQuery{
		Markets:      b.spec.FeaturedMarkets,
		Regions:      b.spec.Regions,
		Bookmakers:   b.spec.Bookmakers,
		CommenceFrom: commenceFrom,
		CommenceTo:   commenceTo,
	}
	regionsFactor := RegionsEquivalent(b.spec.Regions, b.spec.Bookmakers)
	estimated := EstimateFeaturedCredits(b.spec.FeaturedMarkets, regionsFactor)
	_, err := b.repo.GetOrFetch(ctx, snapshotID, req, func(ctx context.Context) (ports.ProviderResponse, error) {
		return b.provider.GetFeaturedOdds(ctx, b.spec.SportKey, query)
	}, policy, estimated)
	return err
}

// writeFeaturedRows materializa game_lines.jsonl si el payload featured
// existe; un featured ausente no bloquea la tabla de event props.
func (b *Backfiller) writeFeaturedRows(snapshotID, commenceFrom, commenceTo string) error {
	key := FeaturedRequest(b.spec, commenceFrom, commenceTo).Key()
	if !b.store.HasResponse(snapshotID, key) {
		if !b.global.HasResponse(key) {
			return nil
		}
		if err := b.global.MaterializeIntoSnapshot(b.store, snapshotID, key); err != nil {
			return err
		}
	}
	payload, err := b.store.LoadResponse(snapshotID, key)
	if err != nil {
		return err
	}
	featured, err := b.norm.FeaturedRows(payload)
	if err != nil {
		slog.Warn("featured derived rows skipped", "snapshot", snapshotID, "err", err)
		return nil
	}
	rows := make([]any, 0, len(featured))
	for _, row := range featured {
		rows = append(rows, row)
	}
	return b.store.WriteJSONL(b.store.DerivedPath(snapshotID, "game_lines.jsonl"), rows)
}

// writeDerivedRows materializa event_props.jsonl con todo lo disponible.
func (b *Backfiller) writeDerivedRows(snapshotID string, eventIDs []string) error {
	var rows []any
	for _, id := range eventIDs {
		key := EventOddsRequest(b.spec, id).Key()
		if !b.store.HasResponse(snapshotID, key) {
			if !b.global.HasResponse(key) {
				continue
			}
			if err := b.global.MaterializeIntoSnapshot(b.store, snapshotID, key); err != nil {
				return err
			}
		}
		payload, err := b.store.LoadResponse(snapshotID, key)
		if err != nil {
			return err
		}
		quoteRows, err := b.norm.EventOddsRows(payload)
		if err != nil {
			slog.Warn("derived rows skipped for event", "event", id, "err", err)
			continue
		}
		for _, row := range quoteRows {
			rows = append(rows, row)
		}
	}
	return b.store.WriteJSONL(b.store.DerivedPath(snapshotID, "event_props.jsonl"), rows)
}

// failDay registra el fallo del día en el índice y produce su summary.
func (b *Backfiller) failDay(day, snapshotID string, dayErr error, estimated, remaining int) (DaySummary, error) {
	status, err := ComputeDayStatus(b.store, b.global, b.spec, day, b.tzName, b.clock)
	if err != nil {
		return DaySummary{}, err
	}
	status = status.Downgrade(dayErr)
	if err := b.index.SaveDayStatus(b.spec.ID(), status); err != nil {
		return DaySummary{}, err
	}
	return DaySummary{
		Day:              day,
		SnapshotID:       snapshotID,
		Complete:         false,
		Missing:          status.MissingCount,
		Events:           status.TotalEvents,
		EstimatedCredits: estimated,
		RemainingCredits: remaining,
		ErrorCode:        status.ErrorCode,
		Error:            status.Error,
	}, nil
}

func parseEventIDs(raw json.RawMessage) []string {
	var events []oddsapi.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil
	}
	var out []string
	for _, ev := range events {
		if ev.ID != "" {
			out = append(out, ev.ID)
		}
	}
	return out
}
