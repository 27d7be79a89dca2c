package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/propedge/internal/adapters/cache"
	"github.com/alejandrodnm/propedge/internal/ports"
)

// FetchResult es la respuesta materializada desde cache o red.
type FetchResult struct {
	Data       json.RawMessage
	Headers    map[string]string
	Status     string // ok | cached | skipped
	Key        string
	CacheLevel string // snapshot | global | network
}

// Repository resuelve requests contra snapshot + cache global, con fallback
// opcional a red gobernado por la SpendPolicy.
type Repository struct {
	store  *cache.SnapshotStore
	global *cache.GlobalCacheStore
	ledger ports.UsageLedger // puede ser nil
	clock  ports.Clock
}

// NewRepository crea el repositorio con sus dependencias inyectadas.
func NewRepository(store *cache.SnapshotStore, global *cache.GlobalCacheStore, usage ports.UsageLedger, clock ports.Clock) *Repository {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Repository{store: store, global: global, ledger: usage, clock: clock}
}

// GetOrFetch aplica la escalera de resolución:
// snapshot(resume) → snapshot → cache global → red (si la política lo permite).
// Todo hit de red se escribe también en la cache global (write-through) y se
// registra en el usage ledger.
func (r *Repository) GetOrFetch(
	ctx context.Context,
	snapshotID string,
	req Request,
	fetch func(context.Context) (ports.ProviderResponse, error),
	policy SpendPolicy,
	estimatedCredits int,
) (FetchResult, error) {
	key := req.Key()
	if err := r.store.WriteRequest(snapshotID, key, requestDescriptor(req)); err != nil {
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %w", err)
	}

	previous := r.store.RequestStatus(snapshotID, key)
	if policy.Resume && !policy.Refresh &&
		(previous == cache.StatusOK || previous == cache.StatusCached) &&
		r.store.HasResponse(snapshotID, key) {
		return r.fromSnapshot(snapshotID, key, req, cache.StatusSkipped)
	}

	if !policy.Refresh && r.store.HasResponse(snapshotID, key) {
		return r.fromSnapshot(snapshotID, key, req, cache.StatusCached)
	}

	if !policy.Refresh && r.global.HasResponse(key) {
		if err := r.global.MaterializeIntoSnapshot(r.store, snapshotID, key); err != nil {
			return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %w", err)
		}
		res, err := r.fromSnapshot(snapshotID, key, req, cache.StatusCached)
		res.CacheLevel = "global"
		return res, err
	}

	if policy.Offline {
		r.markFailed(snapshotID, key, req, "offline cache miss for "+req.Label)
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %s: %w", req.Label, ErrOfflineCacheMiss)
	}

	if req.IsPaid && policy.BlocksPaid() {
		r.markFailed(snapshotID, key, req, "paid cache miss blocked for "+req.Label)
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %s: %w", req.Label, ErrSpendBlocked)
	}

	resp, err := fetch(ctx)
	if err != nil {
		r.markFailed(snapshotID, key, req, err.Error())
		r.appendUsage(ctx, snapshotID, key, req, resp, estimatedCredits)
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: fetch %s: %w", req.Label, err)
	}

	meta := map[string]any{
		"endpoint":       req.Path,
		"status_code":    resp.StatusCode,
		"duration_ms":    resp.Duration.Milliseconds(),
		"retry_count":    resp.RetryCount,
		"headers":        resp.Headers,
		"fetched_at_utc": r.clock.Now().Format("2006-01-02T15:04:05Z"),
	}
	var payload any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		r.markFailed(snapshotID, key, req, "invalid JSON payload: "+err.Error())
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: parse %s: %w", req.Label, err)
	}
	if err := r.store.WriteResponse(snapshotID, key, payload); err != nil {
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %w", err)
	}
	if err := r.store.WriteMeta(snapshotID, key, meta); err != nil {
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %w", err)
	}
	// Write-through a la cache global: este payload no se paga dos veces.
	if err := r.global.WriteRequest(key, requestDescriptor(req)); err != nil {
		slog.Warn("global cache write failed", "key", key, "err", err)
	} else {
		_ = r.global.WriteResponse(key, payload)
		_ = r.global.WriteMeta(key, meta)
	}

	r.appendUsage(ctx, snapshotID, key, req, resp, estimatedCredits)

	if err := r.store.MarkRequest(snapshotID, key, cache.RequestRecord{
		Label:  req.Label,
		Path:   req.Path,
		Params: req.Params,
		Status: cache.StatusOK,
	}, resp.Headers); err != nil {
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %w", err)
	}

	return FetchResult{
		Data:       resp.Data,
		Headers:    resp.Headers,
		Status:     cache.StatusOK,
		Key:        key,
		CacheLevel: "network",
	}, nil
}

// fromSnapshot sirve el request desde el snapshot y actualiza el manifest.
func (r *Repository) fromSnapshot(snapshotID, key string, req Request, status string) (FetchResult, error) {
	data, err := r.store.LoadResponse(snapshotID, key)
	if err != nil {
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %w", err)
	}
	meta, _ := r.store.LoadMeta(snapshotID, key)
	headers := headersFromMeta(meta)
	if err := r.store.MarkRequest(snapshotID, key, cache.RequestRecord{
		Label:  req.Label,
		Path:   req.Path,
		Params: req.Params,
		Status: status,
	}, headers); err != nil {
		return FetchResult{}, fmt.Errorf("dataset.GetOrFetch: %w", err)
	}
	return FetchResult{
		Data:       data,
		Headers:    headers,
		Status:     status,
		Key:        key,
		CacheLevel: "snapshot",
	}, nil
}

func (r *Repository) markFailed(snapshotID, key string, req Request, msg string) {
	if err := r.store.MarkRequest(snapshotID, key, cache.RequestRecord{
		Label:  req.Label,
		Path:   req.Path,
		Params: req.Params,
		Status: cache.StatusFailed,
		Error:  msg,
	}, nil); err != nil {
		slog.Warn("manifest update failed", "snapshot", snapshotID, "key", key, "err", err)
	}
}

func (r *Repository) appendUsage(ctx context.Context, snapshotID, key string, req Request, resp ports.ProviderResponse, estimated int) {
	if r.ledger == nil {
		return
	}
	rec := ports.UsageRecord{
		Timestamp:        r.clock.Now(),
		Endpoint:         req.Path,
		RequestKey:       key,
		SnapshotID:       snapshotID,
		StatusCode:       resp.StatusCode,
		DurationMS:       int(resp.Duration.Milliseconds()),
		RetryCount:       resp.RetryCount,
		EstimatedCredits: estimated,
		QuotaRemaining:   resp.Headers["x-requests-remaining"],
		QuotaUsed:        resp.Headers["x-requests-used"],
		QuotaLast:        resp.Headers["x-requests-last"],
	}
	if err := r.ledger.Append(ctx, rec); err != nil {
		slog.Warn("usage ledger append failed", "key", key, "err", err)
	}
}

func requestDescriptor(req Request) map[string]any {
	return map[string]any{
		"method": req.Method,
		"path":   req.Path,
		"params": req.Params,
	}
}

func headersFromMeta(meta map[string]any) map[string]string {
	out := map[string]string{}
	if meta == nil {
		return out
	}
	raw, ok := meta["headers"].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
