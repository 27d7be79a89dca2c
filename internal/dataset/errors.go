package dataset

import "errors"

// Errores de política y cache. Los fallos de red/proveedor se degradan a
// error codes del day-index, nunca abortan un backfill multi-día.
var (
	// ErrOfflineCacheMiss: cache miss con --offline activo.
	ErrOfflineCacheMiss = errors.New("cache miss while offline")
	// ErrSpendBlocked: un fetch de pago está bloqueado por la política.
	ErrSpendBlocked = errors.New("paid cache miss blocked by spend policy")
	// ErrBudgetExceeded: el coste estimado supera el presupuesto restante.
	ErrBudgetExceeded = errors.New("estimated credits exceed remaining budget")
)

// Error codes primarios del day-index (conjunto cerrado).
const (
	CodeMissingEventsList = "missing_events_list"
	CodeInvalidEventsList = "invalid_events_list_payload"
	CodeMissingEventOdds  = "missing_event_odds"
	CodeOfflineCacheMiss  = "offline_cache_miss"
	CodeSpendBlocked      = "spend_blocked"
	CodeBudgetExceeded    = "budget_exceeded"
	CodeUpstream404       = "upstream_404"
	CodeUpstreamError     = "upstream_error"
	CodeIncompleteUnknown = "incomplete_unknown"
)
