package ports

import (
	"context"
	"time"
)

// UsageRecord es una fila del ledger de consumo: una por llamada de red,
// tenga éxito o no.
type UsageRecord struct {
	Timestamp        time.Time
	Endpoint         string
	RequestKey       string
	SnapshotID       string
	StatusCode       int
	DurationMS       int
	RetryCount       int
	Cached           bool
	EstimatedCredits int
	// Totales facturados según los headers de cuota del proveedor;
	// son la fuente de verdad contable, no la estimación.
	QuotaRemaining string
	QuotaUsed      string
	QuotaLast      string
}

// UsageSummary agrega el consumo de un rango temporal.
type UsageSummary struct {
	Calls            int
	EstimatedCredits int
	ErrorCalls       int
	LastQuotaUsed    string
	LastQuotaLeft    string
}

// UsageLedger persiste el registro de consumo del proveedor.
type UsageLedger interface {
	Append(ctx context.Context, rec UsageRecord) error
	Summarize(ctx context.Context, from, to time.Time) (UsageSummary, error)
	Close() error
}
