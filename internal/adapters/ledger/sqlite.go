package ledger

// sqlite.go — usage ledger del proveedor de odds.
//
// Una fila por llamada de red, tenga éxito o no. Los headers de cuota del
// proveedor son la fuente de verdad contable; la estimación solo sirve para
// el presupuesto previo a la llamada.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/propedge/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_log (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    ts                DATETIME NOT NULL,
    endpoint          TEXT     NOT NULL,
    request_key       TEXT     NOT NULL,
    snapshot_id       TEXT     NOT NULL,
    status_code       INTEGER  NOT NULL DEFAULT 0,
    duration_ms       INTEGER  NOT NULL DEFAULT 0,
    retry_count       INTEGER  NOT NULL DEFAULT 0,
    cached            INTEGER  NOT NULL DEFAULT 0,
    estimated_credits INTEGER  NOT NULL DEFAULT 0,
    quota_remaining   TEXT     NOT NULL DEFAULT '',
    quota_used        TEXT     NOT NULL DEFAULT '',
    quota_last        TEXT     NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_usage_ts       ON usage_log(ts DESC);
CREATE INDEX IF NOT EXISTS idx_usage_snapshot ON usage_log(snapshot_id);
`

// SQLiteLedger implementa ports.UsageLedger sobre SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) el ledger en la ruta dada y aplica el schema.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger.NewSQLiteLedger: apply schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Append registra una llamada de red en el ledger.
func (l *SQLiteLedger) Append(ctx context.Context, rec ports.UsageRecord) error {
	cached := 0
	if rec.Cached {
		cached = 1
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_log
			(ts, endpoint, request_key, snapshot_id, status_code, duration_ms,
			 retry_count, cached, estimated_credits,
			 quota_remaining, quota_used, quota_last)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC(), rec.Endpoint, rec.RequestKey, rec.SnapshotID,
		rec.StatusCode, rec.DurationMS, rec.RetryCount, cached,
		rec.EstimatedCredits, rec.QuotaRemaining, rec.QuotaUsed, rec.QuotaLast,
	); err != nil {
		return fmt.Errorf("ledger.Append: insert: %w", err)
	}
	return nil
}

// Summarize agrega las llamadas del rango [from, to].
func (l *SQLiteLedger) Summarize(ctx context.Context, from, to time.Time) (ports.UsageSummary, error) {
	var out ports.UsageSummary
	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(estimated_credits), 0),
		       COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0)
		FROM usage_log
		WHERE ts BETWEEN ? AND ?`,
		from.UTC(), to.UTC(),
	)
	if err := row.Scan(&out.Calls, &out.EstimatedCredits, &out.ErrorCalls); err != nil {
		return out, fmt.Errorf("ledger.Summarize: totals: %w", err)
	}

	// La última llamada con headers de cuota marca el estado real del plan.
	row = l.db.QueryRowContext(ctx, `
		SELECT quota_used, quota_remaining
		FROM usage_log
		WHERE ts BETWEEN ? AND ? AND quota_remaining != ''
		ORDER BY ts DESC, id DESC
		LIMIT 1`,
		from.UTC(), to.UTC(),
	)
	if err := row.Scan(&out.LastQuotaUsed, &out.LastQuotaLeft); err != nil && err != sql.ErrNoRows {
		return out, fmt.Errorf("ledger.Summarize: last quota: %w", err)
	}
	return out, nil
}

// Close cierra la conexión a la base de datos.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
