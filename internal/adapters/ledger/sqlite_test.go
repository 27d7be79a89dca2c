package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/ledger"
	"github.com/alejandrodnm/propedge/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRecord(key string, status, credits int) ports.UsageRecord {
	return ports.UsageRecord{
		Timestamp:        time.Now().UTC(),
		Endpoint:         "/sports/basketball_nba/events/ev1/odds",
		RequestKey:       key,
		SnapshotID:       "day-abc12345-2026-01-10",
		StatusCode:       status,
		DurationMS:       120,
		EstimatedCredits: credits,
		QuotaRemaining:   "470",
		QuotaUsed:        "30",
	}
}

func TestSQLiteLedger_AppendAndSummarize(t *testing.T) {
	l, err := ledger.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Append(ctx, makeRecord("k1", 200, 10)))
	require.NoError(t, l.Append(ctx, makeRecord("k2", 200, 10)))
	require.NoError(t, l.Append(ctx, makeRecord("k3", 500, 0)))

	sum, err := l.Summarize(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Calls)
	assert.Equal(t, 20, sum.EstimatedCredits)
	assert.Equal(t, 1, sum.ErrorCalls)
	assert.Equal(t, "470", sum.LastQuotaLeft)
	assert.Equal(t, "30", sum.LastQuotaUsed)
}

func TestSQLiteLedger_EmptyRange(t *testing.T) {
	l, err := ledger.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	defer l.Close()

	sum, err := l.Summarize(context.Background(),
		time.Now().Add(-2*time.Hour),
		time.Now().Add(-time.Hour),
	)
	require.NoError(t, err)
	assert.Zero(t, sum.Calls)
	assert.Empty(t, sum.LastQuotaLeft)
}
