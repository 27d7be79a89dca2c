package cache_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/propedge/internal/adapters/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore_WriteAndLoad(t *testing.T) {
	store, err := cache.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.EnsureSnapshot("snap-1", map[string]any{"mode": "test"}))

	key := cache.ComputeKey("GET", "/sports/basketball_nba/events", nil)
	require.NoError(t, store.WriteRequest("snap-1", key, map[string]string{"path": "/events"}))
	require.NoError(t, store.WriteResponse("snap-1", key, []map[string]string{{"id": "ev1"}}))
	require.NoError(t, store.WriteMeta("snap-1", key, map[string]any{"status_code": 200}))

	assert.True(t, store.HasResponse("snap-1", key))
	raw, err := store.LoadResponse("snap-1", key)
	require.NoError(t, err)

	var events []map[string]string
	require.NoError(t, json.Unmarshal(raw, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "ev1", events[0]["id"])

	meta, err := store.LoadMeta("snap-1", key)
	require.NoError(t, err)
	assert.EqualValues(t, 200, meta["status_code"])
}

func TestSnapshotStore_ManifestLifecycle(t *testing.T) {
	store, err := cache.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSnapshot("snap-1", map[string]any{"day": "2026-01-10"}))

	key := "abc123"
	assert.Empty(t, store.RequestStatus("snap-1", key))

	require.NoError(t, store.MarkRequest("snap-1", key, cache.RequestRecord{
		Label:  "events_list",
		Path:   "/sports/basketball_nba/events",
		Status: cache.StatusOK,
	}, map[string]string{"remaining": "480"}))

	assert.Equal(t, cache.StatusOK, store.RequestStatus("snap-1", key))

	m, err := store.LoadManifest("snap-1")
	require.NoError(t, err)
	assert.Equal(t, "snap-1", m.SnapshotID)
	assert.Equal(t, "480", m.Quota["remaining"])
	assert.Equal(t, "2026-01-10", m.RunConfig["day"])

	// EnsureSnapshot repetido no pisa el manifest existente
	require.NoError(t, store.EnsureSnapshot("snap-1", map[string]any{"day": "otro"}))
	m2, err := store.LoadManifest("snap-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-10", m2.RunConfig["day"])
}

func TestSnapshotStore_AtomicWriteLeavesNoPartials(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewSnapshotStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSnapshot("snap-1", nil))
	require.NoError(t, store.WriteResponse("snap-1", "k1", map[string]string{"a": "b"}))

	// No debe quedar ningún archivo temporal tras una escritura correcta
	entries, err := os.ReadDir(filepath.Join(store.SnapshotDir("snap-1"), "responses"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestSnapshotStore_LockBlocksSecondWriter(t *testing.T) {
	store, err := cache.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)

	release, err := store.LockSnapshot(context.Background(), "snap-1")
	require.NoError(t, err)

	// Un segundo lock con deadline corto debe fallar por contexto
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_, err = store.LockSnapshot(ctx, "snap-1")
	assert.Error(t, err)

	release()

	// Liberado el lock, se puede volver a adquirir
	release2, err := store.LockSnapshot(context.Background(), "snap-1")
	require.NoError(t, err)
	release2()
}

func TestGlobalCacheStore_MaterializeIntoSnapshot(t *testing.T) {
	root := t.TempDir()
	store, err := cache.NewSnapshotStore(root)
	require.NoError(t, err)
	global, err := cache.NewGlobalCacheStore(root)
	require.NoError(t, err)

	key := "deadbeef"
	require.NoError(t, global.WriteRequest(key, map[string]string{"path": "/x"}))
	require.NoError(t, global.WriteResponse(key, map[string]string{"payload": "y"}))
	require.NoError(t, global.WriteMeta(key, map[string]any{"status_code": 200}))

	assert.True(t, global.HasResponse(key))
	assert.False(t, store.HasResponse("snap-1", key))

	require.NoError(t, global.MaterializeIntoSnapshot(store, "snap-1", key))
	assert.True(t, store.HasResponse("snap-1", key))

	raw, err := store.LoadResponse("snap-1", key)
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "y", payload["payload"])
}

func TestSnapshotStore_WriteJSONL(t *testing.T) {
	store, err := cache.NewSnapshotStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSnapshot("snap-1", nil))

	path := store.DerivedPath("snap-1", "event_props.jsonl")
	rows := []any{
		map[string]string{"event_id": "a"},
		map[string]string{"event_id": "b"},
	}
	require.NoError(t, store.WriteJSONL(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(data))
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
