package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// GlobalCacheStore es la cache compartida por clave, independiente de los
// snapshot ids. Un payload traído una vez no se vuelve a pagar nunca.
type GlobalCacheStore struct {
	root string
}

// NewGlobalCacheStore crea la cache global bajo el raíz dado.
func NewGlobalCacheStore(root string) (*GlobalCacheStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cache.NewGlobalCacheStore: resolve %q: %w", root, err)
	}
	cacheDir := filepath.Join(abs, "odds_cache")
	for _, sub := range []string{"requests", "responses", "meta"} {
		if err := os.MkdirAll(filepath.Join(cacheDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("cache.NewGlobalCacheStore: mkdir %s: %w", sub, err)
		}
	}
	return &GlobalCacheStore{root: cacheDir}, nil
}

func (g *GlobalCacheStore) requestPath(key string) string {
	return filepath.Join(g.root, "requests", key+".json")
}

func (g *GlobalCacheStore) responsePath(key string) string {
	return filepath.Join(g.root, "responses", key+".json")
}

func (g *GlobalCacheStore) metaPath(key string) string {
	return filepath.Join(g.root, "meta", key+".json")
}

// HasResponse indica si la cache global tiene respuesta para la clave.
func (g *GlobalCacheStore) HasResponse(key string) bool {
	_, err := os.Stat(g.responsePath(key))
	return err == nil
}

// LoadResponse lee la respuesta cruda de la clave, o nil si no existe.
func (g *GlobalCacheStore) LoadResponse(key string) (json.RawMessage, error) {
	data, err := os.ReadFile(g.responsePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache.GlobalCacheStore.LoadResponse: %w", err)
	}
	return json.RawMessage(data), nil
}

// WriteRequest persiste el descriptor del request.
func (g *GlobalCacheStore) WriteRequest(key string, request any) error {
	if err := atomicWriteJSON(g.requestPath(key), request); err != nil {
		return fmt.Errorf("cache.GlobalCacheStore.WriteRequest: %w", err)
	}
	return nil
}

// WriteResponse persiste la respuesta cruda.
func (g *GlobalCacheStore) WriteResponse(key string, response any) error {
	if err := atomicWriteJSON(g.responsePath(key), response); err != nil {
		return fmt.Errorf("cache.GlobalCacheStore.WriteResponse: %w", err)
	}
	return nil
}

// WriteMeta persiste los metadatos de la respuesta.
func (g *GlobalCacheStore) WriteMeta(key string, meta any) error {
	if err := atomicWriteJSON(g.metaPath(key), meta); err != nil {
		return fmt.Errorf("cache.GlobalCacheStore.WriteMeta: %w", err)
	}
	return nil
}

// MaterializeIntoSnapshot copia (hardlink si se puede) la tripleta
// request/response/meta de la cache global dentro del snapshot, sin
// sobreescribir lo que el snapshot ya tenga.
func (g *GlobalCacheStore) MaterializeIntoSnapshot(store *SnapshotStore, snapshotID, key string) error {
	if err := store.EnsureSnapshot(snapshotID, nil); err != nil {
		return fmt.Errorf("cache.MaterializeIntoSnapshot: %w", err)
	}
	pairs := [][2]string{
		{g.requestPath(key), store.requestPath(snapshotID, key)},
		{g.responsePath(key), store.responsePath(snapshotID, key)},
		{g.metaPath(key), store.metaPath(snapshotID, key)},
	}
	for _, pair := range pairs {
		src, dst := pair[0], pair[1]
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := os.Link(src, dst); err == nil {
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("cache.MaterializeIntoSnapshot: copy %s: %w", key, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
