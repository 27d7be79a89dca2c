package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const manifestSchemaVersion = 1

// Estados posibles de un request dentro del manifest.
const (
	StatusOK      = "ok"      // traído de red en este run
	StatusCached  = "cached"  // servido desde cache
	StatusSkipped = "skipped" // resume: ya estaba resuelto en un run anterior
	StatusFailed  = "failed"
)

// RequestRecord es la entrada por-request del manifest.
type RequestRecord struct {
	Label        string            `json:"label"`
	Path         string            `json:"path"`
	Params       map[string]string `json:"params"`
	Status       string            `json:"status"`
	Error        string            `json:"error,omitempty"`
	UpdatedAtUTC string            `json:"updated_at_utc"`
}

// Manifest describe un snapshot: versión de esquema, configuración del run,
// cuota consolidada y el estado de cada request.
type Manifest struct {
	SchemaVersion int                      `json:"schema_version"`
	SnapshotID    string                   `json:"snapshot_id"`
	CreatedAtUTC  string                   `json:"created_at_utc"`
	RunConfig     map[string]any           `json:"run_config"`
	Quota         map[string]string        `json:"quota"`
	Requests      map[string]RequestRecord `json:"requests"`
}

// SnapshotStore es el almacén content-addressed de requests/responses crudos.
// Layout por snapshot: manifest.json, requests/, responses/, meta/, derived/.
// Todas las escrituras son atómicas (temp + rename) y el snapshot entero se
// protege con un lock file por proceso.
type SnapshotStore struct {
	root string
	mu   sync.Mutex // serializa read-modify-write del manifest en proceso
}

// NewSnapshotStore crea el store sobre el directorio raíz dado.
func NewSnapshotStore(root string) (*SnapshotStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cache.NewSnapshotStore: resolve %q: %w", root, err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "snapshots"), 0o755); err != nil {
		return nil, fmt.Errorf("cache.NewSnapshotStore: mkdir: %w", err)
	}
	return &SnapshotStore{root: abs}, nil
}

// Root devuelve el directorio raíz del store.
func (s *SnapshotStore) Root() string { return s.root }

// SnapshotDir devuelve el directorio de un snapshot.
func (s *SnapshotStore) SnapshotDir(snapshotID string) string {
	return filepath.Join(s.root, "snapshots", snapshotID)
}

func (s *SnapshotStore) manifestPath(snapshotID string) string {
	return filepath.Join(s.SnapshotDir(snapshotID), "manifest.json")
}

func (s *SnapshotStore) requestPath(snapshotID, key string) string {
	return filepath.Join(s.SnapshotDir(snapshotID), "requests", key+".json")
}

func (s *SnapshotStore) responsePath(snapshotID, key string) string {
	return filepath.Join(s.SnapshotDir(snapshotID), "responses", key+".json")
}

func (s *SnapshotStore) metaPath(snapshotID, key string) string {
	return filepath.Join(s.SnapshotDir(snapshotID), "meta", key+".json")
}

// DerivedPath devuelve la ruta de un artefacto derivado del snapshot.
func (s *SnapshotStore) DerivedPath(snapshotID, name string) string {
	return filepath.Join(s.SnapshotDir(snapshotID), "derived", name)
}

// EnsureSnapshot crea la estructura del snapshot y su manifest si no existen.
// Si ya existe, conserva el manifest actual (append-only).
func (s *SnapshotStore) EnsureSnapshot(snapshotID string, runConfig map[string]any) error {
	dir := s.SnapshotDir(snapshotID)
	for _, sub := range []string{"requests", "responses", "meta", "derived"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("cache.EnsureSnapshot: mkdir %s: %w", sub, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.manifestPath(snapshotID)); err == nil {
		return nil
	}
	manifest := Manifest{
		SchemaVersion: manifestSchemaVersion,
		SnapshotID:    snapshotID,
		CreatedAtUTC:  utcNow(),
		RunConfig:     runConfig,
		Quota:         map[string]string{},
		Requests:      map[string]RequestRecord{},
	}
	if err := atomicWriteJSON(s.manifestPath(snapshotID), manifest); err != nil {
		return fmt.Errorf("cache.EnsureSnapshot: write manifest: %w", err)
	}
	return nil
}

// LoadManifest lee el manifest del snapshot.
func (s *SnapshotStore) LoadManifest(snapshotID string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(s.manifestPath(snapshotID))
	if err != nil {
		return m, fmt.Errorf("cache.LoadManifest: read: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("cache.LoadManifest: parse: %w", err)
	}
	return m, nil
}

// HasResponse indica si el snapshot ya tiene la respuesta para la clave.
func (s *SnapshotStore) HasResponse(snapshotID, key string) bool {
	_, err := os.Stat(s.responsePath(snapshotID, key))
	return err == nil
}

// LoadResponse lee la respuesta cruda (JSON) de la clave.
func (s *SnapshotStore) LoadResponse(snapshotID, key string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.responsePath(snapshotID, key))
	if err != nil {
		return nil, fmt.Errorf("cache.LoadResponse: read %s: %w", key, err)
	}
	return json.RawMessage(data), nil
}

// LoadMeta lee los metadatos de la respuesta, o nil si no existen.
func (s *SnapshotStore) LoadMeta(snapshotID, key string) (map[string]any, error) {
	data, err := os.ReadFile(s.metaPath(snapshotID, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache.LoadMeta: read %s: %w", key, err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("cache.LoadMeta: parse %s: %w", key, err)
	}
	return meta, nil
}

// WriteRequest persiste el descriptor del request bajo su clave.
func (s *SnapshotStore) WriteRequest(snapshotID, key string, request any) error {
	if err := atomicWriteJSON(s.requestPath(snapshotID, key), request); err != nil {
		return fmt.Errorf("cache.WriteRequest: %w", err)
	}
	return nil
}

// WriteResponse persiste la respuesta cruda bajo su clave.
func (s *SnapshotStore) WriteResponse(snapshotID, key string, response any) error {
	if err := atomicWriteJSON(s.responsePath(snapshotID, key), response); err != nil {
		return fmt.Errorf("cache.WriteResponse: %w", err)
	}
	return nil
}

// WriteMeta persiste los metadatos (status, duración, headers de cuota).
func (s *SnapshotStore) WriteMeta(snapshotID, key string, meta any) error {
	if err := atomicWriteJSON(s.metaPath(snapshotID, key), meta); err != nil {
		return fmt.Errorf("cache.WriteMeta: %w", err)
	}
	return nil
}

// RequestStatus devuelve el estado registrado de un request, o "" si no hay.
func (s *SnapshotStore) RequestStatus(snapshotID, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.LoadManifest(snapshotID)
	if err != nil {
		return ""
	}
	return m.Requests[key].Status
}

// MarkRequest actualiza la entrada del request en el manifest y consolida la
// cuota más reciente.
func (s *SnapshotStore) MarkRequest(snapshotID, key string, rec RequestRecord, quota map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.LoadManifest(snapshotID)
	if err != nil {
		return fmt.Errorf("cache.MarkRequest: %w", err)
	}
	rec.UpdatedAtUTC = utcNow()
	m.Requests[key] = rec
	for k, v := range quota {
		if v != "" {
			m.Quota[k] = v
		}
	}
	if err := atomicWriteJSON(s.manifestPath(snapshotID), m); err != nil {
		return fmt.Errorf("cache.MarkRequest: write manifest: %w", err)
	}
	return nil
}

// WriteJSONL escribe filas JSONL de forma atómica en la ruta dada.
func (s *SnapshotStore) WriteJSONL(path string, rows []any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache.WriteJSONL: mkdir: %w", err)
	}
	tmp := tempSibling(path)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cache.WriteJSONL: create temp: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("cache.WriteJSONL: encode: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache.WriteJSONL: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache.WriteJSONL: rename: %w", err)
	}
	return nil
}

// WriteDerivedJSON escribe un artefacto derivado del snapshot de forma
// atómica.
func (s *SnapshotStore) WriteDerivedJSON(snapshotID, name string, value any) error {
	if err := atomicWriteJSON(s.DerivedPath(snapshotID, name), value); err != nil {
		return fmt.Errorf("cache.WriteDerivedJSON: %w", err)
	}
	return nil
}

// LockSnapshot adquiere el lock exclusivo del snapshot. Bloquea (con polling)
// hasta conseguirlo o hasta que el contexto se cancele. El caller debe llamar
// al release devuelto.
func (s *SnapshotStore) LockSnapshot(ctx context.Context, snapshotID string) (release func(), err error) {
	dir := s.SnapshotDir(snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache.LockSnapshot: mkdir: %w", err)
	}
	lockPath := filepath.Join(dir, ".lock")
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("cache.LockSnapshot: create lock: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("cache.LockSnapshot: waiting for %s: %w", lockPath, ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// --- helpers internos ---

// atomicWriteJSON escribe JSON con temp-file + rename: un crash a medio write
// deja solo el archivo temporal, nunca un canónico parcial.
func atomicWriteJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := tempSibling(path)
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func tempSibling(path string) string {
	return filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-"+uuid.New().String()[:8])
}

func utcNow() string {
	return time.Now().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
