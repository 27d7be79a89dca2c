package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alejandrodnm/propedge/internal/adapters/cache"
	"github.com/alejandrodnm/propedge/internal/adapters/oddsapi"
	"github.com/alejandrodnm/propedge/internal/ports"
)

// DayStatus es el registro de completitud de un día del dataset.
// Se escribe de forma atómica y se re-deriva idempotentemente desde cache.
type DayStatus struct {
	DatasetID         string   `json:"dataset_id"`
	Day               string   `json:"day"`
	TZName            string   `json:"tz_name"`
	CommenceFrom      string   `json:"commence_from"`
	CommenceTo        string   `json:"commence_to"`
	SnapshotID        string   `json:"snapshot_id"`
	Complete          bool     `json:"complete"`
	StatusCode        string   `json:"status_code"`
	ErrorCode         string   `json:"error_code"`
	ReasonCodes       []string `json:"reason_codes"`
	MissingCount      int      `json:"missing_count"`
	TotalEvents       int      `json:"total_events"`
	PresentEventOdds  int      `json:"present_event_odds"`
	OddsCoverageRatio float64  `json:"odds_coverage_ratio"`
	EventIDs          []string `json:"event_ids"`
	MissingEventIDs   []string `json:"missing_event_ids"`
	Note              string   `json:"note,omitempty"`
	Error             string   `json:"error,omitempty"`
	UpdatedAtUTC      string   `json:"updated_at_utc"`
}

// Index persiste specs y day statuses bajo datasets/<id>/.
type Index struct {
	root string
}

// NewIndex crea el índice bajo el raíz de datos dado.
func NewIndex(root string) *Index {
	return &Index{root: root}
}

func (ix *Index) datasetDir(datasetID string) string {
	return filepath.Join(ix.root, "datasets", datasetID)
}

func (ix *Index) dayPath(datasetID, day string) string {
	return filepath.Join(ix.datasetDir(datasetID), "days", day+".json")
}

// SaveSpec persiste la spec canónica del dataset junto a su id.
func (ix *Index) SaveSpec(spec Spec) error {
	canonical := spec.Canonical()
	payload := struct {
		Spec
		DatasetID string `json:"dataset_id"`
	}{Spec: canonical, DatasetID: spec.ID()}
	path := filepath.Join(ix.datasetDir(spec.ID()), "spec.json")
	if err := atomicWriteJSON(path, payload); err != nil {
		return fmt.Errorf("dataset.SaveSpec: %w", err)
	}
	return nil
}

// LoadDayStatus lee el status de un día, o (nil, nil) si no existe.
func (ix *Index) LoadDayStatus(datasetID, day string) (*DayStatus, error) {
	data, err := os.ReadFile(ix.dayPath(datasetID, day))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dataset.LoadDayStatus: %w", err)
	}
	var status DayStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("dataset.LoadDayStatus: parse %s: %w", day, err)
	}
	return &status, nil
}

// SaveDayStatus escribe el status del día de forma atómica: un lector
// concurrente nunca observa un write parcial.
func (ix *Index) SaveDayStatus(datasetID string, status DayStatus) error {
	if err := atomicWriteJSON(ix.dayPath(datasetID, status.Day), status); err != nil {
		return fmt.Errorf("dataset.SaveDayStatus: %w", err)
	}
	return nil
}

// ListDays devuelve los días con status registrado, ordenados.
func (ix *Index) ListDays(datasetID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(ix.datasetDir(datasetID), "days"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dataset.ListDays: %w", err)
	}
	var days []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".tmp-") {
			days = append(days, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(days)
	return days, nil
}

// ComputeDayStatus re-deriva el estado de completitud de un día mirando solo
// la cache (snapshot + global), sin tocar la red. Idempotente por diseño.
func ComputeDayStatus(
	store *cache.SnapshotStore,
	global *cache.GlobalCacheStore,
	spec Spec,
	day, tzName string,
	clock ports.Clock,
) (DayStatus, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	commenceFrom, commenceTo, err := DayWindow(day, tzName)
	if err != nil {
		return DayStatus{}, fmt.Errorf("dataset.ComputeDayStatus: %w", err)
	}
	snapshotID := SnapshotIDForDay(spec, day)
	eventsReq := EventsRequest(spec, commenceFrom, commenceTo)
	eventsKey := eventsReq.Key()

	status := DayStatus{
		DatasetID:    spec.ID(),
		Day:          day,
		TZName:       tzName,
		CommenceFrom: commenceFrom,
		CommenceTo:   commenceTo,
		SnapshotID:   snapshotID,
		UpdatedAtUTC: clock.Now().Format("2006-01-02T15:04:05Z"),
	}

	payload := loadCachedPayload(store, global, snapshotID, eventsKey)
	if payload == nil {
		status.Note = "missing events list response"
		return finalizeStatus(status, CodeMissingEventsList), nil
	}

	var events []oddsapi.Event
	if err := json.Unmarshal(payload, &events); err != nil {
		status.Note = "invalid events list payload"
		return finalizeStatus(status, CodeInvalidEventsList), nil
	}

	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		status.EventIDs = append(status.EventIDs, ev.ID)
		key := EventOddsRequest(spec, ev.ID).Key()
		if store.HasResponse(snapshotID, key) || global.HasResponse(key) {
			status.PresentEventOdds++
		} else {
			status.MissingEventIDs = append(status.MissingEventIDs, ev.ID)
		}
	}
	status.TotalEvents = len(status.EventIDs)
	status.MissingCount = len(status.MissingEventIDs)
	if status.TotalEvents > 0 {
		status.OddsCoverageRatio = float64(status.PresentEventOdds) / float64(status.TotalEvents)
	}
	if status.MissingCount > 0 {
		return finalizeStatus(status, CodeMissingEventOdds), nil
	}
	status.Complete = true
	status.StatusCode = "complete"
	status.OddsCoverageRatio = coverageOrOne(status)
	return status, nil
}

// Downgrade marca el día incompleto con el error code primario derivado del
// error de backfill, conservando los reason codes ya presentes.
func (s DayStatus) Downgrade(err error) DayStatus {
	code := ErrorCodeFor(err)
	s.Error = err.Error()
	s.Complete = false
	return finalizeStatus(s, code)
}

// ErrorCodeFor mapea un error del flujo de adquisición al conjunto cerrado de
// error codes del day-index.
func ErrorCodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOfflineCacheMiss):
		return CodeOfflineCacheMiss
	case errors.Is(err, ErrSpendBlocked):
		return CodeSpendBlocked
	case errors.Is(err, ErrBudgetExceeded):
		return CodeBudgetExceeded
	}
	var apiErr *oddsapi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 404 {
			return CodeUpstream404
		}
		return CodeUpstreamError
	}
	return CodeIncompleteUnknown
}

// finalizeStatus fija el error code primario, los reason codes y el
// status_code compuesto.
func finalizeStatus(s DayStatus, primary string) DayStatus {
	s.Complete = false
	s.ErrorCode = primary
	s.StatusCode = "incomplete_" + primary
	if !contains(s.ReasonCodes, primary) {
		s.ReasonCodes = append(s.ReasonCodes, primary)
	}
	// missing_event_odds sigue siendo razón secundaria aunque el primario
	// sea un fallo de política o de red.
	if s.MissingCount > 0 && !contains(s.ReasonCodes, CodeMissingEventOdds) {
		s.ReasonCodes = append(s.ReasonCodes, CodeMissingEventOdds)
	}
	sort.Strings(s.ReasonCodes)
	return s
}

func coverageOrOne(s DayStatus) float64 {
	if s.TotalEvents == 0 {
		return 1.0
	}
	return s.OddsCoverageRatio
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func loadCachedPayload(store *cache.SnapshotStore, global *cache.GlobalCacheStore, snapshotID, key string) json.RawMessage {
	if store.HasResponse(snapshotID, key) {
		if data, err := store.LoadResponse(snapshotID, key); err == nil {
			return data
		}
	}
	if global.HasResponse(key) {
		if data, err := global.LoadResponse(key); err == nil {
			return data
		}
	}
	return nil
}

// atomicWriteJSON replica el contrato de escritura atómica del cache store
// para los artefactos del índice.
func atomicWriteJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
