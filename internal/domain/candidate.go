package domain

import (
	"strconv"
	"time"
)

// Tiers de profundidad de una línea priceada.
const (
	TierA = "A" // ≥2 discovery books confirman el punto resuelto
	TierB = "B" // exactamente 1 book; exige un floor de EV más alto
)

// Candidate es una identidad de ticket unida al precio del execution book
// y al resultado de pricing.
type Candidate struct {
	EventID      string    `json:"event_id"`
	GameLabel    string    `json:"game_label"`
	Player       string    `json:"player"`
	Market       string    `json:"market"`
	Point        float64   `json:"point"`
	Side         string    `json:"side"`
	CommenceTime time.Time `json:"commence_time"`

	// Precio y book de ejecución contra el que se calcula todo EV.
	ExecBook  string  `json:"exec_book"`
	ExecPrice float64 `json:"exec_price"`
	ExecLink  string  `json:"exec_link,omitempty"`

	Pricing PricingResult `json:"pricing"`
	Tier    string        `json:"tier"`

	// EV en el punto estimado y en el extremo conservador de la banda.
	EV    float64 `json:"ev"`
	EVLow float64 `json:"ev_low"`
	// Campos de apoyo a ejecución.
	Kelly  float64 `json:"kelly"`
	PlayTo float64 `json:"play_to_decimal"`

	// Copiado de la fila derivada: la resolución viene fijada de la
	// frontera de normalización.
	IdentityResolved bool `json:"identity_resolved"`
}

// IdentitySortKey devuelve la clave estable de desempate para ordenaciones
// deterministas entre candidatos.
func (c Candidate) IdentitySortKey() [5]string {
	return [5]string{c.EventID, c.Player, c.Market, formatPoint(c.Point), c.Side}
}

func formatPoint(p float64) string {
	// Representación fija para que el desempate por punto sea estable.
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// Exclusion es un candidato apartado con su reason code estable.
type Exclusion struct {
	Candidate Candidate `json:"candidate"`
	Reasons   []string  `json:"reasons"`
}

// Ticket es una selección final del plan con su precio de ejecución exacto.
type Ticket struct {
	Candidate Candidate `json:"candidate"`
	Rank      int       `json:"rank"`
}

// ExecutionPlan es la salida final y determinista de una ejecución:
// tickets seleccionados, watchlist con razones y metadatos del run.
type ExecutionPlan struct {
	RunID          string      `json:"run_id"`
	SnapshotID     string      `json:"snapshot_id"`
	Strategy       string      `json:"strategy"`
	GeneratedAtUTC time.Time   `json:"generated_at_utc"`
	Mode           string      `json:"mode"` // full_board | watchlist_only
	Picks          []Ticket    `json:"picks"`
	Watchlist      []Exclusion `json:"watchlist"`
}

// Modos de ejecución del plan.
const (
	ModeFullBoard     = "full_board"
	ModeWatchlistOnly = "watchlist_only"
)
