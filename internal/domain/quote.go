package domain

import "time"

// Lados canónicos de una línea over/under.
const (
	SideOver  = "over"
	SideUnder = "under"
)

// QuoteRow es la unidad canónica de datos de mercado tras normalizar.
// La tupla de identidad (EventID, Market, Player, Side, Book, Point) es única
// dentro de una tabla normalizada.
type QuoteRow struct {
	EventID      string    `json:"event_id"`
	Market       string    `json:"market"`
	Player       string    `json:"player"`
	Side         string    `json:"side"`
	Book         string    `json:"book"`
	Point        float64   `json:"point"`
	Price        float64   `json:"price"`
	LastUpdate   time.Time `json:"last_update"`
	CommenceTime time.Time `json:"commence_time"`
	Link         string    `json:"link,omitempty"`
	// IdentityResolved se fija en la frontera de normalización: el resto del
	// pipeline nunca vuelve a consultar el identity map.
	IdentityResolved bool `json:"identity_resolved"`
}

// FeaturedRow es la fila normalizada de mercados destacados (game-level).
// Identidad: (GameID, Market, Book, Side, Point).
type FeaturedRow struct {
	GameID     string    `json:"game_id"`
	Market     string    `json:"market"`
	Book       string    `json:"book"`
	Side       string    `json:"side"`
	Point      float64   `json:"point"`
	Price      float64   `json:"price"`
	LastUpdate time.Time `json:"last_update"`
}

// Less define el orden total determinista de las filas normalizadas:
// tupla de identidad completa y después precio.
func (q QuoteRow) Less(other QuoteRow) bool {
	if q.EventID != other.EventID {
		return q.EventID < other.EventID
	}
	if q.Market != other.Market {
		return q.Market < other.Market
	}
	if q.Player != other.Player {
		return q.Player < other.Player
	}
	if q.Side != other.Side {
		return q.Side < other.Side
	}
	if q.Book != other.Book {
		return q.Book < other.Book
	}
	if q.Point != other.Point {
		return q.Point < other.Point
	}
	return q.Price < other.Price
}

// IdentityKey devuelve la tupla de identidad como clave de deduplicación.
type IdentityKey struct {
	EventID string
	Market  string
	Player  string
	Side    string
	Book    string
	Point   float64
}

// Identity devuelve la clave de identidad de la fila.
func (q QuoteRow) Identity() IdentityKey {
	return IdentityKey{
		EventID: q.EventID,
		Market:  q.Market,
		Player:  q.Player,
		Side:    q.Side,
		Book:    q.Book,
		Point:   q.Point,
	}
}
