package ports

import (
	"context"
	"encoding/json"
	"time"
)

// ProviderResponse es el sobre de una respuesta del proveedor: payload crudo
// más los metadatos necesarios para el ledger y el manifest.
type ProviderResponse struct {
	Data       json.RawMessage
	Headers    map[string]string
	StatusCode int
	Duration   time.Duration
	RetryCount int
}

// EventOddsQuery son los parámetros de un fetch de odds, por evento o
// featured. La ventana de commence solo aplica al endpoint featured.
type EventOddsQuery struct {
	Markets      []string
	Regions      string
	Bookmakers   string
	IncludeLinks bool
	IncludeSids  bool
	CommenceFrom string
	CommenceTo   string
}

// OddsProvider abstrae el API HTTP del proveedor de odds.
// Los tests sustituyen fakes por construcción, nunca con patching.
type OddsProvider interface {
	// ListEvents devuelve los eventos del deporte en la ventana [from, to).
	ListEvents(ctx context.Context, sportKey, commenceFrom, commenceTo string) (ProviderResponse, error)

	// GetEventOdds devuelve las odds de un evento para los mercados pedidos.
	GetEventOdds(ctx context.Context, sportKey, eventID string, q EventOddsQuery) (ProviderResponse, error)

	// GetFeaturedOdds devuelve los mercados destacados (game-level) del deporte.
	GetFeaturedOdds(ctx context.Context, sportKey string, q EventOddsQuery) (ProviderResponse, error)
}
