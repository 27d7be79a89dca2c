package normalize

// normalize.go — transforma JSON crudo del proveedor en QuoteRows canónicos.
//
// Transform puro y determinista: mismo payload → misma salida byte a byte.
// Nada de orden de iteración de maps, wall-clock ni ids aleatorios.

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alejandrodnm/propedge/internal/adapters/oddsapi"
	"github.com/alejandrodnm/propedge/internal/domain"
)

// Normalizer convierte payloads crudos en tablas normalizadas aplicando el
// identity map en la frontera.
type Normalizer struct {
	identity *IdentityMap
}

// New crea el Normalizer con su identity map.
func New(identity *IdentityMap) *Normalizer {
	if identity == nil {
		identity = &IdentityMap{
			Players: map[string]string{},
			Books:   map[string]string{},
			Teams:   map[string]string{},
		}
	}
	return &Normalizer{identity: identity}
}

// EventOddsRows normaliza la respuesta de odds de UN evento a QuoteRows
// ordenados y deduplicados.
func (n *Normalizer) EventOddsRows(raw json.RawMessage) ([]domain.QuoteRow, error) {
	var payload oddsapi.EventOdds
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("normalize.EventOddsRows: parse payload: %w", err)
	}

	var rows []domain.QuoteRow
	for _, book := range payload.Bookmakers {
		bookKey := n.identity.ResolveBook(book.Key)
		for _, market := range book.Markets {
			lastUpdate := market.LastUpdate
			if lastUpdate.IsZero() {
				lastUpdate = book.LastUpdate
			}
			for _, outcome := range market.Outcomes {
				side := strings.ToLower(strings.TrimSpace(outcome.Name))
				if side != domain.SideOver && side != domain.SideUnder {
					continue
				}
				player, resolved := n.identity.ResolvePlayer(outcome.Description)
				point := 0.0
				if outcome.Point != nil {
					point = *outcome.Point
				}
				rows = append(rows, domain.QuoteRow{
					EventID:          payload.ID,
					Market:           market.Key,
					Player:           player,
					Side:             side,
					Book:             bookKey,
					Point:            point,
					Price:            outcome.Price,
					LastUpdate:       lastUpdate.UTC(),
					CommenceTime:     payload.CommenceTime.UTC(),
					Link:             outcome.Link,
					IdentityResolved: resolved,
				})
			}
		}
	}
	return sortAndDedupe(rows), nil
}

// FeaturedRows normaliza la respuesta featured (lista de juegos) a filas
// game-level ordenadas y deduplicadas.
func (n *Normalizer) FeaturedRows(raw json.RawMessage) ([]domain.FeaturedRow, error) {
	var games []oddsapi.EventOdds
	if err := json.Unmarshal(raw, &games); err != nil {
		return nil, fmt.Errorf("normalize.FeaturedRows: parse payload: %w", err)
	}

	var rows []domain.FeaturedRow
	for _, game := range games {
		for _, book := range game.Bookmakers {
			bookKey := n.identity.ResolveBook(book.Key)
			for _, market := range book.Markets {
				lastUpdate := market.LastUpdate
				if lastUpdate.IsZero() {
					lastUpdate = book.LastUpdate
				}
				for _, outcome := range market.Outcomes {
					point := 0.0
					if outcome.Point != nil {
						point = *outcome.Point
					}
					rows = append(rows, domain.FeaturedRow{
						GameID:     game.ID,
						Market:     market.Key,
						Book:       bookKey,
						Side:       strings.ToLower(strings.TrimSpace(outcome.Name)),
						Point:      point,
						Price:      outcome.Price,
						LastUpdate: lastUpdate.UTC(),
					})
				}
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.GameID != b.GameID:
			return a.GameID < b.GameID
		case a.Market != b.Market:
			return a.Market < b.Market
		case a.Book != b.Book:
			return a.Book < b.Book
		case a.Side != b.Side:
			return a.Side < b.Side
		case a.Point != b.Point:
			return a.Point < b.Point
		default:
			return a.Price < b.Price
		}
	})

	out := rows[:0]
	var prev *domain.FeaturedRow
	for i := range rows {
		r := rows[i]
		if prev != nil && prev.GameID == r.GameID && prev.Market == r.Market &&
			prev.Book == r.Book && prev.Side == r.Side && prev.Point == r.Point {
			continue
		}
		out = append(out, r)
		prev = &out[len(out)-1]
	}
	return out, nil
}

// sortAndDedupe ordena por la tupla de identidad completa y se queda con la
// primera fila de cada identidad (first-wins, estable por el orden total).
func sortAndDedupe(rows []domain.QuoteRow) []domain.QuoteRow {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Less(rows[j]) })
	out := rows[:0]
	seen := make(map[domain.IdentityKey]bool, len(rows))
	for _, r := range rows {
		key := r.Identity()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
