package portfolio

// Selección greedy determinista de la cartera diaria. Mismo conjunto de
// candidatos elegibles → misma cartera, byte a byte.

import (
	"sort"

	"github.com/alejandrodnm/propedge/internal/domain"
)

// Reason codes de exclusión de cartera.
const (
	ReasonDailyCap   = "portfolio_cap_daily"
	ReasonPlayerCap  = "portfolio_cap_player"
	ReasonGameCap    = "portfolio_cap_game"
	ReasonCorrelated = "portfolio_correlated"
)

// Constraints son los límites de una cartera diaria. Los caps a 0 quedan
// desactivados; CorrelatedEVLowEscape <= 0 desactiva el guard de correlación.
type Constraints struct {
	MaxPicks     int
	MaxPerPlayer int
	MaxPerGame   int
	// CorrelatedEVLowEscape es el EV conservador a partir del cual una
	// segunda prop del mismo jugador entra pese a la correlación.
	CorrelatedEVLowEscape float64
}

// Select ordena los candidatos elegibles por valor conservador y los acepta
// en orden hasta agotar los límites. Los elegibles no seleccionados vuelven
// con su reason code de cartera.
func Select(eligible []domain.Candidate, limits Constraints) ([]domain.Ticket, []domain.Exclusion) {
	ranked := append([]domain.Candidate(nil), eligible...)
	sort.SliceStable(ranked, func(i, j int) bool { return rankLess(ranked[i], ranked[j]) })

	var picks []domain.Ticket
	var excluded []domain.Exclusion
	playerCount := map[string]int{}
	gameCount := map[string]int{}

	for _, c := range ranked {
		reason := ""
		switch {
		case limits.MaxPicks > 0 && len(picks) >= limits.MaxPicks:
			reason = ReasonDailyCap
		case limits.MaxPerPlayer > 0 && c.Player != "" && playerCount[c.Player] >= limits.MaxPerPlayer:
			reason = ReasonPlayerCap
		case limits.MaxPerGame > 0 && c.EventID != "" && gameCount[c.EventID] >= limits.MaxPerGame:
			reason = ReasonGameCap
		case limits.CorrelatedEVLowEscape > 0 && c.Player != "" && playerCount[c.Player] > 0 &&
			c.EVLow < limits.CorrelatedEVLowEscape:
			// Dos props del mismo jugador comparten el mismo guion de minutos
			// y de partido; la segunda solo entra con EV conservador excepcional.
			reason = ReasonCorrelated
		}
		if reason != "" {
			excluded = append(excluded, domain.Exclusion{Candidate: c, Reasons: []string{reason}})
			continue
		}
		picks = append(picks, domain.Ticket{Candidate: c, Rank: len(picks) + 1})
		playerCount[c.Player]++
		gameCount[c.EventID]++
	}
	return picks, excluded
}

// rankLess ordena por EV conservador descendente, calidad descendente, EV
// descendente y después la tupla de identidad para un desempate total.
func rankLess(a, b domain.Candidate) bool {
	if a.EVLow != b.EVLow {
		return a.EVLow > b.EVLow
	}
	if a.Pricing.Quality.Overall != b.Pricing.Quality.Overall {
		return a.Pricing.Quality.Overall > b.Pricing.Quality.Overall
	}
	if a.EV != b.EV {
		return a.EV > b.EV
	}
	ka, kb := a.IdentitySortKey(), b.IdentitySortKey()
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}
