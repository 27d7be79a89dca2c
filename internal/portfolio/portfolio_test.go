package portfolio

import (
	"testing"

	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEligible(event, player, market string, point, evLow, quality float64) domain.Candidate {
	return domain.Candidate{
		EventID: event,
		Player:  player,
		Market:  market,
		Point:   point,
		Side:    domain.SideOver,
		EV:      evLow + 0.01,
		EVLow:   evLow,
		Pricing: domain.PricingResult{
			Quality: domain.QualityScores{Overall: quality},
		},
	}
}

func defaultLimits() Constraints {
	return Constraints{MaxPicks: 5, MaxPerPlayer: 1, MaxPerGame: 2, CorrelatedEVLowEscape: 0.10}
}

func TestSelect_RanksByConservativeEV(t *testing.T) {
	eligible := []domain.Candidate{
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.03, 0.7),
		makeEligible("ev2", "Player B", "player_points", 22.5, 0.08, 0.7),
		makeEligible("ev3", "Player C", "player_points", 18.5, 0.05, 0.7),
	}
	picks, excluded := Select(eligible, defaultLimits())
	require.Len(t, picks, 3)
	assert.Empty(t, excluded)
	assert.Equal(t, "Player B", picks[0].Candidate.Player)
	assert.Equal(t, "Player C", picks[1].Candidate.Player)
	assert.Equal(t, "Player A", picks[2].Candidate.Player)
	assert.Equal(t, []int{1, 2, 3}, []int{picks[0].Rank, picks[1].Rank, picks[2].Rank})
}

func TestSelect_QualityBreaksEVTies(t *testing.T) {
	eligible := []domain.Candidate{
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.05, 0.60),
		makeEligible("ev2", "Player B", "player_points", 22.5, 0.05, 0.80),
	}
	picks, _ := Select(eligible, Constraints{MaxPicks: 1, MaxPerPlayer: 1, MaxPerGame: 2})
	require.Len(t, picks, 1)
	assert.Equal(t, "Player B", picks[0].Candidate.Player)
}

func TestSelect_Deterministic(t *testing.T) {
	eligible := []domain.Candidate{
		makeEligible("ev2", "Player B", "player_assists", 6.5, 0.05, 0.7),
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.05, 0.7),
		makeEligible("ev3", "Player C", "player_rebounds", 9.5, 0.05, 0.7),
	}
	reversed := []domain.Candidate{eligible[2], eligible[1], eligible[0]}

	picksA, _ := Select(eligible, defaultLimits())
	picksB, _ := Select(reversed, defaultLimits())
	require.Equal(t, len(picksA), len(picksB))
	for i := range picksA {
		assert.Equal(t, picksA[i].Candidate.EventID, picksB[i].Candidate.EventID,
			"el orden de entrada no puede afectar la cartera")
	}
	// Empate total en EV/quality: desempata la tupla de identidad (event id)
	assert.Equal(t, "ev1", picksA[0].Candidate.EventID)
}

func TestSelect_DailyCap(t *testing.T) {
	var eligible []domain.Candidate
	for _, p := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		eligible = append(eligible, makeEligible("ev-"+p, "Player "+p, "player_points", 20.5, 0.05, 0.7))
	}
	picks, excluded := Select(eligible, defaultLimits())
	assert.Len(t, picks, 5)
	require.Len(t, excluded, 2)
	for _, ex := range excluded {
		assert.Equal(t, []string{ReasonDailyCap}, ex.Reasons)
	}
}

func TestSelect_PlayerCap(t *testing.T) {
	eligible := []domain.Candidate{
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.08, 0.7),
		makeEligible("ev1", "Player A", "player_assists", 5.5, 0.05, 0.7),
	}
	picks, excluded := Select(eligible, defaultLimits())
	require.Len(t, picks, 1)
	require.Len(t, excluded, 1)
	assert.Equal(t, "player_points", picks[0].Candidate.Market, "gana el EV low más alto")
	assert.Equal(t, []string{ReasonPlayerCap}, excluded[0].Reasons)
}

func TestSelect_GameCap(t *testing.T) {
	eligible := []domain.Candidate{
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.09, 0.7),
		makeEligible("ev1", "Player B", "player_assists", 5.5, 0.07, 0.7),
		makeEligible("ev1", "Player C", "player_rebounds", 9.5, 0.05, 0.7),
	}
	picks, excluded := Select(eligible, defaultLimits())
	require.Len(t, picks, 2)
	require.Len(t, excluded, 1)
	assert.Equal(t, "Player C", excluded[0].Candidate.Player)
	assert.Equal(t, []string{ReasonGameCap}, excluded[0].Reasons)
}

func TestSelect_CorrelatedSamePlayerSoftGuard(t *testing.T) {
	limits := Constraints{MaxPicks: 5, MaxPerPlayer: 2, MaxPerGame: 3, CorrelatedEVLowEscape: 0.10}
	eligible := []domain.Candidate{
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.09, 0.7),
		makeEligible("ev1", "Player A", "player_assists", 5.5, 0.07, 0.7),
	}
	picks, excluded := Select(eligible, limits)
	require.Len(t, picks, 1)
	require.Len(t, excluded, 1)
	assert.Equal(t, "player_points", picks[0].Candidate.Market)
	assert.Equal(t, []string{ReasonCorrelated}, excluded[0].Reasons)
}

func TestSelect_CorrelatedEscapesOnExceptionalEV(t *testing.T) {
	limits := Constraints{MaxPicks: 5, MaxPerPlayer: 2, MaxPerGame: 3, CorrelatedEVLowEscape: 0.10}
	eligible := []domain.Candidate{
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.14, 0.7),
		makeEligible("ev1", "Player A", "player_assists", 5.5, 0.12, 0.7),
	}
	// Ambas props superan el escape: el guard blando deja pasar la segunda
	picks, excluded := Select(eligible, limits)
	assert.Len(t, picks, 2)
	assert.Empty(t, excluded)
}

func TestSelect_ZeroLimitsDisableCaps(t *testing.T) {
	eligible := []domain.Candidate{
		makeEligible("ev1", "Player A", "player_points", 20.5, 0.09, 0.7),
		makeEligible("ev1", "Player A", "player_assists", 5.5, 0.07, 0.7),
	}
	picks, _ := Select(eligible, Constraints{MaxPicks: 10, MaxPerPlayer: 0, MaxPerGame: 0})
	assert.Len(t, picks, 2, "caps y escape a 0 = desactivados")
}
