package gates

import (
	"testing"
	"time"

	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/alejandrodnm/propedge/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeCandidate construye un candidato que pasa todos los gates del perfil
// core; cada test rompe exactamente lo que quiere comprobar.
func makeCandidate() domain.Candidate {
	return domain.Candidate{
		EventID:          "ev1",
		Player:           "Jayson Tatum",
		Market:           "player_points",
		Point:            27.5,
		Side:             domain.SideOver,
		ExecBook:         "fanduel",
		ExecPrice:        110,
		IdentityResolved: true,
		Pricing: domain.PricingResult{
			POver:         0.55,
			PLow:          0.53,
			PHigh:         0.57,
			Method:        domain.MethodExactPointMedian,
			ResolvedPoint: 27.5,
			Depth:         3,
			Books:         []string{"booka", "bookb", "bookc"},
			MedianHold:    0.04,
			HoldKnown:     true,
			DispersionIQR: 0.02,
			DispKnown:     true,
			Band:          0.02,
			Quality: domain.QualityScores{
				Depth: 0.75, Hold: 0.7, Dispersion: 0.85, Freshness: 0.9, Overall: 0.79,
			},
			QuoteAge: 10 * time.Minute,
		},
	}
}

func coreProfile(t *testing.T) strategy.Profile {
	t.Helper()
	p, err := strategy.Get("core")
	require.NoError(t, err)
	return p
}

func TestAssess_EVAgainstExecPrice(t *testing.T) {
	c := makeCandidate()
	profile := coreProfile(t)
	Assess(&c, profile)

	assert.Equal(t, domain.TierA, c.Tier)
	// +110 → decimal 2.10; EV = 0.55·1.10 − 0.45 = 0.155
	assert.InDelta(t, 0.155, c.EV, 1e-9)
	assert.InDelta(t, 0.53*1.10-0.47, c.EVLow, 1e-9)
	assert.InDelta(t, c.EV/1.10, c.Kelly, 1e-9)
	assert.InDelta(t, 1.03/0.55, c.PlayTo, 1e-9)
}

func TestAssess_UnderUsesComplement(t *testing.T) {
	c := makeCandidate()
	c.Side = domain.SideUnder
	Assess(&c, coreProfile(t))

	// prob = 1 − 0.55 = 0.45; el extremo conservador viene de PHigh
	assert.InDelta(t, 0.45*1.10-0.55, c.EV, 1e-9)
	assert.InDelta(t, 0.43*1.10-0.57, c.EVLow, 1e-9)
}

func TestAssess_SingleBookIsTierB(t *testing.T) {
	c := makeCandidate()
	c.Pricing.Depth = 1
	Assess(&c, coreProfile(t))
	assert.Equal(t, domain.TierB, c.Tier)
	assert.InDelta(t, 1.05/0.55, c.PlayTo, 1e-9, "tier B usa su ROI objetivo")
}

func TestEvaluate_PassingCandidate(t *testing.T) {
	c := makeCandidate()
	profile := coreProfile(t)
	Assess(&c, profile)
	assert.Empty(t, Evaluate(c, profile))
}

func TestEvaluate_InsufficientPricingShortCircuits(t *testing.T) {
	c := makeCandidate()
	c.Pricing = domain.PricingResult{Method: domain.MethodInsufficientData}
	profile := coreProfile(t)
	Assess(&c, profile)
	assert.Equal(t, []string{CodeInsufficientPricing}, Evaluate(c, profile))
}

func TestEvaluate_TierBBlockedInCore(t *testing.T) {
	c := makeCandidate()
	c.Pricing.Depth = 1
	c.Pricing.Books = c.Pricing.Books[:1]
	profile := coreProfile(t)
	Assess(&c, profile)

	reasons := Evaluate(c, profile)
	assert.Contains(t, reasons, CodeTierBBlocked)
	assert.Contains(t, reasons, CodeBookPairs)
}

func TestEvaluate_TierBAllowedWithHigherFloor(t *testing.T) {
	c := makeCandidate()
	c.Pricing.Depth = 1
	profile, err := strategy.Get("tier_b_value")
	require.NoError(t, err)
	Assess(&c, profile)

	reasons := Evaluate(c, profile)
	assert.NotContains(t, reasons, CodeTierBBlocked)
	assert.NotContains(t, reasons, CodeBookPairs)

	// EV 0.155 > floor tier B 0.05: pasa. Con un EV justo por debajo del
	// floor B (pero sobre el A) el mismo candidato cae.
	c2 := c
	c2.ExecPrice = -122 // decimal 1.8197; EV ≈ 0.55·0.8197 − 0.45 ≈ 0.0008
	Assess(&c2, profile)
	assert.Contains(t, Evaluate(c2, profile), CodeEVBelow)
}

func TestEvaluate_HoldAndDispersionGates(t *testing.T) {
	profile := coreProfile(t)

	c := makeCandidate()
	c.Pricing.MedianHold = 0.10
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeHoldCap)

	c = makeCandidate()
	c.Pricing.HoldKnown = false
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeHoldMissing)

	c = makeCandidate()
	c.Pricing.DispersionIQR = 0.09
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeDispersionIQR)

	c = makeCandidate()
	c.Pricing.DispKnown = false
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeDispersionMissing)
}

func TestEvaluate_DisabledGateSkipsMissing(t *testing.T) {
	c := makeCandidate()
	c.Pricing.DispKnown = false
	profile := coreProfile(t)
	profile.DispersionCap = 0 // gate apagado
	Assess(&c, profile)
	assert.NotContains(t, Evaluate(c, profile), CodeDispersionMissing)
}

func TestEvaluate_FreshnessQualityBand(t *testing.T) {
	profile := coreProfile(t)

	c := makeCandidate()
	c.Pricing.QuoteAge = 2 * time.Hour
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeFreshness)

	c = makeCandidate()
	c.Pricing.Quality.Overall = 0.40
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeQuality)

	c = makeCandidate()
	c.Pricing.Band = 0.12
	c.Pricing.PLow = c.Pricing.POver - 0.12
	c.Pricing.PHigh = c.Pricing.POver + 0.12
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeBand)
}

func TestEvaluate_IdentityUnresolved(t *testing.T) {
	c := makeCandidate()
	c.IdentityResolved = false
	profile := coreProfile(t)
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeIdentityUnresolved)
}

func TestEvaluate_EVLowThreshold(t *testing.T) {
	c := makeCandidate()
	c.Pricing.PLow = 0.40 // banda ancha artificial: EV low negativo
	profile := coreProfile(t)
	Assess(&c, profile)
	assert.Contains(t, Evaluate(c, profile), CodeEVLowBelow)
}

func TestProfileRegistry_Closed(t *testing.T) {
	names := strategy.Names()
	assert.Contains(t, names, "core")
	assert.Contains(t, names, "tier_b_value")
	assert.Contains(t, names, "conservative")

	_, err := strategy.Get("no_such_profile")
	assert.Error(t, err)

	p, err := strategy.Get("")
	require.NoError(t, err)
	assert.Equal(t, strategy.DefaultName, p.Name)
}
