package gates

// Los gates deciden elegibilidad con reason codes estables de un conjunto
// cerrado: cada exclusión del plan es auditable y contable entre runs.

import (
	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/alejandrodnm/propedge/internal/strategy"
)

// Reason codes del conjunto cerrado, en el orden en que se evalúan.
const (
	CodeInsufficientPricing = "insufficient_pricing_data"
	CodeIdentityUnresolved  = "identity_unresolved"
	CodeTierBBlocked        = "tier_b_blocked"
	CodeBookPairs           = "book_pairs_gate"
	CodeHoldMissing         = "hold_missing"
	CodeHoldCap             = "hold_cap"
	CodeDispersionMissing   = "dispersion_missing"
	CodeDispersionIQR       = "dispersion_iqr"
	CodeFreshness           = "freshness_gate"
	CodeQuality             = "quality_score_gate"
	CodeBand                = "uncertainty_band_gate"
	CodeEVBelow             = "ev_below_threshold"
	CodeEVLowBelow          = "ev_low_below_threshold"
	CodeContextHealth       = "context_health"
)

// Assess completa el candidato con tier, EV contra el precio de ejecución,
// Kelly y cuota play-to. Todo EV se calcula en el precio del execution book,
// nunca en la mediana de discovery.
func Assess(c *domain.Candidate, profile strategy.Profile) {
	if c.Pricing.Depth >= 2 {
		c.Tier = domain.TierA
	} else {
		c.Tier = domain.TierB
	}

	prob, probLow := sideProbs(c)
	dec := domain.DecimalFromAmerican(c.ExecPrice)
	c.EV = domain.ExpectedValue(prob, dec)
	c.EVLow = domain.ExpectedValue(probLow, dec)
	c.Kelly = domain.KellyFraction(c.EV, dec)

	roi := profile.TierATargetROI
	if c.Tier == domain.TierB {
		roi = profile.TierBTargetROI
	}
	c.PlayTo = domain.PlayToDecimal(prob, roi)
}

// Evaluate devuelve los reason codes que excluyen al candidato; vacío = pasa.
// Un gate con umbral <= 0 está desactivado en el perfil, incluida su variante
// *_missing.
func Evaluate(c domain.Candidate, profile strategy.Profile) []string {
	if !c.Pricing.Valid() {
		return []string{CodeInsufficientPricing}
	}

	var reasons []string
	if profile.RequireIdentity && !c.IdentityResolved {
		reasons = append(reasons, CodeIdentityUnresolved)
	}
	if c.Tier == domain.TierB && !profile.AllowTierB {
		reasons = append(reasons, CodeTierBBlocked)
	}
	if c.Pricing.Depth < profile.MinBookPairs {
		reasons = append(reasons, CodeBookPairs)
	}
	if profile.HoldCap > 0 {
		switch {
		case !c.Pricing.HoldKnown:
			reasons = append(reasons, CodeHoldMissing)
		case c.Pricing.MedianHold > profile.HoldCap:
			reasons = append(reasons, CodeHoldCap)
		}
	}
	if profile.DispersionCap > 0 {
		switch {
		case !c.Pricing.DispKnown:
			reasons = append(reasons, CodeDispersionMissing)
		case c.Pricing.DispersionIQR > profile.DispersionCap:
			reasons = append(reasons, CodeDispersionIQR)
		}
	}
	if profile.FreshnessCap > 0 && c.Pricing.QuoteAge > profile.FreshnessCap {
		reasons = append(reasons, CodeFreshness)
	}
	if profile.MinQuality > 0 && c.Pricing.Quality.Overall < profile.MinQuality {
		reasons = append(reasons, CodeQuality)
	}
	if profile.MaxBand > 0 && c.Pricing.Band > profile.MaxBand {
		reasons = append(reasons, CodeBand)
	}

	floor := profile.TierAFloor()
	if c.Tier == domain.TierB {
		floor = profile.TierBFloor()
	}
	if c.EV < floor {
		reasons = append(reasons, CodeEVBelow)
	}
	if profile.MinEVLow > 0 && c.EVLow < profile.MinEVLow {
		reasons = append(reasons, CodeEVLowBelow)
	}
	return reasons
}

// sideProbs devuelve la probabilidad del lado apostado y su extremo
// conservador: para under, el extremo conservador viene del borde ALTO de la
// banda over.
func sideProbs(c *domain.Candidate) (prob, probLow float64) {
	if c.Side == domain.SideUnder {
		return 1.0 - c.Pricing.POver, 1.0 - c.Pricing.PHigh
	}
	return c.Pricing.POver, c.Pricing.PLow
}
