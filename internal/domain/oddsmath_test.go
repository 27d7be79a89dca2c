package domain_test

import (
	"testing"

	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestImpliedProb(t *testing.T) {
	// -110 implica 110/210
	assert.InDelta(t, 110.0/210.0, domain.ImpliedProb(-110), 1e-9)
	// +108 implica 100/208
	assert.InDelta(t, 100.0/208.0, domain.ImpliedProb(108), 1e-9)
	// Even money
	assert.InDelta(t, 0.5, domain.ImpliedProb(100), 1e-9)
	assert.InDelta(t, 0.5, domain.ImpliedProb(-100), 1e-9)
}

func TestNoVigPair_SumsToOne(t *testing.T) {
	cases := [][2]float64{
		{-103, -105},
		{108, -112},
		{-110, 100},
		{-200, 170},
	}
	for _, c := range cases {
		pOverRaw := domain.ImpliedProb(c[0])
		pUnderRaw := domain.ImpliedProb(c[1])
		pOver, pUnder := domain.NoVigPair(pOverRaw, pUnderRaw)
		assert.InDelta(t, 1.0, pOver+pUnder, 1e-12, "par %v debe sumar 1", c)
		assert.Greater(t, pOver, 0.0)
		assert.Greater(t, pUnder, 0.0)
	}
}

func TestNoVigPair_InvalidInputs(t *testing.T) {
	pOver, pUnder := domain.NoVigPair(0, 0)
	assert.Zero(t, pOver)
	assert.Zero(t, pUnder)
}

func TestHold(t *testing.T) {
	// -110/-110 clásico: hold ≈ 4.76%
	raw := domain.ImpliedProb(-110)
	assert.InDelta(t, 2*raw-1, domain.Hold(raw, raw), 1e-12)
	assert.Greater(t, domain.Hold(raw, raw), 0.045)
}

func TestDecimalFromAmerican(t *testing.T) {
	assert.InDelta(t, 2.0, domain.DecimalFromAmerican(100), 1e-9)
	assert.InDelta(t, 1.909090909, domain.DecimalFromAmerican(-110), 1e-6)
	assert.InDelta(t, 3.5, domain.DecimalFromAmerican(250), 1e-9)
}

func TestAmericanFromDecimal_RoundTrip(t *testing.T) {
	for _, price := range []float64{-350, -110, -101, 100, 125, 400} {
		dec := domain.DecimalFromAmerican(price)
		assert.InDelta(t, price, domain.AmericanFromDecimal(dec), 1e-6)
	}
	assert.Zero(t, domain.AmericanFromDecimal(1.0))
}

func TestExpectedValue(t *testing.T) {
	// p=0.55 a cuota 2.0 → EV = 0.55 - 0.45 = 0.10
	assert.InDelta(t, 0.10, domain.ExpectedValue(0.55, 2.0), 1e-12)
	// Fair bet: EV = 0
	assert.InDelta(t, 0.0, domain.ExpectedValue(0.5, 2.0), 1e-12)
}

func TestKellyFraction(t *testing.T) {
	assert.InDelta(t, 0.10, domain.KellyFraction(0.10, 2.0), 1e-12)
	assert.Zero(t, domain.KellyFraction(-0.05, 2.0))
	assert.Zero(t, domain.KellyFraction(0.10, 1.0))
}

func TestPlayToDecimal(t *testing.T) {
	// p=0.515, ROI 3% → cuota mínima 1.03/0.515 = 2.0
	assert.InDelta(t, 2.0, domain.PlayToDecimal(0.515, 0.03), 1e-9)
	assert.Zero(t, domain.PlayToDecimal(0, 0.03))
}
