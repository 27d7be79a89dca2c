package domain

import "math"

// ImpliedProb convierte un precio americano en probabilidad implícita (con vig).
//
// Fórmula: p = 100/(price+100) para precios positivos,
// p = |price|/(|price|+100) para negativos.
func ImpliedProb(american float64) float64 {
	if american >= 0 {
		return 100.0 / (american + 100.0)
	}
	abs := math.Abs(american)
	return abs / (abs + 100.0)
}

// NoVigPair normaliza un par over/under para que sume 1 (probabilidades sin vig).
// Devuelve (0, 0) si la suma de probabilidades crudas no es positiva.
func NoVigPair(pOverRaw, pUnderRaw float64) (pOver, pUnder float64) {
	total := pOverRaw + pUnderRaw
	if total <= 0 {
		return 0, 0
	}
	return pOverRaw / total, pUnderRaw / total
}

// Hold es el margen del bookmaker sobre un par: implied_over + implied_under - 1.
func Hold(pOverRaw, pUnderRaw float64) float64 {
	return pOverRaw + pUnderRaw - 1.0
}

// DecimalFromAmerican convierte un precio americano a cuota decimal.
func DecimalFromAmerican(american float64) float64 {
	if american >= 0 {
		return 1.0 + american/100.0
	}
	return 1.0 + 100.0/math.Abs(american)
}

// AmericanFromDecimal convierte una cuota decimal a precio americano.
// Cuotas <= 1 no son representables y devuelven 0.
func AmericanFromDecimal(decimal float64) float64 {
	if decimal <= 1 {
		return 0
	}
	if decimal >= 2 {
		return (decimal - 1.0) * 100.0
	}
	return -100.0 / (decimal - 1.0)
}

// ExpectedValue calcula el EV unitario de apostar a probabilidad p con cuota decimal.
// EV = p·(dec−1) − (1−p). Positivo = apuesta con valor esperado favorable.
func ExpectedValue(p, decimal float64) float64 {
	return p*(decimal-1.0) - (1.0 - p)
}

// KellyFraction devuelve la fracción de Kelly para un EV y cuota dados.
// Devuelve 0 si la cuota no paga nada o el EV es negativo.
func KellyFraction(ev, decimal float64) float64 {
	b := decimal - 1.0
	if b <= 0 || ev <= 0 {
		return 0
	}
	return ev / b
}

// PlayToDecimal devuelve la cuota decimal mínima que conserva el ROI objetivo
// dada la probabilidad justa p. Devuelve 0 si p no es válida.
func PlayToDecimal(p, targetROI float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return (1.0 + targetROI) / p
}

// Clamp limita v al rango [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
