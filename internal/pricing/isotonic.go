package pricing

// isotonic.go — regresión isotónica (PAV) sobre la curva alt-line.
//
// P(over) es monótona no creciente en el point: una línea más alta nunca puede
// tener más probabilidad de superarse. El pool-adjacent-violators con pesos
// repara las violaciones de ruido de mercado antes de interpolar.

import (
	"math"
	"sort"
)

const (
	fitExact        = "exact"
	fitClampedLow   = "clamped_low"
	fitClampedHigh  = "clamped_high"
	fitInterpolated = "interpolated"
)

const (
	probFloor = 0.01
	probCeil  = 0.99
	pointEps  = 1e-9
)

// CurvePoint es una observación de la curva alt-line: probabilidad over
// agregada en un point, con peso proporcional a los pares que la soportan.
type CurvePoint struct {
	Point  float64
	Prob   float64
	Weight float64
}

// IsotonicCurve es la curva ajustada, ascendente por point y no creciente en
// probabilidad.
type IsotonicCurve struct {
	points []CurvePoint
}

// FitIsotonic ajusta la curva no creciente por PAV con pooling ponderado.
// Devuelve nil si hay menos de dos points distintos.
func FitIsotonic(observations []CurvePoint) *IsotonicCurve {
	merged := mergeByPoint(observations)
	if len(merged) < 2 {
		return nil
	}

	type block struct {
		value  float64
		weight float64
		count  int
	}
	var blocks []block
	for _, obs := range merged {
		blocks = append(blocks, block{value: obs.Prob, weight: obs.Weight, count: 1})
		// Violación: la probabilidad sube al subir el point.
		for len(blocks) >= 2 && blocks[len(blocks)-1].value > blocks[len(blocks)-2].value+pointEps {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			total := last.weight + prev.weight
			pooled := block{
				value:  (prev.value*prev.weight + last.value*last.weight) / total,
				weight: total,
				count:  prev.count + last.count,
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, pooled)
		}
	}

	fitted := make([]CurvePoint, 0, len(merged))
	idx := 0
	for _, b := range blocks {
		for i := 0; i < b.count; i++ {
			fitted = append(fitted, CurvePoint{
				Point:  merged[idx].Point,
				Prob:   clampProb(b.value),
				Weight: merged[idx].Weight,
			})
			idx++
		}
	}
	return &IsotonicCurve{points: fitted}
}

// Evaluate resuelve la probabilidad over en el point dado y reporta cómo se
// obtuvo: exact, clamped_low, clamped_high o interpolated.
func (c *IsotonicCurve) Evaluate(point float64) (prob float64, fit string) {
	for _, p := range c.points {
		if samePoint(p.Point, point) {
			return p.Prob, fitExact
		}
	}
	first, last := c.points[0], c.points[len(c.points)-1]
	if point < first.Point {
		return first.Prob, fitClampedLow
	}
	if point > last.Point {
		return last.Prob, fitClampedHigh
	}
	for i := 1; i < len(c.points); i++ {
		lo, hi := c.points[i-1], c.points[i]
		if point > lo.Point && point < hi.Point {
			frac := (point - lo.Point) / (hi.Point - lo.Point)
			return clampProb(lo.Prob + frac*(hi.Prob-lo.Prob)), fitInterpolated
		}
	}
	// Inalcanzable con points ordenados; clamp conservador por si acaso.
	return last.Prob, fitClampedHigh
}

// Points expone la curva ajustada (copia defensiva no necesaria: solo lectura
// en tests).
func (c *IsotonicCurve) Points() []CurvePoint {
	return c.points
}

// mergeByPoint colapsa observaciones duplicadas del mismo point en su media
// ponderada y ordena ascendente por point.
func mergeByPoint(observations []CurvePoint) []CurvePoint {
	byPoint := make(map[float64]CurvePoint, len(observations))
	for _, obs := range observations {
		w := obs.Weight
		if w <= 0 {
			w = 1
		}
		if existing, ok := byPoint[obs.Point]; ok {
			total := existing.Weight + w
			existing.Prob = (existing.Prob*existing.Weight + obs.Prob*w) / total
			existing.Weight = total
			byPoint[obs.Point] = existing
			continue
		}
		byPoint[obs.Point] = CurvePoint{Point: obs.Point, Prob: obs.Prob, Weight: w}
	}
	merged := make([]CurvePoint, 0, len(byPoint))
	for _, obs := range byPoint {
		merged = append(merged, obs)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Point < merged[j].Point })
	return merged
}

func clampProb(p float64) float64 {
	return math.Max(probFloor, math.Min(probCeil, p))
}

func samePoint(a, b float64) bool {
	return math.Abs(a-b) < pointEps
}
