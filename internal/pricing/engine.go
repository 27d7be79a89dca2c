package pricing

// engine.go — de-vig y agregación multi-book de una línea candidata.
//
// La probabilidad justa es la MEDIANA de las probabilidades no-vig de los
// discovery books en el punto de referencia. La mediana resiste un outlier
// por libro; la media no.

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/propedge/internal/domain"
	"github.com/alejandrodnm/propedge/internal/ports"
)

// Engine resuelve la probabilidad justa de líneas candidatas.
type Engine struct {
	cfg   Config
	clock ports.Clock
}

// NewEngine crea el motor con su configuración.
func NewEngine(cfg Config, clock ports.Clock) *Engine {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Engine{cfg: cfg, clock: clock}
}

// BuildPairs agrupa las quotes de una línea por book en el point dado y forma
// pares over/under completos. Con varias quotes del mismo lado se toma el
// mejor precio para el apostante. Salida ordenada por book.
func BuildPairs(rows []domain.QuoteRow, point float64) []domain.BookPair {
	type sides struct {
		over, under *domain.QuoteRow
	}
	byBook := map[string]*sides{}
	var order []string
	for i := range rows {
		r := &rows[i]
		if !samePoint(r.Point, point) {
			continue
		}
		s, ok := byBook[r.Book]
		if !ok {
			s = &sides{}
			byBook[r.Book] = s
			order = append(order, r.Book)
		}
		switch r.Side {
		case domain.SideOver:
			if s.over == nil || r.Price > s.over.Price {
				s.over = r
			}
		case domain.SideUnder:
			if s.under == nil || r.Price > s.under.Price {
				s.under = r
			}
		}
	}
	sort.Strings(order)

	var pairs []domain.BookPair
	for _, book := range order {
		s := byBook[book]
		if s.over == nil || s.under == nil {
			continue
		}
		pOverRaw := domain.ImpliedProb(s.over.Price)
		pUnderRaw := domain.ImpliedProb(s.under.Price)
		pOver, _ := domain.NoVigPair(pOverRaw, pUnderRaw)
		lastUpdate := s.over.LastUpdate
		if s.under.LastUpdate.After(lastUpdate) {
			lastUpdate = s.under.LastUpdate
		}
		pairs = append(pairs, domain.BookPair{
			Book:       book,
			Point:      point,
			PriceOver:  s.over.Price,
			PriceUnder: s.under.Price,
			POverRaw:   pOverRaw,
			PUnderRaw:  pUnderRaw,
			POverNoVig: pOver,
			Hold:       domain.Hold(pOverRaw, pUnderRaw),
			LastUpdate: lastUpdate,
		})
	}
	return pairs
}

// PriceLine resuelve la probabilidad justa de la línea en targetPoint
// siguiendo la escalera exact → nearby → alt-line isotónica → insuficiente.
// rows son las quotes normalizadas de UNA tupla (event, market, player).
func (e *Engine) PriceLine(rows []domain.QuoteRow, targetPoint float64) domain.PricingResult {
	now := e.clock.Now()

	pairs := BuildPairs(rows, targetPoint)
	method := domain.MethodExactPointMedian
	resolved := targetPoint

	if len(pairs) == 0 {
		if nearby, ok := e.nearbyPoint(rows, targetPoint); ok {
			pairs = BuildPairs(rows, nearby)
			method = domain.MethodNearbyPoint
			resolved = nearby
		}
	}
	if len(pairs) == 0 {
		return e.priceInterpolated(rows, targetPoint, now)
	}
	return e.resultFromPairs(pairs, method, resolved, now)
}

// resultFromPairs agrega los pares de un point resuelto en el PricingResult.
func (e *Engine) resultFromPairs(pairs []domain.BookPair, method string, resolved float64, now time.Time) domain.PricingResult {
	probs := make([]float64, 0, len(pairs))
	holds := make([]float64, 0, len(pairs))
	books := make([]string, 0, len(pairs))
	var newest time.Time
	for _, p := range pairs {
		probs = append(probs, p.POverNoVig)
		holds = append(holds, p.Hold)
		books = append(books, p.Book)
		if p.LastUpdate.After(newest) {
			newest = p.LastUpdate
		}
	}

	pOver := median(probs)
	medianHold := median(holds)
	iqr, iqrKnown := dispersion(probs)

	age := quoteAge(now, newest)
	scores := e.cfg.Scores(len(pairs), medianHold, true, iqr, iqrKnown, age)
	band := e.cfg.Band(scores, iqr, iqrKnown)

	return domain.PricingResult{
		POver:         pOver,
		PLow:          clampProb(pOver - band),
		PHigh:         clampProb(pOver + band),
		Method:        method,
		ResolvedPoint: resolved,
		Depth:         len(pairs),
		Books:         books,
		MedianHold:    medianHold,
		HoldKnown:     true,
		DispersionIQR: iqr,
		DispKnown:     iqrKnown,
		Band:          band,
		Quality:       scores,
		QuoteAge:      age,
	}
}

// priceInterpolated resuelve el point objetivo desde la curva alt-line cuando
// ningún book lo cotiza directamente. La dispersión no es observable en el
// point objetivo, así que queda marcada como desconocida.
func (e *Engine) priceInterpolated(rows []domain.QuoteRow, targetPoint float64, now time.Time) domain.PricingResult {
	observations, allPairs := curveObservations(rows)
	curve := FitIsotonic(observations)
	if curve == nil {
		return domain.PricingResult{Method: domain.MethodInsufficientData, ResolvedPoint: targetPoint}
	}
	pOver, _ := curve.Evaluate(targetPoint)

	holds := make([]float64, 0, len(allPairs))
	bookSet := map[string]bool{}
	var newest time.Time
	for _, p := range allPairs {
		holds = append(holds, p.Hold)
		bookSet[p.Book] = true
		if p.LastUpdate.After(newest) {
			newest = p.LastUpdate
		}
	}
	books := make([]string, 0, len(bookSet))
	for b := range bookSet {
		books = append(books, b)
	}
	sort.Strings(books)

	medianHold := median(holds)
	age := quoteAge(now, newest)
	scores := e.cfg.Scores(len(books), medianHold, len(holds) > 0, 0, false, age)
	band := e.cfg.Band(scores, 0, false)

	return domain.PricingResult{
		POver:         pOver,
		PLow:          clampProb(pOver - band),
		PHigh:         clampProb(pOver + band),
		Method:        domain.MethodInterpolated,
		ResolvedPoint: targetPoint,
		Depth:         len(books),
		Books:         books,
		MedianHold:    medianHold,
		HoldKnown:     len(holds) > 0,
		DispKnown:     false,
		Band:          band,
		Quality:       scores,
		QuoteAge:      age,
	}
}

// nearbyPoint busca el point cotizado más cercano al objetivo dentro de la
// tolerancia. Empates se resuelven hacia el point más bajo (determinista).
func (e *Engine) nearbyPoint(rows []domain.QuoteRow, targetPoint float64) (float64, bool) {
	candidates := quotedPoints(rows)
	best := 0.0
	bestDist := math.Inf(1)
	found := false
	for _, p := range candidates {
		dist := math.Abs(p - targetPoint)
		if dist > e.cfg.NearbyTolerance || samePoint(p, targetPoint) {
			continue
		}
		if dist < bestDist || (dist == bestDist && p < best) {
			best, bestDist, found = p, dist, true
		}
	}
	return best, found
}

// curveObservations construye la curva alt-line: mediana no-vig por point con
// peso igual al número de pares que la soportan.
func curveObservations(rows []domain.QuoteRow) ([]CurvePoint, []domain.BookPair) {
	var observations []CurvePoint
	var allPairs []domain.BookPair
	for _, point := range quotedPoints(rows) {
		pairs := BuildPairs(rows, point)
		if len(pairs) == 0 {
			continue
		}
		probs := make([]float64, 0, len(pairs))
		for _, p := range pairs {
			probs = append(probs, p.POverNoVig)
		}
		observations = append(observations, CurvePoint{
			Point:  point,
			Prob:   median(probs),
			Weight: float64(len(pairs)),
		})
		allPairs = append(allPairs, pairs...)
	}
	return observations, allPairs
}

func quotedPoints(rows []domain.QuoteRow) []float64 {
	seen := map[float64]bool{}
	var points []float64
	for _, r := range rows {
		if !seen[r.Point] {
			seen[r.Point] = true
			points = append(points, r.Point)
		}
	}
	sort.Float64s(points)
	return points
}

// median devuelve la mediana; para n par, la media de los dos centrales.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

// dispersion mide el desacuerdo entre books: IQR con n >= 4, rango con menos.
// Con un solo book no hay dispersión observable.
func dispersion(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n < 4 {
		return sorted[n-1] - sorted[0], true
	}
	return quantile(sorted, 0.75) - quantile(sorted, 0.25), true
}

// quantile interpola linealmente sobre rangos (n-1)·q de una serie ordenada.
func quantile(sorted []float64, q float64) float64 {
	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func quoteAge(now, lastUpdate time.Time) time.Duration {
	if lastUpdate.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	age := now.Sub(lastUpdate)
	if age < 0 {
		age = 0
	}
	return age
}
