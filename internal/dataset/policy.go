package dataset

import (
	"math"
	"strings"
)

// SpendPolicy controla si un cache miss puede pagarse con red.
// Se decide ANTES de cualquier llamada, nunca a posteriori.
type SpendPolicy struct {
	// Offline: red prohibida; cualquier miss es fallo duro.
	Offline bool
	// NoSpend: equivale a MaxCredits=0; los misses de pago se reportan
	// como spend_blocked sin tocar la red.
	NoSpend bool
	// MaxCredits es el presupuesto del run completo, no por llamada.
	MaxCredits int
	// Refresh ignora la lectura de cache (sigue sujeto al presupuesto).
	Refresh bool
	// Resume salta requests ya resueltos en runs anteriores.
	Resume bool
	// Force permite exceder el presupuesto estimado (los headers facturados
	// siguen siendo la verdad contable).
	Force bool
}

// DefaultSpendPolicy: resumable, con presupuesto conservador.
func DefaultSpendPolicy() SpendPolicy {
	return SpendPolicy{MaxCredits: 20, Resume: true}
}

// EffectiveMaxCredits normaliza el presupuesto con el override de NoSpend.
func (p SpendPolicy) EffectiveMaxCredits() int {
	if p.NoSpend {
		return 0
	}
	if p.MaxCredits < 0 {
		return 0
	}
	return p.MaxCredits
}

// BlocksPaid indica si la política prohíbe cualquier fetch de pago.
func (p SpendPolicy) BlocksPaid() bool {
	return p.NoSpend || p.EffectiveMaxCredits() == 0
}

// RegionsEquivalent estima el factor de coste por cobertura del proveedor:
// con bookmakers explícitos factura ceil(n/10); si no, una unidad por región.
func RegionsEquivalent(regions, bookmakers string) int {
	if b := strings.TrimSpace(bookmakers); b != "" {
		n := len(splitCSV(b))
		return int(math.Ceil(float64(n) / 10.0))
	}
	if r := strings.TrimSpace(regions); r != "" {
		return len(splitCSV(r))
	}
	return 1
}

// EstimateFeaturedCredits: coste estimado (peor caso) de un fetch featured.
func EstimateFeaturedCredits(markets []string, regionsFactor int) int {
	return maxInt(1, len(markets)) * maxInt(1, regionsFactor)
}

// EstimateEventCredits: coste estimado (peor caso) de fetches por evento.
// El total real facturado puede ser menor si algún mercado no existe para un
// evento; eso lo reconcilian los headers de cuota en el ledger.
func EstimateEventCredits(markets []string, regionsFactor, eventCount int) int {
	if eventCount <= 0 {
		return 0
	}
	return maxInt(1, len(markets)) * maxInt(1, regionsFactor) * eventCount
}

func splitCSV(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
