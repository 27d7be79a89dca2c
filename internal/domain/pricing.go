package domain

import "time"

// Métodos de resolución del punto de referencia, en orden de preferencia.
const (
	MethodExactPointMedian = "exact_point_median"
	MethodNearbyPoint      = "nearby_point"
	MethodInterpolated     = "alt_line_interpolated"
	MethodInsufficientData = "insufficient_pricing_data"
)

// BookPair es el par over/under de un mismo book en un punto concreto,
// ya convertido a probabilidades.
type BookPair struct {
	Book       string
	Point      float64
	PriceOver  float64
	PriceUnder float64
	POverRaw   float64
	PUnderRaw  float64
	POverNoVig float64
	Hold       float64
	LastUpdate time.Time
}

// QualityScores son los sub-scores deterministas de calidad de una línea.
// Todos en [0, 1]; más alto = mejor.
type QualityScores struct {
	Depth      float64 `json:"depth"`
	Hold       float64 `json:"hold"`
	Dispersion float64 `json:"dispersion"`
	Freshness  float64 `json:"freshness"`
	Overall    float64 `json:"overall"`
}

// PricingResult es la salida del motor de pricing para una línea candidata.
type PricingResult struct {
	// Probabilidad justa agregada (mediana no-vig entre discovery books).
	POver float64 `json:"p_over"`
	// Banda de incertidumbre determinista alrededor de POver.
	PLow  float64 `json:"p_low"`
	PHigh float64 `json:"p_high"`
	// Método que resolvió el punto de referencia (audit trail).
	Method string `json:"method"`
	// Punto en el que se resolvió la probabilidad (puede diferir del punto
	// de ejecución con MethodNearbyPoint).
	ResolvedPoint float64 `json:"resolved_point"`
	// Books que aportaron un par en el punto resuelto.
	Depth int      `json:"depth"`
	Books []string `json:"books"`
	// Señales de calidad agregadas.
	MedianHold    float64       `json:"median_hold"`
	HoldKnown     bool          `json:"hold_known"`
	DispersionIQR float64       `json:"dispersion_iqr"`
	DispKnown     bool          `json:"dispersion_known"`
	Band          float64       `json:"uncertainty_band"`
	Quality       QualityScores `json:"quality"`
	// Edad de la quote contribuyente más reciente.
	QuoteAge time.Duration `json:"-"`
}

// Valid indica si el resultado contiene una probabilidad utilizable.
func (r PricingResult) Valid() bool {
	return r.Method != MethodInsufficientData && r.POver > 0
}
