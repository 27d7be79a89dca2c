package pricing

// quality.go — scoring de calidad y banda de incertidumbre.
//
// Todo es determinista y acotado: mismos inputs → mismos scores, sin muestreo
// ni estado. La banda sustituye a un intervalo de confianza estadístico que
// con 2-4 books por línea no tendría soporte.

import (
	"time"

	"github.com/alejandrodnm/propedge/internal/domain"
)

// Config parametriza el motor de pricing. Los defaults reproducen el
// comportamiento de referencia; config.yaml puede sobreescribirlos.
type Config struct {
	// NearbyTolerance es la distancia máxima de point aceptada al degradar a
	// nearby_point.
	NearbyTolerance float64 `yaml:"nearby_tolerance"`
	// StaleCap es la edad de quote que el gate de freshness considera dura;
	// el horizonte de score es el doble.
	StaleCap time.Duration `yaml:"stale_cap"`

	// Normalizadores de sub-scores.
	DepthNorm      float64 `yaml:"depth_norm"`      // pares para depth 1.0
	HoldNorm       float64 `yaml:"hold_norm"`       // hold que anula el score
	DispersionNorm float64 `yaml:"dispersion_norm"` // IQR que anula el score

	// Pesos del score agregado de calidad.
	WeightDepth      float64 `yaml:"weight_depth"`
	WeightHold       float64 `yaml:"weight_hold"`
	WeightDispersion float64 `yaml:"weight_dispersion"`
	WeightFreshness  float64 `yaml:"weight_freshness"`

	// Banda de incertidumbre: base + penalización por cada déficit de score.
	BandBase              float64 `yaml:"band_base"`
	BandDepthPenalty      float64 `yaml:"band_depth_penalty"`
	BandHoldPenalty       float64 `yaml:"band_hold_penalty"`
	BandDispersionPenalty float64 `yaml:"band_dispersion_penalty"`
	BandFreshnessPenalty  float64 `yaml:"band_freshness_penalty"`
	BandMax               float64 `yaml:"band_max"`
}

// DefaultConfig devuelve la parametrización de referencia del motor.
func DefaultConfig() Config {
	return Config{
		NearbyTolerance:       0.5,
		StaleCap:              45 * time.Minute,
		DepthNorm:             4,
		HoldNorm:              0.12,
		DispersionNorm:        0.15,
		WeightDepth:           0.30,
		WeightHold:            0.25,
		WeightDispersion:      0.25,
		WeightFreshness:       0.20,
		BandBase:              0.01,
		BandDepthPenalty:      0.05,
		BandHoldPenalty:       0.02,
		BandDispersionPenalty: 0.05,
		BandFreshnessPenalty:  0.03,
		BandMax:               0.20,
	}
}

// freshnessHorizon es la ventana sobre la que el score de freshness decae a 0.
// Nunca baja de 5 minutos para que un StaleCap agresivo no anule el score.
func (c Config) freshnessHorizon() time.Duration {
	horizon := 2 * c.StaleCap
	if horizon < 5*time.Minute {
		horizon = 5 * time.Minute
	}
	return horizon
}

// Scores computa los sub-scores de calidad. Señales desconocidas puntúan 0:
// la falta de evidencia nunca mejora una línea.
func (c Config) Scores(depth int, medianHold float64, holdKnown bool, iqr float64, iqrKnown bool, quoteAge time.Duration) domain.QualityScores {
	s := domain.QualityScores{
		Depth: domain.Clamp(float64(depth)/c.DepthNorm, 0, 1),
	}
	if holdKnown && c.HoldNorm > 0 {
		s.Hold = domain.Clamp(1.0-medianHold/c.HoldNorm, 0, 1)
	}
	if iqrKnown && c.DispersionNorm > 0 {
		s.Dispersion = domain.Clamp(1.0-iqr/c.DispersionNorm, 0, 1)
	}
	if quoteAge >= 0 {
		horizon := c.freshnessHorizon()
		s.Freshness = domain.Clamp(1.0-quoteAge.Seconds()/horizon.Seconds(), 0, 1)
	}
	s.Overall = c.WeightDepth*s.Depth +
		c.WeightHold*s.Hold +
		c.WeightDispersion*s.Dispersion +
		c.WeightFreshness*s.Freshness
	return s
}

// Band deriva la banda de incertidumbre de los déficits de calidad, con suelo
// en IQR/2 cuando la dispersión es observable.
func (c Config) Band(s domain.QualityScores, iqr float64, iqrKnown bool) float64 {
	band := c.BandBase +
		(1.0-s.Depth)*c.BandDepthPenalty +
		(1.0-s.Hold)*c.BandHoldPenalty +
		(1.0-s.Dispersion)*c.BandDispersionPenalty +
		(1.0-s.Freshness)*c.BandFreshnessPenalty
	if iqrKnown && iqr/2.0 > band {
		band = iqr / 2.0
	}
	return domain.Clamp(band, c.BandBase, c.BandMax)
}
