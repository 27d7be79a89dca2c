package strategy

import (
	"fmt"
	"sort"
	"time"
)

// Profile es la parametrización completa de una pasada de decisión: gates,
// floors de EV y límites de cartera. Un perfil es un registro de datos puro;
// la lógica vive en gates y portfolio.
type Profile struct {
	Name        string
	Description string

	// Gates de elegibilidad.
	MinBookPairs    int
	HoldCap         float64
	DispersionCap   float64
	FreshnessCap    time.Duration
	MinQuality      float64
	MaxBand         float64
	AllowTierB      bool
	RequireIdentity bool

	// Umbrales de EV. Los floors por tier nunca bajan de los mínimos
	// estructurales (0.03 tier A, 0.05 tier B).
	MinEV    float64
	MinEVLow float64

	// ROI objetivo por tier para la cuota play-to.
	TierATargetROI float64
	TierBTargetROI float64

	// Límites de cartera. El guard de correlación es blando: una segunda
	// prop del mismo jugador entra si su EV conservador alcanza el escape.
	MaxPicks              int
	MaxPerPlayer          int
	MaxPerGame            int
	CorrelatedEVLowEscape float64
}

// Floors estructurales de EV por tier: un único book de evidencia exige más
// margen que una línea confirmada.
const (
	TierAEVFloor = 0.03
	TierBEVFloor = 0.05
)

// TierAFloor devuelve el floor de EV efectivo para tier A.
func (p Profile) TierAFloor() float64 {
	if p.MinEV > TierAEVFloor {
		return p.MinEV
	}
	return TierAEVFloor
}

// TierBFloor devuelve el floor de EV efectivo para tier B.
func (p Profile) TierBFloor() float64 {
	if p.MinEV > TierBEVFloor {
		return p.MinEV
	}
	return TierBEVFloor
}

// registry es el conjunto cerrado de perfiles conocidos. Se construye una vez
// y no admite registro dinámico: un nombre de perfil en un plan siempre debe
// poder reproducirse.
var registry = buildRegistry()

func buildRegistry() map[string]Profile {
	profiles := []Profile{
		{
			Name:            "core",
			Description:     "Tier A confirmado por 2+ books con gates de calidad estándar.",
			MinBookPairs:    2,
			HoldCap:         0.08,
			DispersionCap:   0.08,
			FreshnessCap:    45 * time.Minute,
			MinQuality:      0.55,
			MaxBand:         0.08,
			AllowTierB:      false,
			RequireIdentity: true,
			MinEV:           0.01,
			MinEVLow:        0.01,
			TierATargetROI:  0.03,
			TierBTargetROI:  0.05,
			MaxPicks:        5,
			MaxPerPlayer:    1,
			MaxPerGame:      2,

			CorrelatedEVLowEscape: 0.10,
		},
		{
			Name:            "tier_b_value",
			Description:     "Admite líneas de un solo book a cambio de floors de EV más altos.",
			MinBookPairs:    1,
			HoldCap:         0.08,
			DispersionCap:   0.08,
			FreshnessCap:    45 * time.Minute,
			MinQuality:      0.55,
			MaxBand:         0.08,
			AllowTierB:      true,
			RequireIdentity: true,
			MinEV:           0.01,
			MinEVLow:        0.01,
			TierATargetROI:  0.03,
			TierBTargetROI:  0.05,
			MaxPicks:        5,
			MaxPerPlayer:    1,
			MaxPerGame:      2,

			CorrelatedEVLowEscape: 0.10,
		},
		{
			Name:            "conservative",
			Description:     "Cartera corta con gates endurecidos para días de datos flojos.",
			MinBookPairs:    3,
			HoldCap:         0.06,
			DispersionCap:   0.06,
			FreshnessCap:    30 * time.Minute,
			MinQuality:      0.65,
			MaxBand:         0.06,
			AllowTierB:      false,
			RequireIdentity: true,
			MinEV:           0.02,
			MinEVLow:        0.015,
			TierATargetROI:  0.03,
			TierBTargetROI:  0.05,
			MaxPicks:        3,
			MaxPerPlayer:    1,
			MaxPerGame:      1,

			CorrelatedEVLowEscape: 0.12,
		},
	}
	out := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		out[p.Name] = p
	}
	return out
}

// DefaultName es el perfil usado cuando no se pide ninguno.
const DefaultName = "core"

// Get devuelve el perfil por nombre.
func Get(name string) (Profile, error) {
	if name == "" {
		name = DefaultName
	}
	p, ok := registry[name]
	if !ok {
		return Profile{}, fmt.Errorf("strategy.Get: unknown profile %q (known: %v)", name, Names())
	}
	return p, nil
}

// Names devuelve los perfiles conocidos, ordenados.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
