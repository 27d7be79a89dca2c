package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Spec es la forma canónica de un dataset indexado por día.
// Su identidad (ID) es estable frente al orden de los markets y a espacios.
type Spec struct {
	SportKey string   `json:"sport_key" yaml:"sport_key"`
	Markets  []string `json:"markets" yaml:"markets"`
	// FeaturedMarkets son los mercados game-level (h2h, spreads, totals)
	// adquiridos con un fetch por día; vacío desactiva el endpoint featured.
	FeaturedMarkets []string `json:"featured_markets" yaml:"featured_markets"`
	Regions         string   `json:"regions" yaml:"regions"`
	Bookmakers      string   `json:"bookmakers" yaml:"bookmakers"`
	IncludeLinks    bool     `json:"include_links" yaml:"include_links"`
	IncludeSids     bool     `json:"include_sids" yaml:"include_sids"`
	OddsFormat      string   `json:"odds_format" yaml:"odds_format"`
	DateFormat      string   `json:"date_format" yaml:"date_format"`
}

// Canonical devuelve la spec normalizada: markets ordenados y dedupe,
// strings recortados, defaults aplicados.
func (s Spec) Canonical() Spec {
	out := Spec{
		SportKey:     strings.TrimSpace(s.SportKey),
		Regions:      strings.TrimSpace(s.Regions),
		Bookmakers:   strings.TrimSpace(s.Bookmakers),
		IncludeLinks: s.IncludeLinks,
		IncludeSids:  s.IncludeSids,
		OddsFormat:   strings.TrimSpace(s.OddsFormat),
		DateFormat:   strings.TrimSpace(s.DateFormat),
	}
	out.Markets = canonicalMarkets(s.Markets)
	out.FeaturedMarkets = canonicalMarkets(s.FeaturedMarkets)
	if out.OddsFormat == "" {
		out.OddsFormat = "american"
	}
	if out.DateFormat == "" {
		out.DateFormat = "iso"
	}
	return out
}

// canonicalMarkets recorta, dedupe y ordena una lista de mercados.
func canonicalMarkets(markets []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range markets {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ID deriva el identificador estable del dataset (sha256 de la spec canónica).
func (s Spec) ID() string {
	canonical := s.Canonical()
	data, err := json.Marshal(canonical)
	if err != nil {
		panic(fmt.Sprintf("dataset.Spec.ID: marshal: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SnapshotIDForDay deriva el snapshot id canónico de un día del dataset.
func SnapshotIDForDay(spec Spec, day string) string {
	return fmt.Sprintf("day-%s-%s", spec.ID()[:8], day)
}
