package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/propedge/internal/dataset"
	"github.com/alejandrodnm/propedge/internal/pricing"
)

// Config es la configuración completa del CLI.
type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset"`
	Provider ProviderConfig `yaml:"provider"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Plan     PlanConfig     `yaml:"plan"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// DatasetConfig define el dataset por defecto de los comandos.
type DatasetConfig struct {
	SportKey        string   `yaml:"sport_key"`
	Markets         []string `yaml:"markets"`
	FeaturedMarkets []string `yaml:"featured_markets"`
	Regions         string   `yaml:"regions"`
	Bookmakers      string   `yaml:"bookmakers"`
	TZName          string   `yaml:"tz_name"`
	Workers         int      `yaml:"workers"`
	MaxCredits      int      `yaml:"max_credits"`
}

// ProviderConfig contiene el acceso al proveedor de odds.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	// APIKey se toma SIEMPRE del entorno, nunca del YAML: la clave no debe
	// acabar en un archivo versionado.
	APIKey string `yaml:"-"`
}

// PricingConfig parametriza el motor de pricing. Incluye inline todos los
// pesos de calidad y las penalizaciones de la banda de incertidumbre: se
// ajustan por YAML, nunca recompilando.
type PricingConfig struct {
	pricing.Config  `yaml:",inline"`
	IdentityMapPath string `yaml:"identity_map_path"`
}

// PlanConfig controla la pasada de decisión.
type PlanConfig struct {
	Strategy    string  `yaml:"strategy"`
	ExecBook    string  `yaml:"exec_book"`
	MinCoverage float64 `yaml:"min_coverage"`
}

// StorageConfig controla dónde viven los datos locales.
type StorageConfig struct {
	DataRoot  string `yaml:"data_root"`
	LedgerDSN string `yaml:"ledger_dsn"` // ruta al SQLite del usage ledger
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. El entorno sobreescribe al YAML; una ruta vacía usa solo defaults.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	// Los pesos de pricing parten de la parametrización de referencia; el
	// YAML solo sobreescribe las claves presentes.
	cfg := Config{Pricing: PricingConfig{Config: pricing.DefaultConfig()}}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Spec construye la spec canónica del dataset configurado.
func (c *Config) Spec() dataset.Spec {
	return dataset.Spec{
		SportKey:        c.Dataset.SportKey,
		Markets:         c.Dataset.Markets,
		FeaturedMarkets: c.Dataset.FeaturedMarkets,
		Regions:         c.Dataset.Regions,
		Bookmakers:      c.Dataset.Bookmakers,
		IncludeLinks:    true,
	}.Canonical()
}

// PricingEngine devuelve la configuración completa del motor de pricing.
func (c *Config) PricingEngine() pricing.Config {
	return c.Pricing.Config
}

// StaleCap devuelve el stale cap de pricing como time.Duration.
func (c *Config) StaleCap() time.Duration {
	return c.Pricing.StaleCap
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("ODDS_API_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROPEDGE_DATA_ROOT"); v != "" {
		cfg.Storage.DataRoot = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Dataset.SportKey == "" {
		cfg.Dataset.SportKey = "basketball_nba"
	}
	if len(cfg.Dataset.Markets) == 0 {
		cfg.Dataset.Markets = []string{"player_points", "player_rebounds", "player_assists"}
	}
	if len(cfg.Dataset.FeaturedMarkets) == 0 {
		cfg.Dataset.FeaturedMarkets = []string{"h2h", "spreads", "totals"}
	}
	if cfg.Dataset.TZName == "" {
		cfg.Dataset.TZName = "America/New_York"
	}
	if cfg.Dataset.Workers <= 0 {
		cfg.Dataset.Workers = 5
	}
	if cfg.Dataset.MaxCredits <= 0 {
		cfg.Dataset.MaxCredits = 20
	}
	def := pricing.DefaultConfig()
	if cfg.Pricing.NearbyTolerance <= 0 {
		cfg.Pricing.NearbyTolerance = def.NearbyTolerance
	}
	if cfg.Pricing.StaleCap <= 0 {
		cfg.Pricing.StaleCap = def.StaleCap
	}
	if cfg.Plan.Strategy == "" {
		cfg.Plan.Strategy = "core"
	}
	if cfg.Plan.ExecBook == "" {
		cfg.Plan.ExecBook = "fanduel"
	}
	if cfg.Plan.MinCoverage <= 0 {
		cfg.Plan.MinCoverage = 0.7
	}
	if cfg.Storage.DataRoot == "" {
		cfg.Storage.DataRoot = "data"
	}
	if cfg.Storage.LedgerDSN == "" {
		cfg.Storage.LedgerDSN = "propedge.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
