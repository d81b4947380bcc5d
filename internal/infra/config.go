package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// insecureAdminDefault is rejected outside local dev.
const insecureAdminDefault = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"wurlus"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"wurlus"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"wurlus"`
	DBMaxConns  int    `env:"DB_MAX_CONNS" envDefault:"20"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Admin
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"change-me-in-production"`

	// Chain
	SuiNetwork     string `env:"SUI_NETWORK" envDefault:"mainnet"`
	SuiRPCURL      string `env:"SUI_RPC_URL" envDefault:"https://fullnode.mainnet.sui.io:443"`
	SuiSignerURL   string `env:"SUI_SIGNER_URL" envDefault:"http://localhost:3201"`
	AdminWallet    string `env:"ADMIN_WALLET"`
	TreasuryObject string `env:"TREASURY_OBJECT_ID"`
	SbetsCoinType  string `env:"SBETS_COIN_TYPE"`

	// Sports providers
	FootballAPIKey string `env:"FOOTBALL_API_KEY"`
	FootballAPIURL string `env:"FOOTBALL_API_URL" envDefault:"https://v3.football.api-sports.io"`
	FreeSportsURL  string `env:"FREE_SPORTS_URL" envDefault:"https://www.thesportsdb.com/api/v1/json/3"`
	HoldersAPIURL  string `env:"HOLDERS_API_URL"`
	HoldersAPIKey  string `env:"HOLDERS_API_KEY"`

	// Feature flag; also mutable at runtime via the admin endpoint.
	SuiBettingPaused bool `env:"SUI_BETTING_PAUSED" envDefault:"false"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`

	// Pricing constants for USD valuation.
	SuiPriceUSD   float64 `env:"SUI_PRICE_USD" envDefault:"1.5"`
	SbetsPriceUSD float64 `env:"SBETS_PRICE_USD" envDefault:"0.000001"`

	// Admission policy knobs.
	MaxStakeSUI     float64 `env:"MAX_STAKE_SUI" envDefault:"100"`
	MaxStakeSBETS   float64 `env:"MAX_STAKE_SBETS" envDefault:"10000"`
	MaxBetsPerDay   int     `env:"MAX_BETS_PER_DAY" envDefault:"7"`
	MaxBetsPerEvent int     `env:"MAX_BETS_PER_EVENT" envDefault:"2"`
	BetCooldownSec  int     `env:"BET_COOLDOWN_SEC" envDefault:"30"`

	// Revenue deployment cutoff (RFC3339); bets settled before it are ignored.
	RevenueCutoff string `env:"REVENUE_CUTOFF" envDefault:"2025-01-01T00:00:00Z"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.AdminPassword == insecureAdminDefault || c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is unset or the insecure default; set a strong password or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if c.AdminWallet == "" {
		return fmt.Errorf("ADMIN_WALLET must be set for on-chain payouts")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
