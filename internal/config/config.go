// Package config defines the top-level configuration for the arena simulator
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by IDLARENA_* environment variables.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Agents     []AgentConfig    `toml:"agents"`
	Decision   DecisionConfig   `toml:"decision"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SimulationConfig shapes one run of the arena.
type SimulationConfig struct {
	Rounds          int      `toml:"rounds"`
	RoundDelay      duration `toml:"round_delay"`
	AgentDelay      duration `toml:"agent_delay"`
	StartingBalance int64    `toml:"starting_balance"`
	Seed            int64    `toml:"seed"`
	SecondsPerRound int64    `toml:"seconds_per_round"`
	ResolveEvery    int      `toml:"resolve_every"`
	InitialMarkets  int      `toml:"initial_markets"`
	MarketHorizon   duration `toml:"market_horizon"`
	MaxPerturbation int64    `toml:"max_perturbation"`
	ResolutionBias  float64  `toml:"resolution_bias"`
	ResolutionFloor float64  `toml:"resolution_floor"`
	RunsDir         string   `toml:"runs_dir"`
	ReplayRunID     string   `toml:"replay_run_id"`
}

// AgentConfig declares one competitor.
type AgentConfig struct {
	Name    string `toml:"name"`
	Persona string `toml:"persona"`
}

// DecisionConfig selects and tunes the decision backend.
type DecisionConfig struct {
	Provider        string   `toml:"provider"`
	Model           string   `toml:"model"`
	BaseURL         string   `toml:"base_url"`
	APIKey          string   `toml:"api_key"`
	Temperature     float64  `toml:"temperature"`
	MaxOutputTokens int      `toml:"max_output_tokens"`
	Timeout         duration `toml:"timeout"`
	MaxRetries      int      `toml:"max_retries"`
	BaseBackoff     duration `toml:"base_backoff"`
	RatePerMinute   int      `toml:"rate_per_minute"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// LedgerConfig selects the submission boundary for arbiter-approved actions.
type LedgerConfig struct {
	Mode             string `toml:"mode"` // "simulated" or "devnet"
	Endpoint         string `toml:"endpoint"`
	SeedHex          string `toml:"seed_hex"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Simulation: SimulationConfig{
			Rounds:          20,
			RoundDelay:      duration{0},
			AgentDelay:      duration{0},
			StartingBalance: 1_000_000,
			Seed:            0, // 0 draws a seed from the wall clock
			SecondsPerRound: 600,
			ResolveEvery:    3,
			InitialMarkets:  2,
			MarketHorizon:   duration{24 * time.Hour},
			MaxPerturbation: 500,
			ResolutionBias:  0.30,
			ResolutionFloor: 0.10,
			RunsDir:         "runs",
		},
		Agents: []AgentConfig{
			{Name: "maximalist", Persona: "aggressive whale: stake heavy, lock long, bet big on momentum"},
			{Name: "contrarian", Persona: "fade the crowd: bet against whichever pool is heavier"},
			{Name: "quant", Persona: "only bet when the implied odds diverge from pool ratios"},
			{Name: "degen", Persona: "maximum variance: all-in swings and long-shot markets"},
		},
		Decision: DecisionConfig{
			Provider:        "mock",
			Model:           "",
			Temperature:     0.7,
			MaxOutputTokens: 400,
			Timeout:         duration{8 * time.Second},
			MaxRetries:      3,
			BaseBackoff:     duration{500 * time.Millisecond},
			RatePerMinute:   60,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "idlarena",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "idlarena-runs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "round_complete", "run_complete", "error"},
		},
		Ledger: LedgerConfig{
			Mode: "simulated",
		},
		Mode:     "sim",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"sim":    true,
	"replay": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validProviders = map[string]bool{
	"mock":   true,
	"openai": true,
	"ollama": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: sim, replay, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Simulation
	if c.Simulation.Rounds < 1 {
		errs = append(errs, "simulation: rounds must be >= 1")
	}
	if c.Simulation.StartingBalance <= 0 {
		errs = append(errs, "simulation: starting_balance must be > 0")
	}
	if c.Simulation.SecondsPerRound <= 0 {
		errs = append(errs, "simulation: seconds_per_round must be > 0")
	}
	if strings.ToLower(c.Mode) == "replay" && c.Simulation.ReplayRunID == "" {
		errs = append(errs, "simulation: replay_run_id is required for replay mode")
	}
	if c.Simulation.ResolveEvery < 0 {
		errs = append(errs, "simulation: resolve_every must be >= 0 (0 disables forced resolution)")
	}
	if c.Simulation.MaxPerturbation < 0 {
		errs = append(errs, "simulation: max_perturbation must be >= 0")
	}
	if c.Simulation.ResolutionBias < 0 || c.Simulation.ResolutionBias > 1 {
		errs = append(errs, fmt.Sprintf("simulation: resolution_bias must be in [0, 1], got %g", c.Simulation.ResolutionBias))
	}
	if c.Simulation.ResolutionFloor < 0 || c.Simulation.ResolutionFloor > 0.5 {
		errs = append(errs, fmt.Sprintf("simulation: resolution_floor must be in [0, 0.5], got %g", c.Simulation.ResolutionFloor))
	}

	// Agents
	if len(c.Agents) < 2 {
		errs = append(errs, "agents: at least two competitors are required")
	}
	seen := map[string]bool{}
	for i, a := range c.Agents {
		if strings.TrimSpace(a.Name) == "" {
			errs = append(errs, fmt.Sprintf("agents[%d]: name must not be empty", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Sprintf("agents: duplicate name %q", a.Name))
		}
		seen[a.Name] = true
	}

	// Decision
	if !validProviders[strings.ToLower(c.Decision.Provider)] {
		errs = append(errs, fmt.Sprintf("decision: unknown provider %q (valid: mock, openai, ollama)", c.Decision.Provider))
	}
	if strings.EqualFold(c.Decision.Provider, "openai") && c.Decision.Model == "" {
		errs = append(errs, "decision: model is required for the openai provider")
	}
	if c.Decision.MaxRetries < 0 {
		errs = append(errs, "decision: max_retries must be >= 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Mode == "server" || c.Mode == "full" {
		if !c.Server.Enabled {
			errs = append(errs, "server: must be enabled for mode "+c.Mode)
		}
	}

	// Ledger
	switch strings.ToLower(c.Ledger.Mode) {
	case "", "simulated":
	case "devnet":
		if c.Ledger.Endpoint == "" {
			errs = append(errs, "ledger: endpoint is required for devnet mode")
		}
		if c.Ledger.SeedHex == "" && c.Ledger.EncryptedKeyPath == "" {
			errs = append(errs, "ledger: seed_hex or encrypted_key_path is required for devnet mode")
		}
		if c.Ledger.EncryptedKeyPath != "" && c.Ledger.KeyPassword == "" {
			errs = append(errs, "ledger: key_password is required when encrypted_key_path is set")
		}
	default:
		errs = append(errs, fmt.Sprintf("ledger: unknown mode %q (valid: simulated, devnet)", c.Ledger.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
