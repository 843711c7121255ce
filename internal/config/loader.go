package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies IDLARENA_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known IDLARENA_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Simulation ──
	setInt(&cfg.Simulation.Rounds, "IDLARENA_SIMULATION_ROUNDS")
	setDuration(&cfg.Simulation.RoundDelay, "IDLARENA_SIMULATION_ROUND_DELAY")
	setDuration(&cfg.Simulation.AgentDelay, "IDLARENA_SIMULATION_AGENT_DELAY")
	setInt64(&cfg.Simulation.StartingBalance, "IDLARENA_SIMULATION_STARTING_BALANCE")
	setInt64(&cfg.Simulation.Seed, "IDLARENA_SIMULATION_SEED")
	setInt64(&cfg.Simulation.SecondsPerRound, "IDLARENA_SIMULATION_SECONDS_PER_ROUND")
	setInt(&cfg.Simulation.ResolveEvery, "IDLARENA_SIMULATION_RESOLVE_EVERY")
	setInt(&cfg.Simulation.InitialMarkets, "IDLARENA_SIMULATION_INITIAL_MARKETS")
	setDuration(&cfg.Simulation.MarketHorizon, "IDLARENA_SIMULATION_MARKET_HORIZON")
	setInt64(&cfg.Simulation.MaxPerturbation, "IDLARENA_SIMULATION_MAX_PERTURBATION")
	setFloat64(&cfg.Simulation.ResolutionBias, "IDLARENA_SIMULATION_RESOLUTION_BIAS")
	setFloat64(&cfg.Simulation.ResolutionFloor, "IDLARENA_SIMULATION_RESOLUTION_FLOOR")
	setStr(&cfg.Simulation.RunsDir, "IDLARENA_SIMULATION_RUNS_DIR")
	setStr(&cfg.Simulation.ReplayRunID, "IDLARENA_SIMULATION_REPLAY_RUN_ID")

	// ── Decision ──
	setStr(&cfg.Decision.Provider, "IDLARENA_DECISION_PROVIDER")
	setStr(&cfg.Decision.Model, "IDLARENA_DECISION_MODEL")
	setStr(&cfg.Decision.BaseURL, "IDLARENA_DECISION_BASE_URL")
	setStr(&cfg.Decision.APIKey, "IDLARENA_DECISION_API_KEY")
	setFloat64(&cfg.Decision.Temperature, "IDLARENA_DECISION_TEMPERATURE")
	setInt(&cfg.Decision.MaxOutputTokens, "IDLARENA_DECISION_MAX_OUTPUT_TOKENS")
	setDuration(&cfg.Decision.Timeout, "IDLARENA_DECISION_TIMEOUT")
	setInt(&cfg.Decision.MaxRetries, "IDLARENA_DECISION_MAX_RETRIES")
	setDuration(&cfg.Decision.BaseBackoff, "IDLARENA_DECISION_BASE_BACKOFF")
	setInt(&cfg.Decision.RatePerMinute, "IDLARENA_DECISION_RATE_PER_MINUTE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "IDLARENA_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "IDLARENA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "IDLARENA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "IDLARENA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "IDLARENA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "IDLARENA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "IDLARENA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "IDLARENA_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "IDLARENA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "IDLARENA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "IDLARENA_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "IDLARENA_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "IDLARENA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "IDLARENA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "IDLARENA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "IDLARENA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "IDLARENA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "IDLARENA_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "IDLARENA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "IDLARENA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "IDLARENA_S3_REGION")
	setStr(&cfg.S3.Bucket, "IDLARENA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "IDLARENA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "IDLARENA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "IDLARENA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "IDLARENA_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "IDLARENA_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "IDLARENA_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "IDLARENA_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "IDLARENA_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "IDLARENA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "IDLARENA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "IDLARENA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "IDLARENA_NOTIFY_EVENTS")

	// ── Ledger ──
	setStr(&cfg.Ledger.Mode, "IDLARENA_LEDGER_MODE")
	setStr(&cfg.Ledger.Endpoint, "IDLARENA_LEDGER_ENDPOINT")
	setStr(&cfg.Ledger.SeedHex, "IDLARENA_LEDGER_SEED_HEX")
	setStr(&cfg.Ledger.EncryptedKeyPath, "IDLARENA_LEDGER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Ledger.KeyPassword, "IDLARENA_LEDGER_KEY_PASSWORD")

	// ── Top-level ──
	setStr(&cfg.Mode, "IDLARENA_MODE")
	setStr(&cfg.LogLevel, "IDLARENA_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
