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
// built-in defaults, applies ODDSROW_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ODDSROW_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "ODDSROW_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ODDSROW_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ODDSROW_SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.SessionTTL, "ODDSROW_SERVER_SESSION_TTL")
	setInt(&cfg.Server.RateLimit, "ODDSROW_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "ODDSROW_SERVER_RATE_LIMIT_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ODDSROW_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ODDSROW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ODDSROW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ODDSROW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ODDSROW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ODDSROW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ODDSROW_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ODDSROW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ODDSROW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ODDSROW_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ODDSROW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ODDSROW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ODDSROW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ODDSROW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ODDSROW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ODDSROW_REDIS_TLS_ENABLED")

	// ── Game ──
	setInt64(&cfg.Game.StartingBalance, "ODDSROW_GAME_STARTING_BALANCE")
	setInt64(&cfg.Game.MaxStake, "ODDSROW_GAME_MAX_STAKE")

	// ── Sweep ──
	setBool(&cfg.Sweep.Enabled, "ODDSROW_SWEEP_ENABLED")
	setDuration(&cfg.Sweep.Interval, "ODDSROW_SWEEP_INTERVAL")
	setDuration(&cfg.Sweep.LockTTL, "ODDSROW_SWEEP_LOCK_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ODDSROW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ODDSROW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ODDSROW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ODDSROW_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ODDSROW_MODE")
	setStr(&cfg.LogLevel, "ODDSROW_LOG_LEVEL")
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
