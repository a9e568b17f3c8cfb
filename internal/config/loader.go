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
// built-in defaults, applies PAPERTRADE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known PAPERTRADE_* environment variables
// and overwrites the corresponding Config fields when a variable is set
// (i.e. not empty). This lets operators inject secrets at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Kite ──
	setStr(&cfg.Kite.BaseURL, "PAPERTRADE_KITE_BASE_URL")
	setStr(&cfg.Kite.APIKey, "PAPERTRADE_KITE_API_KEY")
	setStr(&cfg.Kite.APISecret, "PAPERTRADE_KITE_API_SECRET")
	setStr(&cfg.Kite.AccessToken, "PAPERTRADE_KITE_ACCESS_TOKEN")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "PAPERTRADE_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "PAPERTRADE_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "PAPERTRADE_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "PAPERTRADE_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "PAPERTRADE_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "PAPERTRADE_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "PAPERTRADE_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "PAPERTRADE_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "PAPERTRADE_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "PAPERTRADE_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "PAPERTRADE_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PAPERTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAPERTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAPERTRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PAPERTRADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PAPERTRADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PAPERTRADE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PAPERTRADE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PAPERTRADE_S3_REGION")
	setStr(&cfg.S3.Bucket, "PAPERTRADE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PAPERTRADE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PAPERTRADE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PAPERTRADE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PAPERTRADE_S3_FORCE_PATH_STYLE")

	// ── Relay ──
	setDuration(&cfg.Relay.TickInterval, "PAPERTRADE_RELAY_TICK_INTERVAL")
	setDuration(&cfg.Relay.Backoff, "PAPERTRADE_RELAY_BACKOFF")

	// ── Auth ──
	setDuration(&cfg.Auth.SessionTTL, "PAPERTRADE_AUTH_SESSION_TTL")
	setFloat64(&cfg.Auth.StartingCoins, "PAPERTRADE_AUTH_STARTING_COINS")
	setBool(&cfg.Auth.SecureCookies, "PAPERTRADE_AUTH_SECURE_COOKIES")

	// ── Server ──
	setInt(&cfg.Server.Port, "PAPERTRADE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PAPERTRADE_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.QuoteRateLimit, "PAPERTRADE_SERVER_QUOTE_RATE_LIMIT")
	setDuration(&cfg.Server.QuoteRateWindow, "PAPERTRADE_SERVER_QUOTE_RATE_WINDOW")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PAPERTRADE_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Retention, "PAPERTRADE_ARCHIVE_RETENTION")
	setDuration(&cfg.Archive.Interval, "PAPERTRADE_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "PAPERTRADE_LOG_LEVEL")
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
