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
// built-in defaults, applies VESTPOOL_* environment variable overrides, and
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

// applyEnvOverrides reads well-known VESTPOOL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setStr(&cfg.Ledger.MirrorURL, "VESTPOOL_LEDGER_MIRROR_URL")
	setStr(&cfg.Ledger.StableTokenID, "VESTPOOL_LEDGER_STABLE_TOKEN_ID")
	setInt(&cfg.Ledger.Decimals, "VESTPOOL_LEDGER_DECIMALS")
	setInt(&cfg.Ledger.VerifyRetries, "VESTPOOL_LEDGER_VERIFY_RETRIES")
	setDuration(&cfg.Ledger.VerifyDelay, "VESTPOOL_LEDGER_VERIFY_DELAY")

	// ── Escrow ──
	setStr(&cfg.Escrow.BaseURL, "VESTPOOL_ESCROW_BASE_URL")
	setStr(&cfg.Escrow.ApiKey, "VESTPOOL_ESCROW_API_KEY")
	setStr(&cfg.Escrow.ApiSecret, "VESTPOOL_ESCROW_API_SECRET")
	setStr(&cfg.Escrow.EncryptedSecretPath, "VESTPOOL_ESCROW_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Escrow.SecretPassword, "VESTPOOL_ESCROW_SECRET_PASSWORD")

	// ── Database ──
	setStr(&cfg.Database.DSN, "VESTPOOL_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "VESTPOOL_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "VESTPOOL_DATABASE_HOST")
	setInt(&cfg.Database.Port, "VESTPOOL_DATABASE_PORT")
	setStr(&cfg.Database.Database, "VESTPOOL_DATABASE_NAME")
	setStr(&cfg.Database.User, "VESTPOOL_DATABASE_USER")
	setStr(&cfg.Database.Password, "VESTPOOL_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "VESTPOOL_DATABASE_SSLMODE")
	setStr(&cfg.Database.SSLMode, "VESTPOOL_DATABASE_SSL_MODE") // compatibility alias
	setInt(&cfg.Database.PoolMaxConns, "VESTPOOL_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "VESTPOOL_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "VESTPOOL_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VESTPOOL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VESTPOOL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VESTPOOL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VESTPOOL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VESTPOOL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VESTPOOL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VESTPOOL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VESTPOOL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VESTPOOL_S3_REGION")
	setStr(&cfg.S3.Bucket, "VESTPOOL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VESTPOOL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VESTPOOL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VESTPOOL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VESTPOOL_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ReportPrefix, "VESTPOOL_S3_REPORT_PREFIX")

	// ── Settlement ──
	setBool(&cfg.Settlement.Enabled, "VESTPOOL_SETTLEMENT_ENABLED")
	setDuration(&cfg.Settlement.Interval, "VESTPOOL_SETTLEMENT_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VESTPOOL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VESTPOOL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VESTPOOL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "VESTPOOL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "VESTPOOL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "VESTPOOL_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VESTPOOL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VESTPOOL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VESTPOOL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VESTPOOL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VESTPOOL_MODE")
	setStr(&cfg.LogLevel, "VESTPOOL_LOG_LEVEL")
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
