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
// built-in defaults, applies CHAINARB_* environment variable overrides, and
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

// applyEnvOverrides reads well-known CHAINARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStringSlice(&cfg.Engine.Tokens, "CHAINARB_ENGINE_TOKENS")
	setFloat64(&cfg.Engine.TradeSize, "CHAINARB_ENGINE_TRADE_SIZE")
	setDuration(&cfg.Engine.AnalysisInterval, "CHAINARB_ENGINE_ANALYSIS_INTERVAL")
	setDuration(&cfg.Engine.ExecutionTimeout, "CHAINARB_ENGINE_EXECUTION_TIMEOUT")
	setDuration(&cfg.Engine.LearningInterval, "CHAINARB_ENGINE_LEARNING_INTERVAL")
	setFloat64(&cfg.Engine.LearningThreshold, "CHAINARB_ENGINE_LEARNING_THRESHOLD")
	setInt(&cfg.Engine.MaxConcurrentExecutions, "CHAINARB_ENGINE_MAX_CONCURRENT_EXECUTIONS")
	setInt(&cfg.Engine.QueueSize, "CHAINARB_ENGINE_QUEUE_SIZE")

	// ── Optimizer ──
	setStringSlice(&cfg.Optimizer.Networks, "CHAINARB_OPTIMIZER_NETWORKS")
	setFloat64(&cfg.Optimizer.MinProfitThreshold, "CHAINARB_OPTIMIZER_MIN_PROFIT_THRESHOLD")
	setInt(&cfg.Optimizer.TopK, "CHAINARB_OPTIMIZER_TOP_K")
	setInt(&cfg.Optimizer.RegimeWindow, "CHAINARB_OPTIMIZER_REGIME_WINDOW")

	// ── Decision ──
	setFloat64(&cfg.Decision.Consciousness, "CHAINARB_DECISION_CONSCIOUSNESS")
	setFloat64(&cfg.Decision.AIConfidence, "CHAINARB_DECISION_AI_CONFIDENCE")
	setFloat64(&cfg.Decision.Synthesis, "CHAINARB_DECISION_SYNTHESIS")
	setFloat64(&cfg.Decision.MonitorConsciousness, "CHAINARB_DECISION_MONITOR_CONSCIOUSNESS")
	setFloat64(&cfg.Decision.MonitorAIConfidence, "CHAINARB_DECISION_MONITOR_AI_CONFIDENCE")

	// ── AI ──
	setStr(&cfg.AI.Endpoint, "CHAINARB_AI_ENDPOINT")
	setStr(&cfg.AI.APIKey, "CHAINARB_AI_API_KEY")
	setDuration(&cfg.AI.ProviderDeadline, "CHAINARB_AI_PROVIDER_DEADLINE")
	setBool(&cfg.AI.RuleFallback, "CHAINARB_AI_RULE_FALLBACK")

	// ── Feed ──
	setStr(&cfg.Feed.APIKey, "CHAINARB_FEED_API_KEY")
	setStr(&cfg.Feed.WsURL, "CHAINARB_FEED_WS_URL")
	setDuration(&cfg.Feed.PollInterval, "CHAINARB_FEED_POLL_INTERVAL")
	setDuration(&cfg.Feed.RequestTimeout, "CHAINARB_FEED_REQUEST_TIMEOUT")
	setInt(&cfg.Feed.RateLimit, "CHAINARB_FEED_RATE_LIMIT")
	setDuration(&cfg.Feed.RateWindow, "CHAINARB_FEED_RATE_WINDOW")

	// ── Ethereum ──
	setFloat64(&cfg.Ethereum.ETHPriceUSD, "CHAINARB_ETHEREUM_ETH_PRICE_USD")

	// ── Executor ──
	setStr(&cfg.Executor.Endpoint, "CHAINARB_EXECUTOR_ENDPOINT")
	setStr(&cfg.Executor.EncryptedKeyPath, "CHAINARB_EXECUTOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Executor.KeyPassword, "CHAINARB_EXECUTOR_KEY_PASSWORD")
	setDuration(&cfg.Executor.RequestTimeout, "CHAINARB_EXECUTOR_REQUEST_TIMEOUT")
	setDuration(&cfg.Executor.DedupWindow, "CHAINARB_EXECUTOR_DEDUP_WINDOW")
	setBool(&cfg.Executor.DryRun, "CHAINARB_EXECUTOR_DRY_RUN")

	// ── Database ──
	setStr(&cfg.Database.DSN, "CHAINARB_DATABASE_DSN")
	setStr(&cfg.Database.Host, "CHAINARB_DATABASE_HOST")
	setInt(&cfg.Database.Port, "CHAINARB_DATABASE_PORT")
	setStr(&cfg.Database.Database, "CHAINARB_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "CHAINARB_DATABASE_USER")
	setStr(&cfg.Database.Password, "CHAINARB_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "CHAINARB_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "CHAINARB_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "CHAINARB_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "CHAINARB_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CHAINARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CHAINARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CHAINARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CHAINARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CHAINARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CHAINARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CHAINARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CHAINARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "CHAINARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CHAINARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CHAINARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CHAINARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CHAINARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CHAINARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CHAINARB_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "CHAINARB_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "CHAINARB_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CHAINARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CHAINARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CHAINARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CHAINARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CHAINARB_MODE")
	setStr(&cfg.LogLevel, "CHAINARB_LOG_LEVEL")
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
