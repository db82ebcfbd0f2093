// Package config defines the top-level configuration for the chainarb engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CHAINARB_* environment variables.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Optimizer OptimizerConfig `toml:"optimizer"`
	Decision  DecisionConfig  `toml:"decision"`
	AI        AIConfig        `toml:"ai"`
	Feed      FeedConfig      `toml:"feed"`
	Ethereum  EthereumConfig  `toml:"ethereum"`
	Executor  ExecutorConfig  `toml:"executor"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// EngineConfig holds the pipeline orchestrator parameters.
type EngineConfig struct {
	Tokens                  []string `toml:"tokens"`
	TradeSize               float64  `toml:"trade_size"`
	AnalysisInterval        duration `toml:"analysis_interval"`
	ExecutionTimeout        duration `toml:"execution_timeout"`
	TimeoutScanInterval     duration `toml:"timeout_scan_interval"`
	LearningInterval        duration `toml:"learning_interval"`
	LearningThreshold       float64  `toml:"learning_threshold"`
	MaxConcurrentExecutions int      `toml:"max_concurrent_executions"`
	QueueSize               int      `toml:"queue_size"`
}

// OptimizerConfig holds cross-network route discovery parameters.
type OptimizerConfig struct {
	Networks           []string `toml:"networks"`
	MinProfitThreshold float64  `toml:"min_profit_threshold"`
	TopK               int      `toml:"top_k"`
	RegimeWindow       int      `toml:"regime_window"`
}

// DecisionConfig holds the synthesis thresholds.
type DecisionConfig struct {
	Consciousness        float64 `toml:"consciousness"`
	AIConfidence         float64 `toml:"ai_confidence"`
	Synthesis            float64 `toml:"synthesis"`
	MonitorConsciousness float64 `toml:"monitor_consciousness"`
	MonitorAIConfidence  float64 `toml:"monitor_ai_confidence"`
}

// AIConfig holds the confidence provider chain parameters. When Endpoint is
// empty only the built-in rule provider runs.
type AIConfig struct {
	Endpoint         string   `toml:"endpoint"`
	APIKey           string   `toml:"api_key"`
	ProviderDeadline duration `toml:"provider_deadline"`
	RuleFallback     bool     `toml:"rule_fallback"`
}

// FeedConfig holds price feed parameters. Endpoints maps network name to an
// HTTP price API base URL; WsURL is an optional streaming source.
type FeedConfig struct {
	Endpoints      map[string]string `toml:"endpoints"`
	APIKey         string            `toml:"api_key"`
	WsURL          string            `toml:"ws_url"`
	PollInterval   duration          `toml:"poll_interval"`
	RequestTimeout duration          `toml:"request_timeout"`
	RateLimit      int               `toml:"rate_limit"`
	RateWindow     duration          `toml:"rate_window"`
}

// EthereumConfig holds RPC endpoints for live gas pricing. RPCURLs maps
// network name to a JSON-RPC URL; networks without one fall back to the
// static gas table.
type EthereumConfig struct {
	RPCURLs     map[string]string `toml:"rpc_urls"`
	ETHPriceUSD float64           `toml:"eth_price_usd"`
}

// ExecutorConfig holds trade execution service parameters.
type ExecutorConfig struct {
	Endpoint          string   `toml:"endpoint"`
	EncryptedKeyPath  string   `toml:"encrypted_key_path"`
	KeyPassword       string   `toml:"key_password"`
	RequestTimeout    duration `toml:"request_timeout"`
	DedupWindow       duration `toml:"dedup_window"`
	DryRun            bool     `toml:"dry_run"`
	DryRunFillRate    float64  `toml:"dry_run_fill_rate"`
	DryRunGasVariance float64  `toml:"dry_run_gas_variance"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the audit stores.
type DatabaseConfig struct {
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
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
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
		Engine: EngineConfig{
			Tokens:                  []string{"ETH", "USDC"},
			TradeSize:               1.0,
			AnalysisInterval:        duration{30 * time.Second},
			ExecutionTimeout:        duration{300 * time.Second},
			TimeoutScanInterval:     duration{30 * time.Second},
			LearningInterval:        duration{300 * time.Second},
			LearningThreshold:       0.1,
			MaxConcurrentExecutions: 5,
			QueueSize:               256,
		},
		Optimizer: OptimizerConfig{
			Networks:           []string{"ethereum", "arbitrum", "optimism", "base", "polygon"},
			MinProfitThreshold: 0.02,
			TopK:               5,
			RegimeWindow:       60,
		},
		Decision: DecisionConfig{
			Consciousness:        0.70,
			AIConfidence:         0.60,
			Synthesis:            0.70,
			MonitorConsciousness: 0.50,
			MonitorAIConfidence:  0.40,
		},
		AI: AIConfig{
			ProviderDeadline: duration{10 * time.Second},
			RuleFallback:     true,
		},
		Feed: FeedConfig{
			Endpoints:      map[string]string{},
			PollInterval:   duration{5 * time.Second},
			RequestTimeout: duration{5 * time.Second},
			RateLimit:      30,
			RateWindow:     duration{time.Minute},
		},
		Ethereum: EthereumConfig{
			RPCURLs:     map[string]string{},
			ETHPriceUSD: 3000,
		},
		Executor: ExecutorConfig{
			RequestTimeout:    duration{30 * time.Second},
			DedupWindow:       duration{60 * time.Second},
			DryRun:            true,
			DryRunFillRate:    0.9,
			DryRunGasVariance: 0.15,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "chainarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "chainarb-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"execution", "system"},
		},
		Mode:     "engine",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"engine": true,
	"scan":   true,
	"serve":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, scan, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if len(c.Engine.Tokens) == 0 {
		errs = append(errs, "engine: tokens must not be empty")
	}
	if c.Engine.TradeSize <= 0 {
		errs = append(errs, "engine: trade_size must be > 0")
	}
	if c.Engine.LearningThreshold <= 0 || c.Engine.LearningThreshold > 1 {
		errs = append(errs, fmt.Sprintf("engine: learning_threshold must be in (0, 1], got %g", c.Engine.LearningThreshold))
	}
	if c.Engine.MaxConcurrentExecutions < 1 {
		errs = append(errs, "engine: max_concurrent_executions must be >= 1")
	}

	// Optimizer
	if len(c.Optimizer.Networks) < 2 {
		errs = append(errs, "optimizer: at least two networks are required for cross-network routes")
	}
	if c.Optimizer.MinProfitThreshold <= 0 {
		errs = append(errs, "optimizer: min_profit_threshold must be > 0")
	}
	if c.Optimizer.TopK < 1 {
		errs = append(errs, "optimizer: top_k must be >= 1")
	}

	// Decision thresholds must be in [0, 1] and the monitor tier must sit
	// below the execute tier.
	for name, v := range map[string]float64{
		"consciousness":         c.Decision.Consciousness,
		"ai_confidence":         c.Decision.AIConfidence,
		"synthesis":             c.Decision.Synthesis,
		"monitor_consciousness": c.Decision.MonitorConsciousness,
		"monitor_ai_confidence": c.Decision.MonitorAIConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("decision: %s must be in [0, 1], got %g", name, v))
		}
	}
	if c.Decision.MonitorConsciousness > c.Decision.Consciousness {
		errs = append(errs, "decision: monitor_consciousness must not exceed consciousness")
	}
	if c.Decision.MonitorAIConfidence > c.Decision.AIConfidence {
		errs = append(errs, "decision: monitor_ai_confidence must not exceed ai_confidence")
	}

	// AI: without an endpoint the rule fallback is the only provider.
	if c.AI.Endpoint == "" && !c.AI.RuleFallback {
		errs = append(errs, "ai: endpoint is empty and rule_fallback is disabled; no confidence provider would be available")
	}

	// Feed
	if c.Mode != "serve" && len(c.Feed.Endpoints) == 0 && c.Feed.WsURL == "" {
		errs = append(errs, "feed: either endpoints or ws_url must be configured for mode "+c.Mode)
	}
	if c.Feed.RateLimit < 1 {
		errs = append(errs, "feed: rate_limit must be >= 1")
	}

	// Executor: live trading needs an endpoint and signing credentials.
	if !c.Executor.DryRun {
		if c.Executor.Endpoint == "" {
			errs = append(errs, "executor: endpoint is required when dry_run is disabled")
		}
		if c.Executor.EncryptedKeyPath == "" {
			errs = append(errs, "executor: encrypted_key_path is required when dry_run is disabled")
		}
		if c.Executor.EncryptedKeyPath != "" && c.Executor.KeyPassword == "" {
			errs = append(errs, "executor: key_password is required when encrypted_key_path is set")
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
