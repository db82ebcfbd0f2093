package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/chainarb/internal/blob/s3"
	"github.com/alanyoungcy/chainarb/internal/cache/redis"
	"github.com/alanyoungcy/chainarb/internal/config"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/notify"
	"github.com/alanyoungcy/chainarb/internal/store/postgres"
)

// retentionStore is the slice of the audit stores the archive loop needs to
// prune archived rows.
type retentionStore interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Dependencies bundles every domain-level dependency the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Audit stores (nil when Postgres is not wired).
	DecisionStore domain.DecisionStore
	ExecStore     domain.ExecutionStore
	FeedbackStore domain.FeedbackStore

	// Retention handles for the archive loop (nil when Postgres is not
	// wired).
	ExecRetention     retentionStore
	FeedbackRetention retentionStore

	// Redis-backed fabric (nil when Redis is not wired).
	PriceCache  domain.PriceCache
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// Blob storage (nil when S3 is not wired).
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications.
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that require audit persistence.
func needsPostgres(mode string) bool {
	switch mode {
	case "engine", "serve":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that require the shared cache and bus.
// Scan mode is a one-shot CLI and runs without them.
func needsRedis(mode string) bool {
	switch mode {
	case "engine", "serve":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that archive to object storage.
func needsS3(mode string) bool {
	return mode == "engine"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(cfg.Mode) && (cfg.Database.DSN != "" || cfg.Database.Host != "") {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		execStore := postgres.NewExecutionStore(pool)
		feedbackStore := postgres.NewFeedbackStore(pool)
		deps.DecisionStore = postgres.NewDecisionStore(pool)
		deps.ExecStore = execStore
		deps.FeedbackStore = feedbackStore
		deps.ExecRetention = execStore
		deps.FeedbackRetention = feedbackStore
	} else if needsPostgres(cfg.Mode) {
		logger.Warn("wire: database not configured, audit persistence disabled")
	}

	// --- Redis ---
	if needsRedis(cfg.Mode) || cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			if needsRedis(cfg.Mode) {
				cleanup()
				return nil, nil, fmt.Errorf("wire: redis: %w", err)
			}
			logger.Warn("wire: redis unavailable, continuing without shared cache",
				slog.String("error", err.Error()),
			)
		} else {
			closers = append(closers, func() { _ = redisClient.Close() })

			deps.PriceCache = redis.NewPriceCache(redisClient)
			deps.SignalBus = redis.NewSignalBus(redisClient)
			deps.LockManager = redis.NewLockManager(redisClient)
			deps.RateLimiter = redis.NewRateLimiter(redisClient)
		}
	}

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg.Mode) && cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.ExecStore != nil && deps.FeedbackStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.ExecStore, deps.FeedbackStore)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
