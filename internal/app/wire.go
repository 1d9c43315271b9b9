package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/danielokoye/vestpool/internal/blob/s3"
	"github.com/danielokoye/vestpool/internal/cache/redis"
	"github.com/danielokoye/vestpool/internal/config"
	"github.com/danielokoye/vestpool/internal/crypto"
	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/ledger"
	"github.com/danielokoye/vestpool/internal/notify"
	"github.com/danielokoye/vestpool/internal/platform/escrow"
	"github.com/danielokoye/vestpool/internal/platform/mirror"
	"github.com/danielokoye/vestpool/internal/service"
	"github.com/danielokoye/vestpool/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	PoolStore       domain.PoolStore
	InvestmentStore domain.InvestmentStore
	AuditStore      domain.AuditStore

	// Caches
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	NonceStore  domain.NonceStore

	// External platforms
	Verifier service.DepositVerifier
	Escrow   domain.Escrow

	// Settlement report archival; nil when S3 is disabled.
	Archiver service.ReportArchiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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

	// Run migrations if enabled.
	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PoolStore = postgres.NewPoolStore(pool)
	deps.InvestmentStore = postgres.NewInvestmentStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.NonceStore = redis.NewNonceStore(redisClient)

	// --- Ledger mirror ---
	mirrorClient := mirror.New(cfg.Ledger.MirrorURL)
	deps.Verifier = ledger.NewVerifier(
		mirrorClient,
		cfg.Ledger.VerifyRetries,
		cfg.Ledger.VerifyDelay.Duration,
		logger,
	)

	// --- Escrow ---
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           cfg.Escrow.ApiSecret,
		EncryptedSecretPath: cfg.Escrow.EncryptedSecretPath,
		SecretPassword:      cfg.Escrow.SecretPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: escrow secret: %w", err)
	}
	deps.Escrow = escrow.New(cfg.Escrow.BaseURL, &crypto.HMACAuth{
		Key:    cfg.Escrow.ApiKey,
		Secret: secret,
	})

	// --- S3 blob storage (settlement report archival) ---
	if cfg.S3.Enabled {
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

		deps.Archiver = s3blob.NewReportArchiver(s3Client, cfg.S3.ReportPrefix)
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
