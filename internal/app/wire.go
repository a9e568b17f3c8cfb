package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alphadeck/papertrade/internal/blob/s3"
	"github.com/alphadeck/papertrade/internal/broker/kite"
	"github.com/alphadeck/papertrade/internal/cache/memory"
	"github.com/alphadeck/papertrade/internal/cache/redis"
	"github.com/alphadeck/papertrade/internal/catalog"
	"github.com/alphadeck/papertrade/internal/config"
	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/relay"
	"github.com/alphadeck/papertrade/internal/server"
	"github.com/alphadeck/papertrade/internal/server/handler"
	"github.com/alphadeck/papertrade/internal/server/ws"
	"github.com/alphadeck/papertrade/internal/service"
	"github.com/alphadeck/papertrade/internal/store/postgres"
)

// Dependencies bundles the long-running components that Run drives. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Server  *server.Server
	Relay   *relay.Relay
	Hub     *ws.Hub
	Archive *service.ArchiveService // nil unless archival is enabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	userStore := postgres.NewUserStore(pool)
	tradeStore := postgres.NewTradeStore(pool)
	transactionStore := postgres.NewTransactionStore(pool)

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

	sessionStore := domain.SessionStore(redis.NewSessionStore(redisClient))
	rateLimiter := domain.RateLimiter(redis.NewRateLimiter(redisClient))

	// --- Broker gateway ---
	kiteClient := kite.NewClient(cfg.Kite.BaseURL, cfg.Kite.APIKey, cfg.Kite.APISecret)
	if cfg.Kite.AccessToken != "" {
		kiteClient.SetAccessToken(cfg.Kite.AccessToken)
	}

	// --- Instrument catalog ---
	cat, err := catalog.Load()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: catalog: %w", err)
	}

	// --- Realtime relay ---
	// The quote snapshot cache is shared by the relay, the REST quote path,
	// and portfolio valuation so each fetch benefits all three.
	quoteCache := memory.New[domain.Quote](memory.QuoteTTL)
	registry := relay.NewRegistry()
	hub := ws.NewHub(registry, logger)
	rly := relay.New(registry, kiteClient, quoteCache, hub, relay.Config{
		TickInterval: cfg.Relay.TickInterval.Duration,
		Backoff:      cfg.Relay.Backoff.Duration,
	}, logger)

	// --- Services ---
	marketSvc := service.NewMarketService(kiteClient, cat, quoteCache, logger)
	authSvc := service.NewAuthService(userStore, sessionStore, rateLimiter,
		cfg.Auth.SessionTTL.Duration, cfg.Auth.StartingCoins, logger)
	tradeSvc := service.NewTradeService(tradeStore, userStore, logger)
	transactionSvc := service.NewTransactionService(transactionStore, userStore, logger)
	streaming := func() bool { return hub.ClientCount() > 0 }
	portfolioSvc := service.NewPortfolioService(tradeStore, marketSvc, quoteCache, streaming, logger)

	deps := &Dependencies{
		Relay: rly,
		Hub:   hub,
	}

	// --- Cold-storage archival (optional) ---
	var archiveReader domain.BlobReader
	if cfg.Archive.Enabled {
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

		archiver := s3blob.NewArchiver(s3blob.NewWriter(s3Client), tradeStore, transactionStore)
		deps.Archive = service.NewArchiveService(archiver,
			cfg.Archive.Retention.Duration, cfg.Archive.Interval.Duration, logger)
		archiveReader = s3blob.NewReader(s3Client)
	}

	// --- HTTP handlers and server ---
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(
			func() string { return string(rly.State()) },
			hub.ClientCount,
			logger,
		),
		Auth:        handler.NewAuthHandler(authSvc, cfg.Auth.SessionTTL.Duration, cfg.Auth.SecureCookies, logger),
		Market:      handler.NewMarketHandler(marketSvc, logger),
		Trade:       handler.NewTradeHandler(tradeSvc, logger),
		Portfolio:   handler.NewPortfolioHandler(portfolioSvc, logger),
		Transaction: handler.NewTransactionHandler(transactionSvc, logger),
		Admin:       handler.NewAdminHandler(userStore, tradeSvc, transactionSvc, archiveReader, logger),
		Broker:      handler.NewBrokerHandler(kiteClient, rly, logger),
	}

	deps.Server = server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		QuoteRateLimit:  cfg.Server.QuoteRateLimit,
		QuoteRateWindow: cfg.Server.QuoteRateWindow.Duration,
	}, handlers, authSvc, rateLimiter, hub, logger)

	return deps, cleanup, nil
}
