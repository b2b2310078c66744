package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/railledger/internal/adapter/http"
	"github.com/iho/railledger/internal/adapter/http/handler"
	postgresRepo "github.com/iho/railledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/railledger/internal/adapter/repository/redis"
	"github.com/iho/railledger/internal/infrastructure/config"
	"github.com/iho/railledger/internal/infrastructure/eventpublisher"
	"github.com/iho/railledger/internal/infrastructure/metrics"
	"github.com/iho/railledger/internal/infrastructure/postgres"
	"github.com/iho/railledger/internal/infrastructure/redis"
	"github.com/iho/railledger/internal/rates"
	"github.com/iho/railledger/internal/usecase"
)

const migrationsPath = "migrations"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, migrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Redis is optional. Without it the rate cache is in-process, which is
	// fine for a single replica but loses cache sharing across replicas.
	var redisClient *goredis.Client
	var rateCache usecase.RateCache
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")

		rateCache = redisRepo.NewRateCache(redisClient, cfg.RateCacheTTL)
	} else {
		log.Info().Msg("redis not configured, using in-process rate cache")
		rateCache = rates.NewMemoryCache(cfg.RateCacheTTL)
	}

	factory := rates.NewFactory([]rates.Provider{
		rates.NewCoinGeckoProvider(cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, cfg.ProviderTimeout),
		rates.NewFrankfurterProvider(cfg.FrankfurterBaseURL, cfg.ProviderTimeout),
	}, log.Logger)
	batchFetcher := rates.NewBatchFetcher(factory, log.Logger)

	m := metrics.New()

	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	snapshotRepo := postgresRepo.NewSnapshotRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()

	ledgerUC := usecase.NewLedgerUseCase(txManager, accountRepo, entryRepo, outboxRepo, idGen, m, log.Logger)
	provisionUC := usecase.NewProvisioningUseCase(accountRepo, idGen, m, log.Logger)
	snapshotUC := usecase.NewSnapshotUseCase(snapshotRepo, outboxRepo, factory, rateCache, batchFetcher, idGen, m, log.Logger)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		SnapshotHandler:  handler.NewSnapshotHandler(snapshotUC),
		RateHandler:      handler.NewRateHandler(factory, rateCache),
		ProvisionHandler: handler.NewProvisionHandler(provisionUC),
		HealthHandler:    handler.NewHealthHandler(pool, redisClient, factory),
		Logger:           log.Logger,
	})

	publisher := newEventSink(cfg)
	outboxPublisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		Store:     outboxRepo,
		Publisher: publisher,
		Retrier:   postgresRepo.NewRetrier(log.Logger),
		Logger:    log.Logger,
		BatchSize: cfg.OutboxBatchSize,
		Interval:  cfg.OutboxInterval,
		Retention: cfg.OutboxRetention,
	})
	go func() {
		if err := outboxPublisher.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("outbox publisher stopped")
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	if closer, ok := publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}

	log.Info().Msg("server stopped")
}

// newEventSink picks the outbox delivery target: Kafka when brokers are
// configured, the log otherwise.
func newEventSink(cfg *config.Config) eventpublisher.Publisher {
	brokers := splitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return eventpublisher.NewLogPublisher(log.Logger)
	}

	kafkaPublisher, err := eventpublisher.NewKafkaPublisher(brokers, cfg.KafkaTopic, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka publisher")
	}

	log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	return kafkaPublisher
}

// splitBrokers parses a comma-separated broker list, dropping empty items.
func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
