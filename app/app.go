package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/amberline/fulfillment/internal/cache"
	"github.com/amberline/fulfillment/internal/config"
	"github.com/amberline/fulfillment/internal/db"
	"github.com/amberline/fulfillment/internal/email"
	"github.com/amberline/fulfillment/internal/handlers"
	"github.com/amberline/fulfillment/internal/labelstore"
	"github.com/amberline/fulfillment/internal/logging"
	"github.com/amberline/fulfillment/internal/observability"
	"github.com/amberline/fulfillment/internal/rates"
	"github.com/amberline/fulfillment/internal/services"
	"github.com/amberline/fulfillment/internal/venipak"
)

type App struct {
	Config          *config.Config
	Logger          *slog.Logger
	DB              *pgxpool.Pool
	CacheProvider   cache.Provider
	LabelStore      labelstore.Provider
	TrackingService *services.TrackingService
	Handlers        *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	rateTable, err := rates.Load(cfg.ShippingRatesPath)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to load shipping rates: %w", err)
	}

	labelStore, err := labelstore.NewProvider(labelstore.Config{
		Provider:       cfg.LabelStoreProvider,
		Directory:      cfg.LabelDir,
		S3Endpoint:     cfg.S3Endpoint,
		S3Region:       cfg.S3Region,
		S3Bucket:       cfg.S3Bucket,
		S3AccessKey:    cfg.S3AccessKey,
		S3SecretKey:    cfg.S3SecretKey,
		S3UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize label store: %w", err)
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.EmailAPIKey,
		From:     cfg.EmailFrom,
		Domain:   cfg.EmailDomain,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}

	carrierConfig := venipak.Config{
		BaseURL:         cfg.VenipakAPIURL,
		Username:        cfg.VenipakUsername,
		Password:        cfg.VenipakPassword,
		AccountID:       cfg.VenipakAccountID,
		FirstPackNumber: cfg.VenipakFirstPackNumber,
	}
	if !carrierConfig.Configured() {
		logger.Warn("carrier credentials not set, shipment creation is disabled")
	}
	carrierClient := venipak.NewClient(
		carrierConfig,
		observability.NewHTTPClient(venipak.DefaultTimeout),
		logger.With("component", "venipak_client"),
	)

	orderStore := db.NewOrderStore(database)

	shipmentService := services.NewShipmentService(
		orderStore,
		carrierClient,
		carrierConfig,
		rateTable,
		labelStore,
		emailProvider,
		logger.With("component", "shipment_service"),
	)
	trackingService := services.NewTrackingService(
		orderStore,
		carrierClient,
		carrierConfig,
		cacheProvider,
		emailProvider,
		cfg.TrackingPollInterval,
		logger.With("component", "tracking_service"),
	)

	h, err := handlers.New(handlers.Dependencies{
		Config:          cfg,
		DB:              database,
		ShipmentService: shipmentService,
		TrackingService: trackingService,
		Logger:          logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		DB:              database,
		CacheProvider:   cacheProvider,
		LabelStore:      labelStore,
		TrackingService: trackingService,
		Handlers:        h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.LabelStore != nil {
		if err := a.LabelStore.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("failed to close label store", "error", err)
		}
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var console slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, opts)
	default:
		console = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if cfg.SentryDSN == "" {
		return slog.New(console)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	return slog.New(logging.MultiHandler(console, sentryHandler))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
