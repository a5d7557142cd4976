package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/linkshield/internal/config"
	db "github.com/sundayezeilo/linkshield/internal/db/sqlc"
	"github.com/sundayezeilo/linkshield/internal/db/migrate"
	"github.com/sundayezeilo/linkshield/internal/geo"
	"github.com/sundayezeilo/linkshield/internal/ids"
	"github.com/sundayezeilo/linkshield/internal/safety"
	"github.com/sundayezeilo/linkshield/internal/server"
	"github.com/sundayezeilo/linkshield/internal/shortener"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

const visitorKeyPrefix = "linkshield:visitor"

// App holds the application dependencies and configuration.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	DBPool     *pgxpool.Pool
	Redis      *redis.Client
	Server     *server.Server
	Components *Components
}

// Components is the domain object graph shared by the server and linkctl.
type Components struct {
	Classifier safety.Classifier
	Tracker    *tracking.Tracker
	Dispatcher tracking.Dispatcher
	Repo       shortener.Repository
	Service    shortener.Service
	Redirector *shortener.Redirector
	Handler    *shortener.Handler
	Admin      shortener.Admin
	AdminAPI   *shortener.AdminHandler
}

// Wire builds the domain components on top of an open pool. A nil rdb keeps
// unique-visitor state in Postgres.
func Wire(cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb redis.Cmdable) *Components {
	classifier := safety.New(safety.Config{
		APIKey:        cfg.SafeBrowsing.APIKey,
		Endpoint:      cfg.SafeBrowsing.URL,
		ClientID:      cfg.SafeBrowsing.ClientID,
		ClientVersion: cfg.SafeBrowsing.ClientVersion,
		Timeout:       cfg.SafeBrowsing.Timeout,
		CacheTTL:      cfg.SafeBrowsing.CacheTTL,
		Concurrency:   cfg.SafeBrowsing.Concurrency,
		Logger:        logger,
	})

	store := tracking.NewPGStore(pool)
	var visitors tracking.Visitors = store
	if rdb != nil {
		visitors = tracking.NewRedisVisitors(rdb, visitorKeyPrefix)
	}

	tracker := tracking.NewTracker(tracking.TrackerConfig{
		Store: store,
		Resolver: geo.NewIPAPI(geo.IPAPIConfig{
			BaseURL: cfg.Geo.BaseURL,
			Timeout: cfg.Geo.Timeout,
			Logger:  logger,
		}),
		Visitors:           visitors,
		IDs:                ids.TimeOrdered(2),
		Logger:             logger,
		AnonClickThreshold: cfg.Tracking.AnonClickThreshold,
		AnonWindow:         cfg.Tracking.AnonWindow,
	})

	dispatcher := tracking.New(cfg.Tracking.Mode, tracker, tracking.AsyncConfig{
		Workers:   cfg.Tracking.Workers,
		QueueSize: cfg.Tracking.QueueSize,
		Timeout:   cfg.Tracking.Timeout,
		Logger:    logger,
	})

	repo := shortener.NewRepository(db.New(pool), nil)
	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		Classifier:    classifier,
		AnonLinkLimit: cfg.Tracking.AnonLinkLimit,
		AnonWindow:    cfg.Tracking.AnonWindow,
		AnonLinkTTL:   cfg.Tracking.AnonLinkTTL,
		Logger:        logger,
	})

	admin := shortener.NewAdmin(repo, &shortener.AdminConfig{
		ReviewTTL: cfg.SafeBrowsing.CacheTTL,
		Logger:    logger,
	})

	return &Components{
		Classifier: classifier,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Repo:       repo,
		Service:    svc,
		Redirector: shortener.NewRedirector(shortener.RedirectorConfig{
			Repo:       repo,
			Classifier: classifier,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		Handler: shortener.NewHandler(shortener.HandlerConfig{
			Service: svc,
			Logger:  logger,
			BaseURL: cfg.Server.BaseURL,
		}),
		Admin:    admin,
		AdminAPI: shortener.NewAdminHandler(shortener.AdminHandlerConfig{
			Admin:   admin,
			Logger:  logger,
			BaseURL: cfg.Server.BaseURL,
		}),
	}
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := SetupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"service", cfg.Observability.ServiceName,
		"version", cfg.Observability.ServiceVersion,
	)

	if cfg.Database.AutoMigrate {
		if err := migrate.Up(cfg.Database.URL(), logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	dbPool, err := ConnectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rdb, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var cmd redis.Cmdable
	if rdb != nil {
		cmd = rdb
	}
	components := Wire(cfg, logger, dbPool, cmd)

	srv := server.New(cfg, logger, server.Deps{
		Links:      components.Handler,
		Admin:      components.AdminAPI,
		Redirector: components.Redirector,
		DB:         dbPool,
	})

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"tracking_mode", cfg.Tracking.Mode,
		"visitor_store", visitorStore(rdb),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		DBPool:     dbPool,
		Redis:      rdb,
		Server:     srv,
		Components: components,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown drains queued clicks and releases connections.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	var errs []error

	if a.Components != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Components.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain click queue: %w", err))
		}
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			a.Logger.Info("redis connection closed")
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return errors.Join(errs...)
}

// LoadConfig reads .env in development and test, then the environment.
func LoadConfig() (*config.Config, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// SetupLogger creates a structured logger based on the log level.
func SetupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// ConnectDatabase establishes a connection to the PostgreSQL database.
func ConnectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}

// connectRedis returns nil when no address is configured.
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	logger.Info("connecting to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established")

	return rdb, nil
}

func visitorStore(rdb *redis.Client) string {
	if rdb == nil {
		return "postgres"
	}
	return "redis"
}
