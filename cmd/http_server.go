package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/auth"
	"github.com/frahmantamala/payment-reconciliation/internal/core/events"
	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
	txPostgres "github.com/frahmantamala/payment-reconciliation/internal/transaction/postgres"
	txRedis "github.com/frahmantamala/payment-reconciliation/internal/transaction/redis"
	"github.com/frahmantamala/payment-reconciliation/internal/transport"
	"github.com/frahmantamala/payment-reconciliation/internal/transport/rest"
	"github.com/frahmantamala/payment-reconciliation/pkg/logger"
	"github.com/frahmantamala/payment-reconciliation/pkg/metric"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle payment init, gateway webhooks and lookups`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *gorm.DB
	Redis    *goredis.Client
	Router   *chi.Mux
	EventBus *events.EventBus
	Metrics  metric.Factory
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	deps.close()
	deps.Logger.Info("Server stopped")
}

// close waits for in-flight event handlers before releasing connections.
func (d *Dependencies) close() {
	d.EventBus.Wait()
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			d.Logger.Error("Database close error", "error", err)
		}
	}
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	sqlDB, err := deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}

	reconciliation := deps.Metrics.Reconciliation()

	opts := []transaction.Option{
		transaction.WithEventPublisher(deps.EventBus),
		transaction.WithMetrics(reconciliation),
	}
	if deps.Redis != nil {
		opts = append(opts, transaction.WithDeliveryLock(txRedis.NewDeliveryLock(deps.Redis, cfg.Redis.LockTTL, lg)))
	}

	service := transaction.NewService(
		txPostgres.NewTransactionRepository(deps.DB),
		transaction.NewPaymentLinkBuilder(cfg.Bank),
		cfg.Payment,
		lg,
		opts...,
	)

	transaction.NewEventHandler(reconciliation, lg).RegisterEventHandlers(deps.EventBus)

	base := transport.NewBaseHandler(lg)
	healthHandler := rest.NewHealthHandler(sqlDB)
	if deps.Redis != nil {
		healthHandler.WithRedis(deps.Redis)
	}

	metricsRoute := rest.MetricsRoute{Path: cfg.Observability.Metrics.Path}
	if cfg.Observability.Metrics.Enabled {
		metricsRoute.Handler = deps.Metrics.Handler()
	}

	rest.RegisterAllRoutes(deps.Router,
		healthHandler,
		auth.NewGuard(cfg.Security),
		transaction.NewHandler(base, service),
		transaction.NewWebhookHandler(base, service),
		deps.Metrics.HTTP(),
		metricsRoute,
		lg,
	)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger.Configure(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var redisClient *goredis.Client
	if config.Redis.URL != "" {
		redisClient, err = txRedis.NewClient(context.Background(), config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		lg.Info("webhook delivery lock enabled", "lock_ttl", config.Redis.LockTTL)
	}

	metrics := metric.NewNoop()
	if config.Observability.Metrics.Enabled {
		metrics = metric.NewFactory()
	}

	return &Dependencies{
		Config:   config,
		DB:       db,
		Redis:    redisClient,
		Router:   chi.NewRouter(),
		EventBus: events.NewEventBus(lg),
		Metrics:  metrics,
		Logger:   lg,
	}, nil
}

// initDB opens the gorm postgres connection. Unique violations are translated to
// gorm.ErrDuplicatedKey so the repository can tell code collisions apart.
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
