package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/internal/account"
	"github.com/frahmantamala/account-registry/internal/account/postgres"
	"github.com/frahmantamala/account-registry/internal/auth"
	"github.com/frahmantamala/account-registry/internal/core/events"
	"github.com/frahmantamala/account-registry/internal/manage"
	"github.com/frahmantamala/account-registry/internal/transport/rest"
	"github.com/frahmantamala/account-registry/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *gorm.DB
	SQLDB    *sql.DB
	Registry *account.Registry
	Bus      *events.EventBus
	Router   *chi.Mux
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := account.NewSweeper(deps.Registry, deps.Config.Registry.PruneInterval, deps.Bus, deps.Logger)
	go sweeper.Run(ctx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		deps.Logger.Info("Starting HTTP server", "address", addr, "accounts", deps.Registry.Len())
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Received signal, shutting down...")
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		deps.Logger.Error("Server shutdown error", "error", err)
	}
	// pending write-backs must land before the database goes away
	if err := deps.Bus.Drain(shutdownCtx); err != nil {
		deps.Logger.Error("Event drain error", "error", err)
	}
	if deps.SQLDB != nil {
		if err := deps.SQLDB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	deps := &Dependencies{
		Config:   config,
		Registry: account.NewRegistry(),
		Bus:      events.NewEventBus(lg),
		Router:   chi.NewRouter(),
		Logger:   lg,
	}

	if config.Database.Enabled() {
		db, err := initDB(config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		deps.DB = db
		deps.SQLDB = sqlDB

		store := postgres.NewStore(db)
		restored, err := postgres.Restore(context.Background(), deps.Registry, store)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to restore registry: %w", err)
		}
		lg.Info("registry restored", "accounts", restored)

		postgres.NewSyncer(deps.Registry, store, lg).Register(deps.Bus)
	} else {
		lg.Warn("no database configured; accounts live in memory only")
	}

	codec := auth.NewJWTTokenCodec(config.Security.TokenSecret)
	engine := auth.NewEngine(deps.Registry, codec, lg)
	authService := auth.NewService(deps.Registry, engine, codec, deps.Bus, config.Security.TokenTTL, lg)
	manageService := manage.NewService(deps.Registry, engine, deps.Bus, config.Security.BCryptCost, lg)

	rest.RegisterAllRoutes(deps.Router, rest.RouterConfig{
		AllowedOrigins: config.Server.Origins(),
		MetricsEnabled: config.Observability.Metrics.Enabled,
		MetricsPath:    config.Observability.Metrics.Path,
	}, deps.Registry, deps.SQLDB, rest.Handlers{
		Auth:   auth.NewHandler(authService, lg),
		Manage: manage.NewHandler(manageService, lg),
	}, lg)

	return deps, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormpostgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
