package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-quality/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-quality/pkg/config"
	"github.com/ekaya-inc/ekaya-quality/pkg/handlers"
	"github.com/ekaya-inc/ekaya-quality/pkg/middleware"
	"github.com/ekaya-inc/ekaya-quality/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load("config.yaml", Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("datasource", cfg.Datasource.Type),
		zap.Int("max_concurrent_queries", cfg.Profiling.MaxConcurrentQueries),
		zap.Int("max_rules", cfg.Validation.MaxRules),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	executor, err := datasource.NewQueryExecutor(ctx, cfg.Datasource.Type, cfg.Datasource.ExecutorOptions(), logger)
	if err != nil {
		return fmt.Errorf("failed to open datasource: %w", err)
	}
	defer func() {
		if err := executor.Close(); err != nil {
			logger.Error("Failed to close datasource", zap.Error(err))
		}
	}()

	collector := services.NewStatisticsCollector(cfg.Profiling.CollectorConfig(), logger)
	profileService := services.NewProfileService(collector, cfg.Anomaly.Thresholds(), logger)
	validationService := services.NewValidationService(cfg.Validation.ServiceConfig(), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, executor, logger).RegisterRoutes(mux)
	handlers.NewProfileHandler(profileService, executor, logger).RegisterRoutes(mux)
	handlers.NewValidationHandler(validationService, profileService, executor, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-quality",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Any("adapters", datasource.RegisteredAdapters()),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLogger builds a console logger for local runs and JSON everywhere else.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}

	logConfig := zap.NewProductionConfig()
	if cfg.Env == "local" {
		logConfig = zap.NewDevelopmentConfig()
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)
	return logConfig.Build()
}
