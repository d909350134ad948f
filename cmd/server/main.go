package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/api"
	"github.com/patrickwarner/floodwatch/internal/config"
	"github.com/patrickwarner/floodwatch/internal/db"
	"github.com/patrickwarner/floodwatch/internal/observability"
	"github.com/patrickwarner/floodwatch/internal/reports"
	"github.com/patrickwarner/floodwatch/internal/storage"
	"github.com/patrickwarner/floodwatch/internal/token"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLogger(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, observability.TracingConfig{
			ServiceName:   cfg.ServiceName,
			Environment:   cfg.Env,
			TempoEndpoint: cfg.TempoEndpoint,
			SampleRate:    cfg.TracingSampleRate,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdownTracing()
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}, cfg.AutoMigrate, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	store, closeStore, err := newObjectStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens, err := token.NewService([]byte(cfg.JWTSecret), nil)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	metricsRegistry := observability.NewPrometheusRegistry()
	uploader := storage.NewUploader(store, nil, logger, metricsRegistry)

	var opts []reports.Option
	if cfg.EventsEnabled {
		client, err := db.InitRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		publisher := db.NewEventPublisher(client, db.ReportEventsChannel, logger, metricsRegistry)
		defer publisher.Close()
		opts = append(opts, reports.WithEvents(publisher))
	}

	svc := reports.NewService(database.Reports, uploader, logger, metricsRegistry, opts...)

	srvDeps := api.NewServer(logger, svc, tokens, metricsRegistry)
	srvDeps.DB = database
	srvDeps.MaxUploadBytes = cfg.MaxUploadBytes
	srvDeps.CORSOrigin = cfg.CORSOrigin
	srvDeps.Development = cfg.Development()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(srvDeps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Flood report server running",
		zap.String("addr", addr),
		zap.String("storage", cfg.StorageBackend),
		zap.Bool("events", cfg.EventsEnabled))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// newObjectStore builds the image store selected by STORAGE_BACKEND. The
// returned func releases any connection it holds.
func newObjectStore(cfg config.Config) (storage.ObjectStore, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.StorageSupabase:
		return storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.StorageBucket,
			cfg.StoragePublicBaseURL, cfg.StorageTimeout), noop, nil
	case config.StorageFTP:
		fs := storage.NewFTPStore(cfg.FTPHost, cfg.FTPPort, cfg.FTPUser, cfg.FTPPassword, cfg.FTPBaseURL, cfg.StorageTimeout)
		return fs, func() { _ = fs.Close() }, nil
	case config.StorageMemory:
		base := cfg.StoragePublicBaseURL
		if base == "" {
			base = "http://localhost:" + cfg.Port + "/images"
		}
		return storage.NewMemoryStore(base), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
