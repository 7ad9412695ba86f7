package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/api"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/config"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/database"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/domain"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/events"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/google"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/logging"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/metrics"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/repository"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/service"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/store"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, storageCloser, err := repository.Open(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("open storage")
		return err
	}
	defer storageCloser.Close()

	bookings, err := store.New(ctx, persister, logging.Component(&logger, "store"))
	if err != nil {
		if !store.IsWarning(err) {
			return err
		}
		logger.Warn().Err(err).Msg("starting with an empty booking list")
	}
	logger.Info().Int("bookings", bookings.Len()).Str("driver", cfg.Storage.Driver).Msg("bookings restored")

	eventBus := events.NewEventBus()
	eventBus.OnError(func(evt *events.Event, err error) {
		logger.Warn().Err(err).Str("event_type", evt.Type).Msg("event handler failed")
	})
	forwarder := initBroker(cfg, eventBus, &logger)
	if forwarder != nil {
		defer forwarder.Close()
	}

	var mirror domain.MirrorQueue
	if sheetsMirror := initSheetsMirror(ctx, cfg, &logger); sheetsMirror != nil {
		go sheetsMirror.Start(ctx)
		mirror = sheetsMirror
	}

	scanService := service.NewScanService(bookings, eventBus, mirror, logging.Component(&logger, "scan"))

	startBackups(ctx, cfg, &logger)
	startMetrics(ctx, cfg, &logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, scanService, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, scanService, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initBroker(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *events.AMQPForwarder {
	if !cfg.Broker.Enabled {
		return nil
	}

	forwarder, err := events.DialAMQP(cfg.Broker.URL, cfg.Broker.Exchange, cfg.Broker.RoutingPrefix, logging.Component(logger, "amqp"))
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq connection failed, continuing without event forwarding")
		return nil
	}
	forwarder.Attach(bus)

	logger.Info().Str("exchange", cfg.Broker.Exchange).Msg("rabbitmq connected")
	return forwarder
}

func initSheetsMirror(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *worker.SheetsMirror {
	if !cfg.Google.Enabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(
		ctx,
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.BookingSpreadSheetID,
		cfg.Google.BookingsSheetName,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		email, _ := google.GetServiceAccountEmail(cfg.Google.GoogleCredentialsFile)
		logger.Warn().Err(err).Str("service_account", email).Msg("google sheets not reachable, share the spreadsheet with the service account")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return worker.NewSheetsMirror(sheetsService, worker.RetryPolicyFrom(cfg.Mirror), logging.Component(logger, "sheets-mirror"))
}

func startBackups(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled {
		return
	}

	var source string
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		source = cfg.Database.Path
	case config.StorageFile:
		source = cfg.Storage.FilePath
	default:
		logger.Warn().Str("driver", cfg.Storage.Driver).Msg("backups are only supported for file and sqlite storage")
		return
	}

	if cfg.Backup.StoragePath == "" {
		cfg.Backup.StoragePath = filepath.Join(filepath.Dir(source), "backups")
	}

	backups := database.NewBackupService(source, cfg.Storage.Driver == config.StorageSQLite, cfg.Backup, logging.Component(logger, "backup"))
	go backups.Start(ctx)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	ev := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		ev = ev.Str("grpc_addr", grpcServer.Addr())
	}
	ev.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
