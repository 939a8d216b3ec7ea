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
	"syscall"
	"time"

	"planik/internal/config"
	"planik/internal/connectivity"
	"planik/internal/database"
	"planik/internal/events"
	"planik/internal/logging"
	"planik/internal/metrics"
	"planik/internal/models"
	"planik/internal/remote"
	"planik/internal/repository"
	"planik/internal/service"
	"planik/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	metrics.Register()

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("database init failed")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deadLetter := initDeadLetter(ctx, cfg, logger)

	bus := events.NewEventBus()

	monitor := connectivity.NewMonitor(
		connectivity.InterfaceSignal{},
		connectivity.NewHTTPProber(cfg.Sync.ProbeURL),
		cfg.Sync.ProbeTimeout(),
		bus,
		logger,
	)
	go monitor.Watch(ctx, cfg.Sync.DrainInterval())

	registry := worker.NewRegistry()
	remoteClient := remote.NewClient(remote.Options{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		HTTP:    &http.Client{Timeout: cfg.Remote.Timeout()},
	}, logger)
	for _, collection := range models.Collections {
		if err := registry.Register(collection, remoteClient.Handler(collection)); err != nil {
			return err
		}
	}

	orchestrator := worker.NewOrchestrator(db, registry, monitor, bus, worker.Options{
		Retry: worker.RetryPolicy{
			MaxRetries:    cfg.Sync.MaxRetries,
			InitialDelay:  cfg.Sync.InitialDelay(),
			MaxDelay:      cfg.Sync.MaxDelay(),
			BackoffFactor: 2,
		},
		DeadLetter:     deadLetter,
		DrainInterval:  cfg.Sync.DrainInterval(),
		PurgeExhausted: cfg.Sync.PurgeExhausted,
	}, logger)
	go orchestrator.Start(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	planner := service.NewPlanner(db, logger)
	logStartupState(ctx, planner, logger)

	// One eager pass so a backlog from the previous session does not wait
	// for the first timer tick.
	if _, err := orchestrator.Sync(ctx); err != nil {
		logger.Error().Err(err).Msg("initial drain failed")
	}

	logger.Info().Msg("planikd running")
	<-ctx.Done()
	logger.Info().Msg("shutdown complete")
	return nil
}

func initDeadLetter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) worker.DeadLetter {
	if cfg.Redis.Address == "" {
		return repository.NewMemoryDeadLetter()
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory dead letter")
		return repository.NewMemoryDeadLetter()
	}
	return repository.NewRedisDeadLetter(client, cfg.Redis.DeadLetterKey)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

func logStartupState(ctx context.Context, planner *service.Planner, logger *zerolog.Logger) {
	pending, err := planner.PendingMutations(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("count pending mutations")
		return
	}
	stats, err := planner.Stats(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("read store stats")
		return
	}
	logger.Info().Int("pending_mutations", pending).Interface("records", stats).Msg("local store loaded")
}
