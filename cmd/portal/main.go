package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/api"
	"github.com/AshishSahani0/saarthi-portal/internal/backend"
	"github.com/AshishSahani0/saarthi-portal/internal/config"
	"github.com/AshishSahani0/saarthi-portal/internal/domain"
	"github.com/AshishSahani0/saarthi-portal/internal/events"
	"github.com/AshishSahani0/saarthi-portal/internal/logging"
	"github.com/AshishSahani0/saarthi-portal/internal/metrics"
	"github.com/AshishSahani0/saarthi-portal/internal/models"
	"github.com/AshishSahani0/saarthi-portal/internal/notify"
	"github.com/AshishSahani0/saarthi-portal/internal/repository"
	"github.com/AshishSahani0/saarthi-portal/internal/scheduler"
	"github.com/AshishSahani0/saarthi-portal/internal/service"
	"github.com/AshishSahani0/saarthi-portal/internal/session"
	"github.com/AshishSahani0/saarthi-portal/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
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

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	localStore, err := store.New(cfg.Cache.Path)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Cache.Path).Msg("init local store")
		return err
	}
	defer localStore.Close()

	loc := cfg.Location()
	clock := service.SystemClock{}

	backendClient := backend.NewClient(cfg.Backend)
	if redisClient != nil && cfg.Backend.CacheTTLSeconds > 0 {
		backendClient.UseRedisCache(redisClient, time.Duration(cfg.Backend.CacheTTLSeconds)*time.Second)
	}

	classifier := session.NewClassifier(cfg.Portal.JoinGraceMinutes, loc)
	classifier.OnAnomaly(func(status string) {
		metrics.IncStatusAnomaly()
		logger.Warn().Str("status", status).Msg("booking carries unknown status, treating as pending")
	})

	bus := events.NewEventBus()
	snapshots := initSnapshots(cfg, redisClient, &logger)

	dashboard := service.New(
		backendClient,
		classifier,
		snapshots,
		localStore,
		bus,
		clock,
		models.ViewerScope{Role: models.RoleAdmin, InstituteID: cfg.Portal.InstituteID},
		loc,
		&logger,
	)

	if err := dashboard.Refresh(ctx); err != nil {
		// Not fatal: the refresh loop keeps trying.
		logger.Warn().Err(err).Msg("initial refresh failed")
	}
	go refreshLoop(ctx, dashboard, cfg.Portal.RefreshSeconds, &logger)

	startReminders(ctx, cfg, dashboard, clock, loc, &logger)
	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, dashboard, localStore, clock, &logger)
	return serveHTTP(ctx, httpServer, cfg, &logger)
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
	logger := baseLogger.With().Str("component", "portal-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initSnapshots prefers Redis with a memory fallback; without Redis
// the memory repository serves alone.
func initSnapshots(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SnapshotRepository {
	ttl := time.Duration(cfg.Portal.SnapshotTTLSeconds) * time.Second
	memory := repository.NewMemorySnapshotRepository(ttl)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisSnapshotRepository(redisClient, ttl)
	return repository.NewFailoverSnapshotRepository(primary, memory, logger)
}

func refreshLoop(ctx context.Context, dashboard domain.DashboardService, seconds int, logger *zerolog.Logger) {
	if seconds <= 0 {
		seconds = models.DefaultRefreshSeconds
	}
	ticker := time.NewTicker(time.Duration(seconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dashboard.Refresh(ctx); err != nil {
				logger.Error().Err(err).Msg("refresh failed")
			}
		}
	}
}

func startReminders(
	ctx context.Context,
	cfg *config.Config,
	dashboard domain.DashboardService,
	clock domain.Clock,
	loc *time.Location,
	logger *zerolog.Logger,
) {
	if !cfg.Telegram.Enabled {
		return
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without reminders")
		return
	}

	reminders := scheduler.New(
		dashboard,
		notifier,
		clock,
		cfg.Portal.ReminderWindowMinutes,
		cfg.Portal.ReminderSchedule,
		loc,
		logger,
	)
	if err := reminders.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to start reminder scheduler")
		return
	}
	go func() {
		<-ctx.Done()
		reminders.Stop()
	}()
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

func serveHTTP(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("portal started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("portal stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
