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

	"sobytnik/internal/api"
	"sobytnik/internal/config"
	"sobytnik/internal/database"
	"sobytnik/internal/domain"
	"sobytnik/internal/events"
	"sobytnik/internal/export"
	"sobytnik/internal/logging"
	"sobytnik/internal/metrics"
	"sobytnik/internal/notify"
	"sobytnik/internal/repository"
	"sobytnik/internal/service"
	"sobytnik/internal/worker"

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
		defer func() { _ = closer.Close() }()
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, notifyWorker := initNotifications(cfg, redisClient, &logger)
	if notifyWorker != nil {
		go notifyWorker.Start(ctx)
	}

	eventBus := events.NewEventBus()
	groups := repository.NewStaticGroups(cfg.Groups)
	exporter := export.NewExporter(cfg.Exports.Path, &logger)

	bookingService := service.NewBookingService(
		db, db, db, groups, notifier, eventBus,
		cfg.Notify.DefaultChannel,
		cfg.Booking.DefaultGroupReservationLimit,
		&logger,
	)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, db, db, db, exporter, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, &logger)
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

// initDatabase открывает хранилище и загружает мероприятия из конфигурации.
func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	ctx := context.Background()
	for i := range cfg.Events {
		if err := db.UpsertEvent(ctx, &cfg.Events[i]); err != nil {
			db.Close()
			return nil, fmt.Errorf("upsert event %d: %w", cfg.Events[i].ID, err)
		}
	}
	if len(cfg.Events) > 0 {
		logger.Info().Int("count", len(cfg.Events)).Msg("events loaded from config")
	}
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initNotifications собирает цепочку доставки: прямой отправитель по каналам
// и очередь с воркером поверх него. Сервису отдается очередь, чтобы коммит
// брони не ждал SMTP.
func initNotifications(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.Notifier, *worker.NotifyWorker) {
	var mailer notify.Mailer
	if cfg.Notify.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.Notify.SMTP.Host, cfg.Notify.SMTP.Port, cfg.Notify.SMTP.From)
	}

	var telegram notify.TelegramClient
	if cfg.Notify.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram channel")
		} else {
			telegram = tg
		}
	}

	direct := notify.NewNotifier(notify.NewTemplateRegistry(), mailer, telegram, logger)
	notifyWorker := worker.NewNotifyWorker(direct, redisClient, worker.RetryPolicy{},
		cfg.Notify.QueueKey, cfg.Notify.DeadLetterKey, logger)
	return notify.NewQueueNotifier(notifyWorker), notifyWorker
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
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
