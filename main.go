package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"loan-widget/client"
	"loan-widget/config"
	httpLayer "loan-widget/http"
	"loan-widget/push"
	"loan-widget/repository"
	"loan-widget/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, logger); err != nil {
		logger.Error("widget agent stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("widget agent exited")
}

func openStore(cfg *config.Config) (repository.KeyValueStore, func() error, error) {
	switch cfg.CacheDriver {
	case config.CacheDriverRedis:
		rc := repository.NewRedisCache(cfg.RedisAddr, cfg.RedisPrefix)
		return rc, rc.Close, nil
	case config.CacheDriverMemory:
		return repository.NewMemoryCache(), func() error { return nil }, nil
	default:
		st, err := repository.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("cache opened", "driver", cfg.CacheDriver)

	cache := repository.NewProgressCache(store)
	backend := client.NewBackendClient(cfg.BackendBaseURL, client.StaticCredentials(cfg.BackendAccessToken), cfg.BackendTimeout)

	broadcaster := service.NewRefreshBroadcaster()
	notifications := service.NewNotificationService(cache, backend, broadcaster, logger.With("component", "notifications"))

	host := service.NewMemoryWidgetHost()
	widgets := service.NewWidgetService(cache, host, "/forms", logger.With("component", "widgets"))
	sessions := service.NewFormSessions(backend, logger.With("component", "forms"))

	var syncer *service.ProgressSyncer
	if cfg.ProgressSyncSchedule != "" {
		syncer = service.NewProgressSyncer(backend, cache, broadcaster, logger.With("component", "sync"))
	}
	scheduler := service.NewScheduler(widgets, syncer, cfg.WidgetRefreshSchedule, cfg.ProgressSyncSchedule, logger.With("component", "scheduler"))
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	pushLimiter := httpLayer.NewRateLimiter(cfg.PushRateLimit, time.Minute)
	defer pushLimiter.Stop()

	handler := httpLayer.NewHandler(notifications, widgets, host, broadcaster, sessions, logger.With("component", "http"))
	server := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: httpLayer.NewRouter(handler, httpLayer.RouterOptions{
			WebhookSecret:  cfg.PushWebhookSecret,
			PushLimiter:    pushLimiter,
			AllowedOrigins: cfg.AllowedOrigins(),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	signals, unsubscribe := broadcaster.Subscribe()
	defer unsubscribe()
	g.Go(func() error {
		return widgets.Run(ctx, signals)
	})

	if cfg.RabbitMQURL != "" {
		dispatcher := push.NewDispatcher(notifications)
		consumer, err := push.NewConsumer(cfg.RabbitMQURL, cfg.PushExchange, cfg.PushQueue, dispatcher, logger.With("component", "push"))
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	} else {
		logger.Info("push consumer disabled, RABBITMQ_URL not set")
	}

	g.Go(func() error {
		logger.Info("widget agent listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	notifications.Wait()
	return err
}
