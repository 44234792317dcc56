package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/db"
	"github.com/ignatzorin/gigmarket-backend/internal/events"
	httpHandlers "github.com/ignatzorin/gigmarket-backend/internal/http/handlers"
	"github.com/ignatzorin/gigmarket-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/gigmarket-backend/internal/http/router"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/payment"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/scheduler"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
	"github.com/ignatzorin/gigmarket-backend/internal/storage"
	"github.com/ignatzorin/gigmarket-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("main: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		logger.L().WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer safeClose(dbConn)

	applied, err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath)
	if err != nil {
		return fmt.Errorf("миграции: %w", err)
	}
	if len(applied) > 0 {
		log.WithField("migrations", applied).Info("main: применены миграции")
	}

	files, err := newFileStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("хранилище вложений: %w", err)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return fmt.Errorf("брокер событий: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("main: ошибка закрытия брокера событий")
		}
	}()

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	gateway := payment.NewStripeGateway(cfg.Payment.StripeSecretKey)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	gigRepo := repository.NewGigRepository(dbConn)
	postRepo := repository.NewJobPostRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	applicationRepo := repository.NewApplicationRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты. Хаб доставляет push и сохраняет уведомления.
	notificationService := service.NewNotificationService(notificationRepo)
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager, hub)
	orderService := service.NewOrderService(orderRepo, gigRepo, gateway, hub, publisher, service.OrderServiceConfig{
		Currency:    cfg.Payment.Currency,
		SuccessURL:  cfg.Payment.SuccessURL,
		CancelURL:   cfg.Payment.CancelURL,
		CheckoutTTL: cfg.CheckoutTTL,
	})
	applicationService := service.NewApplicationService(applicationRepo, postRepo, files, hub, publisher)
	catalogService := service.NewCatalogService(gigRepo, postRepo)
	moderationService := service.NewModerationService(gigRepo, postRepo, userRepo, orderRepo, hub, publisher)

	limitStore, err := middleware.NewRateLimitStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	healthHandler := httpHandlers.NewHealthHandler(dbConn)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		healthHandler.WithCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	jobs := scheduler.New()
	if err := jobs.AddCheckoutExpiry(cfg.ExpireCheckoutsSpec, orderService); err != nil {
		return err
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:          httpHandlers.NewAuthHandler(authService),
		Orders:        httpHandlers.NewOrderHandler(orderService),
		Applications:  httpHandlers.NewApplicationHandler(applicationService),
		Gigs:          httpHandlers.NewGigHandler(catalogService),
		Posts:         httpHandlers.NewPostHandler(catalogService),
		Admin:         httpHandlers.NewAdminHandler(moderationService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:        healthHandler,
	}, tokenManager, limitStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return jobs.Run(gctx) })
	g.Go(func() error {
		log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})
	// Завершаем сервер при получении сигнала или падении соседней задачи.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: ошибка остановки http сервера")
		}
		return nil
	})

	return g.Wait()
}

func newFileStorage(ctx context.Context, cfg *config.Config) (storage.FileStorage, error) {
	switch cfg.Storage.Driver {
	case "minio":
		return storage.NewMinioStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
		}, cfg.MaxUploadSizeMB)
	case "local", "":
		return storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.MaxUploadSizeMB)
	default:
		return nil, fmt.Errorf("неизвестный STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.Events.RabbitMQURL == "" {
		return events.NewLogPublisher(), nil
	}
	return events.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange)
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.L().WithError(err).Warn("main: ошибка закрытия базы")
	}
}
