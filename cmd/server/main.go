package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/timecraft/timebank-backend/internal/cache"
	"github.com/timecraft/timebank-backend/internal/changefeed"
	"github.com/timecraft/timebank-backend/internal/config"
	"github.com/timecraft/timebank-backend/internal/db"
	httpHandlers "github.com/timecraft/timebank-backend/internal/http/handlers"
	httpRouter "github.com/timecraft/timebank-backend/internal/http/router"
	"github.com/timecraft/timebank-backend/internal/logger"
	"github.com/timecraft/timebank-backend/internal/repository"
	"github.com/timecraft/timebank-backend/internal/service"
	"github.com/timecraft/timebank-backend/internal/storage"
	"github.com/timecraft/timebank-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	avatarStorage, err := storage.NewAvatarStorage(cfg.AvatarStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	offerRepo := repository.NewOfferRepository(dbConn)
	applicationRepo := repository.NewApplicationRepository(dbConn)
	transactionRepo := repository.NewTransactionRepository(dbConn, cfg.InitialTimeCredits)
	balanceRepo := repository.NewBalanceRepository(dbConn, cfg.InitialTimeCredits)

	// Кэш: Redis при наличии адреса, иначе встроенный in-memory.
	var appCache cache.Cache
	if rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr); err != nil {
		log.Printf("main: redis недоступен, используем in-memory кэш: %v", err)
		appCache = cache.NewMemoryCache()
	} else if rdb != nil {
		appCache = cache.NewRedisCache(rdb)
		defer rdb.Close()
	} else {
		appCache = cache.NewMemoryCache()
	}

	statsService := service.NewStatsService(balanceRepo, transactionRepo, appCache, cfg.CacheTTL)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	go hub.Run()

	// Лента изменений: локальные потребители получают изменения и этого
	// инстанса, и соседних через NATS; наружу уходит всё локальное.
	local := changefeed.NewFanout(hub, statsService.Invalidator())
	feed := local

	nc, err := changefeed.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Printf("main: NATS недоступен, лента изменений останется локальной: %v", err)
	} else if nc != nil {
		defer nc.Close()
		natsPub := changefeed.NewNATSPublisher(nc)
		if _, err := natsPub.Subscribe(local); err != nil {
			log.Printf("main: ошибка подписки на NATS: %v", err)
		}
		feed = changefeed.NewFanout(hub, statsService.Invalidator(), natsPub)
	}

	lifecycleService := service.NewLifecycleService(
		offerRepo, applicationRepo, transactionRepo, userRepo, feed, cfg.InitialTimeCredits)
	authService := service.NewAuthService(userRepo, tokenManager)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	offerHandler := httpHandlers.NewOfferHandler(lifecycleService)
	applicationHandler := httpHandlers.NewApplicationHandler(lifecycleService)
	statsHandler := httpHandlers.NewStatsHandler(statsService)
	profileHandler := httpHandlers.NewProfileHandler(userRepo, avatarStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, offerHandler, applicationHandler,
		statsHandler, profileHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
