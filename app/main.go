package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"safety-inspection/internal/bot"
	"safety-inspection/internal/controllers"
	"safety-inspection/internal/listeners"
	"safety-inspection/internal/repositories"
	"safety-inspection/internal/routes"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/api"
	"safety-inspection/pkg/config"
	"safety-inspection/pkg/customvalidator"
	"safety-inspection/pkg/database/migrations"
	"safety-inspection/pkg/database/postgresql"
	"safety-inspection/pkg/eventbus"
	"safety-inspection/pkg/filestorage"
	applogger "safety-inspection/pkg/logger"
	"safety-inspection/pkg/middleware"
	"safety-inspection/pkg/mqtt"
	"safety-inspection/pkg/service"
	"safety-inspection/pkg/telegram"
	appwebsocket "safety-inspection/pkg/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("Panic in HTTP handler",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				_ = api.ErrorResponse(c, err)
			}
			return err
		},
	}))
	e.Use(middleware.RequestLogger(logger.Named("http")))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
	}))

	v, err := customvalidator.New()
	if err != nil {
		logger.Fatal("Failed to register validation rules", zap.Error(err))
	}
	e.Validator = v

	dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbConn.Close()

	migrate := func(ctx context.Context) error { return migrations.Up(ctx, dbConn) }
	if err := migrate(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}
	defer redisClient.Close()

	fileStorage := newFileStorage(ctx, e, cfg.Storage, logger)

	// --- Repositories ---
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)
	revocationRepo := repositories.NewTokenRevocationRepository(cacheRepo)
	userRepo := repositories.NewUserRepository(dbConn, logger.Named("users"))
	areaRepo := repositories.NewAreaRepository(dbConn, logger.Named("areas"))
	findingRepo := repositories.NewFindingRepository(dbConn, logger.Named("findings"))
	photoRepo := repositories.NewPhotoRepository(dbConn, logger.Named("photos"))
	historyRepo := repositories.NewStatusHistoryRepository(dbConn, logger.Named("history"))
	txManager := repositories.NewTxManager(dbConn)

	// --- Infrastructure ---
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	tgService := telegram.NewService(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.PollTimeout, logger.Named("telegram"))
	bus := eventbus.New(logger.Named("events"))
	hub := appwebsocket.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	// --- Services ---
	userService := services.NewUserService(userRepo, logger.Named("users"))
	authService := services.NewAuthService(userRepo, revocationRepo, jwtSvc, logger.Named("auth"))
	areaService := services.NewAreaService(areaRepo, userRepo, txManager, logger.Named("areas"))
	findingService := services.NewFindingService(
		findingRepo, photoRepo, historyRepo, userRepo, areaRepo,
		txManager, fileStorage, bus, cfg.App.ReportIDPrefix, logger.Named("findings"),
	)
	notificationService := services.NewNotificationService(cacheRepo, tgService, logger.Named("notifications"))
	setupService := services.NewSetupService(
		userRepo, areaRepo, userService,
		cfg.App.AdminPassword, cfg.App.Version,
		dbConn.Ping,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		logger.Named("setup"),
	)

	// --- Listeners ---
	listeners.NewRealtimeListener(hub, logger.Named("realtime")).Register(bus)
	if cfg.Telegram.BotToken != "" {
		listeners.NewTelegramListener(userRepo, notificationService, tgService, logger.Named("notify")).Register(bus)
	}
	if cfg.MQTT.Broker != "" {
		mqttClient, err := mqtt.NewClient(cfg.MQTT, logger.Named("mqtt"))
		if err != nil {
			logger.Error("MQTT disabled", zap.Error(err))
		} else {
			defer mqttClient.Disconnect()
			listeners.NewMQTTListener(mqttClient, cfg.MQTT.TopicPrefix, logger.Named("mqtt")).Register(bus)
		}
	}

	// --- Telegram bot ---
	var tgBot *bot.Bot
	var tgController *controllers.TelegramController
	if cfg.Telegram.BotToken != "" {
		tgBot = bot.New(userService, areaService, findingService, tgService, newSessionStore(cfg.Telegram, cacheRepo), logger)
		go tgBot.Run(ctx)
		startBot(ctx, tgBot, tgService, cfg.Telegram, logger)
		if cfg.Telegram.WebhookURL != "" {
			tgController = controllers.NewTelegramController(tgBot, cfg.Telegram.WebhookSecret, logger.Named("webhook"))
		}
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN is empty, bot disabled")
	}

	// --- HTTP ---
	authMW := middleware.NewAuthMiddleware(jwtSvc, userRepo, revocationRepo, logger.Named("auth"))
	routes.InitRouter(e, routes.Controllers{
		Auth:         controllers.NewAuthController(authService, logger.Named("auth")),
		User:         controllers.NewUserController(userService, logger.Named("users")),
		Area:         controllers.NewAreaController(areaService, logger.Named("areas")),
		Finding:      controllers.NewFindingController(findingService, logger.Named("findings")),
		Notification: controllers.NewNotificationController(notificationService, logger.Named("notifications")),
		Setup:        controllers.NewSetupController(setupService, migrate, cfg.App, logger.Named("setup")),
		WebSocket:    controllers.NewWebSocketController(hub, authMW, logger.Named("ws")),
		Telegram:     tgController,
	}, authMW, cfg.App.APIPrefix, logger)

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port), zap.String("version", cfg.App.Version))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	if tgBot != nil {
		tgBot.Wait()
	}
	if err := bus.Wait(shutdownCtx); err != nil {
		logger.Warn("Event listeners did not finish in time", zap.Error(err))
	}
}

func newFileStorage(ctx context.Context, e *echo.Echo, cfg config.StorageConfig, logger *zap.Logger) filestorage.FileStorageInterface {
	if cfg.Driver == "local" {
		absPath, err := filepath.Abs(cfg.LocalPath)
		if err != nil {
			logger.Fatal("Failed to resolve local storage path", zap.Error(err))
		}
		store, err := filestorage.NewLocalFileStorage(absPath, "/uploads/")
		if err != nil {
			logger.Fatal("Failed to create local file storage", zap.Error(err))
		}
		e.Static("/uploads", absPath)
		return store
	}

	store, err := filestorage.NewS3FileStorage(ctx, filestorage.S3Config{
		Endpoint:   cfg.Endpoint,
		AccessKey:  cfg.AccessKey,
		SecretKey:  cfg.SecretKey,
		Bucket:     cfg.Bucket,
		Region:     cfg.Region,
		UseSSL:     cfg.UseSSL,
		PresignTTL: cfg.PresignTTL,
	}, logger.Named("s3"))
	if err != nil {
		logger.Fatal("Failed to connect to object storage", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
	}
	return store
}

func newSessionStore(cfg config.TelegramConfig, cache repositories.CacheRepositoryInterface) bot.SessionStore {
	if cfg.SessionStore == "redis" {
		return bot.NewRedisStore(cache, cfg.SessionTTL)
	}
	return bot.NewMemoryStore(cfg.SessionTTL, cfg.SessionCapacity)
}

// startBot registers the command menu and picks webhook or long-polling delivery.
func startBot(ctx context.Context, tgBot *bot.Bot, tg telegram.ServiceInterface, cfg config.TelegramConfig, logger *zap.Logger) {
	if err := tgBot.RegisterCommands(ctx); err != nil {
		logger.Warn("Failed to register bot commands", zap.Error(err))
	}

	if cfg.WebhookURL != "" {
		if err := tg.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			logger.Error("Failed to set Telegram webhook", zap.Error(err), zap.String("url", cfg.WebhookURL))
		}
		logger.Info("Telegram bot in webhook mode", zap.String("url", cfg.WebhookURL))
		return
	}

	logger.Info("Telegram bot in polling mode")
	go telegram.NewPoller(tg, tgBot.HandleUpdate, cfg.PollTimeout, logger.Named("poller")).Run(ctx)
}
