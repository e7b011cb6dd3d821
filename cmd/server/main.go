package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cera/internal/config"
	handlers "cera/internal/handlers/shared"
	"cera/internal/middleware"
	"cera/internal/repositories/mongodb"
	"cera/internal/services"
	"cera/internal/utils"
	"cera/pkg/cache"
	"cera/pkg/database"
	"cera/pkg/logger"
	"cera/pkg/maps"
	"cera/pkg/push"
	"cera/pkg/sms"
	"cera/pkg/storage"
	"cera/pkg/websocket"
	"cera/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFormat := "text"
	if config.IsProduction() {
		logFormat = "json"
	}
	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: logFormat,
		Output: "stdout",
		Colors: !config.IsProduction(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// MongoDB
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db.Database)
	if err := migrator.Up(); err != nil {
		appLogger.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis is optional: without it the server runs with no cache and no
	// cross-instance incident locks.
	var cacheService services.CacheService
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLogger.WithError(err).Warn("Redis unavailable, continuing without cache")
	} else {
		defer redisCache.Close()
		cacheService = services.NewCacheService(redisCache, appLogger, utils.AppName)
	}

	// Repositories
	incidentRepo := mongodb.NewIncidentRepository(db.Database, cacheService)
	userRepo := mongodb.NewUserRepository(db.Database, cacheService)
	notificationRepo := mongodb.NewNotificationRepository(db.Database)

	// Providers
	storageProvider := buildStorageProvider(cfg, appLogger)
	pushProviders := buildPushProviders(cfg, appLogger)
	smsProvider := buildSMSProvider(cfg, appLogger)
	mapsProvider := buildMapsProvider(cfg, appLogger)

	wsHandler := websocket.NewHandler()

	// Services
	notificationService := services.NewNotificationService(notificationRepo, userRepo, pushProviders, smsProvider, wsHandler, appLogger)
	mediaService := services.NewMediaService(storageProvider, appLogger)
	ledger := services.NewAssignmentLedger(incidentRepo)
	incidentService := services.NewIncidentService(incidentRepo, userRepo, ledger, mediaService, mapsProvider, cacheService, notificationService, appLogger)
	userService := services.NewUserService(userRepo, incidentRepo, notificationService, appLogger)

	// Handlers
	incidentHandler := handlers.NewIncidentHandler(incidentService)
	userHandler := handlers.NewUserHandler(userService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))

	v1 := router.Group("/api/v1")
	{
		routes.SetupIncidentRoutes(v1, incidentHandler, cfg.Security.JWTSecret)
		routes.SetupUserRoutes(v1, userHandler, cfg.Security.JWTSecret)
		routes.SetupNotificationRoutes(v1, notificationHandler, cfg.Security.JWTSecret)
	}

	router.GET(cfg.WebSocket.Path, middleware.AuthRequired(cfg.Security.JWTSecret), wsHandler.HandleWebSocket)

	if cfg.Storage.Provider == "local" {
		router.Static("/uploads", cfg.Storage.Local.BasePath)
	}

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		}
		if err := db.Ping(); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
		}
		c.JSON(http.StatusOK, status)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Server listening on port %d", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorf("Forced shutdown: %v", err)
	}
}

func buildStorageProvider(cfg *config.Config, appLogger *logger.Logger) storage.StorageProvider {
	switch cfg.Storage.Provider {
	case "s3":
		provider, err := storage.NewAWSS3Storage(cfg.Storage.AWS.Region, cfg.Storage.AWS.Bucket, cfg.Storage.AWS.CDNDomain)
		if err != nil {
			appLogger.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		return provider
	case "gcs":
		provider, err := storage.NewGCPStorage(cfg.Storage.GCP.Bucket, cfg.Storage.GCP.CredentialsFile, cfg.Storage.GCP.CDNDomain)
		if err != nil {
			appLogger.Fatalf("Failed to initialize GCS storage: %v", err)
		}
		return provider
	default:
		provider, err := storage.NewLocalStorage(cfg.Storage.Local.BasePath, cfg.Storage.Local.BaseURL)
		if err != nil {
			appLogger.Fatalf("Failed to initialize local storage: %v", err)
		}
		return provider
	}
}

func buildPushProviders(cfg *config.Config, appLogger *logger.Logger) map[string]push.PushProvider {
	providers := make(map[string]push.PushProvider)

	if cfg.Push.FCM.Credentials != "" {
		provider, err := push.NewFCMProvider(cfg.Push.FCM.Credentials)
		if err != nil {
			appLogger.WithError(err).Warn("FCM provider disabled")
		} else {
			providers[utils.PlatformFCM] = provider
		}
	}

	if cfg.Push.APNS.KeyFile != "" {
		provider, err := push.NewAPNSProvider(cfg.Push.APNS.KeyFile, cfg.Push.APNS.KeyID, cfg.Push.APNS.TeamID, cfg.Push.APNS.BundleID, cfg.Push.APNS.Production)
		if err != nil {
			appLogger.WithError(err).Warn("APNS provider disabled")
		} else {
			providers[utils.PlatformAPNS] = provider
		}
	}

	return providers
}

func buildSMSProvider(cfg *config.Config, appLogger *logger.Logger) sms.SMSProvider {
	switch cfg.SMS.Provider {
	case "twilio":
		if cfg.SMS.Twilio.AccountSID == "" {
			return nil
		}
		return sms.NewTwilioProvider(cfg.SMS.Twilio.AccountSID, cfg.SMS.Twilio.AuthToken, cfg.SMS.Twilio.FromNumber)
	case "sns":
		provider, err := sms.NewAWSSNSProvider(cfg.SMS.AWS.Region)
		if err != nil {
			appLogger.WithError(err).Warn("SNS provider disabled")
			return nil
		}
		return provider
	default:
		return nil
	}
}

func buildMapsProvider(cfg *config.Config, appLogger *logger.Logger) maps.MapsProvider {
	if cfg.Maps.GoogleMaps.APIKey == "" {
		return nil
	}

	provider, err := maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey)
	if err != nil {
		appLogger.WithError(err).Warn("Maps provider disabled")
		return nil
	}
	return provider
}
