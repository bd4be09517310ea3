// Package main runs the coupon platform HTTP server with the live redemption
// feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/promostack/coupon-backend/config"
	"github.com/promostack/coupon-backend/internal/analytics"
	"github.com/promostack/coupon-backend/internal/auth"
	"github.com/promostack/coupon-backend/internal/coupons"
	"github.com/promostack/coupon-backend/internal/middleware"
	"github.com/promostack/coupon-backend/internal/realtime"
	"github.com/promostack/coupon-backend/internal/redemptions"
	"github.com/promostack/coupon-backend/internal/spotlight"
	"github.com/promostack/coupon-backend/internal/worker"
	"github.com/promostack/coupon-backend/pkg/database"
	"github.com/promostack/coupon-backend/pkg/queue"
	"github.com/promostack/coupon-backend/pkg/redis"
	"github.com/promostack/coupon-backend/pkg/response"
	"github.com/promostack/coupon-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.ArchiveBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Coupons: repository behind the Redis snapshot cache; evaluation reads
	// the snapshot and a prefetched usage-count map.
	couponRepo := coupons.NewRepository(pool)
	snapshotTTL := time.Duration(cfg.Cache.CouponSnapshotTTLSeconds) * time.Second
	couponStore := coupons.NewSnapshotCache(couponRepo, rdb.Client, snapshotTTL, logger)

	// Redemptions: the usage write path.
	redemptionRepo := redemptions.NewRepository(pool)
	couponHandler := coupons.NewHandler(couponStore, redemptionRepo, logger)
	redemptionHandler := redemptions.NewHandler(redemptionRepo, archiveOrNil(s3Client), jobQueue, hub, logger)
	orderWebhook := redemptions.NewWebhookHandler(redemptionRepo, jobQueue, hub, cfg.Server.WebhookSecret, logger)
	archiver := worker.NewRedemptionArchiver(redemptionRepo, s3Client, jobQueue, logger)

	// Analytics
	analyticsRepo := analytics.NewRepository(pool)
	analyticsHandler := analytics.NewHandler(analyticsRepo, couponRepo, hub)

	// Spotlight (featured-coupon rotation into the live feed)
	spotlightRegistry := spotlight.NewRegistry()
	spotlightInterval := time.Duration(cfg.Spotlight.DefaultIntervalSeconds) * time.Second
	spotlightHandler := spotlight.NewHandler(spotlightRegistry, couponStore, hub, spotlightInterval, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Coupons
		api.POST("/coupons", middleware.RequireRole("admin"), couponHandler.Create)
		api.GET("/coupons", couponHandler.List)
		api.GET("/coupons/:code", couponHandler.GetByCode)
		api.POST("/best-coupon", couponHandler.Evaluate)

		// Redemptions (the usage write path)
		api.POST("/coupons/:code/redeem", redemptionHandler.Redeem)
		api.GET("/coupons/:code/redemptions", middleware.RequireRole("admin"), redemptionHandler.List)
		api.GET("/redemptions/:id/archive-url", middleware.RequireRole("admin"), redemptionHandler.ArchiveURL)

		// Analytics
		api.GET("/coupons/:code/stats", middleware.RequireRole("admin"), analyticsHandler.GetByCoupon)
		api.GET("/analytics/top-coupons", middleware.RequireRole("admin"), analyticsHandler.TopCoupons)

		// Spotlight rotation (admin only)
		api.GET("/spotlight", middleware.RequireRole("admin"), spotlightHandler.List)
		api.POST("/spotlight/:channel/start", middleware.RequireRole("admin"), spotlightHandler.Start)
		api.POST("/spotlight/:channel/stop", middleware.RequireRole("admin"), spotlightHandler.Stop)
		api.POST("/spotlight/:channel/reload", middleware.RequireRole("admin"), spotlightHandler.Reload)
	}

	// Webhooks (no JWT; HMAC signature validated in the handler when configured)
	router.POST("/webhooks/order-completed", orderWebhook.OrderCompleted)

	// WebSocket live feed (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process archive worker; cmd/worker runs the same loop standalone.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		go archiver.Run(workerCtx)
		logger.Info("redemption archive worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// archiveOrNil keeps the Archive interface nil when S3 is not configured; a
// typed nil would dodge the handler's nil check.
func archiveOrNil(s3Client *storage.S3) redemptions.Archive {
	if s3Client == nil {
		return nil
	}
	return s3Client
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
