// Package main runs the courtside booking HTTP server with graceful shutdown.
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

	"github.com/courtside/backend/config"
	"github.com/courtside/backend/internal/auth"
	"github.com/courtside/backend/internal/catalog"
	"github.com/courtside/backend/internal/checkout"
	"github.com/courtside/backend/internal/gateway"
	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/passes"
	"github.com/courtside/backend/internal/payments"
	"github.com/courtside/backend/internal/reconcile"
	"github.com/courtside/backend/internal/rewards"
	"github.com/courtside/backend/internal/tickets"
	"github.com/courtside/backend/pkg/database"
	"github.com/courtside/backend/pkg/queue"
	"github.com/courtside/backend/pkg/redis"
	"github.com/courtside/backend/pkg/response"
	"github.com/courtside/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TicketsBucket:        cfg.AWS.TicketsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Payment gateway
	gatewayClient := gateway.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	paymentService := payments.NewService(gatewayClient, cfg.Razorpay.KeySecret, logger)
	paymentHandler := payments.NewHandler(gatewayClient, paymentService, cfg.Razorpay.KeyID, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Catalog
	catalogRepo := catalog.NewRepository(pool, cfg.Rewards)
	catalogHandler := catalog.NewHandler(catalogRepo, logger)

	// Entitlement stores
	ticketRepo := tickets.NewRepository(pool)
	passRepo := passes.NewRepository(pool)
	coinRepo := rewards.NewRepository(pool)

	// Reconciliation: captured payments become tickets, passes and coins.
	reconcileService := reconcile.NewService(ticketRepo, passRepo, coinRepo, jobQueue, cfg.Rewards, logger)

	// Checkout
	attemptRepo := checkout.NewRepository(pool)
	checkoutService := checkout.NewService(attemptRepo, catalogRepo, passRepo, gatewayClient, paymentService, reconcileService, jobQueue, logger)
	loadUser := checkout.UserLoaderFunc(func(c *gin.Context) (*models.User, bool) {
		userID, ok := middleware.UserID(c)
		if !ok {
			return nil, false
		}
		u, err := authRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			return nil, false
		}
		return u, true
	})
	checkoutHandler := checkout.NewHandler(checkoutService, attemptRepo, loadUser, cfg.Razorpay.KeyID, logger)

	var signer tickets.URLSigner
	if s3Client != nil {
		signer = s3Client
	}
	ticketHandler := tickets.NewHandler(ticketRepo, signer, logger)
	passHandler := passes.NewHandler(passRepo, logger)
	rewardHandler := rewards.NewHandler(coinRepo, cfg.Rewards, logger)

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

	// Gateway passthrough endpoints (public key handshake for the widget).
	pay := router.Group("/api/payments")
	pay.Use(middleware.JWT(jwtService))
	{
		pay.POST("/create-order", paymentHandler.CreateOrder)
		pay.POST("/verify", paymentHandler.Verify)
		pay.GET("/payment/:paymentId", paymentHandler.GetPayment)
	}

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", authHandler.Me)
		api.PATCH("/me/phone", authHandler.UpdatePhone)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Catalog
		api.GET("/grounds", catalogHandler.Grounds)
		api.GET("/tournaments", catalogHandler.Tournaments)

		// Checkout flow
		api.POST("/checkout", checkoutHandler.Begin)
		api.POST("/checkout/:id/callback", checkoutHandler.Callback)
		api.POST("/checkout/:id/cancel", checkoutHandler.Cancel)
		api.GET("/checkout/:id", checkoutHandler.Get)
		api.GET("/checkout", checkoutHandler.List)

		// Tickets
		api.GET("/tickets", ticketHandler.List)
		api.GET("/tickets/:id", ticketHandler.Get)
		api.GET("/tickets/:id/qr-url", ticketHandler.QRURL)
		api.PATCH("/tickets/:id/status", ticketHandler.UpdateStatus)

		// Passes
		api.GET("/passes", passHandler.List)
		api.GET("/passes/active", passHandler.Active)

		// Reward coins
		api.GET("/rewards", rewardHandler.Balance)
		api.POST("/rewards/redeem", rewardHandler.Redeem)
		api.POST("/rewards/referral", middleware.RequireRole("admin"), rewardHandler.Referral)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
