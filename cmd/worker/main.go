// Package main runs the background job worker (reconciliation retries and
// ticket QR uploads).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/courtside/backend/config"
	"github.com/courtside/backend/internal/catalog"
	"github.com/courtside/backend/internal/checkout"
	"github.com/courtside/backend/internal/gateway"
	"github.com/courtside/backend/internal/passes"
	"github.com/courtside/backend/internal/payments"
	"github.com/courtside/backend/internal/reconcile"
	"github.com/courtside/backend/internal/rewards"
	"github.com/courtside/backend/internal/tickets"
	"github.com/courtside/backend/internal/worker"
	"github.com/courtside/backend/pkg/database"
	"github.com/courtside/backend/pkg/queue"
	"github.com/courtside/backend/pkg/redis"
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

	jobQueue := queue.NewQueue(rdb.Client, logger)
	gatewayClient := gateway.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	paymentService := payments.NewService(gatewayClient, cfg.Razorpay.KeySecret, logger)

	ticketRepo := tickets.NewRepository(pool)
	passRepo := passes.NewRepository(pool)
	coinRepo := rewards.NewRepository(pool)
	reconcileService := reconcile.NewService(ticketRepo, passRepo, coinRepo, jobQueue, cfg.Rewards, logger)

	catalogRepo := catalog.NewRepository(pool, cfg.Rewards)
	attemptRepo := checkout.NewRepository(pool)
	checkoutService := checkout.NewService(attemptRepo, catalogRepo, passRepo, gatewayClient, paymentService, reconcileService, jobQueue, logger)

	processor := worker.NewProcessor(checkoutService, attemptRepo, ticketRepo, gatewayClient, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
