package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"campusattend/internal/attendance"
	"campusattend/internal/config"
	"campusattend/internal/queue"
	"campusattend/internal/store"
)

// Worker consumes accepted-claim messages and keeps per-session claim
// counters in redis for the presenter view. The counters are lossy by design;
// the ledger in Postgres is the source of truth.
func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campusattend:claims")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != "claim" {
			continue
		}

		id := string(msg.Body)
		claim, err := repo.Get(ctx, id)
		if err != nil {
			logger.Warn("fetch claim failed", zap.String("claim_id", id), zap.Error(err))
			continue
		}

		if err := redisClient.BumpSessionStat(ctx, claim.SessionID, string(claim.Status)); err != nil {
			logger.Warn("stats update failed", zap.String("session_id", claim.SessionID), zap.Error(err))
			continue
		}
		logger.Info("claim counted",
			zap.String("claim_id", claim.ID),
			zap.String("session_id", claim.SessionID),
			zap.String("status", string(claim.Status)))
	}

	logger.Info("worker stopped")
}

func newLogger(env string) *zap.Logger {
	if env == "production" || env == "prod" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}
