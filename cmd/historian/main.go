// cmd/historian/main.go runs the historian: it drains the table action queue from Redis into PostgreSQL
// and marks tables abandoned after a period of inactivity.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/cache"
	"github.com/jason-s-yu/rummy/internal/config"
	"github.com/jason-s-yu/rummy/internal/database"
	"github.com/jason-s-yu/rummy/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(".")
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.PostgresURL(), logger); err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer database.Close()
	if err := database.Migrate(ctx, database.DB); err != nil {
		logger.WithError(err).Fatal("failed to apply schema")
	}

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.RedisDB})
	defer rdb.Close()

	svc := historian.New(rdb, historian.Options{
		Queue:      cfg.HistorianQueueName,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: time.Duration(cfg.HistorianFlushMs) * time.Millisecond,
		Inactivity: time.Duration(cfg.TableInactivitySec) * time.Second,
	}, func(ctx context.Context, batch []cache.ActionRecord) error {
		return database.InsertActions(ctx, database.DB, batch)
	}, func(ctx context.Context, tableID uuid.UUID) (bool, error) {
		return database.MarkTableAbandoned(ctx, database.DB, tableID)
	}, logger)

	svc.Run(ctx)
	logger.Info("historian shutdown complete")
}
