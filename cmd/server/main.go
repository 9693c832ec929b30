// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/rummy/internal/auth"
	"github.com/jason-s-yu/rummy/internal/cache"
	"github.com/jason-s-yu/rummy/internal/config"
	"github.com/jason-s-yu/rummy/internal/database"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/jason-s-yu/rummy/internal/handlers"
	"github.com/jason-s-yu/rummy/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
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

	ttl, err := cfg.TokenTTL()
	if err != nil {
		logger.WithError(err).Fatal("invalid token lifetime")
	}
	if err := auth.Init(ttl); err != nil {
		logger.WithError(err).Fatal("failed to initialize auth keys")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store game.Store
	if cfg.HasDatabase() {
		if err := database.ConnectDB(ctx, cfg.PostgresURL(), logger); err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		defer database.Close()
		if err := database.Migrate(ctx, database.DB); err != nil {
			logger.WithError(err).Fatal("failed to apply schema")
		}
		store = database.NewPostgresStore(database.DB, logger)
	} else {
		logger.Warn("no database configured, tables are kept in memory only")
	}

	if cfg.RedisAddr != "" {
		cache.QueueName = cfg.HistorianQueueName
		if err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
			logger.WithError(err).Warn("action log disabled")
		}
	}

	tables := game.NewTableStore(store, logger)
	srv := handlers.NewServer(tables, cfg.Rules(), logger)
	if store != nil {
		srv.DBPing = database.Ping
	}
	go tables.RunJanitor(ctx, time.Minute, cfg.TableIdleTimeout)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.LogMiddleware(logger)(srv.Routes()),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown")
		}
	}()

	logger.Infof("Running on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server shutdown complete")
}
