package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"dredd/internal/bot"
	"dredd/internal/config"
	"dredd/internal/cooldown"
	"dredd/internal/health"
	"dredd/internal/modules/audit"
	"dredd/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	var windows cooldown.WindowStore = cooldown.NewLocalStore()
	if cfg.RedisURL != "" {
		client, err := cooldown.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis init failed", zap.Error(err))
		}
		defer client.Close()
		windows = cooldown.NewRedisStore(client)
		logger.Info("cooldowns backed by redis")
	}
	limiter := cooldown.NewLimiter(windows, logger)

	auditLogger := audit.NewLogger(logger)

	botSvc, err := bot.New(cfg, logger, store, limiter, auditLogger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.String("version", bot.Version))

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.Health.Enabled {
		server := health.New(cfg.Health.Addr, store, logger)
		group.Go(func() error {
			return server.Run(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := botSvc.Close(shutdownCtx); err != nil {
			logger.Warn("discord session close failed", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
}
