package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"admin-console/internal/cache"
	"admin-console/internal/config"
	"admin-console/internal/resources"
	"admin-console/internal/server"
	"admin-console/internal/session"
	"admin-console/internal/telegram_bot"
	"admin-console/internal/token_store"
)

const evictInterval = time.Minute

func newServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cfg, logger)
		},
	}
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := token_store.Open(cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.SealKey, logger)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer store.Close()

	c, err := cache.Open(ctx, cfg.Cache.Driver, cfg.Cache.TTL, &redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open query cache: %w", err)
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	set := resources.NewSet(client, c, logger)

	registry := session.NewRegistry(store, set.Staff, cfg.Server.SessionIdleTTL, logger)
	registry.TokenRetention = cfg.Storage.TokenRetention
	registry.OnEvict = func(sessionID string) {
		if err := c.Purge(context.Background(), sessionID); err != nil {
			logger.Warn("Failed to purge cache of evicted session", zap.String("session", sessionID), zap.Error(err))
		}
	}
	go registry.Run(ctx, evictInterval)

	// Audit feed is optional
	bot, err := telegram_bot.NewBot(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	srv := server.NewServer(cfg, registry, client, set, c, bot, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("Console stopped")
	return nil
}
