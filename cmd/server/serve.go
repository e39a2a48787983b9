package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"vidshare/internal/config"
	httpHandler "vidshare/internal/handler/http"
	"vidshare/internal/pipeline"
	"vidshare/internal/ratelimit"
	rediscache "vidshare/internal/repository/redis"
	"vidshare/internal/service"
	"vidshare/pkg/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting vidshare",
		"environment", cfg.App.Environment,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	store, closeStore, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return err
	}
	defer closeStore()

	var (
		lookup  pipeline.Lookup = store
		cache   service.Invalidator
		limiter httpHandler.RateLimiter
	)
	if cfg.Redis.Enabled {
		client, err := rediscache.InitRedis(ctx, cfg.Redis.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			return err
		}
		defer closeRedis(client, log)
		log.Info("Redis connection established", "address", cfg.Redis.RedisAddr())

		existence := rediscache.NewExistenceCache(client, store, cfg.Redis.CacheTTL, log)
		lookup, cache = existence, existence
		if cfg.App.RateLimitEnabled {
			limiter = ratelimit.New(client, cfg.App.RateLimitPerMinute, time.Minute)
		}
	} else if cfg.App.RateLimitEnabled {
		log.Warn("Rate limiting requires Redis; requests are not limited")
	}

	exec := pipeline.NewExecutor(store, lookup)
	handler := httpHandler.NewHandler(
		service.NewQueryService(exec, store),
		service.NewToggleService(store, exec, log),
		service.NewResourceService(store, cache, log),
		log,
	)

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: httpHandler.NewRouter(handler, httpHandler.RouterOptions{
			Auth:           httpHandler.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
			Logger:         log,
			Limiter:        limiter,
			AllowedOrigins: cfg.App.CORSAllowedOrigins,
			RequestTimeout: cfg.Server.WriteTimeout,
			EnableMetrics:  cfg.App.EnableMetrics,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server failed", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

func closeRedis(client *redis.Client, log *logger.Logger) {
	if err := client.Close(); err != nil {
		log.Warn("Failed to close Redis client", "error", err)
	}
}
