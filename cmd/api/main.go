package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/auth"
	"github.com/emilythestrangee/quickbite/backend/internal/cache"
	"github.com/emilythestrangee/quickbite/backend/internal/config"
	"github.com/emilythestrangee/quickbite/backend/internal/database"
	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/handlers"
	"github.com/emilythestrangee/quickbite/backend/internal/logging"
	"github.com/emilythestrangee/quickbite/backend/internal/realtime"
	"github.com/emilythestrangee/quickbite/backend/internal/server"
	"github.com/emilythestrangee/quickbite/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	pg := store.NewPostgres(db.GetDB())
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	reconciler := feedback.NewReconciler(pg, auth.ContextIdentity{}, logger)

	recipeCache := cache.New(cfg.RedisURL, logger)
	defer recipeCache.Close()

	hub := realtime.NewHub(realtime.DefaultBuffer, logger)
	defer hub.Close()

	// Counter changes from any API instance reach every open stream and
	// evict the stale cached recipe.
	listener := realtime.NewListener(cfg.Database.DSN(), store.CountersChannel, func(u feedback.CounterUpdate) {
		hub.Publish(u)
		if err := recipeCache.Invalidate(context.Background(), u.RecipeID); err != nil {
			logger.Warn("cache: invalidate recipe", zap.Int("recipe_id", u.RecipeID), zap.Error(err))
		}
	}, logger)
	go listener.Run(ctx)

	handler := handlers.NewHandler(handlers.Deps{
		Store:      pg,
		Reconciler: reconciler,
		Tokens:     tokens,
		Cache:      recipeCache,
		Hub:        hub,
		Logger:     logger,
	})

	srv := server.NewServer(handler, tokens, server.Options{
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
		Health:      db.Health,
		Logger:      logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// Closing the hub ends open streams so Shutdown does not wait on them.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
