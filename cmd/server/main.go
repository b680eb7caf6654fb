package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/mkurev/avagate/internal/adapters/http"
	"github.com/mkurev/avagate/internal/adapters/responder"
	"github.com/mkurev/avagate/internal/adapters/statestore"
	"github.com/mkurev/avagate/internal/adapters/storage/sqlite"
	"github.com/mkurev/avagate/internal/adapters/ws"
	"github.com/mkurev/avagate/internal/app"
	"github.com/mkurev/avagate/internal/config"
	"github.com/mkurev/avagate/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	var stateStore core.StateStore
	if cfg.RedisAddr != "" {
		rds := statestore.NewRedis(cfg.RedisAddr)
		fb := statestore.NewFallback(rds)
		go fb.RunRetry(ctx, cfg.RedisRetryInterval, rds.Ping)
		stateStore = fb
	} else {
		log.Info().Msg("no redis configured, session mirror is in-memory only")
		stateStore = statestore.NewMemory()
	}

	registry := app.NewRegistry()
	rooms := app.NewRoomSet()
	manager := app.NewManager(registry, rooms, stateStore, app.ManagerConfig{
		SweepInterval: cfg.SweepInterval,
		IdleTimeout:   cfg.IdleTimeout,
	})

	var selector app.Selector = app.StaticSelector{AvatarID: cfg.AvatarID}
	if cfg.ABTestID != "" {
		selector = app.BucketSelector{
			TestID:  cfg.ABTestID,
			AvatarA: cfg.ABAvatarA,
			AvatarB: cfg.ABAvatarB,
			SplitA:  cfg.ABSplit,
		}
	}

	msgRouter := app.NewRouter(manager, store, responder.NewRules(cfg.AvatarName), selector, app.RouterConfig{
		TypingDelay:   cfg.TypingDelay,
		ContextWindow: cfg.ContextWindow,
		AvatarName:    cfg.AvatarName,
	})

	go manager.RunSweep(ctx)

	ctl := &ws.Controller{
		Manager:    manager,
		Router:     msgRouter,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}

	r := router.SetupRouter(ctx, cfg, ctl, store, msgRouter)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("avagate server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
