package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Riyakuila/Chat-Flow/internal/app/broadcaster"
	"github.com/Riyakuila/Chat-Flow/internal/app/registry"
	"github.com/Riyakuila/Chat-Flow/internal/app/server"
	"github.com/Riyakuila/Chat-Flow/internal/app/server/handlers"
	"github.com/Riyakuila/Chat-Flow/internal/app/worker"
	"github.com/Riyakuila/Chat-Flow/internal/config"
	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/services"
	"github.com/Riyakuila/Chat-Flow/internal/platform/logger"
	"github.com/Riyakuila/Chat-Flow/internal/platform/telemetry"
	"github.com/Riyakuila/Chat-Flow/internal/plugins/postgres"
	redisPlugin "github.com/Riyakuila/Chat-Flow/internal/plugins/redis"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", logging.Err(err))
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", logging.Err(err))
		}
	}()

	// Infra
	pdb, err := postgres.New(ctx, *cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", logging.Err(err))
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")

	var mirror *redisPlugin.RedisPresenceMirror
	if cfg.Redis.URL != "" {
		var rdb *redis.Client
		if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
			log.Error("redis connection failed", logging.Err(err))
			return
		}
		defer rdb.Close()
		if mirror, err = redisPlugin.NewRedisPresenceMirror(rdb, cfg.Redis.PresenceKey); err != nil {
			log.Error("presence mirror init failed", logging.Err(err))
			return
		}
		log.Info("redis connected", "presence_key", cfg.Redis.PresenceKey)
	} else {
		log.Info("redis disabled, presence mirror off")
	}

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	chatRepo := postgres.NewChatRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	txManager := postgres.NewTxManager(pdb)

	// Core
	hub := registry.NewRegistry()
	var presenceMirror contracts.PresenceMirror
	if mirror != nil {
		presenceMirror = mirror
	}
	bcast := broadcaster.NewBroadcaster(log, presenceMirror, cfg.Realtime.OutboxSize, cfg.Redis.MirrorTimeout)
	hub.OnChange(bcast.Publish)

	tokenSvc := services.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	msgSvc := services.NewMessageService(log, hub, chatRepo, msgRepo, txManager)
	presenceSvc := services.NewPresenceService(log, hub, userRepo)
	callSvc := services.NewCallService(log, hub)
	managerSvc := services.NewManagerService(log, hub, msgSvc, presenceSvc, callSvc)

	// Workers
	workers := []contracts.BackgroundWorker{
		bcast,
		worker.NewSweeper(log, hub, managerSvc, cfg.Realtime.SweepInterval),
	}
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w contracts.BackgroundWorker) {
			defer wg.Done()
			if err := w.Run(workerCtx); err != nil {
				log.Error("worker stopped with error", logging.Err(err))
			}
		}(w)
	}

	// Server
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Add, tokenSvc,
		handlers.NewWSHandler(log, managerSvc, *cfg.Realtime),
		handlers.NewMessageHandler(msgSvc),
		handlers.NewUserHandler(presenceSvc),
		handlers.NewHealthHandler(pdb, hub),
	)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			log.Error("http server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logging.Err(err))
	}
	closed := managerSvc.CloseAll(shutdownCtx)
	log.Info("connections closed", "count", closed)

	stopWorkers()
	wg.Wait()

	if mirror != nil {
		if err := mirror.Clear(shutdownCtx); err != nil {
			log.Warn("presence mirror clear failed", logging.Err(err))
		}
	}
	log.Info("shutdown complete")
}
