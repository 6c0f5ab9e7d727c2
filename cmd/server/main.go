package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gatherhub/backend/internal/api"
	"gatherhub/backend/internal/chat"
	"gatherhub/backend/internal/directory"
	"gatherhub/backend/internal/identity"
	"gatherhub/backend/internal/models"
	"gatherhub/backend/internal/presence"
	"gatherhub/backend/internal/repository"
	"gatherhub/backend/internal/ws"
	"gatherhub/backend/pkg/config"
	"gatherhub/backend/pkg/health"
	"gatherhub/backend/pkg/jwt"
	"gatherhub/backend/pkg/logger"
	"gatherhub/backend/shared/redis"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.New()

	log := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})
	logger.SetGlobal(log)

	log.Info("starting chat server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	db, err := config.NewDB()
	if err != nil {
		log.Error("database connection failed", "error", err.Error())
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.Event{},
		&models.EventAttendee{},
		&models.Message{},
		&models.MessageRead{},
		&models.MessageReaction{},
	); err != nil {
		log.Error("migration failed", "error", err.Error())
		os.Exit(1)
	}

	cache := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cache.Ping(ctx); err != nil {
			// Presence and typing mirrors degrade gracefully without redis
			log.Warn("redis unreachable, ephemeral state will not be shared", "error", err.Error())
		}
		cancel()
	}

	messages := repository.NewGormMessageRepository(db)
	users := repository.NewGormUserRepository(db)
	rooms := directory.NewGormDirectory(db)

	tokens := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	provider := identity.NewTokenProvider(tokens, users)
	recorder := presence.NewRecorder(cache, users, log)

	hub := chat.NewHub(log)
	gateway := chat.NewGateway(provider, recorder, hub, cfg.Chat.SendBufferSize, log)
	ingest := chat.NewIngest(messages, hub.Rooms, cfg.Chat.MaxMessageLength, log)
	history := chat.NewHistory(messages, cfg.Chat.HistoryPageSize)
	receipts := chat.NewReceipts(messages, hub.Rooms)
	typing := chat.NewTyping(hub.Rooms, hub, cache, cfg.Chat.TypingTTL, cfg.Chat.EnforceTypingTTL, log)

	dispatcher := chat.NewChatDispatcher(hub, chat.Services{
		Ingest:    ingest,
		Receipts:  receipts,
		Typing:    typing,
		Directory: rooms,
	}, log)

	wsServer := ws.NewServer(gateway, dispatcher, cfg.Chat.HandshakeTimeout, log)

	checker := health.NewChecker(log, 15*time.Second)
	checker.RegisterCheck("database", func() (health.Status, string, error) {
		if err := config.TestConnection(db); err != nil {
			return health.StatusDown, "unreachable", err
		}
		return health.StatusUp, "connected", nil
	})
	checker.RegisterCheck("redis", func() (health.Status, string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.Ping(ctx); err != nil {
			return health.StatusDown, "unreachable", err
		}
		return health.StatusUp, "connected", nil
	})
	checker.RegisterCheck("hub", func() (health.Status, string, error) {
		return health.StatusUp, fmt.Sprintf("%d live sessions", hub.SessionCount()), nil
	})

	server := api.NewServer(api.Options{
		Config:     cfg,
		Logger:     log,
		Hub:        hub,
		Typing:     typing,
		WsServer:   wsServer,
		Auth:       api.NewAuthHandler(users, tokens, log),
		History:    api.NewHistoryHandler(history, log),
		Tokens:     tokens,
		Cache:      cache,
		Checker:    checker,
		EnableAuth: true,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server stopped", "error", err.Error())
			os.Exit(1)
		}
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown incomplete", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped cleanly")
}
