package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lucashu/marketchat/internal/auth"
	"github.com/lucashu/marketchat/internal/cache"
	"github.com/lucashu/marketchat/internal/config"
	"github.com/lucashu/marketchat/internal/domain"
	"github.com/lucashu/marketchat/internal/handler"
	"github.com/lucashu/marketchat/internal/hub"
	"github.com/lucashu/marketchat/internal/middleware"
	"github.com/lucashu/marketchat/internal/repository"
	"github.com/lucashu/marketchat/internal/service"
	"github.com/lucashu/marketchat/pkg/database"
	pkglog "github.com/lucashu/marketchat/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "marketchat",
	})
	logger := pkglog.L()

	if cfg.Auth.Secret == "" {
		logger.Fatal().Msg("auth.secret is required")
	}

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db,
		&domain.UserModel{},
		&domain.ConversationModel{},
		&domain.MessageModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Repositories
	userRepo := repository.NewGormUserRepository(db)
	convRepo := repository.NewGormConversationRepository(db)
	msgRepo := repository.NewGormMessageRepository(db)

	// Redis inbox cache
	inboxCache, err := cache.NewRedisInboxCache(cfg.Redis, cfg.Cache.Prefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer inboxCache.Close()
	logger.Info().Msg("redis cache connected")

	// Identity verifier + middleware
	verifier := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, userRepo)
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	// Realtime gateway
	wsHub := hub.NewHub()
	go wsHub.Run()

	// Chat service
	chatSvc := service.NewChatService(userRepo, convRepo, msgRepo, wsHub, verifier, inboxCache, cfg.Cache.TTL)

	// Handlers
	httpHandler := handler.NewHTTPHandler(chatSvc, authMiddleware)
	wsHandler := handler.NewWSHandler(wsHub, chatSvc, cfg.WebSocket)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	httpHandler.RegisterRoutes(r)
	r.GET("/ws", wsHandler.HandleWebSocket)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Msg("marketchat starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("marketchat stopped")
}
