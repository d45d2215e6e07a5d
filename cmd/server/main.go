package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/campushub/campushub/internal/auth"
	"github.com/campushub/campushub/internal/cache"
	"github.com/campushub/campushub/internal/config"
	"github.com/campushub/campushub/internal/database"
	"github.com/campushub/campushub/internal/handler"
	"github.com/campushub/campushub/internal/logger"
	"github.com/campushub/campushub/internal/middleware"
	"github.com/campushub/campushub/internal/queue"
	"github.com/campushub/campushub/internal/repository"
	"github.com/campushub/campushub/internal/router"
	"github.com/campushub/campushub/internal/service/audit"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	rl := config.LoadRateLimitConfig()
	slogger := logger.New()
	if cfg.JWTSecret == "" {
		slogger.Warn("JWT_SECRET is not set; authenticated endpoints will answer server_misconfigured")
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureSchema(schemaCtx, db); err != nil {
		cancelSchema()
		log.Fatalf("schema: %v", err)
	}
	cancelSchema()

	client := cache.NewClient(config.LoadRedis(), slogger)
	defer client.Close()

	// Bounded wait; a dead cache degrades the service, it does not stop it.
	readyCtx, cancelReady := context.WithTimeout(context.Background(), 2*time.Second)
	if client.WaitReady(readyCtx) {
		slogger.Info("cache ready")
	} else {
		slogger.Warn("cache not ready, continuing without it", "state", client.State().String())
	}
	cancelReady()

	store := cache.NewStore(client, slogger)
	users := repository.NewUserRepo(db, cfg.BcryptCost)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	revoked := auth.NewRevocationList(store, cfg.TokenTTL)
	resolver := auth.NewAuthenticator(tokens, revoked, store, users, cfg.UserCacheTTL, slogger)
	publisher := audit.NewPublisher(cfg.AMQPURL, slogger)

	if cfg.AuditConsumer {
		go func() {
			if err := queue.StartAuditConsumer(cfg.AMQPURL); err != nil {
				slogger.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	e := router.New(router.Deps{
		Cache:      client,
		Auth:       middleware.NewAuth(resolver, slogger),
		RateLimits: rl,
		Sessions:   handler.NewAuthHandler(cfg, users, tokens, revoked, publisher, slogger),
		Admin:      handler.NewAdminHandler(users, store, publisher, slogger),
	})

	addr := ":" + cfg.Port
	slogger.Info("listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
