package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/widjayanto/authguard/config"
	"github.com/widjayanto/authguard/db"
	"github.com/widjayanto/authguard/internal/auth/handler"
	repo "github.com/widjayanto/authguard/internal/auth/repository/postgres"
	"github.com/widjayanto/authguard/internal/auth/repository/rediscache"
	"github.com/widjayanto/authguard/internal/auth/service"
	"github.com/widjayanto/authguard/internal/mail"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := db.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	store := repo.NewRepository(dbPool)
	cache := rediscache.NewCache(redisClient)

	securityLogService := service.NewSecurityLogService(store)
	blacklistService := service.NewBlacklistService(cache, cfg.AccessTokenExpiry())
	tokenService := service.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessExpiryMin, cfg.RefreshExpiryMin, store, store, blacklistService)
	mfaService := service.NewMfaService(store, cfg.AppName)
	lockoutService := service.NewLockoutService(store, cache, securityLogService,
		cfg.MaxFailedLoginAttempts, cfg.LoginWindowMinutes, cfg.LockoutDurationMinutes)
	verificationService := service.NewVerificationService(cache)
	mailer := mail.NewLogMailer(cfg.MailFrom)

	authService := service.NewAuthService(store, tokenService, service.NewPasswordService(),
		mfaService, lockoutService, blacklistService, verificationService, securityLogService, mailer, cfg)

	authHandler := handler.NewAuthHandler(authService)
	mfaHandler := handler.NewMfaHandler(authService, mfaService, securityLogService)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler, mfaHandler, tokenService, blacklistService)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
