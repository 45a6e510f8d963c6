package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-platform/config"
	httpHandler "wallet-platform/internal/adapter/http/handler"
	pgStorage "wallet-platform/internal/adapter/storage/postgres"
	redisStorage "wallet-platform/internal/adapter/storage/redis"
	"wallet-platform/internal/core/ports"
	"wallet-platform/internal/gateway"
	"wallet-platform/internal/service"
	"wallet-platform/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("wallet-platform", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Platform")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewWalletTransactionRepo(pool)
	gatewayRepo := pgStorage.NewGatewayRepo(pool)
	gwTxnRepo := pgStorage.NewGatewayTransactionRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Redis stores
	otpStore := redisStorage.NewOTPStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.Crypto.AESKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry, cfg.JWT.Issuer)
	otpSvc := service.NewTOTPService(cfg.JWT.Issuer, cfg.OTP.Digits, cfg.OTP.Period)
	smsSender := service.NewLogSMSSender(log)

	// Gateway provider clients
	clientFactory := gateway.NewFactory(&http.Client{Timeout: cfg.Gateway.HTTPTimeout})

	// Business services
	authSvc := service.NewAuthService(
		userRepo,
		walletRepo,
		hashSvc,
		encSvc,
		otpSvc,
		otpStore,
		smsSender,
		tokenSvc,
		cfg.OTP.ResendTimeout,
		log,
	)
	ledgerSvc := service.NewLedgerService(walletRepo, entryRepo, transactor, log)
	selectorSvc := service.NewSelectorService(gatewayRepo, log)
	topoffSvc := service.NewTopoffService(selectorSvc, walletRepo, gwTxnRepo, clientFactory, log)
	callbackSvc := service.NewCallbackService(
		gwTxnRepo,
		gatewayRepo,
		ledgerSvc,
		clientFactory,
		transactor,
		cfg.Gateway.ConfirmationURL,
		log,
	)

	// Health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		TopoffSvc:      topoffSvc,
		CallbackSvc:    callbackSvc,
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		UserRepo:       userRepo,
		WalletRepo:     walletRepo,
		EntryRepo:      entryRepo,
		GatewayRepo:    gatewayRepo,
		GwTxnRepo:      gwTxnRepo,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
