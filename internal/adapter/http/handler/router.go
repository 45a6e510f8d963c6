package handler

import (
	"wallet-platform/internal/adapter/http/middleware"
	redisStore "wallet-platform/internal/adapter/storage/redis"
	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TopoffSvc      ports.TopoffService
	CallbackSvc    ports.CallbackService
	LedgerSvc      ports.LedgerService
	TokenSvc       ports.TokenService
	UserRepo       ports.UserRepository
	WalletRepo     ports.WalletRepository
	EntryRepo      ports.WalletTransactionRepository
	GatewayRepo    ports.GatewayRepository
	GwTxnRepo      ports.GatewayTransactionRepository
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/verify-otp", rl("auth_otp"), authHandler.VerifyOTP)
		auth.POST("/refresh", rl("auth_otp"), authHandler.Refresh)
	}

	// Gateway callbacks carry their own correlation token instead of a JWT;
	// the payer's browser arrives here straight from the provider. Each
	// provider gets its own route because parameter names differ per wire
	// contract, and the route path is what operators register as the
	// gateway's callback URL.
	callbackHandler := NewCallbackHandler(deps.CallbackSvc)
	callbacks := v1.Group("/callback")
	{
		callbacks.GET("/nextpay", callbackHandler.NextPay)
		callbacks.GET("/sep", callbackHandler.Sep)
		callbacks.POST("/sep", callbackHandler.Sep)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	walletHandler := NewWalletHandler(deps.WalletRepo, deps.EntryRepo, deps.LedgerSvc)
	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.GET("", rl("wallet"), middleware.RequireScope(domain.ScopeWalletRead), walletHandler.List)
		wallets.GET("/:id", rl("wallet"), middleware.RequireScope(domain.ScopeWalletRead), walletHandler.Get)
		wallets.GET("/:id/transactions", rl("wallet"), middleware.RequireScope(domain.ScopeWalletTransactionRead), walletHandler.ListTransactions)
		wallets.POST("/:id/transactions", rl("wallet"), middleware.RequireScope(domain.ScopeWalletTransactionCreate), walletHandler.Credit)
		wallets.PATCH("/:id/limit", rl("wallet"), middleware.RequireScope(domain.ScopeWalletUpdate), walletHandler.UpdateLimit)
	}

	topoffHandler := NewTopoffHandler(deps.TopoffSvc, deps.UserRepo)
	v1.POST("/topoff", jwtAuth, rl("topoff"), middleware.RequireScope(domain.ScopeWalletTransactionCreate), topoffHandler.Topoff)

	gatewayHandler := NewGatewayHandler(deps.GatewayRepo, deps.GwTxnRepo)
	gateways := v1.Group("/gateways", jwtAuth)
	{
		gateways.POST("", rl("gateway_admin"), middleware.RequireScope(domain.ScopeGatewayCreate), gatewayHandler.Create)
		gateways.GET("", rl("gateway_admin"), middleware.RequireScope(domain.ScopeGatewayRead), gatewayHandler.List)
		gateways.GET("/:id", rl("gateway_admin"), middleware.RequireScope(domain.ScopeGatewayRead), gatewayHandler.Get)
		gateways.PUT("/:id", rl("gateway_admin"), middleware.RequireScope(domain.ScopeGatewayUpdate), gatewayHandler.Update)
		gateways.DELETE("/:id", rl("gateway_admin"), middleware.RequireScope(domain.ScopeGatewayDelete), gatewayHandler.Delete)
	}

	v1.GET("/gateway-transactions", jwtAuth, rl("wallet"), middleware.RequireScope(domain.ScopeGatewayTransactionRead), gatewayHandler.ListTransactions)

	return r
}
