package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/dukkan/storefront-gateway/internal/authflow"
	"github.com/dukkan/storefront-gateway/internal/catalog"
	"github.com/dukkan/storefront-gateway/internal/checkout"
	"github.com/dukkan/storefront-gateway/internal/http/handlers"
	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/mailer"
	"github.com/dukkan/storefront-gateway/internal/repo/postgres"
	"github.com/dukkan/storefront-gateway/internal/session"
	"github.com/dukkan/storefront-gateway/internal/token"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/config"
	"github.com/dukkan/storefront-gateway/pkg/database"
	"github.com/dukkan/storefront-gateway/pkg/events"
	"github.com/dukkan/storefront-gateway/pkg/logger"
	mw "github.com/dukkan/storefront-gateway/pkg/middleware"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL, database.PoolOptions{
		MinConns:    int32(cfg.Database.MinConns),
		MaxConns:    int32(cfg.Database.MaxConns),
		MaxLifetime: cfg.Database.MaxLifetime,
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis; a dead Redis degrades to in-memory state rather
	// than taking the storefront down.
	redisClient := connectRedis(ctx, cfg.Redis)

	var tokenStore token.Store
	var flowStore authflow.FlowStore
	if redisClient != nil {
		tokenStore = token.NewRedisStore(redisClient, cfg.Session.TokenTTL)
		flowStore = authflow.NewRedisFlowStore(redisClient, cfg.AuthFlow.FlowTTL)
	} else {
		tokenStore = token.NewMemoryStore()
		flowStore = authflow.NewMemoryFlowStore()
	}

	// Connect to event bus
	var bus events.EventBus
	if natsBus, err := events.NewNATSEventBus(cfg.NATS.URL); err != nil {
		logger.Warn("Failed to connect to NATS, events disabled", "error", err)
		bus = events.NopBus{}
	} else {
		bus = natsBus
		defer natsBus.Close()
	}

	// Email
	var emailSvc mailer.Service
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		emailSvc = mailer.NewDevMailer()
	} else {
		emailSvc = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	// Upstream commerce client and repositories
	api := upstream.NewClient(cfg.Upstream)
	rateLimitRepo := postgres.NewRateLimitRepository(pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(pool)

	// Services
	cartSvc := session.NewCartService(api, tokenStore)
	authSvc := session.NewAuthService(api, tokenStore, bus)
	wishlistSvc := session.NewWishlistService(api, authSvc, bus)
	checkoutSvc := checkout.NewService(cartSvc, idempotencyRepo, bus, cfg.Stripe, cfg.Store.DefaultCurrency)
	flowCtl := authflow.NewController(api, flowStore, authSvc, cartSvc, rateLimitRepo, emailSvc, bus, authflow.SystemClock(), cfg.AuthFlow)

	homepageCache := catalog.NewHomepageCache(redisClient, cfg.Store.HomepageCacheTTL)

	// Handlers
	flowHandler := handlers.NewAuthFlowHandler(flowCtl, authSvc)
	cartHandler := handlers.NewCartHandler(cartSvc)
	wishlistHandler := handlers.NewWishlistHandler(wishlistSvc)
	accountHandler := handlers.NewAccountHandler(authSvc)
	catalogHandler := handlers.NewCatalogHandler(api, homepageCache, tokenStore, cfg.Store)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutSvc, cartSvc)
	prefsHandler := handlers.NewPreferencesHandler(tokenStore, cfg.Store)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(gwmiddleware.EnsureSession(cfg.Session))

	// Routes
	r.Route("/v1", func(r chi.Router) {
		r.Mount("/auth", flowHandler.Routes())
		r.Mount("/cart", cartHandler.Routes())
		r.Mount("/wishlist", wishlistHandler.Routes())
		r.Mount("/account", accountHandler.Routes())
		r.Mount("/catalog", catalogHandler.Routes())
		r.Get("/homepage", catalogHandler.Homepage)
		r.Get("/preferences", prefsHandler.Get)
		r.Put("/preferences", prefsHandler.Put)
		r.Post("/checkout", checkoutHandler.Start)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gateway...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting storefront gateway", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("Invalid Redis URL, using in-memory session state", "error", err)
		return nil
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, using in-memory session state", "error", err)
		return nil
	}
	return client
}
