package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/config"
	"github.com/boddenberg/dukaverse-accounts-go/internal/handler"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/cache"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/gateway"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/memory"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/redisstore"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/resilience"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/supabase"
	"github.com/boddenberg/dukaverse-accounts-go/internal/port"
	"github.com/boddenberg/dukaverse-accounts-go/internal/service"

	"go.uber.org/zap"
)

// stores groups the persistence ports chosen at startup.
type stores struct {
	users    port.UserDirectory
	tenants  port.TenantStore
	sessions port.SessionStore
	ledger   port.PaymentLedger
}

func main() {
	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Bool("redis_sessions", cfg.RedisURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "dukaverse-accounts")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	breakers := resilience.NewBreakers(logger)

	// --- Stores ---
	st := stores{}
	if cfg.UseSupabase {
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			breakers.Get("supabase"),
			resilienceCfg,
			logger,
		)
		st = stores{users: sb, tenants: sb, sessions: sb, ledger: sb}
	} else {
		mem := memory.New()
		if cfg.MemorySeedPassword != "" {
			if err := memory.SeedDemo(mem, cfg.MemorySeedPassword); err != nil {
				logger.Fatal("failed to seed in-memory store", zap.Error(err))
			}
			logger.Warn("Supabase disabled, using the in-memory store with demo users; data is lost on restart")
		} else {
			logger.Warn("Supabase disabled, using an EMPTY in-memory store; no user can log in. Set MEMORY_SEED_PASSWORD for demo users")
		}
		st = stores{users: mem, tenants: mem, sessions: mem, ledger: mem}
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		st.sessions = redisstore.NewSessionStore(rdb)
		logger.Info("session accounts stored in redis")
	}

	// --- Services ---
	resolverCfg := service.ResolverConfig{SessionTTL: cfg.SessionTTL}
	accountSvc := service.NewAccountService(
		service.NewOfficeResolver(st.tenants, st.sessions, resolverCfg, logger),
		service.NewRetailResolver(st.tenants, st.sessions, resolverCfg, logger),
		service.NewEcommerceResolver(st.tenants, st.sessions, resolverCfg, logger),
		metrics,
		logger,
	)
	authSvc := service.NewAuthService(st.users, cfg.JWTSecret, cfg.JWTAccessTTL, logger)

	tokens := cache.New[string](cfg.CacheTTL)
	defer tokens.Close()
	paymentSvc := service.NewPaymentService(metrics, logger,
		buildGateways(cfg, st.ledger, httpClient, resilienceCfg, breakers, tokens, metrics, logger)...)
	logger.Info("payment gateways registered", zap.Strings("gateways", paymentSvc.Gateways()))

	// --- Router ---
	router := handler.NewRouter(accountSvc, paymentSvc, authSvc, metrics, breakers, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// buildGateways returns the ledger gateways plus every external provider
// whose credentials are configured. Providers share one bulkhead and get a
// circuit breaker each from breakers.
func buildGateways(cfg *config.Config, ledger port.PaymentLedger, httpClient *http.Client, rcfg resilience.Config, breakers *resilience.Breakers, tokens gateway.TokenCache, metrics *observability.Metrics, logger *zap.Logger) []port.PaymentGateway {
	gateways := []port.PaymentGateway{
		gateway.NewDukaVerse(ledger, cfg.Currency, logger),
		gateway.NewBank(ledger, cfg.Currency, logger),
		gateway.NewCredit(ledger, cfg.Currency, logger),
	}

	bulkhead := resilience.NewBulkhead(rcfg.MaxConcurrency)
	caller := func(name string) *gateway.Caller {
		return gateway.NewCaller(httpClient, breakers.Get(name), rcfg, bulkhead, logger)
	}

	if cfg.MpesaEnabled() {
		gateways = append(gateways, gateway.NewMpesa(gateway.MpesaConfig{
			BaseURL:            cfg.MpesaBaseURL,
			ConsumerKey:        cfg.MpesaConsumerKey,
			ConsumerSecret:     cfg.MpesaConsumerSecret,
			ShortCode:          cfg.MpesaShortCode,
			PassKey:            cfg.MpesaPassKey,
			CallbackURL:        cfg.MpesaCallbackURL,
			InitiatorName:      cfg.MpesaInitiatorName,
			SecurityCredential: cfg.MpesaSecurityCredential,
			ConfirmationURL:    cfg.MpesaConfirmationURL,
			ValidationURL:      cfg.MpesaValidationURL,
			ResultURL:          cfg.MpesaResultURL,
			TimeoutURL:         cfg.MpesaTimeoutURL,
		}, caller("mpesa"), tokens, metrics, logger))
	}
	if cfg.IpayEnabled() {
		gateways = append(gateways, gateway.NewIpay(gateway.IpayConfig{
			BaseURL:     cfg.IpayBaseURL,
			VendorID:    cfg.IpayVendorID,
			Secret:      cfg.IpaySecret,
			Live:        cfg.IpayLive,
			CallbackURL: cfg.IpayCallbackURL,
			Currency:    cfg.Currency,
		}, caller("ipay"), logger))
	}
	if cfg.StripeEnabled() {
		gateways = append(gateways, gateway.NewStripe(gateway.StripeConfig{
			BaseURL:   cfg.StripeBaseURL,
			SecretKey: cfg.StripeSecretKey,
			Currency:  cfg.StripeCurrency,
		}, caller("stripe"), logger))
	}
	if cfg.PaypalEnabled() {
		gateways = append(gateways, gateway.NewPaypal(gateway.PaypalConfig{
			BaseURL:      cfg.PaypalBaseURL,
			ClientID:     cfg.PaypalClientID,
			ClientSecret: cfg.PaypalClientSecret,
			Currency:     cfg.PaypalCurrency,
		}, caller("paypal"), tokens, metrics, logger))
	}
	return gateways
}
