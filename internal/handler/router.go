package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/resilience"
	"github.com/boddenberg/dukaverse-accounts-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Any service may be nil; its routes then answer 503. breakers may be nil.
func NewRouter(accountSvc *service.AccountService, paymentSvc *service.PaymentService, authSvc *service.AuthService, metrics *observability.Metrics, breakers *resilience.Breakers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(accountSvc, paymentSvc, authSvc, breakers))
	r.Get("/readyz", readyzHandler(breakers))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/accounts", accountMetricsHandler(metrics))

		if authSvc == nil {
			r.Handle("/*", unavailable("auth service unavailable"))
			return
		}

		// =============================================
		// Auth
		// =============================================
		r.Post("/auth/login", authLoginHandler(authSvc, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))
			r.Get("/auth/me", authMeHandler())

			// =============================================
			// Billing
			// =============================================
			if paymentSvc != nil {
				r.Post("/billing/quote", quoteHandler(paymentSvc, logger))
				r.Get("/payments/gateways", listGatewaysHandler(paymentSvc))
			}

			if accountSvc == nil {
				r.Handle("/accounts/*", unavailable("account service unavailable"))
				return
			}

			r.Group(func(r chi.Router) {
				r.Use(AccountMiddleware(accountSvc))

				// =============================================
				// Accounts
				// =============================================
				r.Get("/accounts", listAccountsHandler(logger))
				r.Put("/accounts/session", setAccountHandler(logger))

				r.Group(func(r chi.Router) {
					r.Use(RequireAccount(logger))
					r.Get("/accounts/current", currentAccountHandler(logger))
					r.Get("/accounts/permissions", permissionsHandler(logger))
					r.Get("/accounts/members", membersHandler(logger))

					// =============================================
					// Payments
					// =============================================
					if paymentSvc != nil {
						r.Post("/payments/{gateway}/register-urls", registerURLsHandler(paymentSvc, logger))
						r.Post("/payments/{gateway}/{operation}", executePaymentHandler(paymentSvc, logger))
					}
				})
			})
		})
	})

	return r
}

func unavailable(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusServiceUnavailable, msg)
	}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Breakers map[string]string `json:"breakers,omitempty"`
	Time     string            `json:"time"`
}

func healthzHandler(accountSvc *service.AccountService, paymentSvc *service.PaymentService, authSvc *service.AuthService, breakers *resilience.Breakers) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := func(ok bool) string {
			if ok {
				return "up"
			}
			return "disabled"
		}
		resp := healthResponse{
			Status: "healthy",
			Services: map[string]string{
				"accounts": state(accountSvc != nil),
				"payments": state(paymentSvc != nil),
				"auth":     state(authSvc != nil),
			},
			Time: time.Now().UTC().Format(time.RFC3339),
		}
		if breakers != nil {
			resp.Breakers = breakers.States()
		}
		if accountSvc == nil || authSvc == nil || (breakers != nil && len(breakers.Open()) > 0) {
			resp.Status = "degraded"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// readyzHandler fails while the session store breaker is open.
func readyzHandler(breakers *resilience.Breakers) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if breakers != nil {
			for _, name := range breakers.Open() {
				if name == "supabase" {
					writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "open": name})
					return
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func accountMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
