package handler

import (
	"net/http"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Billing & Payments
// ============================================================

func quoteHandler(paymentSvc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/billing/quote")
		defer span.End()

		var req domain.QuoteRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		quote, err := paymentSvc.Quote(req.Amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, quote)
	}
}

func listGatewaysHandler(paymentSvc *service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"gateways": paymentSvc.Gateways()})
	}
}

func executePaymentHandler(paymentSvc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payments/{gateway}/{operation}")
		defer span.End()

		gateway := chi.URLParam(r, "gateway")
		op := domain.PaymentOperation(chi.URLParam(r, "operation"))
		span.SetAttributes(
			attribute.String("gateway", gateway),
			attribute.String("operation", string(op)),
		)

		var req domain.PaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		result, err := paymentSvc.Execute(ctx, AccountFromContext(ctx), gateway, op, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		status := http.StatusOK
		if result.Status == domain.PaymentPending {
			status = http.StatusAccepted
		}
		writeJSON(w, status, result)
	}
}

func registerURLsHandler(paymentSvc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payments/{gateway}/register-urls")
		defer span.End()

		account := AccountFromContext(ctx)
		if !account.AdminAccount() {
			handleServiceError(w, &domain.ErrForbidden{Action: "register gateway callback urls"}, logger)
			return
		}

		if err := paymentSvc.RegisterURLs(ctx, chi.URLParam(r, "gateway")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
	}
}
