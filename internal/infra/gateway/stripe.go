package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StripeConfig holds the Stripe API settings.
type StripeConfig struct {
	BaseURL   string
	SecretKey string
	Currency  string
}

// Stripe drives payment intents, connected-account transfers and payouts.
// Every call carries an idempotency key, so retries are safe.
type Stripe struct {
	base
	cfg    StripeConfig
	caller *Caller
	logger *zap.Logger
}

// NewStripe creates the Stripe gateway.
func NewStripe(cfg StripeConfig, caller *Caller, logger *zap.Logger) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "kes"
	}
	return &Stripe{
		base:   base{name: "stripe", now: time.Now},
		cfg:    cfg,
		caller: caller,
		logger: logger,
	}
}

type stripeObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

var hundred = decimal.NewFromInt(100)

// MinorUnits converts amount to the smallest currency unit, rounding half up.
func MinorUnits(amount decimal.Decimal) string {
	return amount.Mul(hundred).Round(0).String()
}

func (g *Stripe) call(ctx context.Context, op domain.PaymentOperation, path string, req *domain.PaymentRequest, form url.Values) (*domain.PaymentResult, error) {
	form.Set("currency", strings.ToLower(currencyOr(req, g.cfg.Currency)))
	form.Set("metadata[reference]", req.Reference)
	if req.UserID != "" {
		form.Set("metadata[user_id]", req.UserID)
	}
	if req.TenantID != "" {
		form.Set("metadata[tenant_id]", req.TenantID)
	}

	var out stripeObject
	err := g.caller.Do(ctx, "stripe", true, formRequest(http.MethodPost, g.cfg.BaseURL+path, form, map[string]string{
		"Authorization":   "Bearer " + g.cfg.SecretKey,
		"Idempotency-Key": req.Reference + ":" + string(op),
	}), &out)
	if err != nil {
		return nil, err
	}

	status := domain.PaymentPending
	switch out.Status {
	case "succeeded", "paid":
		status = domain.PaymentCompleted
	case "canceled", "failed":
		status = domain.PaymentFailed
	}
	g.logger.Debug("stripe object created",
		zap.String("operation", string(op)),
		zap.String("id", out.ID),
		zap.String("status", out.Status),
	)
	return g.result(op, req, out.ID, status, out.Status), nil
}

// Pay creates a payment intent for the charged amount.
func (g *Stripe) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	form := url.Values{}
	form.Set("amount", MinorUnits(g.Quote(req.Amount).ChargedAmount))
	if req.Email != "" {
		form.Set("receipt_email", req.Email)
	}
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	return g.call(ctx, domain.OperationPay, "/v1/payment_intents", req, form)
}

// Transfer moves funds to a connected account.
func (g *Stripe) Transfer(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	if req.Destination == "" {
		return nil, &domain.ErrValidation{Field: "destination", Message: "connected account id is required"}
	}
	form := url.Values{}
	form.Set("amount", MinorUnits(req.Amount))
	form.Set("destination", req.Destination)
	form.Set("transfer_group", req.Reference)
	return g.call(ctx, domain.OperationTransfer, "/v1/transfers", req, form)
}

// Withdraw pays out the platform balance to the default bank account.
func (g *Stripe) Withdraw(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	form := url.Values{}
	form.Set("amount", MinorUnits(req.Amount))
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	return g.call(ctx, domain.OperationWithdraw, "/v1/payouts", req, form)
}

func (g *Stripe) Deposit(_ context.Context, _ *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, g.unsupported(domain.OperationDeposit)
}
