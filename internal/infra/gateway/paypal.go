package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"

	"go.uber.org/zap"
)

// PaypalConfig holds the PayPal REST credentials.
type PaypalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
}

// Paypal creates checkout orders and payouts. Orders and payouts are
// deduplicated by PayPal-Request-Id, so retries are safe.
type Paypal struct {
	base
	cfg     PaypalConfig
	caller  *Caller
	tokens  TokenCache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPaypal creates the PayPal gateway.
func NewPaypal(cfg PaypalConfig, caller *Caller, tokens TokenCache, metrics *observability.Metrics, logger *zap.Logger) *Paypal {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-m.sandbox.paypal.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Paypal{
		base:    base{name: "paypal", now: time.Now},
		cfg:     cfg,
		caller:  caller,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

type paypalPayoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

func (g *Paypal) token(ctx context.Context) (string, error) {
	return cachedToken(ctx, g.tokens, g.metrics, "paypal_token", func(ctx context.Context) (string, time.Duration, error) {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")

		var out paypalTokenResponse
		build := formRequest(http.MethodPost, g.cfg.BaseURL+"/v1/oauth2/token", form, nil)
		err := g.caller.Do(ctx, "paypal", true, func(ctx context.Context) (*http.Request, error) {
			req, err := build(ctx)
			if err != nil {
				return nil, err
			}
			req.SetBasicAuth(g.cfg.ClientID, g.cfg.ClientSecret)
			return req, nil
		}, &out)
		if err != nil {
			return "", 0, err
		}
		ttl := time.Duration(out.ExpiresIn) * time.Second
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		return out.AccessToken, ttl, nil
	})
}

func (g *Paypal) post(ctx context.Context, path, requestID string, payload, out any) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}
	return g.caller.Do(ctx, "paypal", true, jsonRequest(http.MethodPost, g.cfg.BaseURL+path, payload, map[string]string{
		"Authorization":     "Bearer " + token,
		"PayPal-Request-Id": requestID,
	}), out)
}

// Pay creates a CAPTURE order for the charged amount. The approve link is
// returned as the result message.
func (g *Paypal) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	quote := g.Quote(req.Amount)
	var out paypalOrderResponse
	err := g.post(ctx, "/v2/checkout/orders", req.Reference+":pay", map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.Reference,
			"description":  descriptionOr(req, "DukaVerse payment"),
			"amount": map[string]string{
				"currency_code": strings.ToUpper(currencyOr(req, g.cfg.Currency)),
				"value":         quote.ChargedAmount.StringFixed(2),
			},
		}},
	}, &out)
	if err != nil {
		return nil, err
	}

	approve := ""
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approve = l.Href
			break
		}
	}
	status := domain.PaymentPending
	if out.Status == "COMPLETED" {
		status = domain.PaymentCompleted
	}
	return g.result(domain.OperationPay, req, out.ID, status, approve), nil
}

func (g *Paypal) payout(ctx context.Context, op domain.PaymentOperation, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	receiver := req.Destination
	if receiver == "" {
		receiver = req.Email
	}
	if receiver == "" {
		return nil, &domain.ErrValidation{Field: "destination", Message: "receiver email is required"}
	}

	var out paypalPayoutResponse
	err := g.post(ctx, "/v1/payments/payouts", req.Reference+":"+string(op), map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": req.Reference,
			"email_subject":   descriptionOr(req, "You have a payout"),
		},
		"items": []map[string]any{{
			"recipient_type": "EMAIL",
			"receiver":       receiver,
			"sender_item_id": req.Reference,
			"amount": map[string]string{
				"currency": strings.ToUpper(currencyOr(req, g.cfg.Currency)),
				"value":    req.Amount.StringFixed(2),
			},
		}},
	}, &out)
	if err != nil {
		return nil, err
	}
	status := domain.PaymentPending
	switch out.BatchHeader.BatchStatus {
	case "SUCCESS":
		status = domain.PaymentCompleted
	case "DENIED", "CANCELED":
		status = domain.PaymentFailed
	}
	g.logger.Debug("paypal payout created",
		zap.String("batch_id", out.BatchHeader.PayoutBatchID),
		zap.String("status", out.BatchHeader.BatchStatus),
	)
	return g.result(op, req, out.BatchHeader.PayoutBatchID, status, out.BatchHeader.BatchStatus), nil
}

// Transfer sends a payout to another PayPal account.
func (g *Paypal) Transfer(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return g.payout(ctx, domain.OperationTransfer, req)
}

// Withdraw pays out to the merchant's own PayPal account.
func (g *Paypal) Withdraw(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return g.payout(ctx, domain.OperationWithdraw, req)
}

func (g *Paypal) Deposit(_ context.Context, _ *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, g.unsupported(domain.OperationDeposit)
}
