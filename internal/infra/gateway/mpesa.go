package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"

	"go.uber.org/zap"
)

// MpesaConfig holds the Daraja credentials and callback URLs.
type MpesaConfig struct {
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	ShortCode          string
	PassKey            string
	CallbackURL        string
	InitiatorName      string
	SecurityCredential string
	ConfirmationURL    string
	ValidationURL      string
	ResultURL          string
	TimeoutURL         string
}

// Mpesa implements STK push collections, B2C withdrawals and C2B URL
// registration against the Safaricom Daraja API.
type Mpesa struct {
	base
	cfg     MpesaConfig
	caller  *Caller
	tokens  TokenCache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMpesa creates the M-PESA gateway.
func NewMpesa(cfg MpesaConfig, caller *Caller, tokens TokenCache, metrics *observability.Metrics, logger *zap.Logger) *Mpesa {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Mpesa{
		base:    base{name: "mpesa", now: time.Now},
		cfg:     cfg,
		caller:  caller,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}
}

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type mpesaResponse struct {
	MerchantRequestID        string `json:"MerchantRequestID"`
	CheckoutRequestID        string `json:"CheckoutRequestID"`
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
	CustomerMessage          string `json:"CustomerMessage"`
}

func (g *Mpesa) token(ctx context.Context) (string, error) {
	return cachedToken(ctx, g.tokens, g.metrics, "mpesa_token", func(ctx context.Context) (string, time.Duration, error) {
		var out mpesaTokenResponse
		err := g.caller.Do(ctx, "mpesa", true, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
			if err != nil {
				return nil, err
			}
			req.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)
			return req, nil
		}, &out)
		if err != nil {
			return "", 0, err
		}
		secs, convErr := strconv.Atoi(out.ExpiresIn)
		if convErr != nil || secs <= 0 {
			secs = 3599
		}
		return out.AccessToken, time.Duration(secs) * time.Second, nil
	})
}

// Password returns the STK push password for timestamp (yyyyMMddHHmmss).
func (g *Mpesa) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.cfg.ShortCode + g.cfg.PassKey + timestamp))
}

func (g *Mpesa) post(ctx context.Context, path string, payload any, out any) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}
	return g.caller.Do(ctx, "mpesa", false, jsonRequest(http.MethodPost, g.cfg.BaseURL+path, payload, map[string]string{
		"Authorization": "Bearer " + token,
	}), out)
}

// Pay sends an STK push prompt to the customer's phone for the charged amount.
func (g *Mpesa) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	phone, err := requirePhone(req)
	if err != nil {
		return nil, err
	}
	quote := g.Quote(req.Amount)
	timestamp := g.now().Format("20060102150405")

	var out mpesaResponse
	err = g.post(ctx, "/mpesa/stkpush/v1/processrequest", map[string]any{
		"BusinessShortCode": g.cfg.ShortCode,
		"Password":          g.Password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            quote.ChargedAmount.Ceil().IntPart(),
		"PartyA":            phone,
		"PartyB":            g.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       g.cfg.CallbackURL,
		"AccountReference":  req.Reference,
		"TransactionDesc":   descriptionOr(req, "Payment"),
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return g.result(domain.OperationPay, req, out.CheckoutRequestID, domain.PaymentFailed, out.ResponseDescription), nil
	}
	return g.result(domain.OperationPay, req, out.CheckoutRequestID, domain.PaymentPending, out.CustomerMessage), nil
}

// Withdraw pays out to the customer's phone through B2C.
func (g *Mpesa) Withdraw(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	phone, err := requirePhone(req)
	if err != nil {
		return nil, err
	}

	var out mpesaResponse
	err = g.post(ctx, "/mpesa/b2c/v1/paymentrequest", map[string]any{
		"InitiatorName":      g.cfg.InitiatorName,
		"SecurityCredential": g.cfg.SecurityCredential,
		"CommandID":          "BusinessPayment",
		"Amount":             req.Amount.Ceil().IntPart(),
		"PartyA":             g.cfg.ShortCode,
		"PartyB":             phone,
		"Remarks":            descriptionOr(req, "Withdrawal"),
		"QueueTimeOutURL":    g.cfg.TimeoutURL,
		"ResultURL":          g.cfg.ResultURL,
		"Occasion":           req.Reference,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return g.result(domain.OperationWithdraw, req, out.ConversationID, domain.PaymentFailed, out.ResponseDescription), nil
	}
	return g.result(domain.OperationWithdraw, req, out.ConversationID, domain.PaymentPending, out.ResponseDescription), nil
}

func (g *Mpesa) Transfer(_ context.Context, _ *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, g.unsupported(domain.OperationTransfer)
}

func (g *Mpesa) Deposit(_ context.Context, _ *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, g.unsupported(domain.OperationDeposit)
}

// RegisterURLs registers the C2B confirmation and validation URLs.
func (g *Mpesa) RegisterURLs(ctx context.Context) error {
	var out mpesaResponse
	err := g.post(ctx, "/mpesa/c2b/v1/registerurl", map[string]any{
		"ShortCode":       g.cfg.ShortCode,
		"ResponseType":    "Completed",
		"ConfirmationURL": g.cfg.ConfirmationURL,
		"ValidationURL":   g.cfg.ValidationURL,
	}, &out)
	if err != nil {
		return err
	}
	g.logger.Info("mpesa c2b urls registered",
		zap.String("short_code", g.cfg.ShortCode),
		zap.String("response", out.ResponseDescription),
	)
	return nil
}

func descriptionOr(req *domain.PaymentRequest, fallback string) string {
	if req.Description != "" {
		return req.Description
	}
	return fallback
}
