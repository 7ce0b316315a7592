package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"go.uber.org/zap"
)

// IpayConfig holds the iPay Africa vendor credentials.
type IpayConfig struct {
	BaseURL     string
	VendorID    string
	Secret      string
	Live        bool
	CallbackURL string
	Currency    string
}

// Ipay collects payments through iPay's signed transact API followed by an
// M-PESA STK push trigger.
type Ipay struct {
	base
	cfg    IpayConfig
	caller *Caller
	logger *zap.Logger
}

// NewIpay creates the iPay gateway.
func NewIpay(cfg IpayConfig, caller *Caller, logger *zap.Logger) *Ipay {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "KES"
	}
	return &Ipay{
		base:   base{name: "ipay", now: time.Now},
		cfg:    cfg,
		caller: caller,
		logger: logger,
	}
}

type ipayTransactResponse struct {
	Status int `json:"status"`
	Data   struct {
		SID     string `json:"sid"`
		Account string `json:"account"`
	} `json:"data"`
	Text string `json:"text"`
}

type ipayPushResponse struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
}

// TransactForm builds the signed transact form. Field order in the hash is
// fixed by iPay.
func (g *Ipay) TransactForm(req *domain.PaymentRequest, phone string) url.Values {
	live := "0"
	if g.cfg.Live {
		live = "1"
	}
	quote := g.Quote(req.Amount)
	fields := []struct{ key, value string }{
		{"live", live},
		{"oid", req.Reference},
		{"inv", req.Reference},
		{"ttl", quote.ChargedAmount.Ceil().String()},
		{"tel", phone},
		{"eml", req.Email},
		{"vid", g.cfg.VendorID},
		{"curr", currencyOr(req, g.cfg.Currency)},
		{"p1", req.UserID},
		{"p2", req.TenantID},
		{"p3", ""},
		{"p4", ""},
		{"cbk", g.cfg.CallbackURL},
		{"cst", "1"},
		{"crl", "2"},
	}

	form := url.Values{}
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		form.Set(f.key, f.value)
		values = append(values, f.value)
	}
	form.Set("hash", Sign(g.cfg.Secret, values...))
	return form
}

// Pay registers the transaction with iPay and triggers the STK push.
func (g *Ipay) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	phone, err := requirePhone(req)
	if err != nil {
		return nil, err
	}

	var tx ipayTransactResponse
	err = g.caller.Do(ctx, "ipay", false,
		formRequest(http.MethodPost, g.cfg.BaseURL+"/payments/v2/transact", g.TransactForm(req, phone), nil),
		&tx)
	if err != nil {
		return nil, err
	}
	if tx.Status != 1 || tx.Data.SID == "" {
		return nil, &domain.ErrExternalService{Service: "ipay", Err: fmt.Errorf("transact rejected: %s", tx.Text)}
	}

	push := url.Values{}
	push.Set("phone", phone)
	push.Set("sid", tx.Data.SID)
	push.Set("vid", g.cfg.VendorID)
	push.Set("hash", Sign(g.cfg.Secret, phone, g.cfg.VendorID, tx.Data.SID))

	var pr ipayPushResponse
	err = g.caller.Do(ctx, "ipay", false,
		formRequest(http.MethodPost, g.cfg.BaseURL+"/payments/v2/transact/push/mpesa", push, nil),
		&pr)
	if err != nil {
		return nil, err
	}
	if pr.Status != 1 {
		g.logger.Warn("ipay push rejected", zap.String("sid", tx.Data.SID), zap.String("text", pr.Text))
		return g.result(domain.OperationPay, req, tx.Data.SID, domain.PaymentFailed, pr.Text), nil
	}
	return g.result(domain.OperationPay, req, tx.Data.SID, domain.PaymentPending, pr.Text), nil
}

func (g *Ipay) Transfer(_ context.Context, _ *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, g.unsupported(domain.OperationTransfer)
}

func (g *Ipay) Withdraw(_ context.Context, _ *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, g.unsupported(domain.OperationWithdraw)
}

func (g *Ipay) Deposit(_ context.Context, _ *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return nil, g.unsupported(domain.OperationDeposit)
}
