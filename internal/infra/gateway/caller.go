// Package gateway implements the payment gateway adapters: internal ledger
// gateways (bank, credit, dukaverse) and the M-PESA, iPay, Stripe and PayPal
// providers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/billing"
	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gateway")

// TokenCache stores provider access tokens. Concurrent loads of one key
// are expected to be collapsed.
type TokenCache interface {
	GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (string, time.Duration, error)) (string, bool, error)
}

// Caller sends provider requests through a circuit breaker and a shared
// bulkhead. Only idempotent requests are retried.
type Caller struct {
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewCaller creates a Caller for one provider. The bulkhead may be shared
// between providers; nil disables it.
func NewCaller(httpClient *http.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config, bulkhead *resilience.Bulkhead, logger *zap.Logger) *Caller {
	return &Caller{
		httpClient: httpClient,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   bulkhead,
		logger:     logger,
	}
}

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// StatusCode returns the provider's HTTP status.
func (e *StatusError) StatusCode() int { return e.Code }

// Do sends the request built by build and decodes a 2xx JSON body into out.
func (c *Caller) Do(ctx context.Context, service string, idempotent bool, build func(ctx context.Context) (*http.Request, error), out any) error {
	ctx, span := tracer.Start(ctx, "gateway."+service)
	defer span.End()

	if c.bulkhead != nil {
		if err := c.bulkhead.Acquire(ctx); err != nil {
			return err
		}
		defer c.bulkhead.Release()
	}

	attempt := func() error {
		req, err := build(ctx)
		if err != nil {
			return resilience.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Warn("gateway: non-2xx response",
				zap.String("service", service),
				zap.String("path", req.URL.Path),
				zap.Int("status", resp.StatusCode),
			)
			statusErr := &StatusError{Code: resp.StatusCode, Body: string(body)}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return resilience.Permanent(statusErr)
			}
			return statusErr
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s response: %w", service, err))
		}
		return nil
	}

	_, err := c.cb.Execute(func() (any, error) {
		if idempotent {
			return nil, resilience.RetryWithBackoff(ctx, c.cfg, attempt)
		}
		err := attempt()
		var perm *resilience.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return nil, err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: service}
	default:
		return &domain.ErrExternalService{Service: service, Err: err}
	}
}

// base carries the behaviour every gateway shares.
type base struct {
	name string
	now  func() time.Time
}

func (b base) Name() string { return b.name }

// Quote applies the shared billing tables.
func (b base) Quote(amount decimal.Decimal) domain.Quote {
	return billing.NewQuote(amount)
}

func (b base) unsupported(op domain.PaymentOperation) error {
	return &domain.ErrUnsupported{Gateway: b.name, Operation: op}
}

func (b base) result(op domain.PaymentOperation, req *domain.PaymentRequest, providerRef, status, message string) *domain.PaymentResult {
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	return &domain.PaymentResult{
		Gateway:     b.name,
		Operation:   op,
		Reference:   req.Reference,
		ProviderRef: providerRef,
		Status:      status,
		Message:     message,
		Quote:       b.Quote(req.Amount),
		CreatedAt:   now().UTC(),
	}
}

// cachedToken returns the provider token for key, fetching it on a miss.
func cachedToken(ctx context.Context, cache TokenCache, metrics *observability.Metrics, key string, fetch func(ctx context.Context) (string, time.Duration, error)) (string, error) {
	tok, hit, err := cache.GetOrLoad(ctx, key, func(ctx context.Context) (string, time.Duration, error) {
		tok, ttl, err := fetch(ctx)
		// Expire a minute early so in-flight requests never carry a stale token.
		if ttl > 2*time.Minute {
			ttl -= time.Minute
		}
		return tok, ttl, err
	})
	if hit {
		metrics.IncrCacheHit(key)
	} else {
		metrics.IncrCacheMiss(key)
	}
	return tok, err
}

func requirePhone(req *domain.PaymentRequest) (string, error) {
	phone := NormalizeMSISDN(req.Phone)
	if phone == "" {
		return "", &domain.ErrValidation{Field: "phone", Message: "a valid phone number is required"}
	}
	return phone, nil
}

func currencyOr(req *domain.PaymentRequest, fallback string) string {
	if req.Currency != "" {
		return req.Currency
	}
	return fallback
}

// jsonRequest returns a builder for a JSON request. The body is marshalled
// on each attempt so retries never send a drained reader.
func jsonRequest(method, target string, payload any, headers map[string]string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}
}

// formRequest returns a builder for a form-encoded request.
func formRequest(method, target string, form url.Values, headers map[string]string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}
}
