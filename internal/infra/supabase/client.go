// Package supabase provides a client for Supabase (PostgREST).
// It is the primary backend for users, tenants, session accounts and the
// payments ledger.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST response.
type statusError struct {
	method string
	path   string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.method, e.path, e.code, e.body)
}

func (e *statusError) StatusCode() int { return e.code }

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// do sends one authenticated PostgREST request. payload, when non-nil, is
// sent as JSON. A GET answered 404 and any 204 yield no body and no error.
func (c *Client) do(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/rest/v1/"+path, reqBody)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, prefer)

	log := c.logger.With(zap.String("method", method), zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("supabase: request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		log.Warn("supabase: non-2xx response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &statusError{method: method, path: path, code: resp.StatusCode, body: string(body)}
	}

	log.Debug("supabase: request OK", zap.Int("status", resp.StatusCode))
	return body, nil
}

// get reads rows at path into out through the circuit breaker, retrying
// transient failures. An empty response leaves out untouched.
func (c *Client) get(ctx context.Context, service, path string, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.do(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				var se *statusError
				if errors.As(err, &se) && se.code < 500 {
					return resilience.Permanent(err)
				}
				return err
			}
			if len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s: %w", service, err))
			}
			return nil
		})
	})
	return wrapErr(service, err)
}

// write runs a single non-retried mutation through the circuit breaker.
func (c *Client) write(service string, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return wrapErr(service, err)
}

func wrapErr(service string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: "supabase/" + service}
	default:
		return &domain.ErrExternalService{Service: "supabase/" + service, Err: err}
	}
}
