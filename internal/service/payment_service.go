package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/billing"
	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"
	"github.com/boddenberg/dukaverse-accounts-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var paymentTracer = otel.Tracer("service/payment")

// URLRegistrar is implemented by gateways that need callback URLs
// registered with the provider (M-PESA C2B).
type URLRegistrar interface {
	RegisterURLs(ctx context.Context) error
}

// PaymentService quotes amounts and dispatches money movements to the
// configured gateways.
type PaymentService struct {
	gateways map[string]port.PaymentGateway
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewPaymentService registers gateways by their Name.
func NewPaymentService(metrics *observability.Metrics, logger *zap.Logger, gateways ...port.PaymentGateway) *PaymentService {
	s := &PaymentService{
		gateways: make(map[string]port.PaymentGateway, len(gateways)),
		metrics:  metrics,
		logger:   logger,
	}
	for _, g := range gateways {
		s.gateways[g.Name()] = g
	}
	return s
}

// Gateways returns the registered gateway names, sorted.
func (s *PaymentService) Gateways() []string {
	names := make([]string, 0, len(s.gateways))
	for name := range s.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Quote returns the discount and charge for amount.
func (s *PaymentService) Quote(amount decimal.Decimal) (domain.Quote, error) {
	if amount.IsNegative() {
		return domain.Quote{}, &domain.ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	return billing.NewQuote(amount), nil
}

// Execute runs op on the named gateway for the resolved account.
func (s *PaymentService) Execute(ctx context.Context, account *Account, gateway string, op domain.PaymentOperation, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway", gateway),
		attribute.String("operation", string(op)),
	)

	g, ok := s.gateways[strings.ToLower(gateway)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "gateway", ID: gateway}
	}
	if !op.Valid() {
		return nil, &domain.ErrValidation{Field: "operation", Message: "unknown operation " + string(op)}
	}
	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if req.Reference == "" {
		req.Reference = uuid.NewString()
	}
	if account != nil {
		req.UserID = account.User().ID
		if t := account.Tenant(); t != nil {
			req.TenantKind, req.TenantID = t.Kind, t.ID
		}
	}

	start := time.Now()
	var (
		result *domain.PaymentResult
		err    error
	)
	switch op {
	case domain.OperationPay:
		result, err = g.Pay(ctx, req)
	case domain.OperationTransfer:
		result, err = g.Transfer(ctx, req)
	case domain.OperationWithdraw:
		result, err = g.Withdraw(ctx, req)
	case domain.OperationDeposit:
		result, err = g.Deposit(ctx, req)
	}

	status := "ok"
	var unsupported *domain.ErrUnsupported
	switch {
	case errors.As(err, &unsupported):
		status = "unsupported"
	case err != nil:
		status = "error"
		s.metrics.IncrExternalError(g.Name())
		s.logger.Error("gateway operation failed",
			zap.String("gateway", g.Name()),
			zap.String("operation", string(op)),
			zap.String("reference", req.Reference),
			zap.Error(err),
		)
		if account != nil {
			account.PushError(g.Name()+"."+string(op), err)
		}
	}
	s.metrics.RecordGatewayCall(g.Name(), string(op), status, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.logger.Info("gateway operation accepted",
		zap.String("gateway", g.Name()),
		zap.String("operation", string(op)),
		zap.String("reference", result.Reference),
		zap.String("status", result.Status),
	)
	return result, nil
}

// RegisterURLs registers callback URLs with the named gateway.
func (s *PaymentService) RegisterURLs(ctx context.Context, gateway string) error {
	g, ok := s.gateways[strings.ToLower(gateway)]
	if !ok {
		return &domain.ErrNotFound{Resource: "gateway", ID: gateway}
	}
	r, ok := g.(URLRegistrar)
	if !ok {
		return &domain.ErrUnsupported{Gateway: g.Name(), Operation: "register-urls"}
	}
	return r.RegisterURLs(ctx)
}
