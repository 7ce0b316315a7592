package gateway

import (
	"context"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/port"

	"go.uber.org/zap"
)

// Ledger is an internal gateway: it moves no money itself and records each
// operation in the payments ledger for settlement.
type Ledger struct {
	base
	ops      map[domain.PaymentOperation]string
	currency string
	ledger   port.PaymentLedger
	logger   *zap.Logger
}

// NewBank records bank payments as pending until reconciled.
func NewBank(ledger port.PaymentLedger, currency string, logger *zap.Logger) *Ledger {
	return newLedger("bank", map[domain.PaymentOperation]string{
		domain.OperationPay: domain.PaymentPending,
	}, ledger, currency, logger)
}

// NewCredit records payments on credit as pending until repaid.
func NewCredit(ledger port.PaymentLedger, currency string, logger *zap.Logger) *Ledger {
	return newLedger("credit", map[domain.PaymentOperation]string{
		domain.OperationPay: domain.PaymentPending,
	}, ledger, currency, logger)
}

// NewDukaVerse settles against the in-platform wallet immediately.
func NewDukaVerse(ledger port.PaymentLedger, currency string, logger *zap.Logger) *Ledger {
	return newLedger("dukaverse", map[domain.PaymentOperation]string{
		domain.OperationPay:      domain.PaymentCompleted,
		domain.OperationDeposit:  domain.PaymentCompleted,
		domain.OperationWithdraw: domain.PaymentCompleted,
	}, ledger, currency, logger)
}

func newLedger(name string, ops map[domain.PaymentOperation]string, ledger port.PaymentLedger, currency string, logger *zap.Logger) *Ledger {
	return &Ledger{
		base:     base{name: name, now: time.Now},
		ops:      ops,
		currency: currency,
		ledger:   ledger,
		logger:   logger,
	}
}

func (g *Ledger) Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return g.record(ctx, domain.OperationPay, req)
}

func (g *Ledger) Transfer(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return g.record(ctx, domain.OperationTransfer, req)
}

func (g *Ledger) Withdraw(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return g.record(ctx, domain.OperationWithdraw, req)
}

func (g *Ledger) Deposit(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	return g.record(ctx, domain.OperationDeposit, req)
}

func (g *Ledger) record(ctx context.Context, op domain.PaymentOperation, req *domain.PaymentRequest) (*domain.PaymentResult, error) {
	status, ok := g.ops[op]
	if !ok {
		return nil, g.unsupported(op)
	}

	quote := g.Quote(req.Amount)
	saved, err := g.ledger.RecordPayment(ctx, &domain.Payment{
		Gateway:     g.name,
		Operation:   op,
		Reference:   req.Reference,
		UserID:      req.UserID,
		TenantKind:  req.TenantKind,
		TenantID:    req.TenantID,
		Amount:      quote.Amount,
		Discount:    quote.Discount,
		Charge:      quote.Charge,
		Currency:    currencyOr(req, g.currency),
		Destination: req.Destination,
		Status:      status,
		CreatedAt:   g.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("ledger payment recorded",
		zap.String("gateway", g.name),
		zap.String("operation", string(op)),
		zap.String("payment_id", saved.ID),
	)
	return g.result(op, req, saved.ID, status, ""), nil
}
