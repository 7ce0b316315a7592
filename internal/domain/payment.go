package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Billing quotes & gateway payments
// ============================================================

// Quote is the discount/fee breakdown for one amount. Charge is surfaced
// next to ChargedAmount; the two are not summed.
type Quote struct {
	Amount        decimal.Decimal `json:"amount"`
	Discount      decimal.Decimal `json:"discount"`
	ChargedAmount decimal.Decimal `json:"charged_amount"`
	Charge        decimal.Decimal `json:"charge"`
}

// QuoteRequest is the body for POST /v1/billing/quote.
type QuoteRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PaymentOperation names one capability of a payment gateway.
type PaymentOperation string

const (
	OperationPay      PaymentOperation = "pay"
	OperationTransfer PaymentOperation = "transfer"
	OperationWithdraw PaymentOperation = "withdraw"
	OperationDeposit  PaymentOperation = "deposit"
)

// Valid reports whether op is a known gateway operation.
func (op PaymentOperation) Valid() bool {
	switch op {
	case OperationPay, OperationTransfer, OperationWithdraw, OperationDeposit:
		return true
	}
	return false
}

// PaymentRequest is the gateway-agnostic input of every money movement.
type PaymentRequest struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Description string          `json:"description,omitempty"`

	// Filled from the resolved account, never from the request body.
	UserID     string     `json:"-"`
	TenantKind TenantKind `json:"-"`
	TenantID   string     `json:"-"`
}

// Payment status values.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// PaymentResult is what a gateway reports back for a money movement.
type PaymentResult struct {
	Gateway     string           `json:"gateway"`
	Operation   PaymentOperation `json:"operation"`
	Reference   string           `json:"reference"`
	ProviderRef string           `json:"provider_ref,omitempty"`
	Status      string           `json:"status"`
	Message     string           `json:"message,omitempty"`
	Quote       Quote            `json:"quote"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Payment is a ledger row written by the internal gateways.
type Payment struct {
	ID          string           `json:"id"`
	Gateway     string           `json:"gateway"`
	Operation   PaymentOperation `json:"operation"`
	Reference   string           `json:"reference"`
	UserID      string           `json:"user_id"`
	TenantKind  TenantKind       `json:"tenant_kind,omitempty"`
	TenantID    string           `json:"tenant_id,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Discount    decimal.Decimal  `json:"discount"`
	Charge      decimal.Decimal  `json:"charge"`
	Currency    string           `json:"currency"`
	Destination string           `json:"destination,omitempty"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}
