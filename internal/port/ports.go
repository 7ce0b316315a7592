// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/shopspring/decimal"
)

// UserDirectory looks up users and their coarse role.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// TenantStore reads tenants and the people attached to them.
type TenantStore interface {
	GetTenant(ctx context.Context, kind domain.TenantKind, tenantID string) (*domain.Tenant, error)
	ListOwnedTenants(ctx context.Context, kind domain.TenantKind, userID string) ([]domain.Tenant, error)
	ListEmployedTenants(ctx context.Context, kind domain.TenantKind, userID string) ([]domain.Tenant, error)
	ListOwners(ctx context.Context, kind domain.TenantKind, tenantID string) ([]domain.User, error)
	ListEmployees(ctx context.Context, kind domain.TenantKind, tenantID string) ([]domain.Employee, error)
	ListEmployments(ctx context.Context, kind domain.TenantKind, userID string) ([]domain.Employee, error)
}

// SessionStore persists the single active session account of each user.
// GetSessionAccount returns (nil, nil) when the user has none.
type SessionStore interface {
	GetSessionAccount(ctx context.Context, userID string) (*domain.SessionAccount, error)
	ReplaceSessionAccount(ctx context.Context, session *domain.SessionAccount) (*domain.SessionAccount, error)
	TouchSessionAccount(ctx context.Context, userID string) error
}

// PaymentLedger records payments handled by the internal gateways.
type PaymentLedger interface {
	RecordPayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
}

// PaymentGateway is the capability set shared by every payment provider.
type PaymentGateway interface {
	Name() string
	Quote(amount decimal.Decimal) domain.Quote
	Pay(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error)
	Transfer(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error)
	Withdraw(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error)
	Deposit(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResult, error)
}
