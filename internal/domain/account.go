package domain

import "time"

// ============================================================
// Tenants & Session Accounts
// ============================================================

// AccountType classifies which tenant domain a user works in.
type AccountType string

const (
	DukaverseAccountType AccountType = "DUKAVERSE_ACCOUNT_TYPE"
	RetailAccountType    AccountType = "RETAIL_ACCOUNT_TYPE"
	EcommerceAccountType AccountType = "ECOMMERCE_ACCOUNT_TYPE"
	SupplierAccountType  AccountType = "SUPPLIER_ACCOUNT_TYPE"

	// UnclassifiedAccountType is used when no rule matches the user's role.
	UnclassifiedAccountType AccountType = ""
)

// TenantKind is the concrete entity a session can be bound to.
type TenantKind string

const (
	TenantOffice    TenantKind = "office"
	TenantRetail    TenantKind = "retail"
	TenantEcommerce TenantKind = "ecommerce"
)

// Table returns the storage table holding tenants of this kind.
func (k TenantKind) Table() string {
	switch k {
	case TenantOffice:
		return "offices"
	case TenantRetail:
		return "retails"
	case TenantEcommerce:
		return "ecommerces"
	}
	return ""
}

// OwnerRelation returns the name of the "who owns this tenant" relation.
func (k TenantKind) OwnerRelation() string {
	switch k {
	case TenantOffice:
		return "officeable"
	case TenantRetail:
		return "retailable"
	case TenantEcommerce:
		return "user"
	}
	return ""
}

// Tenant is an Office, Retail or Ecommerce entity.
type Tenant struct {
	ID        string     `json:"id"`
	Kind      TenantKind `json:"kind"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// SessionAccount binds a user to exactly one tenant.
type SessionAccount struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	SessionableType TenantKind `json:"sessionable_type"`
	SessionableID   string     `json:"sessionable_id"`
	Token           string     `json:"token"`
	LastUsedAt      time.Time  `json:"last_used_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Expired reports whether the session passed its expiry at now.
func (s *SessionAccount) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// AccountList is returned by GET /v1/accounts.
type AccountList struct {
	AccountType AccountType `json:"account_type"`
	Accounts    []Tenant    `json:"accounts"`
	State       bool        `json:"state"`
}

// ResolutionState tracks where an account is in its resolution lifecycle.
type ResolutionState string

const (
	StateUnclassified ResolutionState = "unclassified"
	StateBound        ResolutionState = "bound"
	StateAutoBound    ResolutionState = "auto_bound"
	StateUnbound      ResolutionState = "unbound"
)

// CurrentAccount is returned by GET /v1/accounts/current.
type CurrentAccount struct {
	AccountType AccountType     `json:"account_type"`
	State       ResolutionState `json:"state"`
	Account     *Tenant         `json:"account,omitempty"`
	User        *User           `json:"user,omitempty"`
	Admin       bool            `json:"admin"`
	Permissions []string        `json:"permissions"`
}

// SetAccountRequest is the body for PUT /v1/accounts/session.
type SetAccountRequest struct {
	AccountType AccountType `json:"account_type"`
	AccountID   string      `json:"account_id"`
}
