package service

import (
	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/port"

	"go.uber.org/zap"
)

// OfficeResolver binds DukaVerse staff to an office.
type OfficeResolver struct{ *tenantResolver }

// NewOfficeResolver creates the office resolver.
func NewOfficeResolver(tenants port.TenantStore, sessions port.SessionStore, cfg ResolverConfig, logger *zap.Logger) *OfficeResolver {
	return &OfficeResolver{newTenantResolver(
		domain.TenantOffice,
		[]domain.Role{domain.RoleAdmin},
		[]domain.Role{domain.RoleDukaverseEmployee},
		tenants, sessions, cfg, logger,
	)}
}

// RetailResolver binds retailers and their staff to a retail shop.
type RetailResolver struct{ *tenantResolver }

// NewRetailResolver creates the retail resolver.
func NewRetailResolver(tenants port.TenantStore, sessions port.SessionStore, cfg ResolverConfig, logger *zap.Logger) *RetailResolver {
	return &RetailResolver{newTenantResolver(
		domain.TenantRetail,
		[]domain.Role{domain.RoleRetailer},
		[]domain.Role{domain.RoleRetailEmployee},
		tenants, sessions, cfg, logger,
	)}
}

// EcommerceResolver binds suppliers to their storefront. Storefronts have
// no employee sub-role.
type EcommerceResolver struct{ *tenantResolver }

// NewEcommerceResolver creates the ecommerce resolver.
func NewEcommerceResolver(tenants port.TenantStore, sessions port.SessionStore, cfg ResolverConfig, logger *zap.Logger) *EcommerceResolver {
	return &EcommerceResolver{newTenantResolver(
		domain.TenantEcommerce,
		[]domain.Role{domain.RoleSupplier},
		nil,
		tenants, sessions, cfg, logger,
	)}
}
