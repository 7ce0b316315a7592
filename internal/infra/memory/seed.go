package memory

import (
	"fmt"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// DemoUsers lists the accounts SeedDemo creates, keyed by email.
var DemoUsers = map[string]domain.Role{
	"admin@dukaverse.local":    domain.RoleAdmin,
	"retailer@dukaverse.local": domain.RoleRetailer,
	"cashier@dukaverse.local":  domain.RoleRetailEmployee,
	"supplier@dukaverse.local": domain.RoleSupplier,
}

// SeedDemo fills s with one user per account type, all sharing password:
// an admin owning the head office, a retailer owning two shops, a cashier
// employed at the first shop and a supplier owning a storefront.
func SeedDemo(s *Store, password string) error {
	if password == "" {
		return fmt.Errorf("seed password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	now := time.Now().UTC()
	ids := make(map[domain.Role]string, len(DemoUsers))
	for email, role := range DemoUsers {
		id := "demo-" + string(role)
		ids[role] = id
		s.AddUser(domain.User{ID: id, Name: string(role), Email: email, Role: role, PasswordHash: string(hash), CreatedAt: now})
	}

	s.AddTenant(domain.Tenant{ID: "office-hq", Kind: domain.TenantOffice, Name: "DukaVerse HQ", CreatedAt: now}, ids[domain.RoleAdmin])
	s.AddTenant(domain.Tenant{ID: "retail-1", Kind: domain.TenantRetail, Name: "Mama Mboga Shop", CreatedAt: now}, ids[domain.RoleRetailer])
	s.AddTenant(domain.Tenant{ID: "retail-2", Kind: domain.TenantRetail, Name: "Kona Mini Mart", CreatedAt: now}, ids[domain.RoleRetailer])
	s.AddTenant(domain.Tenant{ID: "store-1", Kind: domain.TenantEcommerce, Name: "Wholesale Storefront", CreatedAt: now}, ids[domain.RoleSupplier])
	s.AddEmployee(domain.Employee{
		ID:         "emp-cashier",
		UserID:     ids[domain.RoleRetailEmployee],
		TenantKind: domain.TenantRetail,
		TenantID:   "retail-1",
		Roles: []domain.EmployeeRole{{
			ID:          "role-cashier",
			Name:        "cashier",
			Permissions: []string{"view_dashboard", "view_sales", "create_sales", "view_products"},
		}},
	})
	return nil
}
