package domain

// ============================================================
// Employees & Permissions
// ============================================================

// EmployeePermissions is the master capability list. Every permission set
// handed out is a subset of these keys, in this order.
var EmployeePermissions = []string{
	"view_dashboard",
	"view_sales",
	"create_sales",
	"refund_sales",
	"view_products",
	"manage_products",
	"view_stock",
	"manage_stock",
	"view_customers",
	"manage_customers",
	"view_suppliers",
	"manage_suppliers",
	"view_expenses",
	"manage_expenses",
	"view_reports",
	"manage_employees",
	"manage_settings",
	"manage_billing",
}

// EmployeeRole is a named bundle of permission keys assigned to employees.
type EmployeeRole struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Employee links a user to a tenant they work for.
type Employee struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	TenantKind TenantKind     `json:"tenant_kind"`
	TenantID   string         `json:"tenant_id"`
	User       *User          `json:"user,omitempty"`
	Roles      []EmployeeRole `json:"roles"`
}

// FilterPermissions intersects the master list with the given keys,
// keeping master order and dropping duplicates.
func FilterPermissions(keys []string) []string {
	granted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		granted[k] = struct{}{}
	}
	out := make([]string, 0, len(granted))
	for _, p := range EmployeePermissions {
		if _, ok := granted[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// AllPermissions returns a copy of the master list.
func AllPermissions() []string {
	out := make([]string, len(EmployeePermissions))
	copy(out, EmployeePermissions)
	return out
}
