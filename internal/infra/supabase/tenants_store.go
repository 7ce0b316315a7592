package supabase

import (
	"context"
	"fmt"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Tenants, owners and employees (implements port.TenantStore)
//
// Tables: offices, retails, ecommerces; <kind>_owners(tenant_id, user_id);
// employees(id, user_id, tenant_kind, tenant_id) with roles reached through
// employee_roles.
// ============================================================

const tenantColumns = "id,name,created_at"

func ownersTable(kind domain.TenantKind) string {
	return string(kind) + "_owners"
}

type employeeRow struct {
	ID         string                `json:"id"`
	UserID     string                `json:"user_id"`
	TenantKind string                `json:"tenant_kind"`
	TenantID   string                `json:"tenant_id"`
	User       *userRow              `json:"user"`
	Roles      []domain.EmployeeRole `json:"roles"`
}

func (r employeeRow) toDomain() domain.Employee {
	e := domain.Employee{
		ID:         r.ID,
		UserID:     r.UserID,
		TenantKind: domain.TenantKind(r.TenantKind),
		TenantID:   r.TenantID,
		Roles:      r.Roles,
	}
	if r.User != nil {
		u := r.User.toDomain()
		e.User = &u
	}
	return e
}

const employeeSelect = "id,user_id,tenant_kind,tenant_id,user:users(" + userColumns + "),roles(id,name,permissions)"

func withKind(rows []domain.Tenant, kind domain.TenantKind) []domain.Tenant {
	for i := range rows {
		rows[i].Kind = kind
	}
	return rows
}

func (c *Client) GetTenant(ctx context.Context, kind domain.TenantKind, tenantID string) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTenant")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.kind", string(kind)),
		attribute.String("tenant.id", tenantID),
	)

	var rows []domain.Tenant
	path := fmt.Sprintf("%s?select=%s&id=%s&limit=1", kind.Table(), tenantColumns, eq(tenantID))
	if err := c.get(ctx, kind.Table(), path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: string(kind), ID: tenantID}
	}
	return &withKind(rows, kind)[0], nil
}

// ListOwnedTenants embeds the owner relation and filters on it, so one
// round trip returns only the user's tenants.
func (c *Client) ListOwnedTenants(ctx context.Context, kind domain.TenantKind, userID string) ([]domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOwnedTenants")
	defer span.End()

	rel := kind.OwnerRelation()
	var rows []domain.Tenant
	path := fmt.Sprintf("%s?select=%s,%s:%s!inner(user_id)&%s.user_id=%s&order=id.asc",
		kind.Table(), tenantColumns, rel, ownersTable(kind), rel, eq(userID))
	if err := c.get(ctx, kind.Table(), path, &rows); err != nil {
		return nil, err
	}
	return withKind(rows, kind), nil
}

func (c *Client) ListEmployedTenants(ctx context.Context, kind domain.TenantKind, userID string) ([]domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEmployedTenants")
	defer span.End()

	var links []struct {
		TenantID string `json:"tenant_id"`
	}
	path := fmt.Sprintf("employees?select=tenant_id&tenant_kind=%s&user_id=%s", eq(string(kind)), eq(userID))
	if err := c.get(ctx, "employees", path, &links); err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.TenantID
	}
	var rows []domain.Tenant
	path = fmt.Sprintf("%s?select=%s&id=%s&order=id.asc", kind.Table(), tenantColumns, in(ids))
	if err := c.get(ctx, kind.Table(), path, &rows); err != nil {
		return nil, err
	}
	return withKind(rows, kind), nil
}

func (c *Client) ListOwners(ctx context.Context, kind domain.TenantKind, tenantID string) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOwners")
	defer span.End()

	var rows []struct {
		User *userRow `json:"user"`
	}
	path := fmt.Sprintf("%s?select=user:users(%s)&tenant_id=%s&order=user_id.asc", ownersTable(kind), userColumns, eq(tenantID))
	if err := c.get(ctx, ownersTable(kind), path, &rows); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		if r.User != nil {
			users = append(users, r.User.toDomain())
		}
	}
	return users, nil
}

func (c *Client) ListEmployees(ctx context.Context, kind domain.TenantKind, tenantID string) ([]domain.Employee, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEmployees")
	defer span.End()

	path := fmt.Sprintf("employees?select=%s&tenant_kind=%s&tenant_id=%s&order=id.asc", employeeSelect, eq(string(kind)), eq(tenantID))
	return c.listEmployees(ctx, path)
}

func (c *Client) ListEmployments(ctx context.Context, kind domain.TenantKind, userID string) ([]domain.Employee, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEmployments")
	defer span.End()

	path := fmt.Sprintf("employees?select=%s&tenant_kind=%s&user_id=%s&order=id.asc", employeeSelect, eq(string(kind)), eq(userID))
	return c.listEmployees(ctx, path)
}

func (c *Client) listEmployees(ctx context.Context, path string) ([]domain.Employee, error) {
	var rows []employeeRow
	if err := c.get(ctx, "employees", path, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Employee, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
