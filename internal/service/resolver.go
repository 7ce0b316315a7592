package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var resolverTracer = otel.Tracer("service/resolver")

// TenantResolver is the capability set shared by the office, retail and
// ecommerce resolvers.
type TenantResolver interface {
	Kind() domain.TenantKind
	// Resolve loads the user's session binding, auto-binding when exactly
	// one candidate exists.
	Resolve(ctx context.Context, user *domain.User) (*domain.Tenant, domain.ResolutionState, error)
	// Bind writes a session account for tenantID and reloads it.
	Bind(ctx context.Context, user *domain.User, tenantID string) (*domain.Tenant, error)
	Candidates(ctx context.Context, user *domain.User) ([]domain.Tenant, error)
	AdminAccount(user *domain.User) bool
	Permissions(ctx context.Context, user *domain.User, tenant *domain.Tenant) ([]string, error)
	Owners(ctx context.Context, tenant *domain.Tenant) ([]domain.User, error)
	Employees(ctx context.Context, tenant *domain.Tenant) ([]domain.Employee, error)
}

// ResolverConfig tunes session account creation.
type ResolverConfig struct {
	// SessionTTL sets expires_at on new sessions. Zero means no expiry.
	SessionTTL time.Duration
	Now        func() time.Time
}

// tenantResolver holds the behaviour common to every tenant kind. The
// concrete resolvers only differ in kind and role sets.
type tenantResolver struct {
	kind          domain.TenantKind
	principal     []domain.Role
	employeeRoles []domain.Role

	tenants  port.TenantStore
	sessions port.SessionStore
	cfg      ResolverConfig
	logger   *zap.Logger
}

func newTenantResolver(kind domain.TenantKind, principal, employees []domain.Role, tenants port.TenantStore, sessions port.SessionStore, cfg ResolverConfig, logger *zap.Logger) *tenantResolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &tenantResolver{
		kind:          kind,
		principal:     principal,
		employeeRoles: employees,
		tenants:       tenants,
		sessions:      sessions,
		cfg:           cfg,
		logger:        logger.With(zap.String("tenant_kind", string(kind))),
	}
}

func (r *tenantResolver) Kind() domain.TenantKind { return r.kind }

func (r *tenantResolver) isPrincipal(user *domain.User) bool {
	return hasRole(r.principal, user.Role)
}

func (r *tenantResolver) isEmployee(user *domain.User) bool {
	return hasRole(r.employeeRoles, user.Role)
}

// AdminAccount is true only for the owning role of this tenant kind.
func (r *tenantResolver) AdminAccount(user *domain.User) bool {
	return user != nil && r.isPrincipal(user)
}

func (r *tenantResolver) Resolve(ctx context.Context, user *domain.User) (*domain.Tenant, domain.ResolutionState, error) {
	ctx, span := resolverTracer.Start(ctx, "TenantResolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("tenant.kind", string(r.kind)),
	)

	tenant, err := r.loadSession(ctx, user)
	if err != nil {
		return nil, domain.StateUnbound, err
	}
	if tenant != nil {
		return tenant, domain.StateBound, nil
	}

	candidates, err := r.Candidates(ctx, user)
	if err != nil {
		return nil, domain.StateUnbound, err
	}
	if len(candidates) != 1 {
		return nil, domain.StateUnbound, &domain.ErrNoSession{UserID: user.ID, Kind: r.kind, Candidates: len(candidates)}
	}

	tenant, err = r.bind(ctx, user, &candidates[0])
	if err != nil {
		return nil, domain.StateUnbound, err
	}
	r.logger.Info("session auto-bound",
		zap.String("user_id", user.ID),
		zap.String("tenant_id", tenant.ID),
	)
	return tenant, domain.StateAutoBound, nil
}

func (r *tenantResolver) Bind(ctx context.Context, user *domain.User, tenantID string) (*domain.Tenant, error) {
	ctx, span := resolverTracer.Start(ctx, "TenantResolver.Bind")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("tenant.id", tenantID),
	)

	candidates, err := r.Candidates(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].ID == tenantID {
			return r.bind(ctx, user, &candidates[i])
		}
	}
	return nil, &domain.ErrForbidden{Action: "bind " + string(r.kind) + " account " + tenantID}
}

// bind replaces the session account and confirms it by reloading.
func (r *tenantResolver) bind(ctx context.Context, user *domain.User, tenant *domain.Tenant) (*domain.Tenant, error) {
	now := r.cfg.Now().UTC()
	session := &domain.SessionAccount{
		UserID:          user.ID,
		SessionableType: r.kind,
		SessionableID:   tenant.ID,
		Token:           uuid.NewString(),
		LastUsedAt:      now,
		CreatedAt:       now,
	}
	if r.cfg.SessionTTL > 0 {
		exp := now.Add(r.cfg.SessionTTL)
		session.ExpiresAt = &exp
	}

	if _, err := r.sessions.ReplaceSessionAccount(ctx, session); err != nil {
		r.logger.Warn("session account write failed",
			zap.String("user_id", user.ID),
			zap.String("tenant_id", tenant.ID),
			zap.Error(err),
		)
		return nil, &domain.ErrSessionCreate{UserID: user.ID, TenantID: tenant.ID, Err: err}
	}

	bound, err := r.loadSession(ctx, user)
	if err != nil {
		return nil, err
	}
	if bound == nil {
		return nil, &domain.ErrNoSession{UserID: user.ID, Kind: r.kind, Candidates: 1}
	}
	return bound, nil
}

// loadSession returns the bound tenant, or nil when the user has no live
// session of this kind.
func (r *tenantResolver) loadSession(ctx context.Context, user *domain.User) (*domain.Tenant, error) {
	session, err := r.sessions.GetSessionAccount(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.SessionableType != r.kind || session.Expired(r.cfg.Now()) {
		return nil, nil
	}

	tenant, err := r.tenants.GetTenant(ctx, r.kind, session.SessionableID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			r.logger.Warn("session points at missing tenant",
				zap.String("user_id", user.ID),
				zap.String("tenant_id", session.SessionableID),
			)
			return nil, nil
		}
		return nil, err
	}

	if err := r.sessions.TouchSessionAccount(ctx, user.ID); err != nil {
		r.logger.Debug("session touch failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return tenant, nil
}

// Candidates lists tenants the user may bind: owned ones for the principal
// role, employing ones for the employee role.
func (r *tenantResolver) Candidates(ctx context.Context, user *domain.User) ([]domain.Tenant, error) {
	ctx, span := resolverTracer.Start(ctx, "TenantResolver.Candidates")
	defer span.End()

	var (
		tenants []domain.Tenant
		err     error
	)
	switch {
	case r.isPrincipal(user):
		tenants, err = r.tenants.ListOwnedTenants(ctx, r.kind, user.ID)
	case r.isEmployee(user):
		tenants, err = r.tenants.ListEmployedTenants(ctx, r.kind, user.ID)
	}
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, &domain.ErrNoCandidates{UserID: user.ID, Kind: r.kind}
	}
	return tenants, nil
}

func (r *tenantResolver) Permissions(ctx context.Context, user *domain.User, tenant *domain.Tenant) ([]string, error) {
	if r.isPrincipal(user) {
		return domain.AllPermissions(), nil
	}
	if !r.isEmployee(user) {
		return []string{}, nil
	}

	ctx, span := resolverTracer.Start(ctx, "TenantResolver.Permissions")
	defer span.End()

	employments, err := r.tenants.ListEmployments(ctx, r.kind, user.ID)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range employments {
		if tenant != nil && e.TenantID != tenant.ID {
			continue
		}
		for _, role := range e.Roles {
			keys = append(keys, role.Permissions...)
		}
	}
	return domain.FilterPermissions(keys), nil
}

func (r *tenantResolver) Owners(ctx context.Context, tenant *domain.Tenant) ([]domain.User, error) {
	return r.tenants.ListOwners(ctx, r.kind, tenant.ID)
}

func (r *tenantResolver) Employees(ctx context.Context, tenant *domain.Tenant) ([]domain.Employee, error) {
	return r.tenants.ListEmployees(ctx, r.kind, tenant.ID)
}

func hasRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
