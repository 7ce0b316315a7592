// Package service provides the business logic layer (use cases).
package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var accountTracer = otel.Tracer("service/account")

// classificationRules is evaluated in order; the first rule listing the
// user's role decides the account type.
var classificationRules = []struct {
	accountType domain.AccountType
	roles       []domain.Role
}{
	{domain.DukaverseAccountType, []domain.Role{domain.RoleAdmin, domain.RoleDukaverseEmployee}},
	{domain.RetailAccountType, []domain.Role{domain.RoleRetailer, domain.RoleRetailEmployee}},
	{domain.SupplierAccountType, []domain.Role{domain.RoleSupplier}},
}

// Classify derives the account type from a role.
func Classify(role domain.Role) domain.AccountType {
	for _, rule := range classificationRules {
		if hasRole(rule.roles, role) {
			return rule.accountType
		}
	}
	return domain.UnclassifiedAccountType
}

// AccountService picks the tenant resolver for a user and builds the
// request-scoped Account view.
type AccountService struct {
	resolvers map[domain.AccountType]TenantResolver
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAccountService wires the three resolvers to their account types.
// Supplier accounts are served by the ecommerce resolver.
func NewAccountService(office, retail, ecommerce TenantResolver, metrics *observability.Metrics, logger *zap.Logger) *AccountService {
	return &AccountService{
		resolvers: map[domain.AccountType]TenantResolver{
			domain.DukaverseAccountType: office,
			domain.RetailAccountType:    retail,
			domain.EcommerceAccountType: ecommerce,
			domain.SupplierAccountType:  ecommerce,
		},
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve classifies user and tries to bind its session account. It never
// fails: the first error is kept on the returned Account.
func (s *AccountService) Resolve(ctx context.Context, user *domain.User) *Account {
	ctx, span := accountTracer.Start(ctx, "AccountService.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.role", string(user.Role)),
	)

	a := &Account{
		svc:         s,
		user:        user,
		accountType: Classify(user.Role),
		state:       domain.StateUnclassified,
		diag:        domain.NewDiagnostics(s.now),
	}

	if resolver, ok := s.resolvers[a.accountType]; ok {
		a.resolver = resolver
		tenant, state, err := resolver.Resolve(ctx, user)
		a.tenant, a.state = tenant, state
		a.PushError(string(resolver.Kind())+".resolve", err)
	}

	s.metrics.RecordResolution(string(a.accountType), string(a.state))
	span.SetAttributes(attribute.String("account.state", string(a.state)))
	s.logger.Debug("account resolved",
		zap.String("user_id", user.ID),
		zap.String("account_type", string(a.accountType)),
		zap.String("state", string(a.state)),
		zap.Int("diagnostics", a.diag.Len()),
	)
	return a
}

// Account is the uniform view of a user's current tenant account. It lives
// for one request.
type Account struct {
	svc         *AccountService
	user        *domain.User
	accountType domain.AccountType
	resolver    TenantResolver

	mu     sync.Mutex
	tenant *domain.Tenant
	state  domain.ResolutionState
	err    error
	diag   *domain.Diagnostics
}

// User returns the authenticated user.
func (a *Account) User() *domain.User { return a.user }

// Type returns the classified account type.
func (a *Account) Type() domain.AccountType { return a.accountType }

// Tenant returns the bound tenant, or nil.
func (a *Account) Tenant() *domain.Tenant {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tenant
}

// State returns the resolution state.
func (a *Account) State() domain.ResolutionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Bound reports whether a tenant is bound.
func (a *Account) Bound() bool { return a.Tenant() != nil }

// Err returns the first error observed.
func (a *Account) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Diagnostics returns every error observed while serving this account.
func (a *Account) Diagnostics() []domain.DiagnosticEntry { return a.diag.Entries() }

// PushError records err under source. A nil err is ignored.
func (a *Account) PushError(source string, err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
	a.diag.Push(source, err)
	a.svc.logger.Debug("account diagnostic",
		zap.String("user_id", a.user.ID),
		zap.String("source", source),
		zap.Error(err),
	)
}

// AccountList lists the candidate tenants for the user. A single candidate
// is selected automatically.
func (a *Account) AccountList(ctx context.Context) (*domain.AccountList, error) {
	ctx, span := accountTracer.Start(ctx, "Account.AccountList")
	defer span.End()

	list := &domain.AccountList{AccountType: a.accountType}
	if a.resolver == nil {
		err := &domain.ErrForbidden{Action: "role " + string(a.user.Role) + " has no tenant accounts"}
		a.PushError("account.list", err)
		return list, err
	}

	candidates, err := a.resolver.Candidates(ctx, a.user)
	if err != nil {
		a.PushError(string(a.resolver.Kind())+".candidates", err)
		return list, err
	}
	list.Accounts = candidates
	list.State = true

	if len(candidates) == 1 {
		if current := a.Tenant(); current == nil || current.ID != candidates[0].ID {
			if _, err := a.SetAccount(ctx, a.accountType, candidates[0].ID); err != nil {
				list.State = false
				return list, err
			}
		}
	}
	return list, nil
}

// SetAccount binds the session to tenantID. accountType must be served by
// the same resolver as the user's own account type.
func (a *Account) SetAccount(ctx context.Context, accountType domain.AccountType, tenantID string) (*domain.Tenant, error) {
	ctx, span := accountTracer.Start(ctx, "Account.SetAccount")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.type", string(accountType)),
		attribute.String("tenant.id", tenantID),
	)

	if tenantID == "" {
		return nil, &domain.ErrValidation{Field: "account_id", Message: "required"}
	}
	resolver, ok := a.svc.resolvers[accountType]
	if !ok {
		return nil, &domain.ErrValidation{Field: "account_type", Message: "unknown account type " + string(accountType)}
	}
	if a.resolver == nil || resolver != a.resolver {
		err := &domain.ErrForbidden{Action: "bind " + string(accountType) + " account"}
		a.PushError("account.set", err)
		return nil, err
	}

	tenant, err := resolver.Bind(ctx, a.user, tenantID)
	if err != nil {
		a.PushError(string(resolver.Kind())+".bind", err)
		return nil, err
	}

	a.mu.Lock()
	a.tenant = tenant
	a.state = domain.StateBound
	a.mu.Unlock()

	a.svc.logger.Info("account bound",
		zap.String("user_id", a.user.ID),
		zap.String("account_type", string(accountType)),
		zap.String("tenant_id", tenant.ID),
	)
	return tenant, nil
}

// AdminAccount reports whether the user is the principal of its tenant kind.
func (a *Account) AdminAccount() bool {
	if a.resolver == nil {
		return false
	}
	return a.resolver.AdminAccount(a.user)
}

// Permissions returns the user's permission keys for the bound tenant.
func (a *Account) Permissions(ctx context.Context) ([]string, error) {
	if a.resolver == nil {
		return []string{}, nil
	}
	perms, err := a.resolver.Permissions(ctx, a.user, a.Tenant())
	if err != nil {
		a.PushError(string(a.resolver.Kind())+".permissions", err)
		return nil, err
	}
	return perms, nil
}

// Members returns the owners of the bound tenant followed by its employees'
// users, each user once.
func (a *Account) Members(ctx context.Context) ([]domain.User, error) {
	ctx, span := accountTracer.Start(ctx, "Account.Members")
	defer span.End()

	tenant := a.Tenant()
	if a.resolver == nil || tenant == nil {
		return nil, &domain.ErrNoSession{UserID: a.user.ID, Kind: a.kindOrEmpty()}
	}

	var (
		owners    []domain.User
		employees []domain.Employee
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owners, err = a.resolver.Owners(gctx, tenant)
		return err
	})
	g.Go(func() error {
		var err error
		employees, err = a.resolver.Employees(gctx, tenant)
		return err
	})
	if err := g.Wait(); err != nil {
		a.PushError(string(a.resolver.Kind())+".members", err)
		return nil, err
	}

	seen := make(map[string]struct{}, len(owners)+len(employees))
	members := make([]domain.User, 0, len(owners)+len(employees))
	add := func(u domain.User) {
		if _, dup := seen[u.ID]; dup {
			return
		}
		seen[u.ID] = struct{}{}
		members = append(members, u)
	}
	for _, u := range owners {
		add(u)
	}
	for _, e := range employees {
		if e.User != nil {
			add(*e.User)
		}
	}
	return members, nil
}

// Current assembles the GET /v1/accounts/current payload.
func (a *Account) Current(ctx context.Context) (*domain.CurrentAccount, error) {
	perms, err := a.Permissions(ctx)
	if err != nil {
		return nil, err
	}
	cur := &domain.CurrentAccount{
		AccountType: a.accountType,
		State:       a.State(),
		Account:     a.Tenant(),
		Admin:       a.AdminAccount(),
		Permissions: perms,
	}
	if cur.Account == nil {
		cur.User = a.user
	}
	return cur, nil
}

func (a *Account) kindOrEmpty() domain.TenantKind {
	if a.resolver == nil {
		return ""
	}
	return a.resolver.Kind()
}
