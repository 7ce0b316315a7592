package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/handler"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/gateway"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/memory"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/observability"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/resilience"
	"github.com/boddenberg/dukaverse-accounts-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_OpenStoreBreaker(t *testing.T) {
	breakers := resilience.NewBreakers(zap.NewNop())
	cb := breakers.Get("supabase")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("down") })
	}
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), breakers, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, map[string]any{"supabase": "open"}, health["breakers"])
}

// --- API fixture ---

type fixture struct {
	router http.Handler
	auth   *service.AuthService
	store  *memory.Store
}

var (
	solo     = domain.User{ID: "u-solo", Name: "Solo Retailer", Email: "solo@duka.test", Role: domain.RoleRetailer}
	multi    = domain.User{ID: "u-multi", Name: "Multi Retailer", Email: "multi@duka.test", Role: domain.RoleRetailer}
	clerk    = domain.User{ID: "u-clerk", Name: "Clerk", Email: "clerk@duka.test", Role: domain.RoleRetailEmployee}
	supplier = domain.User{ID: "u-supplier", Name: "Supplier", Email: "supplier@duka.test", Role: domain.RoleSupplier}
	root     = domain.User{ID: "u-root", Name: "Root", Email: "root@duka.test", Role: domain.RoleSuperAdmin}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memory.New()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	withHash := solo
	withHash.PasswordHash = string(hash)

	for _, u := range []domain.User{withHash, multi, clerk, supplier, root} {
		store.AddUser(u)
	}
	store.AddTenant(domain.Tenant{ID: "r-solo", Kind: domain.TenantRetail, Name: "Solo Shop"}, solo.ID)
	store.AddTenant(domain.Tenant{ID: "r-a", Kind: domain.TenantRetail, Name: "Shop A"}, multi.ID)
	store.AddTenant(domain.Tenant{ID: "r-b", Kind: domain.TenantRetail, Name: "Shop B"}, multi.ID)
	store.AddEmployee(domain.Employee{
		UserID: clerk.ID, TenantKind: domain.TenantRetail, TenantID: "r-solo",
		Roles: []domain.EmployeeRole{{ID: "cashier", Name: "Cashier", Permissions: []string{"create_sales", "view_dashboard", "unknown_key"}}},
	})

	cfg := service.ResolverConfig{SessionTTL: time.Hour}
	accounts := service.NewAccountService(
		service.NewOfficeResolver(store, store, cfg, logger),
		service.NewRetailResolver(store, store, cfg, logger),
		service.NewEcommerceResolver(store, store, cfg, logger),
		metrics, logger,
	)
	payments := service.NewPaymentService(metrics, logger,
		gateway.NewDukaVerse(store, "KES", logger),
		gateway.NewBank(store, "KES", logger),
	)
	auth := service.NewAuthService(store, "test-secret", 15*time.Minute, logger)

	return &fixture{
		router: handler.NewRouter(accounts, payments, auth, metrics, resilience.NewBreakers(logger), logger),
		auth:   auth,
		store:  store,
	}
}

func (f *fixture) do(t *testing.T, user *domain.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != nil {
		token, err := f.auth.SignAccessToken(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, nil, http.MethodPost, "/v1/auth/login", domain.LoginRequest{Email: "SOLO@duka.test", Password: "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[domain.LoginResponse](t, rec)
	assert.Equal(t, solo.ID, resp.UserID)
	assert.NotEmpty(t, resp.AccessToken)

	rec = f.do(t, nil, http.MethodPost, "/v1/auth/login", domain.LoginRequest{Email: "solo@duka.test", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccounts_RequireToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, nil, http.MethodGet, "/v1/accounts/current", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccounts_TokenForDeletedUserIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	ghost := &domain.User{ID: "u-gone", Role: domain.RoleRetailer}
	rec := f.do(t, ghost, http.MethodGet, "/v1/accounts/current", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrent_SingleCandidateAutoBinds(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, &solo, http.MethodGet, "/v1/accounts/current", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cur := decode[domain.CurrentAccount](t, rec)
	assert.Equal(t, domain.RetailAccountType, cur.AccountType)
	assert.Equal(t, domain.StateAutoBound, cur.State)
	require.NotNil(t, cur.Account)
	assert.Equal(t, "r-solo", cur.Account.ID)
	assert.True(t, cur.Admin)
	assert.Equal(t, domain.EmployeePermissions, cur.Permissions)

	// The binding persists: the next request is plainly bound.
	rec = f.do(t, &solo, http.MethodGet, "/v1/accounts/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StateBound, decode[domain.CurrentAccount](t, rec).State)
}

func TestCurrent_MultipleCandidatesNeedSelection(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, &multi, http.MethodGet, "/v1/accounts/current", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, &multi, http.MethodGet, "/v1/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[domain.AccountList](t, rec)
	assert.True(t, list.State)
	require.Len(t, list.Accounts, 2)
	assert.Equal(t, "r-a", list.Accounts[0].ID)

	rec = f.do(t, &multi, http.MethodPut, "/v1/accounts/session", domain.SetAccountRequest{AccountType: domain.RetailAccountType, AccountID: "r-b"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "r-b", decode[domain.CurrentAccount](t, rec).Account.ID)

	rec = f.do(t, &multi, http.MethodGet, "/v1/accounts/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cur := decode[domain.CurrentAccount](t, rec)
	assert.Equal(t, domain.StateBound, cur.State)
	assert.Equal(t, "r-b", cur.Account.ID)
}

func TestSetAccount_ForeignTenantForbidden(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, &multi, http.MethodPut, "/v1/accounts/session", domain.SetAccountRequest{AccountID: "r-solo"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetAccount_OtherAccountTypeForbidden(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, &multi, http.MethodPut, "/v1/accounts/session", domain.SetAccountRequest{AccountType: domain.DukaverseAccountType, AccountID: "o-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAccounts_NoCandidatesIsNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, &supplier, http.MethodGet, "/v1/accounts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, &supplier, http.MethodGet, "/v1/accounts/current", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListAccounts_UnclassifiedRoleForbidden(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, &root, http.MethodGet, "/v1/accounts", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPermissions_EmployeeGetsFilteredRoleKeys(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, &clerk, http.MethodGet, "/v1/accounts/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Admin       bool     `json:"admin"`
		Permissions []string `json:"permissions"`
	}](t, rec)
	assert.False(t, body.Admin)
	assert.Equal(t, []string{"view_dashboard", "create_sales"}, body.Permissions)
}

func TestMembers_OwnersThenEmployees(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, &solo, http.MethodGet, "/v1/accounts/members", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Members []domain.User `json:"members"`
		Total   int           `json:"total"`
	}](t, rec)
	require.Equal(t, 2, body.Total)
	assert.Equal(t, solo.ID, body.Members[0].ID)
	assert.Equal(t, clerk.ID, body.Members[1].ID)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, &solo, http.MethodPost, "/v1/billing/quote", map[string]any{"amount": 6000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	q := decode[domain.Quote](t, rec)
	assert.Equal(t, "150", q.Discount.String())
	assert.Equal(t, "5850", q.ChargedAmount.String())
	assert.Equal(t, "150", q.Charge.String())
}

func TestPayments_DepositThroughLedger(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, &solo, http.MethodPost, "/v1/payments/dukaverse/deposit", map[string]any{"amount": "900", "reference": "dep-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[domain.PaymentResult](t, rec)
	assert.Equal(t, domain.PaymentCompleted, res.Status)
	assert.Equal(t, "dep-1", res.Reference)

	payments := f.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, solo.ID, payments[0].UserID)
	assert.Equal(t, "r-solo", payments[0].TenantID)
}

func TestPayments_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, &solo, http.MethodPost, "/v1/payments/bank/withdraw", map[string]any{"amount": 100})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = f.do(t, &solo, http.MethodPost, "/v1/payments/nope/pay", map[string]any{"amount": 100})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, &solo, http.MethodPost, "/v1/payments/bank/pay", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, &solo, http.MethodPost, "/v1/payments/bank/register-urls", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAccountMetricsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.do(t, &solo, http.MethodGet, "/v1/accounts/current", nil)
	f.do(t, &multi, http.MethodGet, "/v1/accounts/current", nil)

	rec := f.do(t, nil, http.MethodGet, "/v1/metrics/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[observability.ResolutionSnapshot](t, rec)
	assert.EqualValues(t, 1, snap.AutoBound)
	assert.EqualValues(t, 1, snap.Unbound)
	assert.InDelta(t, 0.5, snap.BindRate, 1e-9)
}
