package supabase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/resilience"
	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/supabase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return supabase.NewClient(srv.Client(), srv.URL, "anon", "service", resilience.NewCircuitBreaker(t.Name(), nil), cfg, zap.NewNop())
}

func TestGetUser_NotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		assert.Equal(t, "eq.u-404", r.URL.Query().Get("id"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.GetUser(context.Background(), "u-404")
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestGetUserByEmail_SelectsPasswordHash(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("select"), "password_hash")
		assert.Equal(t, "eq.ann@example.com", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`[{"id":"u-1","email":"ann@example.com","role":"retailer","password_hash":"$2a$hash","created_at":"2024-05-01T10:00:00+00:00"}]`))
	})

	u, err := c.GetUserByEmail(context.Background(), "Ann@Example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, domain.RoleRetailer, u.Role)
	assert.Equal(t, "$2a$hash", u.PasswordHash)
}

func TestGetUserByEmail_Absent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	u, err := c.GetUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestListOwnedTenants_FiltersOnOwnerRelation(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/retails", r.URL.Path)
		q := r.URL.Query()
		assert.Contains(t, q.Get("select"), "retailable:retail_owners!inner(user_id)")
		assert.Equal(t, "eq.u-1", q.Get("retailable.user_id"))
		_, _ = w.Write([]byte(`[{"id":"r-1","name":"Duka One","retailable":[{"user_id":"u-1"}]}]`))
	})

	tenants, err := c.ListOwnedTenants(context.Background(), domain.TenantRetail, "u-1")
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, domain.TenantRetail, tenants[0].Kind)
	assert.Equal(t, "Duka One", tenants[0].Name)
}

func TestListEmployedTenants_TwoRoundTrips(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/employees":
			_, _ = w.Write([]byte(`[{"tenant_id":"o-2"},{"tenant_id":"o-1"}]`))
		case "/rest/v1/offices":
			assert.Equal(t, `in.("o-2","o-1")`, r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`[{"id":"o-1","name":"HQ"},{"id":"o-2","name":"Branch"}]`))
		default:
			http.NotFound(w, r)
		}
	})

	tenants, err := c.ListEmployedTenants(context.Background(), domain.TenantOffice, "u-7")
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "o-1", tenants[0].ID)
	assert.Equal(t, domain.TenantOffice, tenants[1].Kind)
}

func TestListEmployments_DecodesRolesAndUser(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"e-1","user_id":"u-7","tenant_kind":"retail","tenant_id":"r-1",
			"user":{"id":"u-7","name":"Clerk","role":"retail-employee"},
			"roles":[{"id":"ro-1","name":"cashier","permissions":["view_sales","create_sales"]}]}]`))
	})

	emps, err := c.ListEmployments(context.Background(), domain.TenantRetail, "u-7")
	require.NoError(t, err)
	require.Len(t, emps, 1)
	require.NotNil(t, emps[0].User)
	assert.Equal(t, domain.RoleRetailEmployee, emps[0].User.Role)
	assert.Equal(t, []string{"view_sales", "create_sales"}, emps[0].Roles[0].Permissions)
}

func TestReplaceSessionAccount_UpsertsOnUserID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "user_id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "retail", body["sessionable_type"])
		_, _ = w.Write([]byte(`[{"id":"s-1","user_id":"u-1","sessionable_type":"retail","sessionable_id":"r-1","token":"tok","last_used_at":"2024-05-01T10:00:00Z","expires_at":null,"created_at":"2024-05-01T10:00:00Z"}]`))
	})

	saved, err := c.ReplaceSessionAccount(context.Background(), &domain.SessionAccount{
		UserID: "u-1", SessionableType: domain.TenantRetail, SessionableID: "r-1", Token: "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", saved.ID)
	assert.Nil(t, saved.ExpiresAt)
}

func TestReplaceSessionAccount_IsNotRetried(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ReplaceSessionAccount(context.Background(), &domain.SessionAccount{UserID: "u-1"})
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetSessionAccount_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	s, err := c.GetSessionAccount(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClientErrorsDoNotOpenBreaker(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505"}`))
	})

	for i := 0; i < 6; i++ {
		_, err := c.RecordPayment(context.Background(), &domain.Payment{Gateway: "bank", Reference: "dup"})
		var ext *domain.ErrExternalService
		require.ErrorAs(t, err, &ext, "call %d", i)
	}
	assert.EqualValues(t, 6, atomic.LoadInt32(&calls))
}

func TestRecordPayment(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/payments", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "6000", body["amount"])
		assert.Equal(t, "r-1", body["tenant_id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"p-1","gateway":"dukaverse","reference":"ref-1","amount":"6000","status":"completed"}]`))
	})

	saved, err := c.RecordPayment(context.Background(), &domain.Payment{
		Gateway: "dukaverse", Reference: "ref-1", Amount: decimal.NewFromInt(6000),
		TenantKind: domain.TenantRetail, TenantID: "r-1", Status: domain.PaymentCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "p-1", saved.ID)
	assert.True(t, saved.Amount.Equal(decimal.NewFromInt(6000)))
}
