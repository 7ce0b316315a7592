package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seeded() *Store {
	s := New()
	s.AddUser(domain.User{ID: "u-1", Email: "Owner@Duka.test", Role: domain.RoleRetailer})
	s.AddUser(domain.User{ID: "u-2", Email: "clerk@duka.test", Role: domain.RoleRetailEmployee})
	s.AddTenant(domain.Tenant{ID: "r-b", Kind: domain.TenantRetail}, "u-1")
	s.AddTenant(domain.Tenant{ID: "r-a", Kind: domain.TenantRetail}, "u-1")
	s.AddTenant(domain.Tenant{ID: "o-1", Kind: domain.TenantOffice}, "u-1")
	s.AddEmployee(domain.Employee{UserID: "u-2", TenantKind: domain.TenantRetail, TenantID: "r-a"})
	s.AddEmployee(domain.Employee{UserID: "u-2", TenantKind: domain.TenantRetail, TenantID: "r-a"})
	return s
}

func TestUsers(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	u, err := s.GetUserByEmail(ctx, "owner@duka.test")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u-1", u.ID)

	u, err = s.GetUserByEmail(ctx, "ghost@duka.test")
	assert.NoError(t, err)
	assert.Nil(t, u)

	_, err = s.GetUser(ctx, "ghost")
	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestTenantsByKindAndOrder(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	owned, err := s.ListOwnedTenants(ctx, domain.TenantRetail, "u-1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "r-a", owned[0].ID)
	assert.Equal(t, "r-b", owned[1].ID)

	employed, err := s.ListEmployedTenants(ctx, domain.TenantRetail, "u-2")
	require.NoError(t, err)
	require.Len(t, employed, 1)
	assert.Equal(t, "r-a", employed[0].ID)

	staff, err := s.ListEmployees(ctx, domain.TenantRetail, "r-a")
	require.NoError(t, err)
	require.Len(t, staff, 2)
	require.NotNil(t, staff[0].User)
	assert.Equal(t, "u-2", staff[0].User.ID)
	assert.NotEmpty(t, staff[0].ID)
}

func TestSessionsKeepOnePerUser(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	assert.ErrorAs(t, s.TouchSessionAccount(ctx, "u-1"), new(*domain.ErrNotFound))

	_, err := s.ReplaceSessionAccount(ctx, &domain.SessionAccount{UserID: "u-1", SessionableType: domain.TenantRetail, SessionableID: "r-a"})
	require.NoError(t, err)
	_, err = s.ReplaceSessionAccount(ctx, &domain.SessionAccount{UserID: "u-1", SessionableType: domain.TenantRetail, SessionableID: "r-b"})
	require.NoError(t, err)

	got, err := s.GetSessionAccount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "r-b", got.SessionableID)
	assert.True(t, got.LastUsedAt.IsZero())

	require.NoError(t, s.TouchSessionAccount(ctx, "u-1"))
	got, _ = s.GetSessionAccount(ctx, "u-1")
	assert.False(t, got.LastUsedAt.IsZero())

	s.FailSessionWrites = errors.New("down")
	_, err = s.ReplaceSessionAccount(ctx, &domain.SessionAccount{UserID: "u-1"})
	assert.EqualError(t, err, "down")
}

func TestRecordPayment(t *testing.T) {
	s := New()
	saved, err := s.RecordPayment(context.Background(), &domain.Payment{Gateway: "bank", Reference: "ref-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.Len(t, s.Payments(), 1)
}

func TestSeedDemo(t *testing.T) {
	s := New()
	require.Error(t, SeedDemo(s, ""))
	require.NoError(t, SeedDemo(s, "demo-pass"))
	ctx := context.Background()

	for email, role := range DemoUsers {
		u, err := s.GetUserByEmail(ctx, email)
		require.NoError(t, err)
		require.NotNil(t, u, email)
		assert.Equal(t, role, u.Role)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("demo-pass")))
	}

	shops, err := s.ListOwnedTenants(ctx, domain.TenantRetail, "demo-retailer")
	require.NoError(t, err)
	assert.Len(t, shops, 2)

	employed, err := s.ListEmployedTenants(ctx, domain.TenantRetail, "demo-retail-employee")
	require.NoError(t, err)
	require.Len(t, employed, 1)
	assert.Equal(t, "retail-1", employed[0].ID)

	stores, err := s.ListOwnedTenants(ctx, domain.TenantEcommerce, "demo-supplier")
	require.NoError(t, err)
	assert.Len(t, stores, 1)
}
