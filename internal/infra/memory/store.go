// Package memory provides an in-process implementation of every store port.
// It backs local development when Supabase is not configured, and the tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/google/uuid"
)

type tenantKey struct {
	kind domain.TenantKind
	id   string
}

// Store is a thread-safe in-memory directory, tenant and session store.
type Store struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	tenants   map[tenantKey]domain.Tenant
	owners    map[tenantKey][]string
	employees []domain.Employee
	sessions  map[string]domain.SessionAccount
	payments  []domain.Payment

	// FailSessionWrites makes ReplaceSessionAccount fail, for tests.
	FailSessionWrites error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		tenants:  make(map[tenantKey]domain.Tenant),
		owners:   make(map[tenantKey][]string),
		sessions: make(map[string]domain.SessionAccount),
	}
}

// AddUser registers u.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddTenant registers t owned by ownerIDs.
func (s *Store) AddTenant(t domain.Tenant, ownerIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantKey{t.Kind, t.ID}
	s.tenants[k] = t
	s.owners[k] = append(s.owners[k], ownerIDs...)
}

// AddEmployee registers an employment record.
func (s *Store) AddEmployee(e domain.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.employees = append(s.employees, e)
}

// Payments returns every recorded payment.
func (s *Store) Payments() []domain.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Payment, len(s.payments))
	copy(out, s.payments)
	return out
}

// --- UserDirectory ---

func (s *Store) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

// --- TenantStore ---

func (s *Store) GetTenant(_ context.Context, kind domain.TenantKind, tenantID string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantKey{kind, tenantID}]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: string(kind), ID: tenantID}
	}
	return &t, nil
}

func (s *Store) ListOwnedTenants(_ context.Context, kind domain.TenantKind, userID string) ([]domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Tenant
	for k, ids := range s.owners {
		if k.kind != kind || !contains(ids, userID) {
			continue
		}
		out = append(out, s.tenants[k])
	}
	sortTenants(out)
	return out, nil
}

func (s *Store) ListEmployedTenants(_ context.Context, kind domain.TenantKind, userID string) ([]domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []domain.Tenant
	for _, e := range s.employees {
		if e.TenantKind != kind || e.UserID != userID {
			continue
		}
		if _, dup := seen[e.TenantID]; dup {
			continue
		}
		if t, ok := s.tenants[tenantKey{kind, e.TenantID}]; ok {
			seen[e.TenantID] = struct{}{}
			out = append(out, t)
		}
	}
	sortTenants(out)
	return out, nil
}

func (s *Store) ListOwners(_ context.Context, kind domain.TenantKind, tenantID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for _, id := range s.owners[tenantKey{kind, tenantID}] {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) ListEmployees(_ context.Context, kind domain.TenantKind, tenantID string) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Employee
	for _, e := range s.employees {
		if e.TenantKind == kind && e.TenantID == tenantID {
			out = append(out, s.withUser(e))
		}
	}
	return out, nil
}

func (s *Store) ListEmployments(_ context.Context, kind domain.TenantKind, userID string) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Employee
	for _, e := range s.employees {
		if e.TenantKind == kind && e.UserID == userID {
			out = append(out, s.withUser(e))
		}
	}
	return out, nil
}

func (s *Store) withUser(e domain.Employee) domain.Employee {
	if e.User == nil {
		if u, ok := s.users[e.UserID]; ok {
			e.User = &u
		}
	}
	return e
}

// --- SessionStore ---

func (s *Store) GetSessionAccount(_ context.Context, userID string) (*domain.SessionAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sa, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &sa, nil
}

func (s *Store) ReplaceSessionAccount(_ context.Context, session *domain.SessionAccount) (*domain.SessionAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSessionWrites != nil {
		return nil, s.FailSessionWrites
	}
	sa := *session
	if sa.ID == "" {
		sa.ID = uuid.NewString()
	}
	if sa.CreatedAt.IsZero() {
		sa.CreatedAt = time.Now().UTC()
	}
	s.sessions[sa.UserID] = sa
	return &sa, nil
}

func (s *Store) TouchSessionAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa, ok := s.sessions[userID]
	if !ok {
		return &domain.ErrNotFound{Resource: "session_account", ID: userID}
	}
	sa.LastUsedAt = time.Now().UTC()
	s.sessions[userID] = sa
	return nil
}

// --- PaymentLedger ---

func (s *Store) RecordPayment(_ context.Context, payment *domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *payment
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.payments = append(s.payments, p)
	return &p, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortTenants(ts []domain.Tenant) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
