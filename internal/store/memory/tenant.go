package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
)

// TenantStore es un repository.TenantRepository en memoria.
type TenantStore struct {
	mu   sync.RWMutex
	rows map[string]*repository.Tenant
	now  func() time.Time
}

// NewTenantStore crea un store vacío.
func NewTenantStore() *TenantStore {
	return &TenantStore{rows: make(map[string]*repository.Tenant), now: time.Now}
}

var _ repository.TenantRepository = (*TenantStore)(nil)

func (s *TenantStore) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTenant(t), nil
}

func (s *TenantStore) ExistsByOrganizationNumber(ctx context.Context, orgNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.rows {
		if t.OrganizationNumber == orgNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *TenantStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.rows {
		if t.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *TenantStore) CreateIfAbsent(ctx context.Context, input repository.CreateTenantInput) (*repository.Tenant, bool, error) {
	if input.ID == "" {
		return nil, false, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rows[input.ID]; ok {
		return cloneTenant(existing), false, nil
	}
	for _, t := range s.rows {
		if t.OrganizationNumber == input.OrganizationNumber {
			return nil, false, repository.NewConflict(repository.FieldOrganizationNumber)
		}
		if t.Email == input.Email {
			return nil, false, repository.NewConflict(repository.FieldEmail)
		}
	}

	status := input.SubscriptionStatus
	if status == "" {
		status = repository.SubscriptionInactive
	}
	now := s.now().UTC()
	t := &repository.Tenant{
		ID:                     input.ID,
		Name:                   input.Name,
		OrganizationNumber:     input.OrganizationNumber,
		Email:                  input.Email,
		SubscriptionStatus:     status,
		BillingCustomerRef:     input.BillingCustomerRef,
		BillingSubscriptionRef: input.BillingSubscriptionRef,
		Settings:               map[string]any{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	s.rows[t.ID] = t
	return cloneTenant(t), true, nil
}

func (s *TenantStore) UpdateSubscriptionByCustomer(ctx context.Context, customerRef string, status repository.SubscriptionStatus, subscriptionRef string) error {
	if customerRef == "" {
		return repository.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, t := range s.rows {
		if t.BillingCustomerRef != customerRef {
			continue
		}
		found = true
		t.SubscriptionStatus = status
		if subscriptionRef != "" {
			t.BillingSubscriptionRef = subscriptionRef
		}
		t.UpdatedAt = s.now().UTC()
	}
	if !found {
		return repository.ErrNotFound
	}
	return nil
}

func (s *TenantStore) SetAccountingCredential(ctx context.Context, tenantID string, cred *repository.AccountingCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.rows[tenantID]
	if !ok {
		return repository.ErrNotFound
	}
	if cred == nil {
		t.Accounting = nil
	} else {
		c := *cred
		t.Accounting = &c
	}
	t.UpdatedAt = s.now().UTC()
	return nil
}

func (s *TenantStore) Ping(ctx context.Context) error { return nil }

// Len retorna la cantidad de tenants.
func (s *TenantStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func cloneTenant(in *repository.Tenant) *repository.Tenant {
	out := *in
	out.Settings = copyMeta(in.Settings)
	if in.Accounting != nil {
		c := *in.Accounting
		out.Accounting = &c
	}
	return &out
}
