// Package memory implementa los repositorios de dominio en memoria.
// Respeta las mismas restricciones de unicidad que el adapter PostgreSQL;
// se usa en tests y con STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
)

type identityRow struct {
	identity     repository.Identity
	passwordHash []byte
}

// IdentityStore es un repository.IdentityRepository en memoria.
type IdentityStore struct {
	mu   sync.RWMutex
	rows map[string]*identityRow
	now  func() time.Time
}

// NewIdentityStore crea un store vacío.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{rows: make(map[string]*identityRow), now: time.Now}
}

var _ repository.IdentityRepository = (*IdentityStore)(nil)

func (s *IdentityStore) Create(ctx context.Context, input repository.CreateIdentityInput) (*repository.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, repository.ErrInvalidInput
	}

	// bcrypt.MinCost: en memoria solo importa que el password no quede en claro.
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.identity.Email == email {
			return nil, repository.NewConflict(repository.FieldEmail)
		}
	}

	row := &identityRow{
		identity: repository.Identity{
			ID:        uuid.NewString(),
			Email:     email,
			Metadata:  copyMeta(input.Metadata),
			CreatedAt: s.now().UTC(),
		},
		passwordHash: hash,
	}
	s.rows[row.identity.ID] = row
	return cloneIdentity(&row.identity), nil
}

func (s *IdentityStore) GetByID(ctx context.Context, id string) (*repository.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneIdentity(&r.identity), nil
}

func (s *IdentityStore) Confirm(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !r.identity.Confirmed {
		now := s.now().UTC()
		r.identity.Confirmed = true
		r.identity.ConfirmedAt = &now
	}
	delete(r.identity.Metadata, repository.MetaPendingPayment)
	return nil
}

func (s *IdentityStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *IdentityStore) DeletePending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.identity.Confirmed {
		return repository.ErrNotPending
	}
	delete(s.rows, id)
	return nil
}

func (s *IdentityStore) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]repository.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []repository.Identity
	for _, r := range s.rows {
		id := r.identity
		if id.Confirmed || !id.PendingPayment() || !id.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, *cloneIdentity(&id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CheckPassword compara el password contra el hash almacenado.
func (s *IdentityStore) CheckPassword(id, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[id]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(r.passwordHash, []byte(password)) == nil
}

// Len retorna la cantidad de identidades.
func (s *IdentityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// SetClock reemplaza el reloj (tests).
func (s *IdentityStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func cloneIdentity(in *repository.Identity) *repository.Identity {
	out := *in
	out.Metadata = copyMeta(in.Metadata)
	if in.ConfirmedAt != nil {
		t := *in.ConfirmedAt
		out.ConfirmedAt = &t
	}
	return &out
}

func copyMeta(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
