package repository

import (
	"context"
	"time"
)

// Claves de metadata de una identidad pendiente.
const (
	MetaOrganizationName   = "organization_name"
	MetaOrganizationNumber = "organization_number"
	MetaPendingPayment     = "pending_payment"
)

// Identity es una identidad de login. Nace sin confirmar (pending_payment=true)
// y termina confirmada (pago completado) o eliminada (checkout expirado).
type Identity struct {
	ID          string
	Email       string
	Confirmed   bool
	Metadata    map[string]any
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// PendingPayment indica si la identidad sigue esperando el pago.
func (i *Identity) PendingPayment() bool {
	if i == nil || i.Metadata == nil {
		return false
	}
	v, _ := i.Metadata[MetaPendingPayment].(bool)
	return v
}

// MetaString lee una clave string de la metadata.
func (i *Identity) MetaString(key string) string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	v, _ := i.Metadata[key].(string)
	return v
}

// CreateIdentityInput contiene los datos para crear una identidad pendiente.
// Password solo se usa para el hash; nunca se copia a Metadata.
type CreateIdentityInput struct {
	Email    string
	Password string
	Metadata map[string]any
}

// IdentityRepository define operaciones sobre identidades de login.
type IdentityRepository interface {
	// Create crea una identidad sin confirmar.
	// Retorna ConflictError{Field: "email"} si el email ya existe.
	Create(ctx context.Context, input CreateIdentityInput) (*Identity, error)

	// GetByID busca una identidad por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Identity, error)

	// Confirm marca la identidad como confirmada y limpia pending_payment.
	// Es idempotente. Retorna ErrNotFound si no existe.
	Confirm(ctx context.Context, id string) error

	// Delete elimina la identidad.
	// Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, id string) error

	// DeletePending elimina la identidad solo si sigue sin confirmar. El chequeo
	// y el borrado son atómicos respecto de Confirm.
	// Retorna ErrNotFound si no existe y ErrNotPending si ya está confirmada.
	DeletePending(ctx context.Context, id string) error

	// ListPending lista identidades sin confirmar con pending_payment=true
	// creadas antes de createdBefore. limit <= 0 significa sin límite.
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]Identity, error)
}
