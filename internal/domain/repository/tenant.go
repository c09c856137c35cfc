package repository

import (
	"context"
	"time"
)

// SubscriptionStatus es el estado de la suscripción de un tenant.
type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// Valid indica si el estado es uno de los conocidos.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrialing, SubscriptionActive, SubscriptionPastDue,
		SubscriptionCanceled, SubscriptionInactive:
		return true
	}
	return false
}

// AccountingCredential es el bundle OAuth del proveedor contable.
type AccountingCredential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Connected es true si ambos tokens están presentes.
func (c *AccountingCredential) Connected() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != ""
}

// Tenant representa una organización cliente.
// Su ID siempre es el ID de una identidad confirmada.
type Tenant struct {
	ID                     string
	Name                   string
	OrganizationNumber     string
	Email                  string
	SubscriptionStatus     SubscriptionStatus
	BillingCustomerRef     string
	BillingSubscriptionRef string
	Accounting             *AccountingCredential
	Settings               map[string]any
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// CreateTenantInput contiene los datos para materializar un tenant.
type CreateTenantInput struct {
	ID                     string
	Name                   string
	OrganizationNumber     string
	Email                  string
	SubscriptionStatus     SubscriptionStatus
	BillingCustomerRef     string
	BillingSubscriptionRef string
}

// TenantRepository define operaciones sobre tenants. Los tenants nunca se eliminan.
type TenantRepository interface {
	// GetByID busca un tenant por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// ExistsByOrganizationNumber es un pre-chequeo (advisory); la restricción real
	// la aplica CreateIfAbsent.
	ExistsByOrganizationNumber(ctx context.Context, orgNumber string) (bool, error)

	// ExistsByEmail es un pre-chequeo (advisory).
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// CreateIfAbsent inserta el tenant si no existe otro con el mismo ID.
	// Si ya existe retorna el existente con created=false y sin modificarlo.
	// Retorna ConflictError si organization_number o email ya pertenecen a otro tenant.
	CreateIfAbsent(ctx context.Context, input CreateTenantInput) (t *Tenant, created bool, err error)

	// UpdateSubscriptionByCustomer actualiza el estado de suscripción de los tenants
	// con esa referencia de cliente. subscriptionRef vacío no pisa el valor actual.
	// Retorna ErrNotFound si ningún tenant tiene esa referencia.
	UpdateSubscriptionByCustomer(ctx context.Context, customerRef string, status SubscriptionStatus, subscriptionRef string) error

	// SetAccountingCredential reemplaza el bundle contable; nil lo borra.
	// Retorna ErrNotFound si el tenant no existe.
	SetAccountingCredential(ctx context.Context, tenantID string, cred *AccountingCredential) error

	// Ping verifica la conectividad con el storage.
	Ping(ctx context.Context) error
}
