package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/security/secretbox"
)

type tenantRepo struct {
	pool *pgxpool.Pool
	box  *secretbox.Box
}

const tenantColumns = `
	id, name, organization_number, email, subscription_status,
	COALESCE(billing_customer_ref, ''), COALESCE(billing_subscription_ref, ''),
	COALESCE(accounting_access_token, ''), COALESCE(accounting_refresh_token, ''), accounting_expires_at,
	settings, created_at, updated_at`

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	t, err := r.scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get tenant: %w", err)
	}
	return t, nil
}

func (r *tenantRepo) ExistsByOrganizationNumber(ctx context.Context, orgNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE organization_number = $1)`, orgNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg: tenant exists by org number: %w", err)
	}
	return exists, nil
}

func (r *tenantRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg: tenant exists by email: %w", err)
	}
	return exists, nil
}

func (r *tenantRepo) CreateIfAbsent(ctx context.Context, in repository.CreateTenantInput) (*repository.Tenant, bool, error) {
	if in.ID == "" {
		return nil, false, repository.ErrInvalidInput
	}
	status := in.SubscriptionStatus
	if status == "" {
		status = repository.SubscriptionInactive
	}

	// ON CONFLICT solo sobre la PK: un duplicado de org/email sigue fallando con 23505.
	const query = `
		INSERT INTO tenants (id, name, organization_number, email, subscription_status,
		                     billing_customer_ref, billing_subscription_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + tenantColumns

	t, err := r.scanTenant(r.pool.QueryRow(ctx, query,
		in.ID, in.Name, in.OrganizationNumber, in.Email, string(status),
		nullIfEmpty(in.BillingCustomerRef), nullIfEmpty(in.BillingSubscriptionRef),
	))
	switch {
	case err == nil:
		return t, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, gerr := r.GetByID(ctx, in.ID)
		if gerr != nil {
			return nil, false, gerr
		}
		return existing, false, nil
	default:
		if err = mapUniqueViolation(err); repository.IsConflict(err) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("pg: insert tenant: %w", err)
	}
}

func (r *tenantRepo) UpdateSubscriptionByCustomer(ctx context.Context, customerRef string, status repository.SubscriptionStatus, subscriptionRef string) error {
	if customerRef == "" {
		return repository.ErrNotFound
	}
	const query = `
		UPDATE tenants
		SET subscription_status = $2,
		    billing_subscription_ref = COALESCE($3, billing_subscription_ref),
		    updated_at = NOW()
		WHERE billing_customer_ref = $1`
	tag, err := r.pool.Exec(ctx, query, customerRef, string(status), nullIfEmpty(subscriptionRef))
	if err != nil {
		return fmt.Errorf("pg: update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *tenantRepo) SetAccountingCredential(ctx context.Context, tenantID string, cred *repository.AccountingCredential) error {
	var access, refresh *string
	var expires *time.Time
	if cred != nil {
		a, err := r.seal(cred.AccessToken)
		if err != nil {
			return err
		}
		rt, err := r.seal(cred.RefreshToken)
		if err != nil {
			return err
		}
		access, refresh = nullIfEmpty(a), nullIfEmpty(rt)
		if !cred.ExpiresAt.IsZero() {
			e := cred.ExpiresAt.UTC()
			expires = &e
		}
	}

	const query = `
		UPDATE tenants
		SET accounting_access_token = $2,
		    accounting_refresh_token = $3,
		    accounting_expires_at = $4,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, tenantID, access, refresh, expires)
	if err != nil {
		return fmt.Errorf("pg: set accounting credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *tenantRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *tenantRepo) scanTenant(row pgx.Row) (*repository.Tenant, error) {
	var (
		t                       repository.Tenant
		status, access, refresh string
		expires                 *time.Time
		settingsJSON            []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.OrganizationNumber, &t.Email, &status,
		&t.BillingCustomerRef, &t.BillingSubscriptionRef,
		&access, &refresh, &expires,
		&settingsJSON, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SubscriptionStatus = repository.SubscriptionStatus(status)
	t.Settings = map[string]any{}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &t.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}

	if access != "" || refresh != "" {
		cred := &repository.AccountingCredential{}
		if cred.AccessToken, err = r.open(access); err != nil {
			return nil, err
		}
		if cred.RefreshToken, err = r.open(refresh); err != nil {
			return nil, err
		}
		if expires != nil {
			cred.ExpiresAt = *expires
		}
		t.Accounting = cred
	}
	return &t, nil
}

func (r *tenantRepo) seal(v string) (string, error) {
	if r.box == nil || v == "" {
		return v, nil
	}
	ct, err := r.box.Encrypt(v)
	if err != nil {
		return "", fmt.Errorf("pg: encrypt credential: %w", err)
	}
	return ct, nil
}

// open descifra valores sellados; valores en claro (previos a configurar la clave) pasan tal cual.
func (r *tenantRepo) open(v string) (string, error) {
	if r.box == nil || v == "" || !secretbox.IsSealed(v) {
		return v, nil
	}
	pt, err := r.box.Decrypt(v)
	if err != nil {
		return "", fmt.Errorf("pg: decrypt credential: %w", err)
	}
	return pt, nil
}
