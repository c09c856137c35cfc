// Package pg implementa los repositorios de dominio sobre PostgreSQL (pgxpool).
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/security/secretbox"
)

// Config del pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Box cifra los tokens contables en reposo; nil los guarda en claro.
	Box *secretbox.Box
}

// Store agrupa el pool y los repositorios.
type Store struct {
	pool *pgxpool.Pool
	box  *secretbox.Box
}

// Connect abre el pool y verifica la conexión.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	} else {
		pcfg.MaxConns = 10
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Store{pool: pool, box: cfg.Box}, nil
}

// Pool expone el pool interno (migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Identities retorna el repositorio de identidades.
func (s *Store) Identities() repository.IdentityRepository {
	return &identityRepo{pool: s.pool}
}

// Tenants retorna el repositorio de tenants.
func (s *Store) Tenants() repository.TenantRepository {
	return &tenantRepo{pool: s.pool, box: s.box}
}

// Constraints de unicidad → campo de dominio.
var uniqueConstraints = map[string]string{
	"tenants_pkey":                    repository.FieldID,
	"tenants_organization_number_key": repository.FieldOrganizationNumber,
	"tenants_email_key":               repository.FieldEmail,
	"identities_pkey":                 repository.FieldID,
	"identities_email_key":            repository.FieldEmail,
}

// mapUniqueViolation traduce 23505 a ConflictError; el resto pasa sin tocar.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return repository.NewConflict(uniqueConstraints[pgErr.ConstraintName])
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
