package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
)

type identityRepo struct {
	pool *pgxpool.Pool
}

func (r *identityRepo) Create(ctx context.Context, input repository.CreateIdentityInput) (*repository.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, repository.ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("pg: hash password: %w", err)
	}
	meta := input.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("pg: marshal metadata: %w", err)
	}

	id := &repository.Identity{ID: uuid.NewString(), Email: email, Metadata: meta}
	const query = `
		INSERT INTO identities (id, email, password_hash, confirmed, metadata)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING created_at`
	if err := r.pool.QueryRow(ctx, query, id.ID, email, string(hash), metaJSON).Scan(&id.CreatedAt); err != nil {
		if err = mapUniqueViolation(err); repository.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("pg: insert identity: %w", err)
	}
	return id, nil
}

func (r *identityRepo) GetByID(ctx context.Context, id string) (*repository.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	const query = `
		SELECT id::text, email, confirmed, metadata, created_at, confirmed_at
		FROM identities WHERE id = $1`
	out, err := scanIdentity(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get identity: %w", err)
	}
	return out, nil
}

func (r *identityRepo) Confirm(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	const query = `
		UPDATE identities
		SET confirmed = TRUE,
		    confirmed_at = COALESCE(confirmed_at, NOW()),
		    metadata = metadata - 'pending_payment'
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("pg: confirm identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *identityRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pg: delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *identityRepo) DeletePending(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	// El predicado confirmed = FALSE serializa contra un Confirm concurrente.
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1 AND confirmed = FALSE`, id)
	if err != nil {
		return fmt.Errorf("pg: delete pending identity: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM identities WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("pg: delete pending identity: %w", err)
	}
	if exists {
		return repository.ErrNotPending
	}
	return repository.ErrNotFound
}

func (r *identityRepo) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]repository.Identity, error) {
	query := `
		SELECT id::text, email, confirmed, metadata, created_at, confirmed_at
		FROM identities
		WHERE confirmed = FALSE
		  AND (metadata->>'pending_payment')::boolean IS TRUE
		  AND created_at < $1
		ORDER BY created_at`
	args := []any{createdBefore}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pg: list pending identities: %w", err)
	}
	defer rows.Close()

	var out []repository.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan identity: %w", err)
		}
		out = append(out, *id)
	}
	return out, rows.Err()
}

func scanIdentity(row pgx.Row) (*repository.Identity, error) {
	var (
		id       repository.Identity
		metaJSON []byte
	)
	if err := row.Scan(&id.ID, &id.Email, &id.Confirmed, &metaJSON, &id.CreatedAt, &id.ConfirmedAt); err != nil {
		return nil, err
	}
	id.Metadata = map[string]any{}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &id.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &id, nil
}
