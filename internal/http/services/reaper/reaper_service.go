package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/audit"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"go.uber.org/zap"
)

// ReaperService elimina identidades que quedaron esperando un pago que nunca
// llegó (checkout abandonado sin evento expired). Lo dispara un operador.
type ReaperService interface {
	Sweep(ctx context.Context, in SweepRequest) (*Report, error)
}

// SweepRequest parámetros de una pasada.
type SweepRequest struct {
	// OlderThan: antigüedad mínima de la identidad pendiente. Obligatorio.
	OlderThan time.Duration
	DryRun    bool
	// Limit acota la pasada; <= 0 sin límite.
	Limit int
}

// Report resume una pasada.
type Report struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	// Skipped: identidades con tenant o confirmadas durante la pasada.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	// Candidates lista los ids que se borraron (o se borrarían en dry-run).
	Candidates []string `json:"candidates"`
}

// ReaperDeps contiene las dependencias del service.
type ReaperDeps struct {
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Reaper errors (sentinel)
var (
	ErrInvalidAge = errors.New("older-than must be a positive duration")
)

type reaperService struct {
	deps ReaperDeps
}

// NewReaperService crea el reaper.
func NewReaperService(deps ReaperDeps) ReaperService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &reaperService{deps: deps}
}

func (s *reaperService) Sweep(ctx context.Context, in SweepRequest) (*Report, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("reaper"),
		logger.Op("Sweep"),
		zap.Duration("older_than", in.OlderThan),
		logger.Bool("dry_run", in.DryRun),
	)
	if in.OlderThan <= 0 {
		return nil, ErrInvalidAge
	}

	cutoff := s.deps.Now().Add(-in.OlderThan)
	pending, err := s.deps.Identities.ListPending(ctx, cutoff, in.Limit)
	if err != nil {
		return nil, fmt.Errorf("reaper: list pending: %w", err)
	}

	rep := &Report{Scanned: len(pending)}
	for _, ident := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		l := log.With(logger.IdentityID(ident.ID))

		_, err := s.deps.Tenants.GetByID(ctx, ident.ID)
		switch {
		case err == nil:
			rep.Skipped++
			l.Warn("pending identity already has a tenant; skipped")
			continue
		case !repository.IsNotFound(err):
			rep.Failed++
			l.Error("tenant lookup failed", logger.Err(err))
			continue
		}

		if in.DryRun {
			rep.Candidates = append(rep.Candidates, ident.ID)
			continue
		}
		// El pago pudo confirmar la identidad entre el listado y este punto:
		// DeletePending no borra identidades confirmadas.
		err = s.deps.Identities.DeletePending(ctx, ident.ID)
		switch {
		case repository.IsNotPending(err):
			rep.Skipped++
			l.Warn("identity confirmed during sweep; skipped")
			continue
		case repository.IsNotFound(err):
			rep.Skipped++
			l.Debug("identity already gone; skipped")
			continue
		case err != nil:
			rep.Failed++
			l.Error("delete pending identity failed", logger.Err(err))
			continue
		}
		rep.Candidates = append(rep.Candidates, ident.ID)
		rep.Deleted++
		audit.Log(ctx, audit.EventPendingReaped, logger.IdentityID(ident.ID), zap.Time("created_at", ident.CreatedAt))
	}

	s.deps.Metrics.Reaped("deleted", rep.Deleted)
	s.deps.Metrics.Reaped("failed", rep.Failed)
	log.Info("reaper sweep finished",
		logger.Int("scanned", rep.Scanned),
		logger.Int("deleted", rep.Deleted),
		logger.Int("skipped", rep.Skipped),
		logger.Int("failed", rep.Failed),
	)
	return rep, nil
}
