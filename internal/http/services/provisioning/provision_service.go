package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/tenantgate/internal/audit"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/provisioning"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/validation"
	"go.uber.org/zap"
)

// ProvisionService materializa un tenant para una identidad existente sin pasar
// por el pago (altas asistidas, migraciones). Es idempotente por id.
type ProvisionService interface {
	Provision(ctx context.Context, in dto.ProvisionRequest) (*dto.ProvisionResult, error)
}

// ProvisionDeps contiene las dependencias del service.
type ProvisionDeps struct {
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Metrics    *metrics.Metrics
}

// Provision errors (sentinel)
var (
	ErrValidation       = errors.New("missing or invalid fields")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrConflict         = errors.New("organization number or email already belongs to another tenant")
)

type provisionService struct {
	deps ProvisionDeps
}

// NewProvisionService crea el service de aprovisionamiento directo.
func NewProvisionService(deps ProvisionDeps) ProvisionService {
	return &provisionService{deps: deps}
}

func (s *provisionService) Provision(ctx context.Context, in dto.ProvisionRequest) (*dto.ProvisionResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("provisioning"),
		logger.Op("Provision"),
	)

	in.UserID = strings.TrimSpace(in.UserID)
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	in.OrganizationNumber = strings.TrimSpace(in.OrganizationNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	log = log.With(logger.IdentityID(in.UserID))

	if _, err := s.deps.Identities.GetByID(ctx, in.UserID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("provision: lookup identity: %w", err)
	}

	existing, err := s.deps.Tenants.GetByID(ctx, in.UserID)
	switch {
	case err == nil:
		log.Info("tenant already exists", logger.TenantID(existing.ID))
		return &dto.ProvisionResult{Tenant: ToTenantDTO(existing)}, nil
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("provision: lookup tenant: %w", err)
	}

	tenant, created, err := s.deps.Tenants.CreateIfAbsent(ctx, repository.CreateTenantInput{
		ID:                 in.UserID,
		Name:               in.OrganizationName,
		OrganizationNumber: in.OrganizationNumber,
		Email:              in.Email,
		SubscriptionStatus: repository.SubscriptionTrialing,
	})
	if err != nil {
		if repository.IsConflict(err) {
			log.Info("provision rejected by uniqueness constraint", zap.String("field", repository.ConflictField(err)))
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, fmt.Errorf("provision: create tenant: %w", err)
	}

	if created {
		s.deps.Metrics.TenantCreated("provision")
		audit.Log(ctx, audit.EventTenantProvisioned,
			logger.TenantID(tenant.ID),
			logger.OrgNumber(tenant.OrganizationNumber),
			zap.String("source", "provision"),
		)
		log.Info("tenant provisioned", logger.TenantID(tenant.ID))
	}
	return &dto.ProvisionResult{Tenant: ToTenantDTO(tenant), Created: created}, nil
}

// ToTenantDTO arma la vista pública de un tenant (sin tokens).
func ToTenantDTO(t *repository.Tenant) dto.TenantDTO {
	return dto.TenantDTO{
		ID:                  t.ID,
		Name:                t.Name,
		OrganizationNumber:  t.OrganizationNumber,
		Email:               t.Email,
		SubscriptionStatus:  string(t.SubscriptionStatus),
		AccountingConnected: t.Accounting.Connected(),
		CreatedAt:           t.CreatedAt,
	}
}
