// Package provisioning contiene el controller de aprovisionamiento directo.
package provisioning

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/provisioning"
	httperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/http/helpers"
	svc "github.com/dropDatabas3/tenantgate/internal/http/services/provisioning"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/validation"
)

const maxBodySize = 16 * 1024

// ProvisionController maneja POST /v1/tenants/provision.
type ProvisionController struct {
	service svc.ProvisionService
}

// NewProvisionController crea el controller.
func NewProvisionController(service svc.ProvisionService) *ProvisionController {
	return &ProvisionController{service: service}
}

// Provision maneja POST /v1/tenants/provision
func (c *ProvisionController) Provision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ProvisionController.Provision"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.ProvisionRequest
	if !helpers.ReadJSON(w, r, &req, maxBodySize) {
		return
	}

	result, err := c.service.Provision(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrValidation):
			httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("invalid fields: "+strings.Join(validation.Fields(err), ", ")))
		case errors.Is(err, svc.ErrIdentityNotFound):
			httperrors.WriteError(w, httperrors.ErrIdentityNotFound)
		case errors.Is(err, svc.ErrConflict):
			httperrors.WriteError(w, conflictError(err))
		default:
			log.Error("provision failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	if result.Created {
		log.Info("tenant provisioned", logger.TenantID(result.Tenant.ID))
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ProvisionResponse{Success: true, Tenant: result.Tenant})
}

func conflictError(err error) *httperrors.AppError {
	switch repository.ConflictField(err) {
	case repository.FieldOrganizationNumber:
		return httperrors.ErrConflict.WithDetail("organization_number already registered")
	case repository.FieldEmail:
		return httperrors.ErrConflict.WithDetail("email already registered")
	default:
		return httperrors.ErrConflict
	}
}
