// Package signup contiene el controller del alta con pago.
package signup

import (
	"errors"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/signup"
	httperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/http/helpers"
	svc "github.com/dropDatabas3/tenantgate/internal/http/services/signup"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/validation"
	"go.uber.org/zap"
)

const maxBodySize = 32 * 1024

// SignupController maneja POST /v1/signup.
type SignupController struct {
	service svc.SignupService
}

// NewSignupController crea el controller.
func NewSignupController(service svc.SignupService) *SignupController {
	return &SignupController{service: service}
}

// Signup maneja POST /v1/signup
func (c *SignupController) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignupController.Signup"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.SignupRequest
	if !helpers.ReadJSON(w, r, &req, maxBodySize) {
		return
	}

	result, err := c.service.Initiate(ctx, req)
	if err != nil {
		c.handleError(w, err, log)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.SignupResponse{CheckoutURL: result.CheckoutURL})
}

func (c *SignupController) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, svc.ErrUnknownPlan):
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("unknown plan_id"))
	case errors.Is(err, svc.ErrValidation):
		detail := "organization_name, organization_number, email, password, plan_id, success_url and cancel_url are required"
		if fields := validation.Fields(err); len(fields) > 0 {
			detail = "invalid fields: " + strings.Join(fields, ", ")
		}
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail(detail))
	case errors.Is(err, svc.ErrOrganizationTaken):
		httperrors.WriteError(w, httperrors.ErrOrganizationTaken)
	case errors.Is(err, svc.ErrEmailTaken):
		httperrors.WriteError(w, httperrors.ErrEmailTaken)
	case errors.Is(err, svc.ErrPaymentSessionCreationFailed):
		log.Error("payment session creation failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrPaymentUnavailable)
	case errors.Is(err, svc.ErrIdentityCreationFailed):
		log.Error("identity creation failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithDetail("could not create account"))
	default:
		log.Error("signup failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
