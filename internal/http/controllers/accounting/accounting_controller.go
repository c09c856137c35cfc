// Package accounting contiene los controllers de la integración contable.
package accounting

import (
	"errors"
	"net/http"
	"strings"
	"time"

	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/accounting"
	httperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/http/helpers"
	svc "github.com/dropDatabas3/tenantgate/internal/http/services/accounting"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"go.uber.org/zap"
)

// AccountingController maneja /v1/accounting/*.
type AccountingController struct {
	service svc.AccountingService
}

// NewAccountingController crea el controller.
func NewAccountingController(service svc.AccountingService) *AccountingController {
	return &AccountingController{service: service}
}

func (c *AccountingController) log(r *http.Request, op string) *zap.Logger {
	return logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("AccountingController."+op))
}

// Status maneja GET /v1/accounting/status?tenant_id=
func (c *AccountingController) Status(w http.ResponseWriter, r *http.Request) {
	if !helpers.RequireMethod(w, r, http.MethodGet) {
		return
	}
	connected, err := c.service.Status(r.Context(), helpers.TenantIDParam(r))
	if err != nil {
		c.handleError(w, err, c.log(r, "Status"))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Connected: connected})
}

// Connect maneja GET /v1/accounting/connect?tenant_id=
func (c *AccountingController) Connect(w http.ResponseWriter, r *http.Request) {
	if !helpers.RequireMethod(w, r, http.MethodGet) {
		return
	}
	authURL, err := c.service.Connect(r.Context(), helpers.TenantIDParam(r))
	if err != nil {
		c.handleError(w, err, c.log(r, "Connect"))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ConnectResponse{AuthURL: authURL})
}

// Callback maneja GET /v1/accounting/callback. Siempre responde con un redirect
// al frontend; el detalle de la falla queda en los logs.
func (c *AccountingController) Callback(w http.ResponseWriter, r *http.Request) {
	if !helpers.RequireMethod(w, r, http.MethodGet) {
		return
	}
	log := c.log(r, "Callback")

	q := r.URL.Query()
	result, err := c.service.Callback(r.Context(), dto.CallbackRequest{
		Code:             strings.TrimSpace(q.Get("code")),
		State:            strings.TrimSpace(q.Get("state")),
		Error:            strings.TrimSpace(q.Get("error")),
		ErrorDescription: strings.TrimSpace(q.Get("error_description")),
	})
	if err != nil {
		log.Warn("accounting callback failed", logger.TenantID(result.TenantID), logger.Err(err))
	} else {
		log.Info("accounting callback completed", logger.TenantID(result.TenantID))
	}

	w.Header().Set("Pragma", "no-cache")
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Disconnect maneja GET|POST /v1/accounting/disconnect?tenant_id=
func (c *AccountingController) Disconnect(w http.ResponseWriter, r *http.Request) {
	if !helpers.RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if err := c.service.Disconnect(r.Context(), helpers.TenantIDParam(r)); err != nil {
		c.handleError(w, err, c.log(r, "Disconnect"))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// Refresh maneja POST /v1/accounting/refresh?tenant_id=[&force=true]
func (c *AccountingController) Refresh(w http.ResponseWriter, r *http.Request) {
	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	res, err := c.service.EnsureFresh(r.Context(), helpers.TenantIDParam(r), force)
	if err != nil {
		c.handleError(w, err, c.log(r, "Refresh"))
		return
	}
	resp := dto.RefreshResponse{Connected: true}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt.UTC().Truncate(time.Second)
		resp.ExpiresAt = &exp
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// OAuth maneja GET|POST /v1/accounting/oauth?action=status|connect|callback|disconnect|refresh.
// Despacha a los endpoints dedicados para clientes que usan la ruta única.
func (c *AccountingController) OAuth(w http.ResponseWriter, r *http.Request) {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("action"))) {
	case "status":
		c.Status(w, r)
	case "connect":
		c.Connect(w, r)
	case "callback":
		c.Callback(w, r)
	case "disconnect":
		c.Disconnect(w, r)
	case "refresh":
		c.Refresh(w, r)
	default:
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("action must be one of status, connect, callback, disconnect, refresh"))
	}
}

func (c *AccountingController) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, svc.ErrValidation):
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("tenant_id is required"))
	case errors.Is(err, svc.ErrTenantNotFound):
		httperrors.WriteError(w, httperrors.ErrTenantNotFound)
	case errors.Is(err, svc.ErrConfiguration):
		log.Error("accounting integration misconfigured", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrConfiguration)
	case errors.Is(err, svc.ErrNotConnected):
		httperrors.WriteError(w, httperrors.ErrReconnectRequired.WithDetail("accounting integration is not connected"))
	case errors.Is(err, svc.ErrReconnectRequired):
		httperrors.WriteError(w, httperrors.ErrReconnectRequired)
	case errors.Is(err, svc.ErrExternalService):
		log.Warn("accounting provider failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrExternalService)
	default:
		log.Error("accounting operation failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
