package accounting

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	provider "github.com/dropDatabas3/tenantgate/internal/accounting"
	"github.com/dropDatabas3/tenantgate/internal/audit"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/email"
	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/accounting"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/security/statetoken"
	"go.uber.org/zap"
)

// AccountingService gestiona el ciclo de vida de la credencial OAuth del
// proveedor contable de un tenant: authorize → exchange → store → refresh →
// disconnect.
type AccountingService interface {
	Status(ctx context.Context, tenantID string) (bool, error)
	Connect(ctx context.Context, tenantID string) (string, error)
	// Callback siempre devuelve un resultado con RedirectURL; err describe la
	// falla (para logs) cuando el redirect es de error.
	Callback(ctx context.Context, in dto.CallbackRequest) (*dto.CallbackResult, error)
	Disconnect(ctx context.Context, tenantID string) error
	// AccessToken devuelve un access token vigente, refrescando si hace falta.
	AccessToken(ctx context.Context, tenantID string) (string, error)
	// EnsureFresh refresca si el token vence dentro de la ventana (o siempre con force).
	EnsureFresh(ctx context.Context, tenantID string, force bool) (*dto.RefreshResult, error)
}

// ReconnectNotifier avisa al tenant que debe reconectar la integración.
type ReconnectNotifier interface {
	NotifyReconnect(ctx context.Context, notice email.ReconnectNotice) error
}

// AccountingDeps contiene las dependencias del service.
type AccountingDeps struct {
	Tenants  repository.TenantRepository
	Provider provider.Provider
	// State firma el parámetro state. nil deja connect/callback sin configurar.
	State    *statetoken.Signer
	Notifier ReconnectNotifier
	// SiteURL es el frontend al que vuelve el callback.
	SiteURL string
	// LeadWindow: margen antes del vencimiento en el que ya se refresca.
	LeadWindow time.Duration
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// DefaultLeadWindow margen de refresh por defecto.
const DefaultLeadWindow = 5 * time.Minute

// refreshTimeout acota el refresh compartido por singleflight.
const refreshTimeout = 30 * time.Second

// Accounting errors (sentinel)
var (
	ErrValidation        = errors.New("tenant_id is required")
	ErrConfiguration     = errors.New("accounting integration not configured")
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrState             = errors.New("invalid or expired state")
	ErrProviderDenied    = errors.New("authorization denied at provider")
	ErrExternalService   = errors.New("accounting provider request failed")
	ErrNotConnected      = errors.New("accounting integration not connected")
	ErrReconnectRequired = errors.New("accounting credential revoked, reconnect required")
)

// Códigos del redirect de error del callback.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidState   = "invalid_state"
	CodeExchangeFailed = "exchange_failed"
	CodeTenantNotFound = "tenant_not_found"
	CodeConfiguration  = "configuration_error"
	CodeServerError    = "server_error"
)

const integrationsPath = "/settings/integrations"

// Los códigos de error del proveedor se reenvían al frontend solo si son tokens simples.
var providerCodeRe = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

type accountingService struct {
	deps  AccountingDeps
	group singleflight.Group
}

// NewAccountingService crea el service de la integración contable.
func NewAccountingService(deps AccountingDeps) AccountingService {
	if deps.LeadWindow <= 0 {
		deps.LeadWindow = DefaultLeadWindow
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = email.LogNotifier{}
	}
	return &accountingService{deps: deps}
}

func (s *accountingService) opLog(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("accounting"),
		logger.Op(op),
	)
}

func (s *accountingService) tenant(ctx context.Context, tenantID string) (*repository.Tenant, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrValidation
	}
	t, err := s.deps.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("accounting: load tenant: %w", err)
	}
	return t, nil
}

func (s *accountingService) Status(ctx context.Context, tenantID string) (bool, error) {
	t, err := s.tenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return t.Accounting.Connected(), nil
}

func (s *accountingService) Connect(ctx context.Context, tenantID string) (string, error) {
	log := s.opLog(ctx, "Connect").With(logger.TenantID(tenantID))

	if !s.deps.Provider.Configured() || s.deps.State == nil {
		log.Error("accounting provider not configured")
		return "", ErrConfiguration
	}
	if _, err := s.tenant(ctx, tenantID); err != nil {
		return "", err
	}

	state, err := s.deps.State.Sign(tenantID)
	if err != nil {
		return "", fmt.Errorf("accounting: sign state: %w", err)
	}
	log.Debug("authorization url issued")
	return s.deps.Provider.AuthURL(state), nil
}

func (s *accountingService) Callback(ctx context.Context, in dto.CallbackRequest) (*dto.CallbackResult, error) {
	log := s.opLog(ctx, "Callback")
	fail := func(code, tenantID string, err error) (*dto.CallbackResult, error) {
		s.deps.Metrics.AccountingCallback(code)
		return &dto.CallbackResult{TenantID: tenantID, RedirectURL: s.errorRedirect(code)}, err
	}

	if in.Error != "" {
		code := strings.ToLower(in.Error)
		if !providerCodeRe.MatchString(code) {
			code = "provider_error"
		}
		return fail(code, "", fmt.Errorf("%w: %s %s", ErrProviderDenied, in.Error, in.ErrorDescription))
	}
	if in.Code == "" || in.State == "" {
		return fail(CodeInvalidRequest, "", fmt.Errorf("%w: missing code or state", ErrState))
	}
	if !s.deps.Provider.Configured() || s.deps.State == nil {
		return fail(CodeConfiguration, "", ErrConfiguration)
	}

	tenantID, err := s.deps.State.Verify(in.State)
	if err != nil {
		return fail(CodeInvalidState, "", fmt.Errorf("%w: %w", ErrState, err))
	}
	log = log.With(logger.TenantID(tenantID))

	start := s.deps.Now()
	tok, err := s.deps.Provider.Exchange(ctx, in.Code)
	s.deps.Metrics.ObserveExternal("accounting", "exchange", start, err)
	if err != nil {
		return fail(CodeExchangeFailed, tenantID, fmt.Errorf("%w: %w", ErrExternalService, err))
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return fail(CodeExchangeFailed, tenantID, fmt.Errorf("%w: provider returned an incomplete token bundle", ErrExternalService))
	}

	err = s.deps.Tenants.SetAccountingCredential(ctx, tenantID, &repository.AccountingCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return fail(CodeTenantNotFound, tenantID, ErrTenantNotFound)
		}
		return fail(CodeServerError, tenantID, fmt.Errorf("accounting: store credential: %w", err))
	}

	s.deps.Metrics.AccountingCallback("connected")
	audit.Log(ctx, audit.EventAccountingConnected, logger.TenantID(tenantID))
	log.Info("accounting integration connected")
	return &dto.CallbackResult{TenantID: tenantID, RedirectURL: s.successRedirect()}, nil
}

func (s *accountingService) Disconnect(ctx context.Context, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return ErrValidation
	}
	if err := s.deps.Tenants.SetAccountingCredential(ctx, tenantID, nil); err != nil {
		if repository.IsNotFound(err) {
			return ErrTenantNotFound
		}
		return fmt.Errorf("accounting: clear credential: %w", err)
	}
	audit.Log(ctx, audit.EventAccountingDisconnected, logger.TenantID(tenantID))
	s.opLog(ctx, "Disconnect").Info("accounting integration disconnected", logger.TenantID(tenantID))
	return nil
}

func (s *accountingService) AccessToken(ctx context.Context, tenantID string) (string, error) {
	res, err := s.EnsureFresh(ctx, tenantID, false)
	if err != nil {
		return "", err
	}
	return res.AccessToken, nil
}

func (s *accountingService) EnsureFresh(ctx context.Context, tenantID string, force bool) (*dto.RefreshResult, error) {
	t, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.Accounting.Connected() {
		return nil, ErrNotConnected
	}
	if !force && !s.needsRefresh(t.Accounting) {
		return &dto.RefreshResult{AccessToken: t.Accounting.AccessToken, ExpiresAt: t.Accounting.ExpiresAt}, nil
	}

	// Un solo refresh por tenant en vuelo dentro del proceso: el proveedor puede
	// rotar el refresh token y dos canjes concurrentes invalidarían uno.
	// El refresh compartido no depende del ctx del primer llamador: si ese
	// request se cancela, el resto sigue esperando el mismo resultado.
	v, err, shared := s.group.Do(tenantID, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(rctx, tenantID, force)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*dto.RefreshResult)
	if shared {
		cp := *res
		return &cp, nil
	}
	return res, nil
}

func (s *accountingService) refresh(ctx context.Context, tenantID string, force bool) (*dto.RefreshResult, error) {
	log := s.opLog(ctx, "Refresh").With(logger.TenantID(tenantID))

	// Releer: otro proceso pudo haber refrescado o desconectado.
	t, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cred := t.Accounting
	if !cred.Connected() {
		return nil, ErrNotConnected
	}
	if !force && !s.needsRefresh(cred) {
		return &dto.RefreshResult{AccessToken: cred.AccessToken, ExpiresAt: cred.ExpiresAt}, nil
	}

	start := s.deps.Now()
	tok, err := s.deps.Provider.Refresh(ctx, cred.RefreshToken)
	s.deps.Metrics.ObserveExternal("accounting", "refresh", start, err)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrInvalidGrant):
			return nil, s.revoke(ctx, t, err)
		case errors.Is(err, provider.ErrNotConfigured):
			// Credenciales del cliente rechazadas: el bundle del tenant sigue siendo válido.
			s.deps.Metrics.AccountingRefresh("error")
			log.Error("accounting client credentials rejected", logger.Err(err))
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		default:
			s.deps.Metrics.AccountingRefresh("error")
			log.Warn("accounting token refresh failed", logger.Err(err))
			return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
		}
	}

	next := &repository.AccountingCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	if err := s.deps.Tenants.SetAccountingCredential(ctx, tenantID, next); err != nil {
		s.deps.Metrics.AccountingRefresh("error")
		return nil, fmt.Errorf("accounting: store refreshed credential: %w", err)
	}

	s.deps.Metrics.AccountingRefresh("refreshed")
	log.Info("accounting token refreshed", zap.Time("expires_at", next.ExpiresAt))
	return &dto.RefreshResult{AccessToken: next.AccessToken, ExpiresAt: next.ExpiresAt, Refreshed: true}, nil
}

// revoke borra la credencial rechazada por el proveedor y avisa al tenant.
func (s *accountingService) revoke(ctx context.Context, t *repository.Tenant, cause error) error {
	log := s.opLog(ctx, "Refresh").With(logger.TenantID(t.ID))
	s.deps.Metrics.AccountingRefresh("revoked")

	if err := s.deps.Tenants.SetAccountingCredential(ctx, t.ID, nil); err != nil {
		log.Error("could not clear revoked accounting credential", logger.Err(err))
		return fmt.Errorf("accounting: clear revoked credential: %w", err)
	}
	audit.Log(ctx, audit.EventAccountingRevoked, logger.TenantID(t.ID), logger.Err(cause))

	if err := s.deps.Notifier.NotifyReconnect(ctx, email.ReconnectNotice{
		TenantID:         t.ID,
		OrganizationName: t.Name,
		Email:            t.Email,
	}); err != nil {
		log.Warn("reconnect notification failed", logger.Err(err))
	}
	log.Warn("accounting credential revoked by provider", logger.Err(cause))
	return ErrReconnectRequired
}

// needsRefresh: vencido o dentro de la ventana. ExpiresAt cero = sin vencimiento.
func (s *accountingService) needsRefresh(c *repository.AccountingCredential) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !s.deps.Now().Add(s.deps.LeadWindow).Before(c.ExpiresAt)
}

func (s *accountingService) successRedirect() string {
	return s.deps.SiteURL + integrationsPath + "?accounting=connected"
}

func (s *accountingService) errorRedirect(code string) string {
	q := url.Values{}
	q.Set("accounting", "error")
	q.Set("code", code)
	return s.deps.SiteURL + integrationsPath + "?" + q.Encode()
}
