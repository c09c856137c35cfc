package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/tenantgate/internal/audit"
	payments "github.com/dropDatabas3/tenantgate/internal/billing"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/billing"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"go.uber.org/zap"
)

// WebhookService procesa los eventos de la pasarela de pagos y avanza la saga
// de aprovisionamiento. La entrega es at-least-once y sin orden: cada rama es
// idempotente.
type WebhookService interface {
	Handle(ctx context.Context, payload []byte, signature string) (*dto.WebhookResult, error)
}

// WebhookDeps contiene las dependencias del service.
type WebhookDeps struct {
	Gateway    payments.Gateway
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Metrics    *metrics.Metrics
}

// Webhook errors (sentinel)
var (
	// ErrSignatureVerification: firma ausente o inválida. Nada se modifica.
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	// ErrRetryable: falla de storage; se responde 5xx para que la pasarela reintente.
	ErrRetryable = errors.New("webhook processing failed, retry")
)

// errDeadEnd marca situaciones que un reintento no arregla: se confirma la
// recepción y se deja registro para intervención manual.
var errDeadEnd = errors.New("dead end")

type webhookService struct {
	deps WebhookDeps
}

// NewWebhookService crea el service de webhooks.
func NewWebhookService(deps WebhookDeps) WebhookService {
	return &webhookService{deps: deps}
}

func (s *webhookService) Handle(ctx context.Context, payload []byte, signature string) (*dto.WebhookResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("billing.webhook"),
		logger.Op("Handle"),
	)

	ev, err := s.deps.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			s.deps.Metrics.WebhookEvent("unknown", metrics.WebhookRejected)
			audit.Log(ctx, audit.EventWebhookSignatureRejected, logger.Int("payload_bytes", len(payload)))
			log.Warn("webhook signature rejected", logger.Err(err))
			return nil, ErrSignatureVerification
		}
		// Firmado pero ilegible: reintentar no cambia nada.
		s.deps.Metrics.WebhookEvent("unknown", metrics.WebhookDeadEnd)
		log.Error("signed webhook could not be decoded", logger.Err(err))
		return &dto.WebhookResult{Outcome: metrics.WebhookDeadEnd}, nil
	}

	log = log.With(logger.EventID(ev.ID), logger.EventType(ev.Type))
	ctx = logger.ToContext(ctx, log)

	var outcome string
	switch ev.Type {
	case payments.EventCheckoutCompleted:
		outcome, err = s.checkoutCompleted(ctx, ev.Session)
	case payments.EventCheckoutExpired:
		outcome, err = s.checkoutExpired(ctx, ev.Session)
	case payments.EventSubscriptionUpdated:
		outcome, err = s.subscriptionChanged(ctx, ev.Subscription, false)
	case payments.EventSubscriptionDeleted:
		outcome, err = s.subscriptionChanged(ctx, ev.Subscription, true)
	default:
		outcome = metrics.WebhookIgnored
	}

	switch {
	case err == nil:
	case errors.Is(err, errDeadEnd):
		log.Error("webhook acknowledged without effect", logger.Err(err))
		outcome = metrics.WebhookDeadEnd
	default:
		s.deps.Metrics.WebhookEvent(ev.Type, metrics.WebhookRetry)
		log.Error("webhook processing failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrRetryable, err)
	}

	s.deps.Metrics.WebhookEvent(ev.Type, outcome)
	log.Debug("webhook handled", zap.String("outcome", outcome))
	return &dto.WebhookResult{EventID: ev.ID, EventType: ev.Type, Outcome: outcome}, nil
}

// checkoutCompleted confirma la identidad y materializa el tenant activo.
// Una re-entrega encuentra el tenant existente y termina sin cambios.
func (s *webhookService) checkoutCompleted(ctx context.Context, sess *payments.Session) (string, error) {
	if !sess.IsSignupFlow() {
		return metrics.WebhookIgnored, nil
	}
	log := logger.From(ctx).With(logger.SessionID(sess.ID))

	identityID := sess.Metadata[payments.MetaIdentityID]
	orgName := sess.Metadata[payments.MetaOrganizationName]
	orgNumber := sess.Metadata[payments.MetaOrganizationNumber]
	email := sess.Metadata[payments.MetaEmail]
	if identityID == "" || orgNumber == "" || email == "" {
		return "", fmt.Errorf("%w: checkout session %s missing correlation metadata", errDeadEnd, sess.ID)
	}
	log = log.With(logger.IdentityID(identityID))

	if err := s.deps.Identities.Confirm(ctx, identityID); err != nil {
		if repository.IsNotFound(err) {
			return "", fmt.Errorf("%w: identity %s not found on payment completion", errDeadEnd, identityID)
		}
		return "", fmt.Errorf("confirm identity: %w", err)
	}

	tenant, created, err := s.deps.Tenants.CreateIfAbsent(ctx, repository.CreateTenantInput{
		ID:                     identityID,
		Name:                   orgName,
		OrganizationNumber:     orgNumber,
		Email:                  email,
		SubscriptionStatus:     repository.SubscriptionActive,
		BillingCustomerRef:     sess.CustomerRef,
		BillingSubscriptionRef: sess.SubscriptionRef,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return "", fmt.Errorf("%w: paid signup collides on %s with another tenant", errDeadEnd, repository.ConflictField(err))
		}
		return "", fmt.Errorf("create tenant: %w", err)
	}

	if !created {
		log.Info("tenant already provisioned", logger.TenantID(tenant.ID))
		return metrics.WebhookProcessed, nil
	}

	s.deps.Metrics.TenantCreated("webhook")
	audit.Log(ctx, audit.EventTenantProvisioned,
		logger.TenantID(tenant.ID),
		logger.OrgNumber(tenant.OrganizationNumber),
		logger.CustomerRef(tenant.BillingCustomerRef),
		zap.String("source", "webhook"),
	)
	log.Info("tenant provisioned", logger.TenantID(tenant.ID))
	return metrics.WebhookProcessed, nil
}

// checkoutExpired descarta la identidad pendiente. Si el tenant ya existe
// (completed llegó antes) la identidad se conserva.
func (s *webhookService) checkoutExpired(ctx context.Context, sess *payments.Session) (string, error) {
	if !sess.IsSignupFlow() {
		return metrics.WebhookIgnored, nil
	}
	identityID := sess.Metadata[payments.MetaIdentityID]
	if identityID == "" {
		return "", fmt.Errorf("%w: expired session %s without identity_id", errDeadEnd, sess.ID)
	}
	log := logger.From(ctx).With(logger.SessionID(sess.ID), logger.IdentityID(identityID))

	_, err := s.deps.Tenants.GetByID(ctx, identityID)
	switch {
	case err == nil:
		log.Warn("checkout expired for an already provisioned tenant; identity kept")
		return metrics.WebhookIgnored, nil
	case !repository.IsNotFound(err):
		return "", fmt.Errorf("lookup tenant: %w", err)
	}

	if err := s.deps.Identities.DeletePending(ctx, identityID); err != nil {
		switch {
		case repository.IsNotFound(err):
			log.Debug("pending identity already removed")
			return metrics.WebhookProcessed, nil
		case repository.IsNotPending(err):
			log.Warn("checkout expired for a confirmed identity; identity kept")
			return metrics.WebhookIgnored, nil
		}
		return "", fmt.Errorf("delete identity: %w", err)
	}

	audit.Log(ctx, audit.EventIdentityDiscarded, logger.IdentityID(identityID), logger.SessionID(sess.ID))
	log.Info("pending identity discarded")
	return metrics.WebhookProcessed, nil
}

// subscriptionChanged sincroniza el estado de suscripción por customer ref.
func (s *webhookService) subscriptionChanged(ctx context.Context, sub *payments.Subscription, deleted bool) (string, error) {
	if sub == nil {
		return "", fmt.Errorf("%w: subscription event without subscription object", errDeadEnd)
	}
	status := repository.SubscriptionCanceled
	if !deleted {
		status = MapSubscriptionStatus(sub.Status)
	}
	log := logger.From(ctx).With(logger.CustomerRef(sub.CustomerRef), zap.String("subscription_status", string(status)))

	err := s.deps.Tenants.UpdateSubscriptionByCustomer(ctx, sub.CustomerRef, status, sub.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Info("no tenant for customer; subscription event ignored")
			return metrics.WebhookIgnored, nil
		}
		return "", fmt.Errorf("update subscription: %w", err)
	}

	audit.Log(ctx, audit.EventSubscriptionChanged,
		logger.CustomerRef(sub.CustomerRef),
		zap.String("subscription_status", string(status)),
	)
	return metrics.WebhookProcessed, nil
}

// MapSubscriptionStatus traduce el estado de la pasarela al del tenant.
// Cualquier estado no reconocido (incomplete, unpaid, paused...) queda inactive.
func MapSubscriptionStatus(s string) repository.SubscriptionStatus {
	switch s {
	case "active":
		return repository.SubscriptionActive
	case "trialing":
		return repository.SubscriptionTrialing
	case "past_due":
		return repository.SubscriptionPastDue
	default:
		return repository.SubscriptionInactive
	}
}
