// Package audit emite eventos de auditoría por el logger "audit".
// Cada evento lleva el nombre en "event" y campos de dominio estructurados.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/tenantgate/internal/http/middlewares"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

// Eventos registrados.
const (
	EventWebhookSignatureRejected = "webhook.signature_rejected"
	EventSignupInitiated          = "signup.initiated"
	EventSignupCompensated        = "signup.compensated"
	EventTenantProvisioned        = "tenant.provisioned"
	EventIdentityDiscarded        = "identity.discarded"
	EventSubscriptionChanged      = "tenant.subscription_changed"
	EventAccountingConnected      = "accounting.connected"
	EventAccountingDisconnected   = "accounting.disconnected"
	EventAccountingRevoked        = "accounting.revoked"
	EventPendingReaped            = "identity.reaped"
)

// Log escribe un evento de auditoría. El request id del contexto se agrega si existe.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	l := logger.Audit()
	if rid := middlewares.GetRequestID(ctx); rid != "" {
		l = l.With(logger.RequestID(rid))
	}
	l.Info(event, append([]zap.Field{zap.String("event", event)}, fields...)...)
}
