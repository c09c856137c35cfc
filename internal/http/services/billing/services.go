// Package billing contiene el service de webhooks de la pasarela de pagos.
package billing

import (
	payments "github.com/dropDatabas3/tenantgate/internal/billing"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
)

// Deps contiene las dependencias para crear los services billing.
type Deps struct {
	Gateway    payments.Gateway
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Metrics    *metrics.Metrics
}

// Services agrupa los services del dominio billing.
type Services struct {
	Webhook WebhookService
}

// NewServices crea el agregador de services billing.
func NewServices(d Deps) Services {
	return Services{
		Webhook: NewWebhookService(WebhookDeps{
			Gateway:    d.Gateway,
			Identities: d.Identities,
			Tenants:    d.Tenants,
			Metrics:    d.Metrics,
		}),
	}
}
