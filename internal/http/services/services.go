// Package services agrupa todos los services HTTP.
// Este es el "composition root" de services: app.New arma Deps y los
// controllers reciben el agregador.
//
//	deps := services.Deps{Identities: ids, Tenants: tenants, Gateway: gw, ...}
//	svcs := services.New(deps)
//	// svcs.Signup.Signup, svcs.Billing.Webhook, svcs.Accounting.Accounting, ...
package services

import (
	"time"

	provider "github.com/dropDatabas3/tenantgate/internal/accounting"
	payments "github.com/dropDatabas3/tenantgate/internal/billing"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/http/services/accounting"
	"github.com/dropDatabas3/tenantgate/internal/http/services/billing"
	"github.com/dropDatabas3/tenantgate/internal/http/services/health"
	"github.com/dropDatabas3/tenantgate/internal/http/services/provisioning"
	"github.com/dropDatabas3/tenantgate/internal/http/services/reaper"
	"github.com/dropDatabas3/tenantgate/internal/http/services/signup"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/security/statetoken"
)

// Deps contiene las dependencias base para crear los services.
type Deps struct {
	// ─── Storage ───
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository

	// ─── Integraciones ───
	Gateway  payments.Gateway
	Provider provider.Provider
	State    *statetoken.Signer
	Notifier accounting.ReconnectNotifier

	// ─── Configuración ───
	Plans      map[string]string
	SiteURL    string
	LeadWindow time.Duration

	Metrics    *metrics.Metrics
	HealthDeps health.Deps
}

// Services agrupa todos los sub-services por dominio.
type Services struct {
	Signup       signup.Services
	Billing      billing.Services
	Provisioning provisioning.Services
	Accounting   accounting.Services
	Reaper       reaper.Services
	Health       health.HealthService
}

// New crea el agregador de services.
func New(d Deps) *Services {
	return &Services{
		Signup: signup.NewServices(signup.Deps{
			Identities: d.Identities,
			Tenants:    d.Tenants,
			Gateway:    d.Gateway,
			Plans:      d.Plans,
			Metrics:    d.Metrics,
		}),
		Billing: billing.NewServices(billing.Deps{
			Gateway:    d.Gateway,
			Identities: d.Identities,
			Tenants:    d.Tenants,
			Metrics:    d.Metrics,
		}),
		Provisioning: provisioning.NewServices(provisioning.Deps{
			Identities: d.Identities,
			Tenants:    d.Tenants,
			Metrics:    d.Metrics,
		}),
		Accounting: accounting.NewServices(accounting.Deps{
			Tenants:    d.Tenants,
			Provider:   d.Provider,
			State:      d.State,
			Notifier:   d.Notifier,
			SiteURL:    d.SiteURL,
			LeadWindow: d.LeadWindow,
			Metrics:    d.Metrics,
		}),
		Reaper: reaper.NewServices(reaper.Deps{
			Identities: d.Identities,
			Tenants:    d.Tenants,
			Metrics:    d.Metrics,
		}),
		Health: health.NewHealthService(d.HealthDeps),
	}
}
