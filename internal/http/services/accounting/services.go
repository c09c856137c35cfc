// Package accounting contiene el service de la integración con el proveedor contable.
package accounting

import (
	"time"

	provider "github.com/dropDatabas3/tenantgate/internal/accounting"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/security/statetoken"
)

// Deps contiene las dependencias para crear los services accounting.
type Deps struct {
	Tenants    repository.TenantRepository
	Provider   provider.Provider
	State      *statetoken.Signer
	Notifier   ReconnectNotifier
	SiteURL    string
	LeadWindow time.Duration
	Metrics    *metrics.Metrics
}

// Services agrupa los services del dominio accounting.
type Services struct {
	Accounting AccountingService
}

// NewServices crea el agregador de services accounting.
func NewServices(d Deps) Services {
	return Services{
		Accounting: NewAccountingService(AccountingDeps{
			Tenants:    d.Tenants,
			Provider:   d.Provider,
			State:      d.State,
			Notifier:   d.Notifier,
			SiteURL:    d.SiteURL,
			LeadWindow: d.LeadWindow,
			Metrics:    d.Metrics,
		}),
	}
}
