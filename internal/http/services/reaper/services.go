// Package reaper contiene el barrido de identidades pendientes abandonadas.
package reaper

import (
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
)

// Deps contiene las dependencias para crear los services reaper.
type Deps struct {
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Metrics    *metrics.Metrics
}

// Services agrupa los services del dominio reaper.
type Services struct {
	Reaper ReaperService
}

// NewServices crea el agregador de services reaper.
func NewServices(d Deps) Services {
	return Services{
		Reaper: NewReaperService(ReaperDeps{
			Identities: d.Identities,
			Tenants:    d.Tenants,
			Metrics:    d.Metrics,
		}),
	}
}
