// Package provisioning contiene el service de aprovisionamiento directo de tenants.
package provisioning

import (
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
)

// Deps contiene las dependencias para crear los services provisioning.
type Deps struct {
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Metrics    *metrics.Metrics
}

// Services agrupa los services del dominio provisioning.
type Services struct {
	Provision ProvisionService
}

// NewServices crea el agregador de services provisioning.
func NewServices(d Deps) Services {
	return Services{
		Provision: NewProvisionService(ProvisionDeps(d)),
	}
}
