// Package signup contiene el service de alta de organizaciones.
package signup

import (
	payments "github.com/dropDatabas3/tenantgate/internal/billing"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
)

// Deps contiene las dependencias para crear los services signup.
type Deps struct {
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Gateway    payments.Gateway
	Plans      map[string]string
	Metrics    *metrics.Metrics
}

// Services agrupa los services del dominio signup.
type Services struct {
	Signup SignupService
}

// NewServices crea el agregador de services signup.
func NewServices(d Deps) Services {
	return Services{
		Signup: NewSignupService(SignupDeps{
			Identities: d.Identities,
			Tenants:    d.Tenants,
			Gateway:    d.Gateway,
			Plans:      d.Plans,
			Metrics:    d.Metrics,
		}),
	}
}
