// Package controllers agrupa todos los controllers HTTP.
// Este es el "composition root" de controllers:
//
//	svcs := services.New(deps)
//	ctrls := controllers.New(svcs)
//	handler := router.New(router.Deps{Controllers: ctrls, ...})
package controllers

import (
	"github.com/dropDatabas3/tenantgate/internal/http/controllers/accounting"
	"github.com/dropDatabas3/tenantgate/internal/http/controllers/billing"
	"github.com/dropDatabas3/tenantgate/internal/http/controllers/health"
	"github.com/dropDatabas3/tenantgate/internal/http/controllers/provisioning"
	"github.com/dropDatabas3/tenantgate/internal/http/controllers/signup"
	"github.com/dropDatabas3/tenantgate/internal/http/services"
)

// Controllers agrupa todos los controllers por dominio.
type Controllers struct {
	Signup       *signup.Controllers
	Billing      *billing.Controllers
	Provisioning *provisioning.Controllers
	Accounting   *accounting.Controllers
	Health       *health.HealthController
}

// New crea el agregador de controllers a partir de los services.
func New(s *services.Services) *Controllers {
	return &Controllers{
		Signup:       signup.NewControllers(s.Signup),
		Billing:      billing.NewControllers(s.Billing),
		Provisioning: provisioning.NewControllers(s.Provisioning),
		Accounting:   accounting.NewControllers(s.Accounting),
		Health:       health.NewHealthController(s.Health),
	}
}
