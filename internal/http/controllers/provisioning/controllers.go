package provisioning

import svc "github.com/dropDatabas3/tenantgate/internal/http/services/provisioning"

// Controllers agrupa los controllers del dominio provisioning.
type Controllers struct {
	Provision *ProvisionController
}

// NewControllers crea el agregador de controllers provisioning.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{Provision: NewProvisionController(s.Provision)}
}
