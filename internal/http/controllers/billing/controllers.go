package billing

import svc "github.com/dropDatabas3/tenantgate/internal/http/services/billing"

// Controllers agrupa los controllers del dominio billing.
type Controllers struct {
	Webhook *WebhookController
}

// NewControllers crea el agregador de controllers billing.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{Webhook: NewWebhookController(s.Webhook)}
}
