package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	accountingctrl "github.com/dropDatabas3/tenantgate/internal/http/controllers/accounting"
	billingctrl "github.com/dropDatabas3/tenantgate/internal/http/controllers/billing"
	healthctrl "github.com/dropDatabas3/tenantgate/internal/http/controllers/health"
	provisioningctrl "github.com/dropDatabas3/tenantgate/internal/http/controllers/provisioning"
	signupctrl "github.com/dropDatabas3/tenantgate/internal/http/controllers/signup"
	mw "github.com/dropDatabas3/tenantgate/internal/http/middlewares"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
)

// Las rutas se registran con Handle (todos los métodos): cada controller valida
// el método y responde 405 con Allow; así el preflight OPTIONS llega al CORS.

// HealthRouterDeps contiene las dependencias para las rutas de health.
type HealthRouterDeps struct {
	Controller *healthctrl.HealthController
	Metrics    *metrics.Metrics
}

// RegisterHealthRoutes registra /healthz, /readyz y /metrics.
func RegisterHealthRoutes(r chi.Router, deps HealthRouterDeps) {
	r.Handle("/healthz", http.HandlerFunc(deps.Controller.Healthz))
	r.Handle("/readyz", http.HandlerFunc(deps.Controller.Readyz))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
}

// WebhookRouterDeps contiene las dependencias para el webhook de pagos.
type WebhookRouterDeps struct {
	Controllers *billingctrl.Controllers
}

// RegisterWebhookRoutes registra POST /v1/webhooks/payments. Es server-to-server:
// sin CORS ni rate limit.
func RegisterWebhookRoutes(r chi.Router, deps WebhookRouterDeps) {
	r.Handle("/v1/webhooks/payments", mw.Chain(
		http.HandlerFunc(deps.Controllers.Webhook.Receive),
		mw.WithNoStore(),
	))
}

// SignupRouterDeps contiene las dependencias para el signup.
type SignupRouterDeps struct {
	Controllers *signupctrl.Controllers
	Chain       []mw.Middleware
}

// RegisterSignupRoutes registra POST /v1/signup.
func RegisterSignupRoutes(r chi.Router, deps SignupRouterDeps) {
	r.Handle("/v1/signup", mw.Chain(http.HandlerFunc(deps.Controllers.Signup.Signup), deps.Chain...))
}

// ProvisioningRouterDeps contiene las dependencias para el aprovisionamiento.
type ProvisioningRouterDeps struct {
	Controllers *provisioningctrl.Controllers
	Chain       []mw.Middleware
}

// RegisterProvisioningRoutes registra POST /v1/tenants/provision.
func RegisterProvisioningRoutes(r chi.Router, deps ProvisioningRouterDeps) {
	r.Handle("/v1/tenants/provision", mw.Chain(http.HandlerFunc(deps.Controllers.Provision.Provision), deps.Chain...))
}

// AccountingRouterDeps contiene las dependencias para la integración contable.
type AccountingRouterDeps struct {
	Controllers *accountingctrl.Controllers
	Chain       []mw.Middleware
}

// RegisterAccountingRoutes registra /v1/accounting/*.
func RegisterAccountingRoutes(r chi.Router, deps AccountingRouterDeps) {
	c := deps.Controllers.Accounting
	h := func(fn http.HandlerFunc) http.Handler { return mw.Chain(fn, deps.Chain...) }

	r.Route("/v1/accounting", func(r chi.Router) {
		r.Handle("/status", h(c.Status))
		r.Handle("/connect", h(c.Connect))
		r.Handle("/callback", h(c.Callback))
		r.Handle("/disconnect", h(c.Disconnect))
		r.Handle("/refresh", h(c.Refresh))
		r.Handle("/oauth", h(c.OAuth))
	})
}
