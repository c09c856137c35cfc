// Package router arma el árbol de rutas HTTP (chi) sobre los controllers.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tenantgate/internal/http/controllers"
	httperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	mw "github.com/dropDatabas3/tenantgate/internal/http/middlewares"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/rate"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	Controllers *controllers.Controllers
	// CORSOrigins es la allow-list de las rutas llamadas desde el navegador.
	CORSOrigins []string
	// RateLimiter es opcional; nil deshabilita el rate limit.
	RateLimiter rate.Limiter
	Metrics     *metrics.Metrics
}

// New crea el handler raíz.
//
// Orden de middlewares globales: request id → logging → recover → metrics →
// security headers. Cada grupo agrega lo suyo (CORS, no-store, rate limit).
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithMetrics(d.Metrics),
		mw.WithSecurityHeaders(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	c := d.Controllers
	RegisterHealthRoutes(r, HealthRouterDeps{Controller: c.Health, Metrics: d.Metrics})
	RegisterWebhookRoutes(r, WebhookRouterDeps{Controllers: c.Billing})

	browser := browserChain(d.CORSOrigins, d.RateLimiter, d.Metrics)
	RegisterSignupRoutes(r, SignupRouterDeps{Controllers: c.Signup, Chain: browser})
	RegisterProvisioningRoutes(r, ProvisioningRouterDeps{Controllers: c.Provisioning, Chain: browser})
	RegisterAccountingRoutes(r, AccountingRouterDeps{Controllers: c.Accounting, Chain: browser})

	return r
}

// browserChain: rutas llamadas desde el frontend. CORS va primero para que el
// preflight no consuma cuota de rate limit.
func browserChain(origins []string, limiter rate.Limiter, m *metrics.Metrics) []mw.Middleware {
	chain := []mw.Middleware{
		mw.WithCORS(origins),
		mw.WithNoStore(),
	}
	if limiter != nil {
		chain = append(chain, mw.WithRateLimit(mw.RateLimitConfig{
			Limiter: limiter,
			KeyFunc: mw.DefaultRateKey,
			Metrics: m,
		}))
	}
	return chain
}
