// Package health contiene el service para health checks.
package health

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/health"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	Version string
	// DBCheck es crítico: sin storage no hay signup ni webhooks.
	DBCheck func(ctx context.Context) error
	// IdentityCheck verifica el identity store cuando es un servicio externo.
	IdentityCheck func(ctx context.Context) error
	// RedisCheck no es crítico: el rate limit falla abierto.
	RedisCheck func(ctx context.Context) error
	// Componentes opcionales: solo informan si están configurados.
	BillingConfigured    bool
	AccountingConfigured bool
	Timeout              time.Duration
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &healthService{deps: deps}
}

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health"),
		logger.Op("Check"),
	)

	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Version:    s.deps.Version,
		Components: make(map[string]dto.HealthStatus),
		Timestamp:  time.Now().UTC(),
	}

	hasErrors, hasCritical := false, false
	probe := func(name string, check func(context.Context) error, critical bool) {
		if check == nil {
			resp.Components[name] = dto.HealthStatus{Status: "disabled"}
			return
		}
		if err := check(ctx); err != nil {
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: "unavailable"}
			log.Error(name+" unavailable", logger.Err(err))
			if critical {
				hasCritical = true
			} else {
				hasErrors = true
			}
			return
		}
		resp.Components[name] = dto.HealthStatus{Status: "ok"}
	}

	probe("db", s.deps.DBCheck, true)
	probe("identity", s.deps.IdentityCheck, true)
	probe("redis", s.deps.RedisCheck, false)

	resp.Components["billing"] = configured(s.deps.BillingConfigured)
	resp.Components["accounting"] = configured(s.deps.AccountingConfigured)

	switch {
	case hasCritical:
		resp.Status = "unavailable"
	case hasErrors:
		resp.Status = "degraded"
	default:
		resp.Status = "ready"
	}
	return resp
}

func configured(ok bool) dto.HealthStatus {
	if ok {
		return dto.HealthStatus{Status: "ok"}
	}
	return dto.HealthStatus{Status: "disabled", Message: "not configured"}
}
