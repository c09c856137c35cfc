// Package app es el composition root: arma stores, integraciones, services,
// controllers y router a partir de config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/tenantgate/internal/accounting/oauth"
	"github.com/dropDatabas3/tenantgate/internal/billing/stripe"
	"github.com/dropDatabas3/tenantgate/internal/config"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/email"
	"github.com/dropDatabas3/tenantgate/internal/http/controllers"
	"github.com/dropDatabas3/tenantgate/internal/http/router"
	"github.com/dropDatabas3/tenantgate/internal/http/services"
	accountingsvc "github.com/dropDatabas3/tenantgate/internal/http/services/accounting"
	"github.com/dropDatabas3/tenantgate/internal/http/services/health"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/rate"
	"github.com/dropDatabas3/tenantgate/internal/security/secretbox"
	"github.com/dropDatabas3/tenantgate/internal/security/statetoken"
	"github.com/dropDatabas3/tenantgate/internal/store/gotrue"
	"github.com/dropDatabas3/tenantgate/internal/store/memory"
	"github.com/dropDatabas3/tenantgate/internal/store/pg"
)

// Options parámetros que no vienen de config.
type Options struct {
	Version string
}

// App es la aplicación cableada.
type App struct {
	Config   *config.Config
	Handler  http.Handler
	Services *services.Services
	Metrics  *metrics.Metrics

	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository

	log     *zap.Logger
	closers []func() error
}

// New crea y cablea la aplicación. Ante error libera lo que alcanzó a abrir.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, log: logger.Named("app")}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	// 1. Métricas
	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.Metrics = m

	httpClient := &http.Client{Timeout: cfg.HTTPClient.Timeout}

	// 2. Storage
	healthDeps := health.Deps{Version: opts.Version}
	if err := a.buildStores(ctx, cfg, httpClient, &healthDeps); err != nil {
		return nil, err
	}

	// 3. Pasarela de pagos
	gateway, err := stripe.New(stripe.Config{
		SecretKey:     cfg.Billing.SecretKey,
		WebhookSecret: cfg.Billing.WebhookSecret,
		BaseURL:       cfg.Billing.APIURL,
		HTTPClient:    httpClient,
		Logger:        logger.L(),
	})
	if err != nil {
		return nil, err
	}
	healthDeps.BillingConfigured = cfg.Billing.SecretKey != ""

	// 4. Proveedor contable + state
	provider := oauth.New(oauth.Config{
		ClientID:     cfg.Accounting.ClientID,
		ClientSecret: cfg.Accounting.ClientSecret,
		AuthURL:      cfg.Accounting.AuthURL,
		TokenURL:     cfg.Accounting.TokenURL,
		RedirectURL:  cfg.AccountingRedirectURL(),
		Scopes:       cfg.Accounting.Scopes,
		AuthStyle:    cfg.Accounting.AuthStyle,
		HTTPClient:   httpClient,
	})
	var signer *statetoken.Signer
	if cfg.Accounting.StateSigningKey != "" {
		signer, err = statetoken.NewSigner([]byte(cfg.Accounting.StateSigningKey), cfg.Accounting.StateTTL)
		if err != nil {
			return nil, err
		}
	}
	healthDeps.AccountingConfigured = provider.Configured() && signer != nil

	// 5. Rate limit (redis si hay, si no memoria local)
	limiter, err := a.buildLimiter(ctx, cfg, &healthDeps)
	if err != nil {
		return nil, err
	}

	// 6. Services → controllers → router
	a.Services = services.New(services.Deps{
		Identities: a.Identities,
		Tenants:    a.Tenants,
		Gateway:    gateway,
		Provider:   provider,
		State:      signer,
		Notifier:   buildNotifier(cfg),
		Plans:      cfg.Billing.Plans,
		SiteURL:    cfg.Server.SiteURL,
		LeadWindow: cfg.Accounting.RefreshLeadWindow,
		Metrics:    m,
		HealthDeps: healthDeps,
	})
	a.Handler = router.New(router.Deps{
		Controllers: controllers.New(a.Services),
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimiter: limiter,
		Metrics:     m,
	})

	a.log.Info("app wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("identity", cfg.Identity.Driver),
		logger.Bool("accounting", healthDeps.AccountingConfigured),
		logger.Bool("rate_limit", limiter != nil),
	)
	ok = true
	return a, nil
}

func (a *App) buildStores(ctx context.Context, cfg *config.Config, httpClient *http.Client, hd *health.Deps) error {
	var pgStore *pg.Store

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		var box *secretbox.Box
		if cfg.Storage.CredentialsMasterKey != "" {
			b, err := secretbox.New(cfg.Storage.CredentialsMasterKey)
			if err != nil {
				return fmt.Errorf("credentials master key: %w", err)
			}
			box = b
		} else {
			a.log.Warn("CREDENTIALS_MASTER_KEY vacío: los tokens contables se guardan sin cifrar")
		}
		st, err := pg.Connect(ctx, pg.Config{
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
			Box:             box,
		})
		if err != nil {
			return err
		}
		pgStore = st
		a.closers = append(a.closers, func() error { st.Close(); return nil })
		a.Tenants = st.Tenants()
	case config.DriverMemory:
		a.log.Warn("storage en memoria: los datos se pierden al reiniciar")
		a.Tenants = memory.NewTenantStore()
	default:
		return fmt.Errorf("storage driver no soportado: %q", cfg.Storage.Driver)
	}
	hd.DBCheck = a.Tenants.Ping

	switch cfg.Identity.Driver {
	case config.DriverPostgres:
		if pgStore == nil {
			return errors.New("IDENTITY_DRIVER=postgres requiere STORE_DRIVER=postgres")
		}
		a.Identities = pgStore.Identities()
	case config.DriverGoTrue:
		gt, err := gotrue.New(gotrue.Config{
			BaseURL:    cfg.Identity.APIURL,
			ServiceKey: cfg.Identity.ServiceKey,
			Timeout:    httpClient.Timeout,
			Logger:     logger.L(),
		})
		if err != nil {
			return err
		}
		a.Identities = gt
		hd.IdentityCheck = gt.Ping
	case config.DriverMemory:
		a.Identities = memory.NewIdentityStore()
	default:
		return fmt.Errorf("identity driver no soportado: %q", cfg.Identity.Driver)
	}
	return nil
}

func (a *App) buildLimiter(ctx context.Context, cfg *config.Config, hd *health.Deps) (rate.Limiter, error) {
	var client *rdb.Client
	if cfg.Redis.Addr != "" {
		client = rdb.NewClient(&rdb.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		hd.RedisCheck = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// no fatal: el limiter falla abierto y /readyz reporta degraded
			a.log.Warn("redis no responde", logger.Err(err))
		}
	}

	if !cfg.Rate.Enabled {
		return nil, nil
	}
	if client != nil {
		return rate.NewRedisLimiter(client, cfg.Redis.Prefix, cfg.Rate.MaxRequests, cfg.Rate.Window), nil
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window), nil
}

func buildNotifier(cfg *config.Config) accountingsvc.ReconnectNotifier {
	if cfg.SMTP.Host == "" {
		return email.LogNotifier{}
	}
	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		UseTLS:   cfg.SMTP.UseTLS,
	})
	return email.NewMailNotifier(sender, cfg.Server.SiteURL)
}

// Close libera conexiones en orden inverso de apertura.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
