package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Drivers soportados.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverGoTrue   = "gotrue"
)

// Config es la configuración completa del servicio. Se construye una vez en main
// y se inyecta a cada componente; nada lee el entorno después de Load.
type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env" env:"APP_ENV"`
		LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr" env:"SERVER_ADDR"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
		ReadTimeout        time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout       time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		// SiteURL es el frontend; destino de los redirects del callback OAuth.
		SiteURL string `yaml:"site_url" env:"SITE_URL"`
		// PublicAPIURL es la URL pública de esta API (redirect_uri del proveedor contable).
		PublicAPIURL string `yaml:"public_api_url" env:"PUBLIC_API_URL"`
	} `yaml:"server"`

	Storage struct {
		Driver          string        `yaml:"driver" env:"STORE_DRIVER"`
		DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
		MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
		MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
		// CredentialsMasterKey cifra los tokens contables en reposo (base64 32 bytes).
		CredentialsMasterKey string `yaml:"credentials_master_key" env:"CREDENTIALS_MASTER_KEY"`
	} `yaml:"storage"`

	Identity struct {
		// postgres | gotrue | memory
		Driver     string `yaml:"driver" env:"IDENTITY_DRIVER"`
		APIURL     string `yaml:"api_url" env:"IDENTITY_API_URL"`
		ServiceKey string `yaml:"service_key" env:"IDENTITY_SERVICE_KEY"`
	} `yaml:"identity"`

	Billing struct {
		SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
		WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
		// APIURL reemplaza la API de Stripe (stripe-mock en dev).
		APIURL string `yaml:"api_url" env:"STRIPE_API_URL"`
		// Plans mapea plan_id → price id. Vacío: plan_id es el price id.
		Plans map[string]string `yaml:"plans" env:"BILLING_PLANS" envSeparator:"," envKeyValSeparator:"="`
	} `yaml:"billing"`

	Accounting struct {
		ClientID     string   `yaml:"client_id" env:"ACCOUNTING_CLIENT_ID"`
		ClientSecret string   `yaml:"client_secret" env:"ACCOUNTING_CLIENT_SECRET"`
		AuthURL      string   `yaml:"auth_url" env:"ACCOUNTING_AUTH_URL"`
		TokenURL     string   `yaml:"token_url" env:"ACCOUNTING_TOKEN_URL"`
		Scopes       []string `yaml:"scopes" env:"ACCOUNTING_SCOPES" envSeparator:","`
		// header | params | "" (autodetect)
		AuthStyle         string        `yaml:"auth_style" env:"ACCOUNTING_AUTH_STYLE"`
		StateSigningKey   string        `yaml:"state_signing_key" env:"STATE_SIGNING_KEY"`
		StateTTL          time.Duration `yaml:"state_ttl" env:"ACCOUNTING_STATE_TTL"`
		RefreshLeadWindow time.Duration `yaml:"refresh_lead_window" env:"ACCOUNTING_REFRESH_LEAD_WINDOW"`
	} `yaml:"accounting"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
	} `yaml:"redis"`

	Rate struct {
		Enabled     bool          `yaml:"enabled" env:"RATE_ENABLED"`
		Window      time.Duration `yaml:"window" env:"RATE_WINDOW"`
		MaxRequests int           `yaml:"max_requests" env:"RATE_MAX_REQUESTS"`
	} `yaml:"rate"`

	SMTP struct {
		Host     string `yaml:"host" env:"SMTP_HOST"`
		Port     int    `yaml:"port" env:"SMTP_PORT"`
		Username string `yaml:"username" env:"SMTP_USERNAME"`
		Password string `yaml:"password" env:"SMTP_PASSWORD"`
		From     string `yaml:"from" env:"SMTP_FROM"`
		UseTLS   bool   `yaml:"use_tls" env:"SMTP_USE_TLS"`
	} `yaml:"smtp"`

	HTTPClient struct {
		Timeout time.Duration `yaml:"timeout" env:"HTTP_CLIENT_TIMEOUT"`
	} `yaml:"http_client"`
}

// LoadDotEnv carga los .env que existan (en orden). No pisa variables ya seteadas.
func LoadDotEnv(files ...string) (int, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load arma la configuración: defaults → YAML opcional (path) → variables de entorno.
func Load(path string) (*Config, error) {
	c := Defaults()

	if path != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Variables no seteadas dejan el valor previo intacto.
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	c.normalize()
	return c, nil
}

// Defaults retorna la configuración base para dev local.
func Defaults() *Config {
	c := &Config{}
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Storage.Driver = DriverPostgres
	c.Identity.Driver = DriverPostgres
	c.Accounting.StateTTL = 10 * time.Minute
	c.Accounting.RefreshLeadWindow = 5 * time.Minute
	c.Redis.Prefix = "tenantgate:"
	c.Rate.Window = time.Minute
	c.Rate.MaxRequests = 30
	c.SMTP.Port = 587
	c.HTTPClient.Timeout = 10 * time.Second
	return c
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Identity.Driver = strings.ToLower(strings.TrimSpace(c.Identity.Driver))
	c.Server.SiteURL = strings.TrimRight(strings.TrimSpace(c.Server.SiteURL), "/")
	c.Server.PublicAPIURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicAPIURL), "/")

	origins := c.Server.CORSAllowedOrigins[:0]
	for _, o := range c.Server.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.CORSAllowedOrigins = origins
}

// IsProd indica si corre en producción.
func (c *Config) IsProd() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

// AccountingRedirectURL es el redirect_uri registrado en el proveedor contable.
func (c *Config) AccountingRedirectURL() string {
	if c.Server.PublicAPIURL == "" {
		return ""
	}
	return c.Server.PublicAPIURL + "/v1/accounting/callback"
}

// Validate enumera los valores faltantes o inválidos por componente habilitado.
// Las credenciales contables son opcionales: sin client id el connect responde
// CONFIGURATION_ERROR en runtime.
func (c *Config) Validate() error {
	var errs []error
	req := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s requerido", name))
		}
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		req(c.Storage.DSN, "DATABASE_URL")
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER inválido: %q", c.Storage.Driver))
	}

	switch c.Identity.Driver {
	case DriverPostgres:
		req(c.Storage.DSN, "DATABASE_URL")
	case DriverGoTrue:
		req(c.Identity.APIURL, "IDENTITY_API_URL")
		req(c.Identity.ServiceKey, "IDENTITY_SERVICE_KEY")
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_DRIVER inválido: %q", c.Identity.Driver))
	}

	req(c.Billing.SecretKey, "STRIPE_SECRET_KEY")
	req(c.Billing.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	req(c.Server.SiteURL, "SITE_URL")
	if c.Server.SiteURL != "" && !isAbsURL(c.Server.SiteURL) {
		errs = append(errs, errors.New("SITE_URL debe ser una URL absoluta"))
	}

	if c.Accounting.ClientID != "" {
		req(c.Accounting.AuthURL, "ACCOUNTING_AUTH_URL")
		req(c.Accounting.TokenURL, "ACCOUNTING_TOKEN_URL")
		req(c.Server.PublicAPIURL, "PUBLIC_API_URL")
		if len(c.Accounting.StateSigningKey) < 32 {
			errs = append(errs, errors.New("STATE_SIGNING_KEY debe tener al menos 32 bytes"))
		}
	}

	if c.SMTP.Host != "" {
		req(c.SMTP.From, "SMTP_FROM")
	}
	if c.Rate.Enabled && (c.Rate.Window <= 0 || c.Rate.MaxRequests <= 0) {
		errs = append(errs, errors.New("RATE_WINDOW y RATE_MAX_REQUESTS deben ser > 0"))
	}

	return errors.Join(errs...)
}

func isAbsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
