// Package oauth implementa accounting.Provider sobre golang.org/x/oauth2.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/tenantgate/internal/accounting"
)

// Config del proveedor.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	// AuthStyle: "header" (basic auth), "params" o "" (autodetect).
	AuthStyle  string
	HTTPClient *http.Client
}

// Provider es un accounting.Provider basado en oauth2.Config.
type Provider struct {
	cfg    oauth2.Config
	client *http.Client
}

var _ accounting.Provider = (*Provider)(nil)

// New crea el provider.
func New(c Config) *Provider {
	style := oauth2.AuthStyleAutoDetect
	switch strings.ToLower(c.AuthStyle) {
	case "header":
		style = oauth2.AuthStyleInHeader
	case "params":
		style = oauth2.AuthStyleInParams
	}
	return &Provider{
		cfg: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       c.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.AuthURL,
				TokenURL:  c.TokenURL,
				AuthStyle: style,
			},
		},
		client: c.HTTPClient,
	}
}

func (p *Provider) Configured() bool {
	return p.cfg.ClientID != "" && p.cfg.Endpoint.AuthURL != "" && p.cfg.Endpoint.TokenURL != ""
}

func (p *Provider) AuthURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *Provider) Exchange(ctx context.Context, code string) (*accounting.Token, error) {
	if !p.Configured() {
		return nil, accounting.ErrNotConfigured
	}
	tok, err := p.cfg.Exchange(p.withClient(ctx), code)
	if err != nil {
		return nil, classify(err)
	}
	return toToken(tok), nil
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*accounting.Token, error) {
	if !p.Configured() {
		return nil, accounting.ErrNotConfigured
	}
	// Sin access token el TokenSource siempre va al token endpoint.
	src := p.cfg.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classify(err)
	}
	out := toToken(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	if p.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func toToken(t *oauth2.Token) *accounting.Token {
	return &accounting.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
}

// classify separa el rechazo del refresh token (invalid_grant) de los errores
// de credenciales del cliente (invalid_client, unauthorized_client) y del resto.
// Solo invalid_grant implica que el tenant debe reconectar.
func classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant":
			return fmt.Errorf("%w: %s", accounting.ErrInvalidGrant, re.ErrorCode)
		case "invalid_client", "unauthorized_client":
			return fmt.Errorf("%w: %s", accounting.ErrNotConfigured, re.ErrorCode)
		}
	}
	return fmt.Errorf("%w: %w", accounting.ErrProvider, err)
}
