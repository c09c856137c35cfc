// Package accounting define el contrato con el proveedor contable externo
// (authorization-code + refresh grant de OAuth2).
package accounting

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConfigured indica que falta client id / endpoints o que el proveedor
	// rechazó las credenciales del cliente (invalid_client).
	ErrNotConfigured = errors.New("accounting: provider not configured")
	// ErrInvalidGrant indica que el proveedor rechazó el code o el refresh token.
	// El bundle guardado ya no sirve y el tenant debe reconectar.
	ErrInvalidGrant = errors.New("accounting: grant rejected by provider")
	// ErrProvider indica una falla de transporte o respuesta inesperada.
	ErrProvider = errors.New("accounting: provider error")
)

// Token es el bundle emitido por el proveedor.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Provider abstrae el servidor OAuth del proveedor contable.
type Provider interface {
	// Configured indica si hay client id y endpoints.
	Configured() bool

	// AuthURL construye la URL de autorización con el state dado.
	AuthURL(state string) string

	// Exchange canjea el authorization code.
	Exchange(ctx context.Context, code string) (*Token, error)

	// Refresh usa el refresh grant. Si la respuesta no trae refresh token
	// se conserva el anterior.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}
