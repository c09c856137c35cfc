// Package statetoken firma y verifica el parámetro state del flujo OAuth con el
// proveedor contable: un JWT HS256 de vida corta que liga el callback al tenant.
package statetoken

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Audience es el audience esperado en los state tokens.
const Audience = "accounting-oauth-state"

// DefaultTTL es la vida de un state token.
const DefaultTTL = 10 * time.Minute

// Errors for state operations.
var (
	ErrStateInvalid  = errors.New("invalid state token")
	ErrStateExpired  = errors.New("state token expired")
	ErrStateAudience = errors.New("state audience mismatch")
	ErrStateTenant   = errors.New("state without tenant")
	ErrStateReplayed = errors.New("state token already used")
)

// Claims del state.
type Claims struct {
	TenantID string `json:"tid"`
	jwtv5.RegisteredClaims
}

// Signer firma y verifica state tokens con una clave simétrica.
// Cada jti se acepta una sola vez por proceso.
type Signer struct {
	key  []byte
	ttl  time.Duration
	now  func() time.Time
	used *gocache.Cache
}

// NewSigner crea un Signer. ttl <= 0 usa DefaultTTL.
func NewSigner(key []byte, ttl time.Duration) (*Signer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("statetoken: la clave debe tener al menos 32 bytes, tiene %d", len(key))
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{
		key:  k,
		ttl:  ttl,
		now:  time.Now,
		used: gocache.New(ttl, 2*ttl),
	}, nil
}

// WithClock reemplaza el reloj (tests).
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Sign emite un state para el tenant.
func (s *Signer) Sign(tenantID string) (string, error) {
	if tenantID == "" {
		return "", ErrStateTenant
	}
	now := s.now().UTC()
	claims := Claims{
		TenantID: tenantID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Audience:  jwtv5.ClaimStrings{Audience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify valida firma, audience y expiración, consume el jti y retorna el tenant.
// Un segundo Verify del mismo token retorna ErrStateReplayed.
func (s *Signer) Verify(token string) (string, error) {
	claims := &Claims{}
	tk, err := jwtv5.ParseWithClaims(token, claims,
		func(t *jwtv5.Token) (any, error) { return s.key, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithAudience(Audience),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return "", ErrStateExpired
	case errors.Is(err, jwtv5.ErrTokenInvalidAudience):
		return "", ErrStateAudience
	case err != nil || !tk.Valid:
		return "", ErrStateInvalid
	}
	if claims.TenantID == "" {
		return "", ErrStateTenant
	}
	if claims.ID == "" {
		return "", ErrStateInvalid
	}
	// El jti vive en el cache lo mismo que el token; después expira por exp.
	if err := s.used.Add(claims.ID, struct{}{}, s.ttl); err != nil {
		return "", ErrStateReplayed
	}
	return claims.TenantID, nil
}
