// Package accountingtest provee un proveedor contable en memoria para tests.
package accountingtest

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/accounting"
)

// Provider es un accounting.Provider en memoria.
type Provider struct {
	mu sync.Mutex

	NotConfigured bool
	// ExchangeErr / RefreshErr se devuelven si no son nil.
	ExchangeErr error
	RefreshErr  error
	// TTL del access token emitido (default 1h).
	TTL time.Duration
	// Delay simula latencia en Refresh (tests de coalescing).
	Delay time.Duration

	Now func() time.Time

	refreshCalls atomic.Int32
	issued       int
}

var _ accounting.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{TTL: time.Hour, Now: time.Now}
}

func (p *Provider) Configured() bool { return !p.NotConfigured }

func (p *Provider) AuthURL(state string) string {
	return "https://accounting.example.com/oauth/authorize?client_id=test&state=" + url.QueryEscape(state)
}

func (p *Provider) Exchange(ctx context.Context, code string) (*accounting.Token, error) {
	if p.ExchangeErr != nil {
		return nil, p.ExchangeErr
	}
	return p.issue("code-" + code), nil
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*accounting.Token, error) {
	p.refreshCalls.Add(1)
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.RefreshErr != nil {
		return nil, p.RefreshErr
	}
	return p.issue("refresh"), nil
}

// RefreshCalls cuenta las llamadas a Refresh.
func (p *Provider) RefreshCalls() int { return int(p.refreshCalls.Load()) }

func (p *Provider) issue(prefix string) *accounting.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	n := time.Now
	if p.Now != nil {
		n = p.Now
	}
	suffix := strconv.Itoa(p.issued)
	return &accounting.Token{
		AccessToken:  prefix + "-access-" + suffix,
		RefreshToken: prefix + "-refresh-" + suffix,
		ExpiresAt:    n().Add(p.TTL),
	}
}
