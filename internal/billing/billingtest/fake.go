// Package billingtest provee una pasarela en memoria para tests.
package billingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dropDatabas3/tenantgate/internal/billing"
)

// Gateway es un billing.Gateway en memoria. ParseWebhook acepta solo la firma
// configurada en Signature y devuelve el evento encolado para ese payload.
type Gateway struct {
	mu sync.Mutex

	// CheckoutErr se devuelve en CreateCheckoutSession si no es nil.
	CheckoutErr error
	// Signature es la única firma válida (default "valid").
	Signature string

	Requests []billing.CheckoutRequest
	events   map[string]*billing.Event
	seq      int
}

var _ billing.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{Signature: "valid", events: map[string]*billing.Event{}}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Requests = append(g.Requests, req)
	if g.CheckoutErr != nil {
		return nil, fmt.Errorf("%w: %w", billing.ErrGateway, g.CheckoutErr)
	}
	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	return &billing.CheckoutSession{ID: id, URL: "https://checkout.example.com/pay/" + id}, nil
}

// Register asocia un payload con el evento que ParseWebhook debe devolver.
func (g *Gateway) Register(payload string, ev *billing.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[payload] = ev
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if signature != g.Signature {
		return nil, billing.ErrInvalidSignature
	}
	ev, ok := g.events[string(payload)]
	if !ok {
		return nil, billing.ErrMalformedEvent
	}
	cp := *ev
	return &cp, nil
}

// LastRequest devuelve el último CheckoutRequest recibido.
func (g *Gateway) LastRequest() (billing.CheckoutRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Requests) == 0 {
		return billing.CheckoutRequest{}, false
	}
	return g.Requests[len(g.Requests)-1], true
}
