// Package stripe implementa billing.Gateway sobre stripe-go.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/dropDatabas3/tenantgate/internal/billing"
)

// Config del gateway.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL reemplaza la API de Stripe (tests / stripe-mock).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Gateway es un billing.Gateway respaldado por Stripe.
type Gateway struct {
	sessions      session.Client
	webhookSecret string
}

var _ billing.Gateway = (*Gateway)(nil)

// New crea el gateway. No hace llamadas de red.
func New(cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret requerido")
	}
	bc := &stripego.BackendConfig{
		HTTPClient: cfg.HTTPClient,
		// sin reintentos in-process: la falla se propaga al caller
		MaxNetworkRetries: stripego.Int64(0),
	}
	if cfg.BaseURL != "" {
		bc.URL = stripego.String(cfg.BaseURL)
	}
	if cfg.Logger != nil {
		bc.LeveledLogger = cfg.Logger.Named("stripe").Sugar()
	}
	return &Gateway{
		sessions: session.Client{
			B:   stripego.GetBackendWithConfig(stripego.APIBackend, bc),
			Key: cfg.SecretKey,
		},
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	if g.sessions.Key == "" {
		return nil, fmt.Errorf("%w: secret key no configurada", billing.ErrGateway)
	}

	params := &stripego.CheckoutSessionParams{
		Mode: stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{Price: stripego.String(req.PriceID), Quantity: stripego.Int64(1)},
		},
		SuccessURL:       stripego.String(req.SuccessURL),
		CancelURL:        stripego.String(req.CancelURL),
		SubscriptionData: &stripego.CheckoutSessionSubscriptionDataParams{Metadata: map[string]string{}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
		params.SubscriptionData.Metadata[k] = v
	}
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", billing.ErrGateway, err)
	}
	if s.URL == "" {
		return nil, fmt.Errorf("%w: session %s sin url", billing.ErrGateway, s.ID)
	}
	return &billing.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, billing.ErrInvalidSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrTooOld) {
			return nil, billing.ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %w", billing.ErrMalformedEvent, err)
	}

	out := &billing.Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case billing.EventCheckoutCompleted, billing.EventCheckoutExpired:
		var cs stripego.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: decode checkout.session: %w", billing.ErrMalformedEvent, err)
		}
		s := &billing.Session{ID: cs.ID, Metadata: cs.Metadata}
		if cs.Customer != nil {
			s.CustomerRef = cs.Customer.ID
		}
		if cs.Subscription != nil {
			s.SubscriptionRef = cs.Subscription.ID
		}
		out.Session = s
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %w", billing.ErrMalformedEvent, err)
		}
		s := &billing.Subscription{ID: sub.ID, Status: string(sub.Status)}
		if sub.Customer != nil {
			s.CustomerRef = sub.Customer.ID
		}
		out.Subscription = s
	}
	return out, nil
}
