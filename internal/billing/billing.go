// Package billing define el contrato con la pasarela de pagos: creación de
// checkout sessions y verificación/decodificación de webhooks.
package billing

import (
	"context"
	"errors"
)

// Tipos de evento que el core entiende. Cualquier otro se ignora.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventCheckoutExpired     = "checkout.session.expired"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Claves de metadata de correlación en la checkout session.
const (
	MetaIdentityID         = "identity_id"
	MetaOrganizationName   = "organization_name"
	MetaOrganizationNumber = "organization_number"
	MetaEmail              = "email"
	MetaSignupFlow         = "signup_flow"
)

var (
	// ErrInvalidSignature indica que el payload no está firmado por la pasarela.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	// ErrMalformedEvent indica un evento firmado pero no decodificable.
	ErrMalformedEvent = errors.New("billing: malformed event")
	// ErrGateway indica una falla de la pasarela (red, timeout, rechazo).
	ErrGateway = errors.New("billing: gateway error")
)

// CheckoutRequest es la entrada para crear una checkout session de suscripción.
type CheckoutRequest struct {
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession es la sesión creada.
type CheckoutSession struct {
	ID  string
	URL string
}

// Session es el objeto checkout session recibido por webhook.
type Session struct {
	ID              string
	CustomerRef     string
	SubscriptionRef string
	Metadata        map[string]string
}

// IsSignupFlow indica si la sesión fue creada por el flujo de signup.
func (s *Session) IsSignupFlow() bool {
	return s != nil && s.Metadata[MetaSignupFlow] == "true"
}

// Subscription es el objeto suscripción recibido por webhook.
type Subscription struct {
	ID          string
	CustomerRef string
	Status      string
}

// Event es un evento de webhook verificado. Session o Subscription se populan
// según el tipo; para tipos desconocidos ambos quedan en nil.
type Event struct {
	ID           string
	Type         string
	Session      *Session
	Subscription *Subscription
}

// Gateway abstrae la pasarela de pagos.
type Gateway interface {
	// CreateCheckoutSession crea una sesión de pago. Errores envuelven ErrGateway.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// ParseWebhook verifica la firma sobre el body crudo y decodifica el evento.
	// Retorna ErrInvalidSignature o ErrMalformedEvent.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
