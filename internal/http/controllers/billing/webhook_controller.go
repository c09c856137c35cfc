// Package billing contiene el controller de webhooks de la pasarela de pagos.
package billing

import (
	"errors"
	"io"
	"net/http"

	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/billing"
	httperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/http/helpers"
	svc "github.com/dropDatabas3/tenantgate/internal/http/services/billing"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

// maxPayloadSize es el tamaño máximo de un evento (Stripe envía <64KB).
const maxPayloadSize = 64 * 1024

// SignatureHeader es el header con la firma del payload.
const SignatureHeader = "Stripe-Signature"

// WebhookController maneja POST /v1/webhooks/payments.
type WebhookController struct {
	service svc.WebhookService
}

// NewWebhookController crea el controller.
func NewWebhookController(service svc.WebhookService) *WebhookController {
	return &WebhookController{service: service}
}

// Receive maneja POST /v1/webhooks/payments. La firma se verifica sobre el body
// crudo, por eso no pasa por ReadJSON.
func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("WebhookController.Receive"))

	if !helpers.RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadSize)
	defer r.Body.Close()
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
			return
		}
		log.Warn("could not read webhook body", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.Handle(ctx, payload, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrSignatureVerification):
			httperrors.WriteError(w, httperrors.ErrInvalidSignature)
		default:
			log.Error("webhook processing failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrWebhookRetry)
		}
		return
	}

	log.Info("webhook received",
		logger.EventID(result.EventID),
		logger.EventType(result.EventType),
		logger.String("outcome", result.Outcome),
	)
	helpers.WriteJSON(w, http.StatusOK, dto.WebhookResponse{Received: true})
}
