// Package billing contains DTOs for the payment webhook endpoint.
package billing

// WebhookResponse acknowledges an event to the payment provider.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// WebhookResult is the internal result from WebhookService.
type WebhookResult struct {
	EventID   string
	EventType string
	// Outcome is processed | ignored | dead_end.
	Outcome string
}
