// Package accounting contains DTOs for the accounting OAuth endpoints.
package accounting

import "time"

// StatusResponse represents the response for GET /v1/accounting/status.
type StatusResponse struct {
	Connected bool `json:"connected"`
}

// ConnectResponse represents the response for GET /v1/accounting/connect.
type ConnectResponse struct {
	AuthURL string `json:"auth_url"`
}

// CallbackRequest carries the provider redirect query parameters.
type CallbackRequest struct {
	Code  string
	State string
	// Error is set when the user denied consent or the provider failed.
	Error            string
	ErrorDescription string
}

// CallbackResult is the internal result from the callback; the controller
// always answers with a redirect to RedirectURL.
type CallbackResult struct {
	TenantID    string
	RedirectURL string
}

// SuccessResponse is the generic {success:true} body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// RefreshResponse represents the response for POST /v1/accounting/refresh.
type RefreshResponse struct {
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RefreshResult is the internal result from EnsureFresh.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Refreshed   bool
}
