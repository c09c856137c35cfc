// Package signup contains DTOs for the signup endpoint.
package signup

// SignupRequest represents the request body for POST /v1/signup.
type SignupRequest struct {
	OrganizationName   string `json:"organization_name" validate:"required,max=200"`
	OrganizationNumber string `json:"organization_number" validate:"required,max=64"`
	Email              string `json:"email" validate:"required,email,max=254"`
	// Password is hashed by the identity store; it never reaches checkout metadata.
	Password   string `json:"password" validate:"required,max=128"`
	PlanID     string `json:"plan_id" validate:"required,max=128"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// SignupResponse is returned once the checkout session exists.
type SignupResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// SignupResult is the internal result from SignupService.
type SignupResult struct {
	IdentityID  string
	SessionID   string
	CheckoutURL string
}
