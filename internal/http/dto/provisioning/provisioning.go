// Package provisioning contains DTOs for direct tenant provisioning.
package provisioning

import "time"

// ProvisionRequest represents the request body for POST /v1/tenants/provision.
type ProvisionRequest struct {
	UserID             string `json:"user_id" validate:"required"`
	OrganizationName   string `json:"organization_name" validate:"required,max=200"`
	OrganizationNumber string `json:"organization_number" validate:"required,max=64"`
	Email              string `json:"email" validate:"required,email,max=254"`
}

// TenantDTO is the public view of a tenant. Accounting tokens are never exposed.
type TenantDTO struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	OrganizationNumber  string    `json:"organization_number"`
	Email               string    `json:"email"`
	SubscriptionStatus  string    `json:"subscription_status"`
	AccountingConnected bool      `json:"accounting_connected"`
	CreatedAt           time.Time `json:"created_at"`
}

// ProvisionResponse represents the response for POST /v1/tenants/provision.
type ProvisionResponse struct {
	Success bool      `json:"success"`
	Tenant  TenantDTO `json:"tenant"`
}

// ProvisionResult is the internal result from ProvisionService.
type ProvisionResult struct {
	Tenant  TenantDTO
	Created bool
}
