package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantgate/internal/accounting/accountingtest"
	"github.com/dropDatabas3/tenantgate/internal/billing"
	"github.com/dropDatabas3/tenantgate/internal/billing/billingtest"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/http/controllers"
	"github.com/dropDatabas3/tenantgate/internal/http/router"
	"github.com/dropDatabas3/tenantgate/internal/http/services"
	"github.com/dropDatabas3/tenantgate/internal/http/services/health"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/rate"
	"github.com/dropDatabas3/tenantgate/internal/security/statetoken"
	"github.com/dropDatabas3/tenantgate/internal/store/memory"
)

const siteURL = "https://app.example.com"

type harness struct {
	handler    http.Handler
	identities *memory.IdentityStore
	tenants    *memory.TenantStore
	gateway    *billingtest.Gateway
	provider   *accountingtest.Provider
}

func newHarness(t *testing.T, limiter rate.Limiter) *harness {
	t.Helper()

	h := &harness{
		identities: memory.NewIdentityStore(),
		tenants:    memory.NewTenantStore(),
		gateway:    billingtest.New(),
		provider:   accountingtest.New(),
	}
	signer, err := statetoken.NewSigner([]byte(strings.Repeat("s", 32)), 0)
	require.NoError(t, err)
	m := metrics.MustNew()

	svcs := services.New(services.Deps{
		Identities: h.identities,
		Tenants:    h.tenants,
		Gateway:    h.gateway,
		Provider:   h.provider,
		State:      signer,
		SiteURL:    siteURL,
		Metrics:    m,
		HealthDeps: health.Deps{Version: "test", DBCheck: h.tenants.Ping},
	})
	h.handler = router.New(router.Deps{
		Controllers: controllers.New(svcs),
		CORSOrigins: []string{siteURL},
		RateLimiter: limiter,
		Metrics:     m,
	})
	return h
}

func (h *harness) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) webhook(t *testing.T, payload string) *httptest.ResponseRecorder {
	return h.do(t, http.MethodPost, "/v1/webhooks/payments", payload, map[string]string{"Stripe-Signature": "valid"})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

const signupBody = `{
	"organization_name": "Acme AB",
	"organization_number": "556677-8899",
	"email": "A@B.se",
	"password": "hunter22",
	"plan_id": "price_basic",
	"success_url": "https://app.example.com/welcome",
	"cancel_url": "https://app.example.com/signup"
}`

func TestSignupToTenant(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/signup", signupBody, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		CheckoutURL string `json:"checkout_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.example.com/pay/cs_test_1", resp.CheckoutURL)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	checkout, ok := h.gateway.LastRequest()
	require.True(t, ok)
	identityID := checkout.Metadata[billing.MetaIdentityID]
	require.NotEmpty(t, identityID)
	assert.Equal(t, "true", checkout.Metadata[billing.MetaSignupFlow])
	assert.Equal(t, "a@b.se", checkout.Metadata[billing.MetaEmail])

	ident, err := h.identities.GetByID(context.Background(), identityID)
	require.NoError(t, err)
	assert.True(t, ident.PendingPayment())
	for k, v := range ident.Metadata {
		assert.NotEqual(t, "hunter22", v, "metadata %q", k)
	}

	h.gateway.Register("evt_completed", &billing.Event{
		ID:   "evt_1",
		Type: billing.EventCheckoutCompleted,
		Session: &billing.Session{
			ID:              "cs_test_1",
			CustomerRef:     "cus_1",
			SubscriptionRef: "sub_1",
			Metadata:        checkout.Metadata,
		},
	})

	// Entregas duplicadas: un solo tenant.
	for i := 0; i < 2; i++ {
		rec = h.webhook(t, "evt_completed")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	}
	assert.Equal(t, 1, h.tenants.Len())

	tenant, err := h.tenants.GetByID(context.Background(), identityID)
	require.NoError(t, err)
	assert.Equal(t, repository.SubscriptionActive, tenant.SubscriptionStatus)
	assert.Equal(t, "Acme AB", tenant.Name)
	assert.Equal(t, "cus_1", tenant.BillingCustomerRef)

	ident, err = h.identities.GetByID(context.Background(), identityID)
	require.NoError(t, err)
	assert.True(t, ident.Confirmed)
	assert.False(t, ident.PendingPayment())

	// Mismo número de organización: rechazado antes de crear nada.
	rec = h.do(t, http.MethodPost, "/v1/signup", strings.Replace(signupBody, "A@B.se", "other@b.se", 1), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ORGANIZATION_ALREADY_REGISTERED", errorCode(t, rec))
	assert.Equal(t, 1, h.identities.Len())
	assert.Len(t, h.gateway.Requests, 1)
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/signup", `{"organization_name":"Acme"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	assert.Equal(t, 0, h.identities.Len())

	rec = h.do(t, http.MethodPost, "/v1/signup", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutExpiredDiscardsIdentity(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/signup", signupBody, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	checkout, _ := h.gateway.LastRequest()

	h.gateway.Register("evt_expired", &billing.Event{
		ID:      "evt_2",
		Type:    billing.EventCheckoutExpired,
		Session: &billing.Session{ID: "cs_test_1", Metadata: checkout.Metadata},
	})

	for i := 0; i < 2; i++ {
		rec = h.webhook(t, "evt_expired")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, 0, h.identities.Len())
	assert.Equal(t, 0, h.tenants.Len())
}

func TestCheckoutExpiredUnknownIdentity(t *testing.T) {
	h := newHarness(t, nil)

	h.gateway.Register("evt_expired", &billing.Event{
		ID:   "evt_3",
		Type: billing.EventCheckoutExpired,
		Session: &billing.Session{ID: "cs_x", Metadata: map[string]string{
			billing.MetaIdentityID: "u1",
			billing.MetaSignupFlow: "true",
		}},
	})
	rec := h.webhook(t, "evt_expired")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookBadSignature(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.Register("evt_completed", &billing.Event{
		ID:   "evt_1",
		Type: billing.EventCheckoutCompleted,
		Session: &billing.Session{ID: "cs", Metadata: map[string]string{
			billing.MetaIdentityID: "u1",
			billing.MetaSignupFlow: "true",
		}},
	})

	rec := h.do(t, http.MethodPost, "/v1/webhooks/payments", "evt_completed", map[string]string{"Stripe-Signature": "tampered"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SIGNATURE", errorCode(t, rec))
	assert.Equal(t, 0, h.tenants.Len())

	rec = h.do(t, http.MethodGet, "/v1/webhooks/payments", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProvisionFallback(t *testing.T) {
	h := newHarness(t, nil)

	ident, err := h.identities.Create(context.Background(), repository.CreateIdentityInput{
		Email:    "ops@acme.se",
		Password: "x",
	})
	require.NoError(t, err)

	body := `{"user_id":"` + ident.ID + `","organization_name":"Acme","organization_number":"1","email":"ops@acme.se"}`
	rec := h.do(t, http.MethodPost, "/v1/tenants/provision", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Tenant  struct {
			ID                 string `json:"id"`
			SubscriptionStatus string `json:"subscription_status"`
		} `json:"tenant"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, ident.ID, resp.Tenant.ID)
	assert.Equal(t, "trialing", resp.Tenant.SubscriptionStatus)

	rec = h.do(t, http.MethodPost, "/v1/tenants/provision", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.tenants.Len())

	rec = h.do(t, http.MethodPost, "/v1/tenants/provision",
		`{"user_id":"missing","organization_name":"Acme","organization_number":"2","email":"x@acme.se"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IDENTITY_NOT_FOUND", errorCode(t, rec))
}

func TestAccountingLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	_, _, err := h.tenants.CreateIfAbsent(context.Background(), repository.CreateTenantInput{
		ID:                 "t1",
		Name:               "Acme",
		OrganizationNumber: "1",
		Email:              "a@acme.se",
		SubscriptionStatus: repository.SubscriptionActive,
	})
	require.NoError(t, err)

	status := func() bool {
		rec := h.do(t, http.MethodGet, "/v1/accounting/status?tenant_id=t1", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Connected bool `json:"connected"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Connected
	}
	assert.False(t, status())

	rec := h.do(t, http.MethodGet, "/v1/accounting/connect?tenant_id=t1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var connect struct {
		AuthURL string `json:"auth_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &connect))
	u, err := url.Parse(connect.AuthURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	rec = h.do(t, http.MethodGet, "/v1/accounting/callback?code=abc&state="+url.QueryEscape(state), "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, siteURL+"/settings/integrations?accounting=connected", rec.Header().Get("Location"))
	assert.True(t, status())

	rec = h.do(t, http.MethodPost, "/v1/accounting/refresh?tenant_id=t1&force=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, h.provider.RefreshCalls())

	rec = h.do(t, http.MethodPost, "/v1/accounting/oauth?action=disconnect&tenant_id=t1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, status())
}

func TestAccountingCallbackBadState(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/v1/accounting/callback?code=abc&state=forged", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "error", loc.Query().Get("accounting"))
	assert.Equal(t, "invalid_state", loc.Query().Get("code"))
}

func TestRouteErrors(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = h.do(t, http.MethodGet, "/v1/signup", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorCode(t, rec))
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodOptions, "/v1/signup", "", map[string]string{
		"Origin":                        siteURL,
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, siteURL, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = h.do(t, http.MethodOptions, "/v1/signup", "", map[string]string{
		"Origin":                        "https://evil.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, rate.NewMemoryLimiter(1, time.Minute))

	rec := h.do(t, http.MethodPost, "/v1/signup", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/signup", `{}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// El webhook no tiene rate limit.
	rec = h.do(t, http.MethodPost, "/v1/webhooks/payments", "x", map[string]string{"Stripe-Signature": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/readyz",status="2xx"}`)
}
