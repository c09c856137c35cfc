package signup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payments "github.com/dropDatabas3/tenantgate/internal/billing"
	"github.com/dropDatabas3/tenantgate/internal/billing/billingtest"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/signup"
	"github.com/dropDatabas3/tenantgate/internal/store/memory"
	"github.com/dropDatabas3/tenantgate/internal/validation"
)

type fixture struct {
	svc        SignupService
	identities *memory.IdentityStore
	tenants    *memory.TenantStore
	gateway    *billingtest.Gateway
}

func newFixture(plans map[string]string) *fixture {
	f := &fixture{
		identities: memory.NewIdentityStore(),
		tenants:    memory.NewTenantStore(),
		gateway:    billingtest.New(),
	}
	f.svc = NewSignupService(SignupDeps{
		Identities: f.identities,
		Tenants:    f.tenants,
		Gateway:    f.gateway,
		Plans:      plans,
	})
	return f
}

func validRequest() dto.SignupRequest {
	return dto.SignupRequest{
		OrganizationName:   "Acme AB",
		OrganizationNumber: "556677-8899",
		Email:              "A@B.se",
		Password:           "hunter22",
		PlanID:             "price_basic",
		SuccessURL:         "https://app.example.com/welcome",
		CancelURL:          "https://app.example.com/signup",
	}
}

func TestInitiate_Success(t *testing.T) {
	f := newFixture(nil)

	res, err := f.svc.Initiate(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, res.CheckoutURL)

	ident, err := f.identities.GetByID(context.Background(), res.IdentityID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.se", ident.Email)
	assert.False(t, ident.Confirmed)
	assert.True(t, ident.PendingPayment())
	assert.Equal(t, "556677-8899", ident.MetaString(repository.MetaOrganizationNumber))
	for k, v := range ident.Metadata {
		assert.NotEqual(t, "hunter22", v, "password leaked into identity metadata key %q", k)
	}
	assert.True(t, f.identities.CheckPassword(res.IdentityID, "hunter22"))

	req, ok := f.gateway.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "price_basic", req.PriceID)
	assert.Equal(t, "a@b.se", req.CustomerEmail)
	assert.Equal(t, map[string]string{
		payments.MetaIdentityID:         res.IdentityID,
		payments.MetaOrganizationName:   "Acme AB",
		payments.MetaOrganizationNumber: "556677-8899",
		payments.MetaEmail:              "a@b.se",
		payments.MetaSignupFlow:         "true",
	}, req.Metadata)
}

func TestInitiate_MissingFields(t *testing.T) {
	f := newFixture(nil)
	in := validRequest()
	in.Password = ""
	in.SuccessURL = "not a url"

	_, err := f.svc.Initiate(context.Background(), in)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{"password", "success_url"}, validation.Fields(err))
	assert.Zero(t, f.identities.Len())
	assert.Empty(t, f.gateway.Requests)
}

func TestInitiate_UnknownPlan(t *testing.T) {
	f := newFixture(map[string]string{"basic": "price_123"})
	in := validRequest()
	in.PlanID = "gold"

	_, err := f.svc.Initiate(context.Background(), in)
	require.ErrorIs(t, err, ErrUnknownPlan)
	require.ErrorIs(t, err, ErrValidation)

	in.PlanID = "basic"
	_, err = f.svc.Initiate(context.Background(), in)
	require.NoError(t, err)
	req, _ := f.gateway.LastRequest()
	assert.Equal(t, "price_123", req.PriceID)
}

func TestInitiate_OrganizationTaken(t *testing.T) {
	f := newFixture(nil)
	_, _, err := f.tenants.CreateIfAbsent(context.Background(), repository.CreateTenantInput{
		ID: "t1", Name: "Other", OrganizationNumber: "556677-8899", Email: "other@b.se",
	})
	require.NoError(t, err)

	_, err = f.svc.Initiate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrOrganizationTaken)
	require.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, f.identities.Len(), "no identity may be created on conflict")
	assert.Empty(t, f.gateway.Requests)
}

func TestInitiate_EmailTaken(t *testing.T) {
	f := newFixture(nil)
	_, _, err := f.tenants.CreateIfAbsent(context.Background(), repository.CreateTenantInput{
		ID: "t1", Name: "Other", OrganizationNumber: "111111-1111", Email: "a@b.se",
	})
	require.NoError(t, err)

	_, err = f.svc.Initiate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrEmailTaken)
	assert.Zero(t, f.identities.Len())
}

func TestInitiate_IdentityEmailExists(t *testing.T) {
	f := newFixture(nil)
	_, err := f.identities.Create(context.Background(), repository.CreateIdentityInput{Email: "a@b.se", Password: "x"})
	require.NoError(t, err)

	_, err = f.svc.Initiate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, 1, f.identities.Len())
}

func TestInitiate_CheckoutFailureCompensates(t *testing.T) {
	f := newFixture(nil)
	f.gateway.CheckoutErr = errors.New("stripe down")

	_, err := f.svc.Initiate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrPaymentSessionCreationFailed)
	require.ErrorIs(t, err, payments.ErrGateway)
	assert.Zero(t, f.identities.Len(), "pending identity must be deleted")
	assert.Zero(t, f.tenants.Len())
}

func TestInitiate_CompensatesWithCanceledContext(t *testing.T) {
	f := newFixture(nil)
	f.gateway.CheckoutErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Initiate(ctx, validRequest())
	require.ErrorIs(t, err, ErrPaymentSessionCreationFailed)
	assert.Zero(t, f.identities.Len())
}
