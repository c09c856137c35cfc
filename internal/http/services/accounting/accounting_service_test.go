package accounting

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provider "github.com/dropDatabas3/tenantgate/internal/accounting"
	"github.com/dropDatabas3/tenantgate/internal/accounting/accountingtest"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	"github.com/dropDatabas3/tenantgate/internal/email"
	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/accounting"
	"github.com/dropDatabas3/tenantgate/internal/security/statetoken"
	"github.com/dropDatabas3/tenantgate/internal/store/memory"
)

const siteURL = "https://app.example.com"

type recordingNotifier struct {
	mu      sync.Mutex
	notices []email.ReconnectNotice
}

func (r *recordingNotifier) NotifyReconnect(_ context.Context, n email.ReconnectNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

type fixture struct {
	svc      AccountingService
	tenants  *memory.TenantStore
	provider *accountingtest.Provider
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer, err := statetoken.NewSigner([]byte("0123456789abcdef0123456789abcdef"), 0)
	require.NoError(t, err)
	signer.WithClock(func() time.Time { return now })

	f := &fixture{
		tenants:  memory.NewTenantStore(),
		provider: accountingtest.New(),
		notifier: &recordingNotifier{},
		now:      now,
	}
	f.provider.Now = func() time.Time { return now }
	f.svc = NewAccountingService(AccountingDeps{
		Tenants:  f.tenants,
		Provider: f.provider,
		State:    signer,
		Notifier: f.notifier,
		SiteURL:  siteURL,
		Now:      func() time.Time { return now },
	})

	_, _, err = f.tenants.CreateIfAbsent(context.Background(), repository.CreateTenantInput{
		ID: "t1", Name: "Acme AB", OrganizationNumber: "556677-8899", Email: "a@b.se",
		SubscriptionStatus: repository.SubscriptionActive,
	})
	require.NoError(t, err)
	return f
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func (f *fixture) setCredential(t *testing.T, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, f.tenants.SetAccountingCredential(context.Background(), "t1", &repository.AccountingCredential{
		AccessToken: "old-access", RefreshToken: "old-refresh", ExpiresAt: expiresAt,
	}))
}

func TestConnectCallbackStatusDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	connected, err := f.svc.Status(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, connected)

	authURL, err := f.svc.Connect(ctx, "t1")
	require.NoError(t, err)
	state := stateFrom(t, authURL)
	require.NotEmpty(t, state)

	res, err := f.svc.Callback(ctx, dto.CallbackRequest{Code: "abc", State: state})
	require.NoError(t, err)
	assert.Equal(t, siteURL+"/settings/integrations?accounting=connected", res.RedirectURL)
	assert.Equal(t, "t1", res.TenantID)

	connected, err = f.svc.Status(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, connected)

	tenant, _ := f.tenants.GetByID(ctx, "t1")
	assert.Equal(t, f.now.Add(time.Hour), tenant.Accounting.ExpiresAt)

	require.NoError(t, f.svc.Disconnect(ctx, "t1"))
	require.NoError(t, f.svc.Disconnect(ctx, "t1"), "disconnect is idempotent")
	connected, err = f.svc.Status(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestStatus_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Status(context.Background(), "")
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Status(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestConnect_NotConfigured(t *testing.T) {
	f := newFixture(t)
	f.provider.NotConfigured = true
	_, err := f.svc.Connect(context.Background(), "t1")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestConnect_UnknownTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Connect(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestCallback_TamperedStateRedirectsWithInvalidState(t *testing.T) {
	f := newFixture(t)
	authURL, err := f.svc.Connect(context.Background(), "t1")
	require.NoError(t, err)
	state := stateFrom(t, authURL) + "x"

	res, err := f.svc.Callback(context.Background(), dto.CallbackRequest{Code: "abc", State: state})
	require.ErrorIs(t, err, ErrState)
	assert.Equal(t, siteURL+"/settings/integrations?accounting=error&code=invalid_state", res.RedirectURL)

	connected, _ := f.svc.Status(context.Background(), "t1")
	assert.False(t, connected)
}

func TestCallback_ReplayedStateIsRejected(t *testing.T) {
	f := newFixture(t)
	authURL, err := f.svc.Connect(context.Background(), "t1")
	require.NoError(t, err)
	state := stateFrom(t, authURL)

	_, err = f.svc.Callback(context.Background(), dto.CallbackRequest{Code: "abc", State: state})
	require.NoError(t, err)
	require.NoError(t, f.svc.Disconnect(context.Background(), "t1"))

	res, err := f.svc.Callback(context.Background(), dto.CallbackRequest{Code: "abc", State: state})
	require.ErrorIs(t, err, ErrState)
	require.ErrorIs(t, err, statetoken.ErrStateReplayed)
	assert.Contains(t, res.RedirectURL, "code=invalid_state")

	connected, _ := f.svc.Status(context.Background(), "t1")
	assert.False(t, connected)
}

func TestCallback_ProviderDenied(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Callback(context.Background(), dto.CallbackRequest{Error: "access_denied"})
	require.ErrorIs(t, err, ErrProviderDenied)
	assert.Contains(t, res.RedirectURL, "code=access_denied")

	res, _ = f.svc.Callback(context.Background(), dto.CallbackRequest{Error: "<script>"})
	assert.Contains(t, res.RedirectURL, "code=provider_error")
}

func TestCallback_MissingParams(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Callback(context.Background(), dto.CallbackRequest{Code: "abc"})
	require.Error(t, err)
	assert.Contains(t, res.RedirectURL, "code=invalid_request")
}

func TestCallback_ExchangeFailureKeepsPreviousBundle(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(time.Hour))
	f.provider.ExchangeErr = provider.ErrProvider

	authURL, err := f.svc.Connect(context.Background(), "t1")
	require.NoError(t, err)
	res, err := f.svc.Callback(context.Background(), dto.CallbackRequest{Code: "abc", State: stateFrom(t, authURL)})
	require.ErrorIs(t, err, ErrExternalService)
	assert.Contains(t, res.RedirectURL, "code=exchange_failed")

	tenant, _ := f.tenants.GetByID(context.Background(), "t1")
	assert.Equal(t, "old-access", tenant.Accounting.AccessToken)
}

func TestEnsureFresh_NoRefreshOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(30*time.Minute))

	tok, err := f.svc.AccessToken(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "old-access", tok)
	assert.Zero(t, f.provider.RefreshCalls())
}

func TestEnsureFresh_RefreshesInsideLeadWindow(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(2*time.Minute))

	res, err := f.svc.EnsureFresh(context.Background(), "t1", false)
	require.NoError(t, err)
	assert.True(t, res.Refreshed)
	assert.Equal(t, f.now.Add(time.Hour), res.ExpiresAt)
	assert.Equal(t, 1, f.provider.RefreshCalls())

	tenant, _ := f.tenants.GetByID(context.Background(), "t1")
	assert.Equal(t, res.AccessToken, tenant.Accounting.AccessToken)
	assert.NotEqual(t, "old-refresh", tenant.Accounting.RefreshToken)
}

func TestEnsureFresh_ForceRefreshes(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(10*time.Hour))

	res, err := f.svc.EnsureFresh(context.Background(), "t1", true)
	require.NoError(t, err)
	assert.True(t, res.Refreshed)
}

func TestEnsureFresh_ZeroExpiryNeverRefreshes(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, time.Time{})

	_, err := f.svc.AccessToken(context.Background(), "t1")
	require.NoError(t, err)
	assert.Zero(t, f.provider.RefreshCalls())
}

func TestEnsureFresh_InvalidGrantDisconnectsAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(-time.Minute))
	f.provider.RefreshErr = provider.ErrInvalidGrant

	_, err := f.svc.AccessToken(context.Background(), "t1")
	require.ErrorIs(t, err, ErrReconnectRequired)

	connected, _ := f.svc.Status(context.Background(), "t1")
	assert.False(t, connected)
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "a@b.se", f.notifier.notices[0].Email)
}

func TestEnsureFresh_TransientFailureKeepsBundle(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(-time.Minute))
	f.provider.RefreshErr = errors.Join(provider.ErrProvider, context.DeadlineExceeded)

	_, err := f.svc.AccessToken(context.Background(), "t1")
	require.ErrorIs(t, err, ErrExternalService)

	connected, _ := f.svc.Status(context.Background(), "t1")
	assert.True(t, connected)
	assert.Empty(t, f.notifier.notices)
}

func TestEnsureFresh_RejectedClientCredentialsKeepBundle(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(-time.Minute))
	f.provider.RefreshErr = fmt.Errorf("%w: invalid_client", provider.ErrNotConfigured)

	_, err := f.svc.AccessToken(context.Background(), "t1")
	require.ErrorIs(t, err, ErrConfiguration)
	require.NotErrorIs(t, err, ErrReconnectRequired)

	tenant, _ := f.tenants.GetByID(context.Background(), "t1")
	require.True(t, tenant.Accounting.Connected())
	assert.Equal(t, "old-refresh", tenant.Accounting.RefreshToken)
	assert.Empty(t, f.notifier.notices)
}

func TestEnsureFresh_NotConnected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AccessToken(context.Background(), "t1")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestEnsureFresh_ConcurrentCallsCoalesce(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(-time.Minute))
	f.provider.Delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	errs := make([]error, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = f.svc.AccessToken(context.Background(), "t1")
		}(i)
	}
	wg.Wait()

	for i := range tokens {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0], tokens[i])
	}
	assert.Equal(t, 1, f.provider.RefreshCalls())
}

func TestEnsureFresh_CanceledCallerDoesNotAbortRefresh(t *testing.T) {
	f := newFixture(t)
	f.setCredential(t, f.now.Add(-time.Minute))
	f.provider.Delay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err := f.svc.EnsureFresh(ctx, "t1", false)
	require.NoError(t, err)
	assert.True(t, res.Refreshed)

	tenant, _ := f.tenants.GetByID(context.Background(), "t1")
	assert.Equal(t, res.AccessToken, tenant.Accounting.AccessToken)
	assert.NotEqual(t, "old-access", tenant.Accounting.AccessToken)
}
