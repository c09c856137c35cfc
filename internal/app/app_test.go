package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantgate/internal/config"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Identity.Driver = config.DriverMemory
	cfg.Billing.SecretKey = "sk_test_x"
	cfg.Billing.WebhookSecret = "whsec_x"
	cfg.Server.SiteURL = "https://app.example.com"
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Rate.Enabled = true
	return cfg
}

func TestNew_MemoryDrivers(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), Options{Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "test", rec.Header().Get("X-Service-Version"))

	require.NotNil(t, a.Services.Reaper.Reaper)
}

func TestNew_IdentityPostgresNeedsStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.Identity.Driver = config.DriverPostgres

	_, err := New(context.Background(), cfg, Options{})
	require.Error(t, err)
}

func TestNew_MissingWebhookSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.Billing.WebhookSecret = ""

	_, err := New(context.Background(), cfg, Options{})
	require.Error(t, err)
}

func TestServe_Shutdown(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve no terminó tras cancelar el contexto")
	}
}
