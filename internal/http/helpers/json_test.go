package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.se","extra":1}`))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	require.True(t, ReadJSON(rec, r, &dst, 0))
	require.Equal(t, "a@b.se", dst.Email)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{nope`))
	rec = httptest.NewRecorder()
	require.False(t, ReadJSON(rec, r, &dst, 0))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"`+strings.Repeat("x", 100)+`"}`))
	rec = httptest.NewRecorder()
	require.False(t, ReadJSON(rec, r, &dst, 16))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?tenant_id=t1", nil)
	r.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	require.Equal(t, "t1", TenantIDParam(r))
	require.Equal(t, "9.9.9.9", ClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Tenant-ID", "t2")
	require.Equal(t, "t2", TenantIDParam(r))

	rec := httptest.NewRecorder()
	require.False(t, RequireMethod(rec, r, http.MethodPost))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "POST", rec.Header().Get("Allow"))
}
