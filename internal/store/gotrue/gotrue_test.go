package gotrue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
)

// fakeAdmin emula el subset de la admin API que usa el adapter.
type fakeAdmin struct {
	mu    sync.Mutex
	users map[string]map[string]any
	seq   int
}

func (f *fakeAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("apikey") != "service-key" || r.Header.Get("Authorization") != "Bearer service-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	id := strings.TrimPrefix(r.URL.Path, "/admin/users/")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/admin/users":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, u := range f.users {
			if u["email"] == body["email"] {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
				return
			}
		}
		f.seq++
		u := map[string]any{
			"id":            fmt.Sprintf("00000000-0000-0000-0000-%012d", f.seq),
			"email":         body["email"],
			"user_metadata": body["user_metadata"],
			"created_at":    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		f.users[u["id"].(string)] = u
		_ = json.NewEncoder(w).Encode(u)
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		_, _ = w.Write([]byte(`{"name":"GoTrue"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/admin/users":
		list := []map[string]any{}
		for _, u := range f.users {
			list = append(list, u)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"users": list})
	case r.Method == http.MethodGet:
		u, ok := f.users[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	case r.Method == http.MethodPut:
		u, ok := f.users[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email_confirm"] == true {
			u["email_confirmed_at"] = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		}
		meta, _ := u["user_metadata"].(map[string]any)
		if patch, ok := body["user_metadata"].(map[string]any); ok && meta != nil {
			for k, v := range patch {
				if v == nil {
					delete(meta, k)
				} else {
					meta[k] = v
				}
			}
		}
		_ = json.NewEncoder(w).Encode(u)
	case r.Method == http.MethodDelete:
		if _, ok := f.users[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.users, id)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	srv := httptest.NewServer(&fakeAdmin{users: map[string]map[string]any{}})
	t.Cleanup(srv.Close)
	s, err := New(Config{BaseURL: srv.URL, ServiceKey: "service-key"})
	require.NoError(t, err)
	return s
}

func TestGoTrue_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx, repository.CreateIdentityInput{
		Email:    "a@b.se",
		Password: "pw123456",
		Metadata: map[string]any{repository.MetaPendingPayment: true, repository.MetaOrganizationNumber: "556677-8899"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	require.False(t, id.Confirmed)
	require.True(t, id.PendingPayment())

	_, err = s.Create(ctx, repository.CreateIdentityInput{Email: "a@b.se", Password: "x"})
	require.ErrorIs(t, err, repository.ErrConflict)
	require.Equal(t, repository.FieldEmail, repository.ConflictField(err))

	pending, err := s.ListPending(ctx, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.Confirm(ctx, id.ID))
	got, err := s.GetByID(ctx, id.ID)
	require.NoError(t, err)
	require.True(t, got.Confirmed)
	require.False(t, got.PendingPayment())
	require.Equal(t, "556677-8899", got.MetaString(repository.MetaOrganizationNumber))

	require.ErrorIs(t, s.DeletePending(ctx, id.ID), repository.ErrNotPending)
	_, err = s.GetByID(ctx, id.ID)
	require.NoError(t, err, "confirmed user survives DeletePending")

	require.NoError(t, s.Delete(ctx, id.ID))
	require.ErrorIs(t, s.Delete(ctx, id.ID), repository.ErrNotFound)
	require.ErrorIs(t, s.DeletePending(ctx, id.ID), repository.ErrNotFound)
	_, err = s.GetByID(ctx, id.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{BaseURL: "http://x"})
	require.Error(t, err)
}

func TestGoTrue_DeletePendingRemovesUnconfirmed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx, repository.CreateIdentityInput{
		Email:    "p@b.se",
		Password: "pw123456",
		Metadata: map[string]any{repository.MetaPendingPayment: true},
	})
	require.NoError(t, err)
	require.NoError(t, s.DeletePending(ctx, id.ID))
	_, err = s.GetByID(ctx, id.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
