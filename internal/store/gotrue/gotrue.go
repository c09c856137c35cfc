// Package gotrue implementa repository.IdentityRepository sobre la admin API de
// un servidor GoTrue (Supabase Auth). Usa la service key privilegiada; nunca se
// expone al cliente.
package gotrue

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
)

// Config del adapter.
type Config struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	// PageSize para ListPending (default 100).
	PageSize int
	Logger   *zap.Logger
}

// Store es un IdentityRepository respaldado por GoTrue.
type Store struct {
	http     *resty.Client
	pageSize int
	log      *zap.Logger
}

var _ repository.IdentityRepository = (*Store)(nil)

// New crea el adapter.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, fmt.Errorf("gotrue: base url y service key requeridos")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", cfg.ServiceKey).
		SetAuthToken(cfg.ServiceKey)

	return &Store{http: client, pageSize: pageSize, log: log.Named("gotrue")}, nil
}

type adminUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
}

type adminUserList struct {
	Users []adminUser `json:"users"`
}

type apiError struct {
	Code      any    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

func (e *apiError) text() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}

func (s *Store) Create(ctx context.Context, input repository.CreateIdentityInput) (*repository.Identity, error) {
	body := map[string]any{
		"email":         strings.ToLower(strings.TrimSpace(input.Email)),
		"password":      input.Password,
		"email_confirm": false,
		"user_metadata": input.Metadata,
	}

	var out adminUser
	var apiErr apiError
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/admin/users")
	if err != nil {
		return nil, fmt.Errorf("gotrue: create user: %w", err)
	}
	if resp.IsError() {
		if isDuplicateEmail(resp.StatusCode(), &apiErr) {
			return nil, repository.NewConflict(repository.FieldEmail)
		}
		s.log.Warn("create user rejected", zap.Int("status", resp.StatusCode()), zap.String("msg", apiErr.text()))
		return nil, fmt.Errorf("gotrue: create user: status %d: %s", resp.StatusCode(), apiErr.text())
	}
	return out.toIdentity(), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.Identity, error) {
	var out adminUser
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/admin/users/{id}")
	if err != nil {
		return nil, fmt.Errorf("gotrue: get user: %w", err)
	}
	if err := statusErr("get user", resp); err != nil {
		return nil, err
	}
	return out.toIdentity(), nil
}

func (s *Store) Confirm(ctx context.Context, id string) error {
	// GoTrue mergea user_metadata; null borra la clave.
	body := map[string]any{
		"email_confirm": true,
		"user_metadata": map[string]any{repository.MetaPendingPayment: nil},
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(body).
		Put("/admin/users/{id}")
	if err != nil {
		return fmt.Errorf("gotrue: confirm user: %w", err)
	}
	return statusErr("confirm user", resp)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete("/admin/users/{id}")
	if err != nil {
		return fmt.Errorf("gotrue: delete user: %w", err)
	}
	return statusErr("delete user", resp)
}

// DeletePending relee el usuario y lo borra solo si sigue sin confirmar.
// La admin API no tiene delete condicional: queda la ventana entre el GET y el DELETE.
func (s *Store) DeletePending(ctx context.Context, id string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Confirmed {
		return repository.ErrNotPending
	}
	return s.Delete(ctx, id)
}

func (s *Store) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]repository.Identity, error) {
	var out []repository.Identity
	for page := 1; ; page++ {
		var list adminUserList
		resp, err := s.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"page":     strconv.Itoa(page),
				"per_page": strconv.Itoa(s.pageSize),
			}).
			SetResult(&list).
			Get("/admin/users")
		if err != nil {
			return nil, fmt.Errorf("gotrue: list users: %w", err)
		}
		if err := statusErr("list users", resp); err != nil {
			return nil, err
		}

		for _, u := range list.Users {
			id := u.toIdentity()
			if id.Confirmed || !id.PendingPayment() || !id.CreatedAt.Before(createdBefore) {
				continue
			}
			out = append(out, *id)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if len(list.Users) < s.pageSize {
			return out, nil
		}
	}
}

func (u *adminUser) toIdentity() *repository.Identity {
	meta := u.UserMetadata
	if meta == nil {
		meta = map[string]any{}
	}
	return &repository.Identity{
		ID:          u.ID,
		Email:       u.Email,
		Confirmed:   u.EmailConfirmedAt != nil,
		Metadata:    meta,
		CreatedAt:   u.CreatedAt,
		ConfirmedAt: u.EmailConfirmedAt,
	}
}

// Ping consulta /health (readiness).
func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("gotrue: health: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("gotrue: health: status %d", resp.StatusCode())
	}
	return nil
}

func statusErr(op string, resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return repository.ErrNotFound
	case resp.IsError():
		return fmt.Errorf("gotrue: %s: status %d", op, resp.StatusCode())
	}
	return nil
}

func isDuplicateEmail(status int, e *apiError) bool {
	if e.ErrorCode == "email_exists" || e.ErrorCode == "user_already_exists" {
		return true
	}
	if status == http.StatusUnprocessableEntity || status == http.StatusConflict {
		return strings.Contains(strings.ToLower(e.text()), "already")
	}
	return false
}
