package signup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/audit"
	payments "github.com/dropDatabas3/tenantgate/internal/billing"
	"github.com/dropDatabas3/tenantgate/internal/domain/repository"
	dto "github.com/dropDatabas3/tenantgate/internal/http/dto/signup"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/util"
	"github.com/dropDatabas3/tenantgate/internal/validation"
)

// SignupService inicia el alta: identidad pendiente + checkout de pago.
type SignupService interface {
	Initiate(ctx context.Context, in dto.SignupRequest) (*dto.SignupResult, error)
}

// SignupDeps contiene las dependencias del service.
type SignupDeps struct {
	Identities repository.IdentityRepository
	Tenants    repository.TenantRepository
	Gateway    payments.Gateway
	// Plans mapea plan_id → price id. Vacío: el plan_id se usa tal cual.
	Plans   map[string]string
	Metrics *metrics.Metrics
}

// Signup errors (sentinel)
var (
	ErrValidation                   = errors.New("missing or invalid fields")
	ErrUnknownPlan                  = fmt.Errorf("%w: unknown plan_id", ErrValidation)
	ErrConflict                     = errors.New("already registered")
	ErrOrganizationTaken            = fmt.Errorf("%w: organization number", ErrConflict)
	ErrEmailTaken                   = fmt.Errorf("%w: email", ErrConflict)
	ErrIdentityCreationFailed       = errors.New("failed to create identity")
	ErrPaymentSessionCreationFailed = errors.New("failed to create payment session")
)

// Resultados para la métrica signup_attempts_total.
const (
	resultOK            = "ok"
	resultValidation    = "validation"
	resultConflict      = "conflict"
	resultIdentityError = "identity_error"
	resultPaymentError  = "payment_error"
)

const compensationTimeout = 5 * time.Second

type signupService struct {
	deps SignupDeps
}

// NewSignupService crea el service de signup.
func NewSignupService(deps SignupDeps) SignupService {
	return &signupService{deps: deps}
}

func (s *signupService) Initiate(ctx context.Context, in dto.SignupRequest) (*dto.SignupResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("signup"),
		logger.Op("Initiate"),
	)

	in = normalize(in)
	if err := validation.Struct(in); err != nil {
		s.deps.Metrics.Signup(resultValidation)
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	priceID, err := s.resolvePrice(in.PlanID)
	if err != nil {
		s.deps.Metrics.Signup(resultValidation)
		return nil, err
	}

	log = log.With(logger.OrgNumber(in.OrganizationNumber), logger.Email(util.MaskEmail(in.Email)))

	// Pre-chequeo: la restricción real la aplica el insert del tenant.
	taken, err := s.deps.Tenants.ExistsByOrganizationNumber(ctx, in.OrganizationNumber)
	if err != nil {
		return nil, fmt.Errorf("signup: check organization number: %w", err)
	}
	if taken {
		s.deps.Metrics.Signup(resultConflict)
		log.Info("signup rejected: organization number taken")
		return nil, ErrOrganizationTaken
	}
	taken, err = s.deps.Tenants.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("signup: check email: %w", err)
	}
	if taken {
		s.deps.Metrics.Signup(resultConflict)
		log.Info("signup rejected: email taken")
		return nil, ErrEmailTaken
	}

	identity, err := s.deps.Identities.Create(ctx, repository.CreateIdentityInput{
		Email:    in.Email,
		Password: in.Password,
		Metadata: map[string]any{
			repository.MetaOrganizationName:   in.OrganizationName,
			repository.MetaOrganizationNumber: in.OrganizationNumber,
			repository.MetaPendingPayment:     true,
		},
	})
	if err != nil {
		if repository.ConflictField(err) == repository.FieldEmail {
			s.deps.Metrics.Signup(resultConflict)
			log.Info("signup rejected: identity email exists")
			return nil, ErrEmailTaken
		}
		s.deps.Metrics.Signup(resultIdentityError)
		log.Error("identity creation failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrIdentityCreationFailed, err)
	}
	log = log.With(logger.IdentityID(identity.ID))

	start := time.Now()
	session, err := s.deps.Gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		PriceID:       priceID,
		CustomerEmail: in.Email,
		SuccessURL:    in.SuccessURL,
		CancelURL:     in.CancelURL,
		Metadata: map[string]string{
			payments.MetaIdentityID:         identity.ID,
			payments.MetaOrganizationName:   in.OrganizationName,
			payments.MetaOrganizationNumber: in.OrganizationNumber,
			payments.MetaEmail:              in.Email,
			payments.MetaSignupFlow:         "true",
		},
	})
	s.deps.Metrics.ObserveExternal("billing", "create_checkout_session", start, err)
	if err != nil {
		s.deps.Metrics.Signup(resultPaymentError)
		log.Error("checkout session creation failed", logger.Err(err))
		s.compensate(ctx, identity.ID)
		return nil, fmt.Errorf("%w: %w", ErrPaymentSessionCreationFailed, err)
	}

	s.deps.Metrics.Signup(resultOK)
	audit.Log(ctx, audit.EventSignupInitiated,
		logger.IdentityID(identity.ID),
		logger.SessionID(session.ID),
		logger.OrgNumber(in.OrganizationNumber),
	)
	log.Info("signup initiated", logger.SessionID(session.ID))

	return &dto.SignupResult{
		IdentityID:  identity.ID,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

// compensate borra la identidad pendiente cuando no hubo checkout. Corre con un
// contexto propio: el del request puede estar cancelado. Si falla, la identidad
// queda para el reaper.
func (s *signupService) compensate(ctx context.Context, identityID string) {
	log := logger.From(ctx).With(logger.Component("signup"), logger.IdentityID(identityID))

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.deps.Identities.Delete(cctx, identityID); err != nil && !repository.IsNotFound(err) {
		log.Error("compensating identity delete failed; left for reaper", logger.Err(err))
		return
	}
	audit.Log(ctx, audit.EventSignupCompensated, logger.IdentityID(identityID))
}

func (s *signupService) resolvePrice(planID string) (string, error) {
	if len(s.deps.Plans) == 0 {
		return planID, nil
	}
	price, ok := s.deps.Plans[planID]
	if !ok || price == "" {
		return "", ErrUnknownPlan
	}
	return price, nil
}

func normalize(in dto.SignupRequest) dto.SignupRequest {
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	in.OrganizationNumber = strings.TrimSpace(in.OrganizationNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PlanID = strings.TrimSpace(in.PlanID)
	in.SuccessURL = strings.TrimSpace(in.SuccessURL)
	in.CancelURL = strings.TrimSpace(in.CancelURL)
	return in
}
