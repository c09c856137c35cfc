package signup

import svc "github.com/dropDatabas3/tenantgate/internal/http/services/signup"

// Controllers agrupa los controllers del dominio signup.
type Controllers struct {
	Signup *SignupController
}

// NewControllers crea el agregador de controllers signup.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{Signup: NewSignupController(s.Signup)}
}
