package accounting

import svc "github.com/dropDatabas3/tenantgate/internal/http/services/accounting"

// Controllers agrupa los controllers del dominio accounting.
type Controllers struct {
	Accounting *AccountingController
}

// NewControllers crea el agregador de controllers accounting.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{Accounting: NewAccountingController(s.Accounting)}
}
