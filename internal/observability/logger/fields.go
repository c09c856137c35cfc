package logger

import (
	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field  { return zap.String("request_id", v) }
func Method(v string) zap.Field     { return zap.String("method", v) }
func Path(v string) zap.Field       { return zap.String("path", v) }
func Status(v int) zap.Field        { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field  { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field         { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field   { return zap.String("client_ip", v) }
func Origin(v string) zap.Field     { return zap.String("origin", v) }
func UserAgent(v string) zap.Field  { return zap.String("user_agent", v) }

// ─── Negocio ───

// TenantID crea un campo para el ID del tenant.
func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }

// IdentityID crea un campo para el ID de la identidad (pendiente o confirmada).
func IdentityID(v string) zap.Field { return zap.String("identity_id", v) }

// OrgNumber crea un campo para el número de organización.
func OrgNumber(v string) zap.Field { return zap.String("organization_number", v) }

// Email crea un campo para el email (usar con cuidado en prod).
func Email(v string) zap.Field { return zap.String("email", v) }

// PlanID crea un campo para el plan solicitado.
func PlanID(v string) zap.Field { return zap.String("plan_id", v) }

// ─── Billing ───

// EventID crea un campo para el ID del evento del proveedor de pagos.
func EventID(v string) zap.Field { return zap.String("event_id", v) }

// EventType crea un campo para el tipo de evento.
func EventType(v string) zap.Field { return zap.String("event_type", v) }

// SessionID crea un campo para el ID de la checkout session.
func SessionID(v string) zap.Field { return zap.String("session_id", v) }

// CustomerRef crea un campo para la referencia de cliente en billing.
func CustomerRef(v string) zap.Field { return zap.String("customer_ref", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// ─── Genéricos ───

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
