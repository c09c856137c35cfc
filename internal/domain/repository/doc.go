// Package repository define las interfaces de repositorio de dominio.
//
// Dos agregados: Identity (identidad de login, pendiente hasta confirmar el pago)
// y Tenant (organización cliente, con su credencial del proveedor contable).
//
// Las implementaciones concretas viven en internal/store/{pg,gotrue,memory}.
//
//	┌─────────────────────────────────────────────┐
//	│      Services (signup, billing, ...)        │
//	└─────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	┌─────────────────────────────────────────────┐
//	│   IdentityRepository   TenantRepository     │
//	└─────────────────────────────────────────────┘
//	                     │
//	       ┌─────────────┼─────────────┐
//	       ▼             ▼             ▼
//	   store/pg     store/gotrue   store/memory
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
//   - Las restricciones de unicidad las hace cumplir el store, no el caller
package repository
