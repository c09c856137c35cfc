package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrNotPending indica que la identidad ya fue confirmada y no puede
	// borrarse como pendiente.
	ErrNotPending = errors.New("identity is not pending")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoDatabase indica que no hay base de datos configurada.
	ErrNoDatabase = errors.New("no database configured")
)

// Campos con restricción de unicidad reportados por ConflictError.
const (
	FieldID                 = "id"
	FieldEmail              = "email"
	FieldOrganizationNumber = "organization_number"
)

// ConflictError es un ErrConflict que nombra el campo que violó la unicidad.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("conflict: %s already exists", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflict crea un ConflictError para el campo dado.
func NewConflict(field string) error {
	return &ConflictError{Field: field}
}

// ConflictField retorna el campo en conflicto, o "" si err no es un ConflictError.
func ConflictField(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotPending verifica si el error es ErrNotPending.
func IsNotPending(err error) bool {
	return errors.Is(err, ErrNotPending)
}

// IsNoDatabase verifica si el error es ErrNoDatabase.
func IsNoDatabase(err error) bool {
	return errors.Is(err, ErrNoDatabase)
}
