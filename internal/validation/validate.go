// Package validation valida los DTOs de entrada con go-playground/validator.
// Los nombres de campo reportados son los del tag json.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// FieldsError lista los campos faltantes o inválidos.
type FieldsError struct {
	Fields []string
}

func (e *FieldsError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// Struct valida v y devuelve *FieldsError (campos ordenados) si falla.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	seen := make(map[string]struct{}, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if _, ok := seen[fe.Field()]; ok {
			continue
		}
		seen[fe.Field()] = struct{}{}
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)
	return &FieldsError{Fields: fields}
}

// Fields devuelve los campos inválidos de err, o nil.
func Fields(err error) []string {
	var fe *FieldsError
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}
