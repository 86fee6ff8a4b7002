// Package validate wraps go-playground/validator for inputs and configuration
// and converts its errors into field errors as the calendar API reports them.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/calsync/internal/model"
)

// New returns a validator that names fields after their json (or mapstructure) tag,
// falling back to the lower-cased Go name.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	return v
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "mapstructure"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

// Fields converts validator errors into field errors. Any other error yields nil.
func Fields(err error) []model.FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]model.FieldError, 0, len(ve))
	for _, e := range ve {
		out = append(out, model.FieldError{
			Msg:      message(e),
			Param:    e.Field(),
			Value:    redact(e),
			Location: "body",
		})
	}
	return out
}

// Join renders validator errors as one line, "; "-separated, for configuration errors.
func Join(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Namespace(), message(e)))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("El %s es obligatorio", e.Field())
	case "email":
		return "El email no es válido"
	case "min":
		return fmt.Sprintf("El %s debe de tener al menos %s caracteres", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s debe ser uno de: %s", e.Field(), e.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s debe ser una URL válida", e.Field())
	case "gtfield":
		return fmt.Sprintf("%s debe ser posterior a %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s no es válido (%s)", e.Field(), e.Tag())
	}
}

// redact keeps passwords and empty values out of echoed values.
func redact(e validator.FieldError) any {
	if strings.Contains(strings.ToLower(e.Field()), "password") {
		return nil
	}
	v := reflect.ValueOf(e.Value())
	if !v.IsValid() || v.IsZero() {
		return nil
	}
	return e.Value()
}
