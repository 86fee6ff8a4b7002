package errs

import (
	"strings"

	"github.com/and161185/calsync/internal/model"
)

// FieldsError carries per-field validation failures found by the backend.
// It matches ErrValidation.
type FieldsError struct {
	Fields []model.FieldError
}

func (e *FieldsError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Param+": "+f.Msg)
	}
	return "validation failure: " + strings.Join(msgs, "; ")
}

func (e *FieldsError) Unwrap() error { return ErrValidation }

// NewFieldsError builds a FieldsError for a single field.
func NewFieldsError(param, msg string) *FieldsError {
	return &FieldsError{Fields: []model.FieldError{{Msg: msg, Param: param, Location: "body"}}}
}
