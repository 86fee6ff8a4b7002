package errs

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/calsync/internal/model"
)

// Kind classifies a remote failure.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindServer     Kind = "server"
)

// PayloadKind tells which branch of the failure payload is populated.
type PayloadKind string

const (
	PayloadMessage     PayloadKind = "message"
	PayloadFieldErrors PayloadKind = "fieldErrors"
)

// RemoteError is a failure reported by (or while reaching) the remote service.
// The payload shape is decided once, when the response is decoded.
type RemoteError struct {
	Kind    Kind
	Status  int // HTTP status, 0 when there was no response
	Payload PayloadKind
	Text    string             // set when Payload == PayloadMessage
	Fields  []model.FieldError // set when Payload == PayloadFieldErrors
	Cause   error
}

// NewMessageError builds a RemoteError carrying a plain server message.
func NewMessageError(kind Kind, status int, text string) *RemoteError {
	return &RemoteError{Kind: kind, Status: status, Payload: PayloadMessage, Text: text}
}

// NewFieldError builds a RemoteError carrying structured field errors.
func NewFieldError(status int, fields []model.FieldError) *RemoteError {
	return &RemoteError{Kind: KindValidation, Status: status, Payload: PayloadFieldErrors, Fields: fields}
}

// NewNetworkError wraps a transport error.
func NewNetworkError(cause error) *RemoteError {
	return &RemoteError{Kind: KindNetwork, Payload: PayloadMessage, Cause: cause}
}

func (e *RemoteError) Error() string {
	switch {
	case e.Payload == PayloadFieldErrors:
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.FieldsJSON())
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	case e.Text != "":
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Text)
	default:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
}

// Unwrap maps the failure kind to its sentinel so callers can use errors.Is.
func (e *RemoteError) Unwrap() []error {
	var s error
	switch e.Kind {
	case KindNetwork:
		s = ErrNetwork
	case KindAuth:
		s = ErrUnauthorized
	case KindValidation:
		s = ErrValidation
	default:
		s = ErrServer
	}
	out := []error{s}
	if e.Status == 404 {
		out = append(out, ErrNotFound)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// HasFieldErrors reports whether the payload is the structured branch.
func (e *RemoteError) HasFieldErrors() bool {
	return e.Payload == PayloadFieldErrors && len(e.Fields) > 0
}

// FieldsJSON renders field errors as a JSON array.
func (e *RemoteError) FieldsJSON() string {
	b, err := json.Marshal(e.Fields)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ServerMessage returns the server-provided message text, if any.
func (e *RemoteError) ServerMessage() string {
	if e.Payload == PayloadMessage {
		return e.Text
	}
	return ""
}
