// Package service contains the client core: the session state machine, the calendar event store
// and the coordinator that keeps them and the token store consistent.
package service

import (
	"context"

	"github.com/and161185/calsync/internal/model"
)

// SessionRemote performs the session operations against the remote service.
type SessionRemote interface {
	// Login exchanges credentials for a token.
	Login(ctx context.Context, email, password string) (model.AuthResult, error)
	// Register creates an account and returns a token for it.
	Register(ctx context.Context, name, email, password string) (model.AuthResult, error)
	// Renew exchanges the current token (attached by the transport) for a fresh one.
	Renew(ctx context.Context) (model.AuthResult, error)
}

// EventRemote performs the calendar event operations against the remote service.
type EventRemote interface {
	// ListEvents returns every event visible to the current user.
	ListEvents(ctx context.Context) ([]model.CalendarEvent, error)
	// CreateEvent persists a draft and returns the server-assigned id.
	CreateEvent(ctx context.Context, draft model.CalendarEvent) (string, error)
	// UpdateEvent replaces the event with the given id.
	UpdateEvent(ctx context.Context, id string, patch model.CalendarEvent) error
	// DeleteEvent removes the event with the given id.
	DeleteEvent(ctx context.Context, id string) error
}

// RemoteSessionClient is the full remote contract.
type RemoteSessionClient interface {
	SessionRemote
	EventRemote
}

// Notifier presents a display-level failure (a dialog, a stderr line).
type Notifier interface {
	Notify(title, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(title, message string)

func (f NotifierFunc) Notify(title, message string) { f(title, message) }

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}
