// Package model defines domain entities shared by the client core, the transport and the backend.
package model

import (
	"time"
)

// Status is the authentication status of a Session.
type Status string

const (
	StatusChecking         Status = "checking"
	StatusAuthenticated    Status = "authenticated"
	StatusNotAuthenticated Status = "not-authenticated"
)

// User identifies the signed-in account.
type User struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Session is the authentication state for the current process.
// Status == StatusAuthenticated iff User != nil. An empty ErrorMessage means none.
type Session struct {
	Status       Status
	User         *User
	ErrorMessage string
}

// Token is the bearer credential issued by the remote service.
type Token struct {
	Value    string
	IssuedAt time.Time // persisted as epoch millis
}

// CalendarEvent is a single calendar entry. An empty ID marks a draft that was never persisted.
type CalendarEvent struct {
	ID    string
	Title string
	Notes string
	Start time.Time
	End   time.Time
	User  *User // owner, set by the store
}

// IsDraft reports whether the event has not been created on the server yet.
func (e CalendarEvent) IsDraft() bool { return e.ID == "" }

// Credentials are the login inputs.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Registration are the sign-up inputs.
type Registration struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// AuthResult is returned by login, register and renew.
type AuthResult struct {
	Token string
	UID   string
	Name  string
}

// User returns the identity carried by the result.
func (r AuthResult) User() User { return User{UID: r.UID, Name: r.Name} }

// FieldError is one structured validation error reported by the server.
type FieldError struct {
	Msg      string `json:"msg"`
	Param    string `json:"param"`
	Value    any    `json:"value,omitempty"`
	Location string `json:"location,omitempty"`
}

// StoredUser is an account as kept by the reference backend.
type StoredUser struct {
	ID        string
	Name      string
	Email     string // unique
	PwdHash   string // encoded argon2id hash
	CreatedAt time.Time
}

// StoredEvent is an event as kept by the reference backend.
type StoredEvent struct {
	ID        string
	OwnerID   string
	OwnerName string
	Title     string
	Notes     string
	Start     time.Time
	End       time.Time
	UpdatedAt time.Time
}
