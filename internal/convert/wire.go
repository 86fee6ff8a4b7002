// Package convert holds the JSON wire shapes of the calendar API and their mapping to domain types.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/and161185/calsync/internal/model"
)

// --- auth ---

// LoginRequest is the body of POST /auth.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest is the body of POST /auth/new.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResponse is returned by login, register and renew.
type AuthResponse struct {
	OK    bool   `json:"ok"`
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// ErrorBody is the failure envelope. Errors may arrive as an array or as an object keyed by field.
type ErrorBody struct {
	OK     bool            `json:"ok"`
	Msg    string          `json:"msg,omitempty"`
	Errors json.RawMessage `json:"errors,omitempty"`
}

// --- events ---

// EventUser is the owner reference embedded in an event.
type EventUser struct {
	ID   string `json:"_id,omitempty"`
	UID  string `json:"uid,omitempty"`
	Name string `json:"name"`
}

// Event is the event shape on the wire.
type Event struct {
	ID    string     `json:"id,omitempty"`
	Title string     `json:"title"`
	Notes string     `json:"notes"`
	Start Time       `json:"start"`
	End   Time       `json:"end"`
	User  *EventUser `json:"user,omitempty"`
}

// EventsResponse is returned by GET /events.
type EventsResponse struct {
	OK      bool    `json:"ok"`
	Eventos []Event `json:"eventos"`
}

// EventResponse is returned by POST/PUT /events.
type EventResponse struct {
	OK     bool  `json:"ok"`
	Evento Event `json:"evento"`
}

// Time is a date-time that decodes from an RFC3339 string or epoch milliseconds.
type Time time.Time

// MarshalJSON writes RFC3339 with milliseconds in UTC.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// UnmarshalJSON accepts a string or a number.
func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseTime(s)
		if err != nil {
			return err
		}
		*t = Time(v)
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	*t = Time(time.UnixMilli(ms))
	return nil
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the date layouts accepted on the wire.
func ParseTime(s string) (time.Time, error) {
	for _, l := range layouts {
		if v, err := time.Parse(l, s); err == nil {
			return v, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("date: unsupported format %q", s)
}

// ToModelEvent converts a wire event into a date-typed domain event.
func ToModelEvent(in Event) model.CalendarEvent {
	out := model.CalendarEvent{
		ID:    in.ID,
		Title: in.Title,
		Notes: in.Notes,
		Start: time.Time(in.Start),
		End:   time.Time(in.End),
	}
	if in.User != nil {
		uid := in.User.UID
		if uid == "" {
			uid = in.User.ID
		}
		out.User = &model.User{UID: uid, Name: in.User.Name}
	}
	return out
}

// ToModelEvents converts a list of wire events, keeping order.
func ToModelEvents(in []Event) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(in))
	for _, e := range in {
		out = append(out, ToModelEvent(e))
	}
	return out
}

// FromModelEvent converts a domain event to its wire shape. The owner is never sent.
func FromModelEvent(in model.CalendarEvent) Event {
	return Event{
		ID:    in.ID,
		Title: in.Title,
		Notes: in.Notes,
		Start: Time(in.Start),
		End:   Time(in.End),
	}
}

// FromStoredEvent converts a backend record to its wire shape.
func FromStoredEvent(in model.StoredEvent) Event {
	return Event{
		ID:    in.ID,
		Title: in.Title,
		Notes: in.Notes,
		Start: Time(in.Start),
		End:   Time(in.End),
		User:  &EventUser{ID: in.OwnerID, Name: in.OwnerName},
	}
}

// FromStoredEvents converts a list of backend records.
func FromStoredEvents(in []model.StoredEvent) []Event {
	out := make([]Event, 0, len(in))
	for _, e := range in {
		out = append(out, FromStoredEvent(e))
	}
	return out
}

// DecodeFieldErrors decodes the "errors" member in either of its shapes.
// Object members are returned ordered by field name.
func DecodeFieldErrors(raw json.RawMessage) ([]model.FieldError, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var list []model.FieldError
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("errors array: %w", err)
		}
		return list, nil
	case '{':
		var byField map[string]model.FieldError
		if err := json.Unmarshal(raw, &byField); err != nil {
			return nil, fmt.Errorf("errors object: %w", err)
		}
		keys := make([]string, 0, len(byField))
		for k := range byField {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]model.FieldError, 0, len(keys))
		for _, k := range keys {
			fe := byField[k]
			if fe.Param == "" {
				fe.Param = k
			}
			out = append(out, fe)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("errors: unexpected json %q", raw[:1])
	}
}
