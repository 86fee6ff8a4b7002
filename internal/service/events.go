package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/metrics"
	"github.com/and161185/calsync/internal/model"
)

// Notification titles for failed mutations.
const (
	TitleSaveFailed   = "Error al guardar"
	TitleDeleteFailed = "Error al borrar"
)

// UserSource yields the signed-in user that owns saved events.
type UserSource interface {
	CurrentUser() *model.User
}

// CalendarEventStore holds the user's events and the active selection.
// Mutations are confirm-then-apply: local state changes only after the remote
// call succeeds, so a failed call never leaves a partial change behind.
type CalendarEventStore struct {
	mu      sync.Mutex
	events  []model.CalendarEvent
	active  *model.CalendarEvent
	loading bool
	// loaded is set by the first successful load after construction or Reset.
	loaded bool

	// epoch changes on Reset; results of calls issued in an older epoch are dropped.
	epoch uint64
	// applied holds, per event id, the ticket of the latest confirmed mutation.
	// A result with an older ticket is dropped; failed calls never move it.
	applied map[string]uint64
	nextSeq uint64
	loadSeq uint64

	remote  EventRemote
	users   UserSource
	notify  Notifier
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCalendarEventStore creates an empty store that still needs a first load.
func NewCalendarEventStore(remote EventRemote, users UserSource, notify Notifier, log *zap.Logger, m *metrics.Metrics) *CalendarEventStore {
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CalendarEventStore{
		loading: true,
		applied: make(map[string]uint64),
		remote:  remote,
		users:   users,
		notify:  notify,
		log:     log,
		metrics: m,
	}
}

// SetActive selects ev (a copy is kept). Nil clears the selection.
func (s *CalendarEventStore) SetActive(ev *model.CalendarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = cloneEvent(ev)
}

// Load replaces the whole sequence with the server's events. IsLoadingEvents
// reports true while the call is in flight.
func (s *CalendarEventStore) Load(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	s.loadSeq++
	ticket := s.loadSeq
	s.loading = true
	s.mu.Unlock()

	events, err := s.remote.ListEvents(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.loadSeq != ticket {
		return s.stale("load", err)
	}
	if err != nil {
		s.loading = !s.loaded
		s.log.Warn("load events failed", zap.Error(err))
		return fmt.Errorf("load events: %w", err)
	}
	s.events = make([]model.CalendarEvent, len(events))
	for i := range events {
		s.events[i] = *cloneEvent(&events[i])
	}
	s.loading = false
	s.loaded = true
	s.metrics.SetEvents(len(s.events))
	s.log.Debug("events loaded", zap.Int("count", len(s.events)))
	return nil
}

// Save creates ev when it has no id and updates it otherwise. The stored copy
// is owned by the current user.
func (s *CalendarEventStore) Save(ctx context.Context, ev model.CalendarEvent) error {
	s.mu.Lock()
	epoch := s.epoch
	var ticket uint64
	if !ev.IsDraft() {
		ticket = s.issue()
	}
	s.mu.Unlock()

	owner := s.owner()

	if ev.IsDraft() {
		id, err := s.remote.CreateEvent(ctx, ev)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch {
			return s.stale("create", err)
		}
		if err != nil {
			return s.failed("create", TitleSaveFailed, err)
		}
		ev.ID = id
		ev.User = owner
		s.events = append(s.events, *cloneEvent(&ev))
		s.metrics.SetEvents(len(s.events))
		s.log.Debug("event created", zap.String("id", id))
		return nil
	}

	err := s.remote.UpdateEvent(ctx, ev.ID, ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.applied[ev.ID] > ticket {
		return s.stale("update", err)
	}
	if err != nil {
		return s.failed("update", TitleSaveFailed, err)
	}
	s.applied[ev.ID] = ticket
	ev.User = owner
	for i := range s.events {
		if s.events[i].ID == ev.ID {
			s.events[i] = *cloneEvent(&ev)
		}
	}
	if s.active != nil && s.active.ID == ev.ID {
		s.active = cloneEvent(&ev)
	}
	s.log.Debug("event updated", zap.String("id", ev.ID))
	return nil
}

// Delete removes the active event. Only the selected event can be deleted.
func (s *CalendarEventStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	if s.active == nil || s.active.IsDraft() {
		s.mu.Unlock()
		return errs.ErrNoActiveEvent
	}
	id := s.active.ID
	epoch := s.epoch
	ticket := s.issue()
	s.mu.Unlock()

	err := s.remote.DeleteEvent(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return s.stale("delete", err)
	}
	if err != nil {
		if s.applied[id] > ticket {
			return s.stale("delete", err)
		}
		return s.failed("delete", TitleDeleteFailed, err)
	}
	// a confirmed delete always removes the event, whatever else was applied since
	s.applied[id] = max(s.applied[id], ticket)
	s.events = slices.DeleteFunc(s.events, func(e model.CalendarEvent) bool { return e.ID == id })
	if s.active != nil && s.active.ID == id {
		s.active = nil
	}
	s.metrics.SetEvents(len(s.events))
	s.log.Debug("event deleted", zap.String("id", id))
	return nil
}

// Reset empties the store and marks it as needing a reload. Calls in flight
// when Reset runs have no effect when they complete.
func (s *CalendarEventStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.events = nil
	s.active = nil
	s.loading = true
	s.loaded = false
	clear(s.applied)
	s.metrics.SetEvents(0)
}

// Events returns a copy of the event sequence.
func (s *CalendarEventStore) Events() []model.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CalendarEvent, len(s.events))
	for i := range s.events {
		out[i] = *cloneEvent(&s.events[i])
	}
	return out
}

// ActiveEvent returns a copy of the selected event, or nil.
func (s *CalendarEventStore) ActiveEvent() *model.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEvent(s.active)
}

// HasEventSelected reports whether a persisted event is selected.
func (s *CalendarEventStore) HasEventSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && !s.active.IsDraft()
}

// IsLoadingEvents is true while a load is in flight and until the first
// successful load after construction or Reset.
func (s *CalendarEventStore) IsLoadingEvents() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// issue hands out mutation tickets in call order. mu must be held.
func (s *CalendarEventStore) issue() uint64 {
	s.nextSeq++
	return s.nextSeq
}

func (s *CalendarEventStore) owner() *model.User {
	if s.users == nil {
		return nil
	}
	return s.users.CurrentUser()
}

// stale and failed must be called with mu held.
func (s *CalendarEventStore) stale(op string, cause error) error {
	s.metrics.Stale(op)
	s.log.Debug("dropped stale result", zap.String("op", op), zap.NamedError("cause", cause))
	if cause != nil {
		return fmt.Errorf("%s: %w", op, errors.Join(errs.ErrStaleResponse, cause))
	}
	return fmt.Errorf("%s: %w", op, errs.ErrStaleResponse)
}

func (s *CalendarEventStore) failed(op, title string, err error) error {
	s.log.Warn("event mutation failed", zap.String("op", op), zap.Error(err))
	s.notify.Notify(title, serverMessage(err))
	return fmt.Errorf("%s event: %w", op, err)
}

// serverMessage is the message to show for a failed call: the server's own text when it sent one.
func serverMessage(err error) string {
	var re *errs.RemoteError
	if errors.As(err, &re) {
		if msg := re.ServerMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

func cloneEvent(ev *model.CalendarEvent) *model.CalendarEvent {
	if ev == nil {
		return nil
	}
	c := *ev
	if ev.User != nil {
		u := *ev.User
		c.User = &u
	}
	return &c
}
