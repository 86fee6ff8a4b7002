package backend

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/model"
	"github.com/and161185/calsync/internal/repository"
	"github.com/and161185/calsync/internal/validate"
)

// EventInput is the editable part of an event.
type EventInput struct {
	Title string    `json:"title" validate:"required"`
	Notes string    `json:"notes"`
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// MsgEndBeforeStart is reported on "end" when an event does not end after it starts.
const MsgEndBeforeStart = "La fecha fin debe de ser mayor a la fecha de inicio"

// EventService defines operations over calendar events.
// Every caller may list all events; only the owner may change one.
type EventService interface {
	List(ctx context.Context) ([]model.StoredEvent, error)
	Create(ctx context.Context, owner Identity, in EventInput) (model.StoredEvent, error)
	Update(ctx context.Context, owner Identity, id string, in EventInput) (model.StoredEvent, error)
	Delete(ctx context.Context, owner Identity, id string) error
}

type EventServiceImpl struct {
	repo     repository.EventRepository
	validate *validator.Validate
}

var _ EventService = (*EventServiceImpl)(nil)

// NewEventService constructs EventService over repo.
func NewEventService(repo repository.EventRepository) *EventServiceImpl {
	return &EventServiceImpl{repo: repo, validate: validate.New()}
}

func (s *EventServiceImpl) List(ctx context.Context) ([]model.StoredEvent, error) {
	out, err := s.repo.List(ctx)
	if out == nil && err == nil {
		out = []model.StoredEvent{}
	}
	return out, err
}

// Create assigns a new ID and stores the event for owner.
func (s *EventServiceImpl) Create(ctx context.Context, owner Identity, in EventInput) (model.StoredEvent, error) {
	if err := s.check(in); err != nil {
		return model.StoredEvent{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.StoredEvent{}, err
	}
	e := stored(id.String(), owner, in)
	if err := s.repo.Create(ctx, &e); err != nil {
		return model.StoredEvent{}, err
	}
	return e, nil
}

// Update replaces the event's fields; errs.ErrNotFound or errs.ErrForbidden when it cannot.
func (s *EventServiceImpl) Update(ctx context.Context, owner Identity, id string, in EventInput) (model.StoredEvent, error) {
	if !validID(id) {
		return model.StoredEvent{}, errs.ErrNotFound
	}
	if err := s.check(in); err != nil {
		return model.StoredEvent{}, err
	}
	e := stored(id, owner, in)
	if err := s.repo.Update(ctx, &e); err != nil {
		return model.StoredEvent{}, err
	}
	return e, nil
}

func (s *EventServiceImpl) Delete(ctx context.Context, owner Identity, id string) error {
	if !validID(id) {
		return errs.ErrNotFound
	}
	return s.repo.Delete(ctx, owner.UID, id)
}

func (s *EventServiceImpl) check(in EventInput) error {
	if err := s.validate.Struct(in); err != nil {
		return &errs.FieldsError{Fields: validate.Fields(err)}
	}
	if !in.End.After(in.Start) {
		return errs.NewFieldsError("end", MsgEndBeforeStart)
	}
	return nil
}

func stored(id string, owner Identity, in EventInput) model.StoredEvent {
	return model.StoredEvent{
		ID:        id,
		OwnerID:   owner.UID,
		OwnerName: owner.Name,
		Title:     in.Title,
		Notes:     in.Notes,
		Start:     in.Start,
		End:       in.End,
	}
}

func validID(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}

