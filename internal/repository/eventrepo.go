package repository

import (
	"context"

	"github.com/and161185/calsync/internal/model"
)

// EventRepository provides access to calendar events. Owner names are resolved
// by the repository so listed events carry them.
type EventRepository interface {
	// List returns all events ordered by start.
	List(ctx context.Context) ([]model.StoredEvent, error)
	// Create inserts e (ID already assigned) and fills UpdatedAt.
	Create(ctx context.Context, e *model.StoredEvent) error
	// Update replaces title, notes, start and end of an event owned by e.OwnerID.
	// errs.ErrNotFound when absent, errs.ErrForbidden when owned by someone else.
	Update(ctx context.Context, e *model.StoredEvent) error
	// Delete removes an event owned by ownerID, with the same errors as Update.
	Delete(ctx context.Context, ownerID, id string) error
}
