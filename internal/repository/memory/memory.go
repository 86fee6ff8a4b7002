// Package memory contains in-process implementations of the repository interfaces,
// used by the development server and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/model"
)

// UserRepo keeps accounts in a map keyed by ID.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]model.StoredUser
	byEmail map[string]string
	now     func() time.Time
}

// NewUserRepo returns an empty user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]model.StoredUser),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepo) Create(_ context.Context, u *model.StoredUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return errs.ErrAlreadyExists
	}
	if _, ok := r.byID[u.ID]; ok {
		return errs.ErrAlreadyExists
	}
	u.CreatedAt = r.now()
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*model.StoredUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.StoredUser, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) name(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id].Name
}

// EventRepo keeps events in a map keyed by ID; owner names come from users.
type EventRepo struct {
	mu     sync.RWMutex
	events map[string]model.StoredEvent
	users  *UserRepo
	now    func() time.Time
}

// NewEventRepo returns an empty event repository resolving owners through users.
func NewEventRepo(users *UserRepo) *EventRepo {
	return &EventRepo{
		events: make(map[string]model.StoredEvent),
		users:  users,
		now:    time.Now,
	}
}

func (r *EventRepo) List(_ context.Context) ([]model.StoredEvent, error) {
	r.mu.RLock()
	out := make([]model.StoredEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	r.mu.RUnlock()

	for i := range out {
		out[i].OwnerName = r.users.name(out[i].OwnerID)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *EventRepo) Create(_ context.Context, e *model.StoredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.ID]; ok {
		return errs.ErrAlreadyExists
	}
	e.UpdatedAt = r.now()
	stored := *e
	stored.OwnerName = ""
	r.events[e.ID] = stored
	return nil
}

func (r *EventRepo) Update(_ context.Context, e *model.StoredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, err := r.owned(e.OwnerID, e.ID)
	if err != nil {
		return err
	}
	cur.Title, cur.Notes, cur.Start, cur.End = e.Title, e.Notes, e.Start, e.End
	cur.UpdatedAt = r.now()
	r.events[e.ID] = cur
	e.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *EventRepo) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.owned(ownerID, id); err != nil {
		return err
	}
	delete(r.events, id)
	return nil
}

// owned must be called with mu held.
func (r *EventRepo) owned(ownerID, id string) (model.StoredEvent, error) {
	cur, ok := r.events[id]
	if !ok {
		return model.StoredEvent{}, errs.ErrNotFound
	}
	if cur.OwnerID != ownerID {
		return model.StoredEvent{}, errs.ErrForbidden
	}
	return cur, nil
}
