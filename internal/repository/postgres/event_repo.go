package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/calsync/internal/errs"
	"github.com/and161185/calsync/internal/model"
)

// EventRepo implements EventRepository using PostgreSQL.
type EventRepo struct{ db *DB }

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

// List returns all events with their owner names.
func (r *EventRepo) List(ctx context.Context) ([]model.StoredEvent, error) {
	const q = `
SELECT e.id, e.owner_id, u.name, e.title, e.notes, e.start_at, e.end_at, e.updated_at
FROM events e JOIN users u ON u.id = e.owner_id
ORDER BY e.start_at ASC, e.id ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StoredEvent
	for rows.Next() {
		var e model.StoredEvent
		if err = rows.Scan(&e.ID, &e.OwnerID, &e.OwnerName, &e.Title, &e.Notes, &e.Start, &e.End, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Create inserts a new event row.
func (r *EventRepo) Create(ctx context.Context, e *model.StoredEvent) error {
	const q = `
INSERT INTO events (id, owner_id, title, notes, start_at, end_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING updated_at`
	return r.db.Pool.QueryRow(ctx, q, e.ID, e.OwnerID, e.Title, e.Notes, e.Start, e.End).Scan(&e.UpdatedAt)
}

// Update checks ownership under a row lock and replaces the editable fields.
func (r *EventRepo) Update(ctx context.Context, e *model.StoredEvent) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, e.OwnerID, e.ID); err != nil {
			return err
		}
		const upd = `
UPDATE events SET title=$2, notes=$3, start_at=$4, end_at=$5, updated_at=now()
WHERE id=$1
RETURNING updated_at`
		return tx.QueryRow(ctx, upd, e.ID, e.Title, e.Notes, e.Start, e.End).Scan(&e.UpdatedAt)
	})
}

// Delete checks ownership under a row lock and removes the event.
func (r *EventRepo) Delete(ctx context.Context, ownerID, id string) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, ownerID, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
		return err
	})
}

func lockOwned(ctx context.Context, tx pgx.Tx, ownerID, id string) error {
	const sel = `SELECT owner_id FROM events WHERE id=$1 FOR UPDATE`
	var owner string
	if err := tx.QueryRow(ctx, sel, id).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if owner != ownerID {
		return errs.ErrForbidden
	}
	return nil
}
