// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/calsync/internal/model"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user. A taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.StoredUser) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id string) (*model.StoredUser, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.StoredUser, error)
}
