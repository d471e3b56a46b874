package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("profile not found")

// Directory resolves staff identities.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	// ListElevated returns up to limit profiles holding an elevated role.
	ListElevated(ctx context.Context, limit int) ([]*Profile, error)
}
