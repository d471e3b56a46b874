package diary

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("diary entry not found")

// Filter narrows entry listings.
type Filter struct {
	RNID     uuid.UUID
	CaseID   uuid.UUID
	Status   string
	Priority string
	Limit    int
	Offset   int
}

// Repository stores diary entries. The three stamp methods perform
// conditional updates so concurrent scheduler runs cannot both claim
// the same notification; each returns true only for the run that won.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter) ([]*Entry, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, completedAt *time.Time) error

	// ListOpenScheduled returns pending, in_progress and overdue
	// entries that carry a scheduled date, for one scheduler pass.
	// Overdue entries stay in the set so escalations can re-fire after
	// the resend gap.
	ListOpenScheduled(ctx context.Context) ([]*Entry, error)

	// StampReminder records a reminder send at sentAt unless one was
	// already stamped at or after notBefore.
	StampReminder(ctx context.Context, id uuid.UUID, sentAt, notBefore time.Time) (bool, error)

	// MarkOverdue flips a pending entry to overdue and stamps the
	// notification time. Returns false when the entry already left
	// pending or was already stamped.
	MarkOverdue(ctx context.Context, id uuid.UUID, notifiedAt time.Time) (bool, error)

	// StampEscalation records an escalation send unless one was already
	// stamped at or after notBefore.
	StampEscalation(ctx context.Context, id uuid.UUID, sentAt, notBefore time.Time) (bool, error)
}
