package audit

import (
	"context"

	"github.com/google/uuid"
)

// Recorder appends events to the audit trail. Implementations must be safe
// for concurrent use.
type Recorder interface {
	Record(ctx context.Context, e *Event) error
}

// Repository adds read access on top of Recorder for the audit API.
type Repository interface {
	Recorder
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Event, int, error)
}
