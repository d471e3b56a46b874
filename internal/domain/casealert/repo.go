package casealert

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("alert not found")

type AlertRepository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Alert, int, error)
	Acknowledge(ctx context.Context, id, actorID uuid.UUID) error
}

type EmergencyAlertRepository interface {
	Create(ctx context.Context, a *EmergencyAlert) error
	ListOpen(ctx context.Context, limit, offset int) ([]*EmergencyAlert, int, error)
	Acknowledge(ctx context.Context, id, actorID uuid.UUID) error
}
