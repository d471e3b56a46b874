package disclosure

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("disclosure not found")

// Repository persists disclosure rows. One row per
// (case_id, category, item_code); Upsert enforces the conflict key.
type Repository interface {
	GetByKey(ctx context.Context, caseID uuid.UUID, category, itemCode string) (*Disclosure, error)
	Insert(ctx context.Context, d *Disclosure) error
	Update(ctx context.Context, d *Disclosure) error
	Upsert(ctx context.Context, d *Disclosure) error
	ListSelected(ctx context.Context, caseID uuid.UUID) ([]*Disclosure, error)
	AnySelected(ctx context.Context, caseID uuid.UUID) (bool, error)
	// DiscardByActor flips selected=false, audit_event=discarded on every
	// row for the case created by actorID, returning the affected count.
	DiscardByActor(ctx context.Context, caseID, actorID uuid.UUID) (int64, error)
	// UpdateConsentSelected bulk-sets both consent fields and the consent
	// timestamp on all selected rows for the case.
	UpdateConsentSelected(ctx context.Context, caseID uuid.UUID, attorney, provider ConsentChoice) error
}

// CaseRepository owns the derived has_sensitive_disclosures flag on the
// case entity. The disclosure pipeline is that flag's only writer.
type CaseRepository interface {
	SetSensitiveFlag(ctx context.Context, caseID uuid.UUID, flag bool) error
}
