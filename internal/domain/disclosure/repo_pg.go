package disclosure

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reconcile-care/liaison/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Disclosure Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const disclosureCols = `id, case_id, category, item_code, selected,
	COALESCE(risk_level, ''), COALESCE(free_text, ''),
	consent_attorney, consent_provider, consent_ts,
	origin_section, audit_event, created_by, created_at, updated_at`

func (r *repoPG) scanDisclosure(row pgx.Row) (*Disclosure, error) {
	var d Disclosure
	err := row.Scan(&d.ID, &d.CaseID, &d.Category, &d.ItemCode, &d.Selected,
		&d.RiskLevel, &d.FreeText,
		&d.ConsentAttorney, &d.ConsentProvider, &d.ConsentTS,
		&d.OriginSection, &d.AuditEvent, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *repoPG) GetByKey(ctx context.Context, caseID uuid.UUID, category, itemCode string) (*Disclosure, error) {
	row := r.conn(ctx).QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM client_sensitive_disclosures
		WHERE case_id = $1 AND category = $2 AND item_code = $3`, disclosureCols),
		caseID, category, itemCode)

	d, err := r.scanDisclosure(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get disclosure (%s, %s, %s): %w", caseID, category, itemCode, err)
	}
	return d, nil
}

func (r *repoPG) Insert(ctx context.Context, d *Disclosure) error {
	d.ID = uuid.New()

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO client_sensitive_disclosures
			(id, case_id, category, item_code, selected, risk_level, free_text,
			 consent_attorney, consent_provider, consent_ts, origin_section, audit_event, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		d.ID, d.CaseID, d.Category, d.ItemCode, d.Selected, string(d.RiskLevel), d.FreeText,
		d.ConsentAttorney, d.ConsentProvider, d.ConsentTS, d.OriginSection, d.AuditEvent, d.CreatedBy,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert disclosure: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, d *Disclosure) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE client_sensitive_disclosures
		SET selected = $2, risk_level = NULLIF($3, ''), free_text = NULLIF($4, ''),
		    consent_attorney = $5, consent_provider = $6, consent_ts = $7,
		    audit_event = $8, updated_at = NOW()
		WHERE id = $1`,
		d.ID, d.Selected, string(d.RiskLevel), d.FreeText,
		d.ConsentAttorney, d.ConsentProvider, d.ConsentTS, d.AuditEvent)
	if err != nil {
		return fmt.Errorf("update disclosure %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Upsert(ctx context.Context, d *Disclosure) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO client_sensitive_disclosures
			(id, case_id, category, item_code, selected, risk_level, free_text,
			 consent_attorney, consent_provider, consent_ts, origin_section, audit_event, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12, $13)
		ON CONFLICT (case_id, category, item_code) DO UPDATE
		SET selected = EXCLUDED.selected,
		    risk_level = EXCLUDED.risk_level,
		    free_text = EXCLUDED.free_text,
		    audit_event = EXCLUDED.audit_event,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		d.ID, d.CaseID, d.Category, d.ItemCode, d.Selected, string(d.RiskLevel), d.FreeText,
		d.ConsentAttorney, d.ConsentProvider, d.ConsentTS, d.OriginSection, d.AuditEvent, d.CreatedBy,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert disclosure: %w", err)
	}
	return nil
}

func (r *repoPG) ListSelected(ctx context.Context, caseID uuid.UUID) ([]*Disclosure, error) {
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM client_sensitive_disclosures
		WHERE case_id = $1 AND selected = TRUE
		ORDER BY category, item_code`, disclosureCols),
		caseID)
	if err != nil {
		return nil, fmt.Errorf("list selected disclosures: %w", err)
	}
	defer rows.Close()

	var out []*Disclosure
	for rows.Next() {
		d, err := r.scanDisclosure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan disclosure: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disclosures: %w", err)
	}

	return out, nil
}

func (r *repoPG) AnySelected(ctx context.Context, caseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM client_sensitive_disclosures
			WHERE case_id = $1 AND selected = TRUE
		)`, caseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check selected disclosures: %w", err)
	}
	return exists, nil
}

func (r *repoPG) DiscardByActor(ctx context.Context, caseID, actorID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE client_sensitive_disclosures
		SET selected = FALSE, audit_event = $3, updated_at = NOW()
		WHERE case_id = $1 AND created_by = $2`,
		caseID, actorID, AuditDiscarded)
	if err != nil {
		return 0, fmt.Errorf("discard disclosures for case %s: %w", caseID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) UpdateConsentSelected(ctx context.Context, caseID uuid.UUID, attorney, provider ConsentChoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE client_sensitive_disclosures
		SET consent_attorney = $2, consent_provider = $3, consent_ts = NOW(), updated_at = NOW()
		WHERE case_id = $1 AND selected = TRUE`,
		caseID, attorney, provider)
	if err != nil {
		return fmt.Errorf("update consent for case %s: %w", caseID, err)
	}
	return nil
}

// =========== Case Repository ===========

type caseRepoPG struct{ pool *pgxpool.Pool }

func NewCaseRepoPG(pool *pgxpool.Pool) CaseRepository {
	return &caseRepoPG{pool: pool}
}

func (r *caseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *caseRepoPG) SetSensitiveFlag(ctx context.Context, caseID uuid.UUID, flag bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET has_sensitive_disclosures = $2, updated_at = NOW()
		WHERE id = $1`,
		caseID, flag)
	if err != nil {
		return fmt.Errorf("set sensitive flag on case %s: %w", caseID, err)
	}
	return nil
}
