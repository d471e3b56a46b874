package casealert

import (
	"context"
	"encoding/json"
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

// =========== Alert Repository ===========

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewAlertRepoPG(pool *pgxpool.Pool) AlertRepository {
	return &alertRepoPG{pool: pool}
}

func (r *alertRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const alertCols = `id, case_id, alert_type, severity, message, disclosure_scope,
	metadata, acknowledged, acknowledged_by, acknowledged_at, created_at`

func (r *alertRepoPG) scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	var meta []byte
	err := row.Scan(&a.ID, &a.CaseID, &a.AlertType, &a.Severity, &a.Message, &a.DisclosureScope,
		&meta, &a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal alert metadata: %w", err)
		}
	}
	return &a, nil
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	if a.DisclosureScope == "" {
		a.DisclosureScope = "internal"
	}

	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal alert metadata: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO case_alerts (id, case_id, alert_type, severity, message, disclosure_scope, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		a.ID, a.CaseID, a.AlertType, a.Severity, a.Message, a.DisclosureScope, meta,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert case alert: %w", err)
	}
	return nil
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	row := r.conn(ctx).QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM case_alerts WHERE id = $1`, alertCols), id)

	a, err := r.scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get case alert %s: %w", id, err)
	}
	return a, nil
}

func (r *alertRepoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Alert, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM case_alerts WHERE case_id = $1`, caseID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count case alerts: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM case_alerts
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, alertCols),
		caseID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list case alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan case alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate case alerts: %w", err)
	}

	return alerts, total, nil
}

func (r *alertRepoPG) Acknowledge(ctx context.Context, id, actorID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE case_alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1`,
		id, actorID)
	if err != nil {
		return fmt.Errorf("acknowledge case alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Emergency Alert Repository ===========

type emergencyRepoPG struct{ pool *pgxpool.Pool }

func NewEmergencyAlertRepoPG(pool *pgxpool.Pool) EmergencyAlertRepository {
	return &emergencyRepoPG{pool: pool}
}

func (r *emergencyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const emergencyCols = `id, case_id, client_id, alert_type, severity, alert_details,
	acknowledged, created_at, created_by, acknowledged_by, acknowledged_at`

func (r *emergencyRepoPG) Create(ctx context.Context, a *EmergencyAlert) error {
	a.ID = uuid.New()

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rn_emergency_alerts (id, case_id, client_id, alert_type, severity, alert_details, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		a.ID, a.CaseID, a.ClientID, a.AlertType, a.Severity, a.AlertDetails, a.CreatedBy,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert emergency alert: %w", err)
	}
	return nil
}

func (r *emergencyRepoPG) ListOpen(ctx context.Context, limit, offset int) ([]*EmergencyAlert, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM rn_emergency_alerts WHERE acknowledged = FALSE`,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count emergency alerts: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM rn_emergency_alerts
		WHERE acknowledged = FALSE
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, emergencyCols),
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list emergency alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*EmergencyAlert
	for rows.Next() {
		var a EmergencyAlert
		if err := rows.Scan(&a.ID, &a.CaseID, &a.ClientID, &a.AlertType, &a.Severity, &a.AlertDetails,
			&a.Acknowledged, &a.CreatedAt, &a.CreatedBy, &a.AcknowledgedBy, &a.AcknowledgedAt); err != nil {
			return nil, 0, fmt.Errorf("scan emergency alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate emergency alerts: %w", err)
	}

	return alerts, total, nil
}

func (r *emergencyRepoPG) Acknowledge(ctx context.Context, id, actorID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE rn_emergency_alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1`,
		id, actorID)
	if err != nil {
		return fmt.Errorf("acknowledge emergency alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
