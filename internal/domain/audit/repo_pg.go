package audit

import (
	"context"
	"encoding/json"
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

const eventCols = `id, case_id, actor_user_id, event_type, event_meta, created_at`

func (r *repoPG) Record(ctx context.Context, e *Event) error {
	e.ID = uuid.New()

	meta, err := json.Marshal(e.EventMeta)
	if err != nil {
		return fmt.Errorf("marshal event meta: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_events (id, case_id, actor_user_id, event_type, event_meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		e.ID, e.CaseID, e.ActorUserID, e.EventType, meta,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (r *repoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE case_id = $1`, caseID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM audit_events
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, eventCols),
		caseID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var meta []byte
		if err := rows.Scan(&e.ID, &e.CaseID, &e.ActorUserID, &e.EventType, &meta, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.EventMeta); err != nil {
				return nil, 0, fmt.Errorf("unmarshal event meta: %w", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, total, nil
}
