package diary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

const entryCols = `id, rn_id, case_id, title, COALESCE(description, ''),
	COALESCE(entry_type, ''), COALESCE(scheduled_date::text, ''),
	COALESCE(scheduled_time::text, ''), COALESCE(location, ''),
	priority, completion_status, completed_at,
	reminder_enabled, reminder_minutes_before, shared_with_supervisor,
	metadata, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var meta []byte
	err := row.Scan(&e.ID, &e.RNID, &e.CaseID, &e.Title, &e.Description,
		&e.EntryType, &e.ScheduledDate, &e.ScheduledTime, &e.Location,
		&e.Priority, &e.CompletionStatus, &e.CompletedAt,
		&e.ReminderEnabled, &e.ReminderMinutesBefore, &e.SharedWithSupervisor,
		&meta, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode entry metadata: %w", err)
		}
	}
	return &e, nil
}

func marshalMeta(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	meta, err := marshalMeta(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode entry metadata: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rn_diary_entries
			(id, rn_id, case_id, title, description, entry_type,
			 scheduled_date, scheduled_time, location, priority, completion_status,
			 reminder_enabled, reminder_minutes_before, shared_with_supervisor, metadata)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''),
		        NULLIF($7, '')::date, NULLIF($8, '')::time, NULLIF($9, ''), $10, $11,
		        $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		e.ID, e.RNID, e.CaseID, e.Title, e.Description, e.EntryType,
		e.ScheduledDate, e.ScheduledTime, e.Location, e.Priority, e.CompletionStatus,
		e.ReminderEnabled, e.ReminderMinutesBefore, e.SharedWithSupervisor, meta,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert diary entry: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.conn(ctx).QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM rn_diary_entries WHERE id = $1`, entryCols), id)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get diary entry %s: %w", id, err)
	}
	return e, nil
}

func (r *repoPG) Update(ctx context.Context, e *Entry) error {
	meta, err := marshalMeta(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode entry metadata: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE rn_diary_entries
		SET title = $2, description = NULLIF($3, ''), entry_type = NULLIF($4, ''),
		    scheduled_date = NULLIF($5, '')::date, scheduled_time = NULLIF($6, '')::time,
		    location = NULLIF($7, ''), priority = $8,
		    reminder_enabled = $9, reminder_minutes_before = $10,
		    shared_with_supervisor = $11, metadata = $12, updated_at = NOW()
		WHERE id = $1`,
		e.ID, e.Title, e.Description, e.EntryType,
		e.ScheduledDate, e.ScheduledTime, e.Location, e.Priority,
		e.ReminderEnabled, e.ReminderMinutesBefore, e.SharedWithSupervisor, meta)
	if err != nil {
		return fmt.Errorf("update diary entry %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM rn_diary_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete diary entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0
	add := func(clause string, v interface{}) {
		n++
		where += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, v)
	}
	if f.RNID != uuid.Nil {
		add("rn_id", f.RNID)
	}
	if f.CaseID != uuid.Nil {
		add("case_id", f.CaseID)
	}
	if f.Status != "" {
		add("completion_status", f.Status)
	}
	if f.Priority != "" {
		add("priority", f.Priority)
	}

	var total int
	err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM rn_diary_entries "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count diary entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM rn_diary_entries %s
		ORDER BY scheduled_date NULLS LAST, scheduled_time NULLS LAST, created_at
		LIMIT $%d OFFSET $%d`, entryCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list diary entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan diary entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate diary entries: %w", err)
	}
	return out, total, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, completedAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE rn_diary_entries
		SET completion_status = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $1`,
		id, status, completedAt)
	if err != nil {
		return fmt.Errorf("update diary entry status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListOpenScheduled(ctx context.Context) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM rn_diary_entries
		WHERE completion_status IN ($1, $2, $3) AND scheduled_date IS NOT NULL
		ORDER BY scheduled_date, scheduled_time NULLS LAST`, entryCols),
		StatusPending, StatusInProgress, StatusOverdue)
	if err != nil {
		return nil, fmt.Errorf("list open scheduled entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diary entries: %w", err)
	}
	return out, nil
}

// stampMeta performs the atomic check-and-set on a metadata timestamp.
// The WHERE clause rejects the write when a newer stamp is already
// present, so overlapping scheduler runs send at most one notification
// per gap window.
func (r *repoPG) stampMeta(ctx context.Context, id uuid.UUID, key string, sentAt, notBefore time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE rn_diary_entries
		SET metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object($2::text, $3::text),
		    updated_at = NOW()
		WHERE id = $1
		  AND (metadata->>$2 IS NULL OR (metadata->>$2)::timestamptz < $4)`,
		id, key, sentAt.UTC().Format(time.RFC3339), notBefore)
	if err != nil {
		return false, fmt.Errorf("stamp %s on diary entry %s: %w", key, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) StampReminder(ctx context.Context, id uuid.UUID, sentAt, notBefore time.Time) (bool, error) {
	return r.stampMeta(ctx, id, MetaReminderSentAt, sentAt, notBefore)
}

func (r *repoPG) MarkOverdue(ctx context.Context, id uuid.UUID, notifiedAt time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE rn_diary_entries
		SET completion_status = $2,
		    metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object($3::text, $4::text),
		    updated_at = NOW()
		WHERE id = $1 AND completion_status = $5 AND metadata->>$3 IS NULL`,
		id, StatusOverdue, MetaOverdueNotifiedAt, notifiedAt.UTC().Format(time.RFC3339), StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark diary entry %s overdue: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) StampEscalation(ctx context.Context, id uuid.UUID, sentAt, notBefore time.Time) (bool, error) {
	return r.stampMeta(ctx, id, MetaEscalatedAt, sentAt, notBefore)
}
