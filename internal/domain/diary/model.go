package diary

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority levels for diary entries.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Completion states. RNs move entries pending -> in_progress ->
// completed; only the scheduler moves an entry to overdue.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusOverdue    = "overdue"
)

// Metadata keys stamped by the scheduler. These track delivery
// idempotency, not business state.
const (
	MetaReminderSentAt    = "reminder_sent_at"
	MetaOverdueNotifiedAt = "overdue_notified_at"
	MetaEscalatedAt       = "escalated_at"
)

var validPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusOverdue:    true,
}

// statusTransitions holds the allowed RN-driven moves. The scheduler's
// pending -> overdue move bypasses this table.
var statusTransitions = map[string][]string{
	StatusPending:    {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
	StatusOverdue:    {StatusInProgress, StatusCompleted},
	StatusCompleted:  {},
}

// ValidTransition reports whether an RN may move an entry from one
// completion status to another.
func ValidTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Entry is a scheduled RN task with reminder and escalation settings.
type Entry struct {
	ID                    uuid.UUID              `json:"id"`
	RNID                  uuid.UUID              `json:"rn_id"`
	CaseID                *uuid.UUID             `json:"case_id,omitempty"`
	Title                 string                 `json:"title"`
	Description           string                 `json:"description,omitempty"`
	EntryType             string                 `json:"entry_type,omitempty"`
	ScheduledDate         string                 `json:"scheduled_date"`
	ScheduledTime         string                 `json:"scheduled_time,omitempty"`
	Location              string                 `json:"location,omitempty"`
	Priority              string                 `json:"priority"`
	CompletionStatus      string                 `json:"completion_status"`
	CompletedAt           *time.Time             `json:"completed_at,omitempty"`
	ReminderEnabled       bool                   `json:"reminder_enabled"`
	ReminderMinutesBefore int                    `json:"reminder_minutes_before"`
	SharedWithSupervisor  bool                   `json:"shared_with_supervisor"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// ScheduledAt combines the date and time fields into a single instant
// in UTC. An entry without a time is treated as scheduled at midnight.
func (e *Entry) ScheduledAt() (time.Time, error) {
	if e.ScheduledDate == "" {
		return time.Time{}, fmt.Errorf("entry %s has no scheduled date", e.ID)
	}
	day, err := time.Parse("2006-01-02", e.ScheduledDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scheduled date %q: %w", e.ScheduledDate, err)
	}
	if e.ScheduledTime == "" {
		return day.UTC(), nil
	}
	var clock time.Time
	for _, layout := range []string{"15:04:05", "15:04"} {
		clock, err = time.Parse(layout, e.ScheduledTime)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scheduled time %q: %w", e.ScheduledTime, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC), nil
}

// MetaTime reads a timestamp stamp out of the metadata map. Returns the
// zero time when the key is absent or unparseable.
func (e *Entry) MetaTime(key string) time.Time {
	if e.Metadata == nil {
		return time.Time{}
	}
	raw, ok := e.Metadata[key].(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Escalates reports whether an overdue entry qualifies for supervisor
// escalation.
func (e *Entry) Escalates() bool {
	return e.SharedWithSupervisor && (e.Priority == PriorityHigh || e.Priority == PriorityUrgent)
}
