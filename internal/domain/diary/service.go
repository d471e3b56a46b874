package diary

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "diary").Logger(),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) validate(e *Entry) error {
	if e.RNID == uuid.Nil {
		return fmt.Errorf("rn_id is required")
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.Priority == "" {
		e.Priority = PriorityMedium
	}
	if !validPriorities[e.Priority] {
		return fmt.Errorf("invalid priority %q", e.Priority)
	}
	if e.ReminderEnabled {
		if e.ScheduledDate == "" {
			return fmt.Errorf("reminders require a scheduled date")
		}
		if e.ReminderMinutesBefore <= 0 {
			e.ReminderMinutesBefore = 60
		}
	}
	if e.ScheduledDate != "" {
		if _, err := e.ScheduledAt(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, e *Entry) error {
	if err := s.validate(e); err != nil {
		return err
	}
	e.CompletionStatus = StatusPending
	e.CompletedAt = nil
	if err := s.repo.Create(ctx, e); err != nil {
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("entry id is required")
	}
	if err := s.validate(e); err != nil {
		return err
	}
	return s.repo.Update(ctx, e)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	return s.repo.List(ctx, f)
}

// Transition moves an entry through the RN-driven part of the status
// machine. Completing an entry stamps completed_at.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to string) (*Entry, error) {
	if !validStatuses[to] {
		return nil, fmt.Errorf("invalid status %q", to)
	}
	if to == StatusOverdue {
		return nil, fmt.Errorf("overdue is set by the scheduler, not directly")
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidTransition(e.CompletionStatus, to) {
		return nil, fmt.Errorf("cannot move entry from %s to %s", e.CompletionStatus, to)
	}

	var completedAt *time.Time
	if to == StatusCompleted {
		ts := s.now().UTC()
		completedAt = &ts
	}
	if err := s.repo.UpdateStatus(ctx, id, to, completedAt); err != nil {
		return nil, err
	}
	e.CompletionStatus = to
	e.CompletedAt = completedAt
	return e, nil
}
