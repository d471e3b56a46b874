package diary

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/reconcile-care/liaison/internal/domain/audit"
	"github.com/reconcile-care/liaison/internal/domain/identity"
	"github.com/reconcile-care/liaison/internal/platform/email"
)

// SchedulerOptions tune the timing rules. Zero values fall back to the
// defaults below.
type SchedulerOptions struct {
	// ResendGap is the minimum interval between two reminder or
	// escalation emails for the same entry.
	ResendGap time.Duration
	// OverdueAfter is how far past its scheduled time a pending entry
	// may run before it is marked overdue.
	OverdueAfter time.Duration
	// MaxRecipients caps how many elevated-role users an escalation
	// emails.
	MaxRecipients int
}

const (
	defaultResendGap     = 60 * time.Minute
	defaultOverdueAfter  = 120 * time.Minute
	defaultMaxRecipients = 5
)

// RunReport summarizes one scheduler pass.
type RunReport struct {
	Processed     int      `json:"processed"`
	RemindersSent int      `json:"reminders_sent"`
	Overdue       int      `json:"overdue"`
	Escalations   int      `json:"escalations"`
	Errors        []string `json:"errors,omitempty"`
}

// Scheduler walks open diary entries and fires reminder, overdue and
// escalation notifications. Each stamp is claimed with a conditional
// update before the email goes out, so overlapping runs never
// double-send; a send failure after a claimed stamp is logged and the
// notification waits for the next gap window.
type Scheduler struct {
	repo      Repository
	people    identity.Directory
	sender    email.Sender
	templates *email.TemplateEngine
	audit     audit.Recorder
	logger    zerolog.Logger
	now       func() time.Time
	opts      SchedulerOptions
}

func NewScheduler(repo Repository, people identity.Directory, sender email.Sender, rec audit.Recorder, logger zerolog.Logger, opts SchedulerOptions) *Scheduler {
	if opts.ResendGap <= 0 {
		opts.ResendGap = defaultResendGap
	}
	if opts.OverdueAfter <= 0 {
		opts.OverdueAfter = defaultOverdueAfter
	}
	if opts.MaxRecipients <= 0 {
		opts.MaxRecipients = defaultMaxRecipients
	}
	return &Scheduler{
		repo:      repo,
		people:    people,
		sender:    sender,
		templates: email.NewTemplateEngine(),
		audit:     rec,
		logger:    logger.With().Str("component", "diary_scheduler").Logger(),
		now:       time.Now,
		opts:      opts,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Run executes one pass over all open scheduled entries. A failure on
// one entry is recorded in the report and does not stop the pass.
func (s *Scheduler) Run(ctx context.Context) (*RunReport, error) {
	entries, err := s.repo.ListOpenScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open entries: %w", err)
	}

	report := &RunReport{}
	now := s.now().UTC()
	for _, e := range entries {
		report.Processed++
		if err := s.processEntry(ctx, now, e, report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("entry %s: %v", e.ID, err))
			s.logger.Error().Err(err).Stringer("entry_id", e.ID).Msg("scheduler entry failed")
		}
	}

	s.logger.Info().
		Int("processed", report.Processed).
		Int("reminders", report.RemindersSent).
		Int("overdue", report.Overdue).
		Int("escalations", report.Escalations).
		Int("errors", len(report.Errors)).
		Msg("scheduler pass complete")
	return report, nil
}

// RunLoop runs passes on a fixed interval until the context is
// canceled. A pass runs immediately on start.
func (s *Scheduler) RunLoop(ctx context.Context, interval time.Duration) {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduler pass failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped")
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduler pass failed")
			}
		}
	}
}

func (s *Scheduler) processEntry(ctx context.Context, now time.Time, e *Entry, report *RunReport) error {
	sched, err := e.ScheduledAt()
	if err != nil {
		return err
	}

	if e.CompletionStatus == StatusPending || e.CompletionStatus == StatusInProgress {
		if err := s.maybeRemind(ctx, now, sched, e, report); err != nil {
			return err
		}
	}

	if e.CompletionStatus == StatusPending && now.Sub(sched) > s.opts.OverdueAfter {
		marked, err := s.repo.MarkOverdue(ctx, e.ID, now)
		if err != nil {
			return err
		}
		if marked {
			report.Overdue++
			e.CompletionStatus = StatusOverdue
			s.sendOverdue(ctx, now, sched, e, report)
			s.record(ctx, e, audit.EventOverdueMarked, map[string]interface{}{
				"scheduled_at": sched.Format(time.RFC3339),
			})
		}
	}

	if e.CompletionStatus == StatusOverdue && e.Escalates() {
		if err := s.maybeEscalate(ctx, now, sched, e, report); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) maybeRemind(ctx context.Context, now, sched time.Time, e *Entry, report *RunReport) error {
	if !e.ReminderEnabled || e.ReminderMinutesBefore <= 0 {
		return nil
	}
	windowStart := sched.Add(-time.Duration(e.ReminderMinutesBefore) * time.Minute)
	if now.Before(windowStart) || !now.Before(sched) {
		return nil
	}

	stamped, err := s.repo.StampReminder(ctx, e.ID, now, now.Add(-s.opts.ResendGap))
	if err != nil {
		return err
	}
	if !stamped {
		return nil
	}

	rn, err := s.people.GetByID(ctx, e.RNID)
	if err != nil {
		return fmt.Errorf("resolve entry owner: %w", err)
	}
	subject, body, err := s.templates.Render("diary-reminder", map[string]string{
		"title":       e.Title,
		"time":        sched.Format("Jan 2, 2006 15:04 MST"),
		"description": e.Description,
	})
	if err != nil {
		return err
	}
	if err := s.sender.SendEmail(ctx, rn.Email, subject, body); err != nil {
		s.logger.Error().Err(err).Stringer("entry_id", e.ID).Msg("reminder email failed")
		report.Errors = append(report.Errors, fmt.Sprintf("entry %s: reminder email: %v", e.ID, err))
		return nil
	}

	report.RemindersSent++
	s.record(ctx, e, audit.EventReminderSent, map[string]interface{}{
		"scheduled_at": sched.Format(time.RFC3339),
		"recipient":    rn.Email,
	})
	return nil
}

func (s *Scheduler) sendOverdue(ctx context.Context, now, sched time.Time, e *Entry, report *RunReport) {
	rn, err := s.people.GetByID(ctx, e.RNID)
	if err != nil {
		s.logger.Error().Err(err).Stringer("entry_id", e.ID).Msg("resolve entry owner failed")
		report.Errors = append(report.Errors, fmt.Sprintf("entry %s: overdue email: %v", e.ID, err))
		return
	}
	subject, body, err := s.templates.Render("diary-overdue", map[string]string{
		"title": e.Title,
		"time":  sched.Format("Jan 2, 2006 15:04 MST"),
	})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("entry %s: overdue email: %v", e.ID, err))
		return
	}
	if err := s.sender.SendEmail(ctx, rn.Email, subject, body); err != nil {
		s.logger.Error().Err(err).Stringer("entry_id", e.ID).Msg("overdue email failed")
		report.Errors = append(report.Errors, fmt.Sprintf("entry %s: overdue email: %v", e.ID, err))
	}
}

func (s *Scheduler) maybeEscalate(ctx context.Context, now, sched time.Time, e *Entry, report *RunReport) error {
	stamped, err := s.repo.StampEscalation(ctx, e.ID, now, now.Add(-s.opts.ResendGap))
	if err != nil {
		return err
	}
	if !stamped {
		return nil
	}

	supervisors, err := s.people.ListElevated(ctx, s.opts.MaxRecipients)
	if err != nil {
		return fmt.Errorf("resolve supervisors: %w", err)
	}
	if len(supervisors) == 0 {
		s.logger.Warn().Stringer("entry_id", e.ID).Msg("no elevated-role users to escalate to")
		return nil
	}

	assignee := e.RNID.String()
	if rn, err := s.people.GetByID(ctx, e.RNID); err == nil {
		assignee = rn.FullName
	}
	subject, body, err := s.templates.Render("diary-escalation", map[string]string{
		"title":    e.Title,
		"time":     sched.Format("Jan 2, 2006 15:04 MST"),
		"priority": e.Priority,
		"assignee": assignee,
	})
	if err != nil {
		return err
	}

	sent := 0
	for _, sup := range supervisors {
		if err := s.sender.SendEmail(ctx, sup.Email, subject, body); err != nil {
			s.logger.Error().Err(err).Stringer("entry_id", e.ID).Str("recipient", sup.Email).Msg("escalation email failed")
			report.Errors = append(report.Errors, fmt.Sprintf("entry %s: escalation to %s: %v", e.ID, sup.Email, err))
			continue
		}
		sent++
	}
	if sent > 0 {
		report.Escalations++
		s.record(ctx, e, audit.EventEscalationSent, map[string]interface{}{
			"scheduled_at": sched.Format(time.RFC3339),
			"priority":     e.Priority,
			"recipients":   sent,
		})
	}
	return nil
}

func (s *Scheduler) record(ctx context.Context, e *Entry, eventType string, meta map[string]interface{}) {
	if s.audit == nil {
		return
	}
	meta["entry_id"] = e.ID.String()
	ev := &audit.Event{ActorUserID: e.RNID, EventType: eventType, EventMeta: meta}
	if e.CaseID != nil {
		ev.CaseID = *e.CaseID
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Error().Err(err).Stringer("entry_id", e.ID).Msg("failed to record scheduler audit event")
	}
}
