package columbia

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reconcile-care/liaison/internal/domain/audit"
	"github.com/reconcile-care/liaison/internal/domain/casealert"
	"github.com/reconcile-care/liaison/internal/domain/disclosure"
)

// ItemCode is the disclosure item code every assessment is recorded
// under. Repeat assessments for a case land on the same row, latest
// wins.
const ItemCode = "columbia_protocol"

// AssessmentSaver persists the assessment as a disclosure row. Satisfied
// by disclosure.Service.
type AssessmentSaver interface {
	SaveAssessment(ctx context.Context, caseID, actorID uuid.UUID, itemCode string, risk disclosure.RiskLevel, freeText string) (*disclosure.Disclosure, error)
}

// EmergencyAlerter raises an emergency alert for high-risk outcomes.
// Satisfied by casealert.Service.
type EmergencyAlerter interface {
	CreateEmergencyAlert(ctx context.Context, a *casealert.EmergencyAlert) error
}

// Submission is a completed assessment for one client.
type Submission struct {
	CaseID   uuid.UUID `json:"case_id"`
	ClientID uuid.UUID `json:"client_id"`
	Answers  Answers   `json:"answers"`
}

// SubmitOutcome reports what a submission produced. Warning is set when
// the assessment was stored but a follow-on step failed.
type SubmitOutcome struct {
	Result           *Result                `json:"result"`
	Disclosure       *disclosure.Disclosure `json:"disclosure"`
	EmergencyAlerted bool                   `json:"emergency_alerted"`
	Warning          string                 `json:"warning,omitempty"`
}

type Service struct {
	saver  AssessmentSaver
	alerts EmergencyAlerter
	audit  audit.Recorder
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(saver AssessmentSaver, alerts EmergencyAlerter, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		saver:  saver,
		alerts: alerts,
		audit:  rec,
		logger: logger.With().Str("component", "columbia").Logger(),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// assessmentRecord is the JSON stored in the disclosure row's free-text
// field so the full answer set survives alongside the derived risk.
type assessmentRecord struct {
	Answers   Answers `json:"answers"`
	RiskLevel Level   `json:"risk_level"`
	Score     int     `json:"score"`
	Timestamp string  `json:"timestamp"`
}

// Submit scores the answers, persists the assessment through the
// disclosure pipeline, and raises an emergency alert for critical or
// high outcomes. Alert and audit failures do not roll back the stored
// assessment.
func (s *Service) Submit(ctx context.Context, actorID uuid.UUID, sub Submission) (*SubmitOutcome, error) {
	if sub.CaseID == uuid.Nil {
		return nil, fmt.Errorf("case_id is required")
	}
	if actorID == uuid.Nil {
		return nil, fmt.Errorf("actor_id is required")
	}

	result, err := Assess(sub.Answers)
	if err != nil {
		return nil, err
	}

	record, err := json.Marshal(assessmentRecord{
		Answers:   sub.Answers,
		RiskLevel: result.Level,
		Score:     result.Score,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode assessment: %w", err)
	}

	d, err := s.saver.SaveAssessment(ctx, sub.CaseID, actorID, ItemCode, disclosure.RiskLevel(result.Level.DisclosureRisk()), string(record))
	if err != nil {
		return nil, fmt.Errorf("save assessment: %w", err)
	}

	outcome := &SubmitOutcome{Result: result, Disclosure: d}

	if result.Level.Emergency() {
		if sub.ClientID == uuid.Nil {
			outcome.Warning = "client_id missing, emergency alert not raised"
			s.logger.Warn().Stringer("case_id", sub.CaseID).Msg("columbia submission without client_id at emergency level")
		} else {
			alert := &casealert.EmergencyAlert{
				CaseID:       sub.CaseID,
				ClientID:     sub.ClientID,
				AlertType:    "suicidal_ideation",
				Severity:     casealert.SeverityCritical,
				AlertDetails: fmt.Sprintf("Columbia Protocol Score: %d/%d - Risk Level: %s", result.Score, MaxScore, strings.ToUpper(string(result.Level))),
				CreatedBy:    actorID,
			}
			if err := s.alerts.CreateEmergencyAlert(ctx, alert); err != nil {
				outcome.Warning = fmt.Sprintf("emergency alert failed: %v", err)
				s.logger.Error().Err(err).Stringer("case_id", sub.CaseID).Msg("failed to create emergency alert")
			} else {
				outcome.EmergencyAlerted = true
			}
		}
	}

	if s.audit != nil {
		ev := &audit.Event{
			CaseID:      sub.CaseID,
			ActorUserID: actorID,
			EventType:   audit.EventAssessmentSaved,
			EventMeta: map[string]interface{}{
				"risk_level":        string(result.Level),
				"score":             result.Score,
				"emergency_alerted": outcome.EmergencyAlerted,
			},
		}
		if err := s.audit.Record(ctx, ev); err != nil {
			s.logger.Error().Err(err).Stringer("case_id", sub.CaseID).Msg("failed to record assessment audit event")
		}
	}

	return outcome, nil
}
