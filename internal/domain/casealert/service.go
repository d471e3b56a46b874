package casealert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reconcile-care/liaison/internal/domain/disclosure"
)

// alertMessages maps known item codes to their RN-facing alert text.
// Unmapped codes fall back to a generic message.
var alertMessages = map[string]string{
	"self_harm":               "Client disclosed self-harm. Immediate RN CM review required.",
	"suicide_thoughts":        "Client disclosed suicidal thoughts. Immediate RN CM review required.",
	"dv_ipv":                  "Client disclosed domestic/intimate partner violence. Safety assessment needed.",
	"sexual_assault":          "Client disclosed sexual assault. Trauma-informed care needed.",
	"stalking":                "Client disclosed stalking/harassment. Safety planning needed.",
	"active_substance_misuse": "Client disclosed active substance misuse. Assessment needed.",
}

// AlertMessage returns the RN-facing message for an item code.
func AlertMessage(itemCode string) string {
	if msg, ok := alertMessages[itemCode]; ok {
		return msg
	}
	return "Safety concern: " + disclosure.HumanizeItemCode(itemCode)
}

type Service struct {
	alerts      AlertRepository
	emergencies EmergencyAlertRepository
	notifier    Notifier
	logger      zerolog.Logger
}

func NewService(alerts AlertRepository, emergencies EmergencyAlertRepository, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		alerts:      alerts,
		emergencies: emergencies,
		notifier:    notifier,
		logger:      logger,
	}
}

// CreateSafetyAlert persists an alert for a RED or ORANGE disclosure and
// fires the external notification. The notification is best-effort: a
// delivery failure is logged and never returned. The insert error is
// returned so the disclosure pipeline can surface it as a warning.
func (s *Service) CreateSafetyAlert(ctx context.Context, caseID uuid.UUID, itemCode string, risk disclosure.RiskLevel) error {
	if caseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}

	var severity, alertType string
	switch risk {
	case disclosure.RiskRed:
		severity, alertType = SeverityCritical, TypeCriticalSafety
	case disclosure.RiskOrange:
		severity, alertType = SeverityHigh, TypeHighSafety
	default:
		return fmt.Errorf("no alert for risk level %q", risk)
	}

	a := &Alert{
		CaseID:          caseID,
		AlertType:       alertType,
		Severity:        severity,
		Message:         AlertMessage(itemCode),
		DisclosureScope: "internal",
		Metadata: map[string]interface{}{
			"item_code":  itemCode,
			"risk_level": string(risk),
			"origin":     "sensitive_experiences",
		},
	}
	if err := s.alerts.Create(ctx, a); err != nil {
		return err
	}

	s.notify(ctx, Notification{
		CaseID:    caseID,
		ItemCode:  itemCode,
		RiskLevel: string(risk),
		Message:   a.Message,
	})

	return nil
}

func (s *Service) notify(ctx context.Context, n Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error().Err(err).
			Str("case_id", n.CaseID.String()).
			Str("item_code", n.ItemCode).
			Msg("alert notification failed")
	}
}

// CreateEmergencyAlert raises an immediate-review alert for a critical or
// high suicide-risk assessment.
func (s *Service) CreateEmergencyAlert(ctx context.Context, a *EmergencyAlert) error {
	if a.CaseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	if a.AlertType == "" {
		return fmt.Errorf("alert_type is required")
	}
	if a.Severity == "" {
		a.Severity = SeverityCritical
	}
	return s.emergencies.Create(ctx, a)
}

func (s *Service) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Alert, int, error) {
	return s.alerts.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) Acknowledge(ctx context.Context, id, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return fmt.Errorf("actor_id is required")
	}
	return s.alerts.Acknowledge(ctx, id, actorID)
}

func (s *Service) ListOpenEmergencies(ctx context.Context, limit, offset int) ([]*EmergencyAlert, int, error) {
	return s.emergencies.ListOpen(ctx, limit, offset)
}

func (s *Service) AcknowledgeEmergency(ctx context.Context, id, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return fmt.Errorf("actor_id is required")
	}
	return s.emergencies.Acknowledge(ctx, id, actorID)
}
