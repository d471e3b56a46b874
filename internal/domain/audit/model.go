// Package audit records case-scoped activity events. Every safety-relevant
// mutation elsewhere in the system writes a row here.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event types recorded by the disclosure and diary workflows.
const (
	EventDisclosureSaved     = "sensitive_disclosure_saved"
	EventDisclosureDiscarded = "sensitive_disclosures_discarded"
	EventConsentUpdated      = "disclosure_consent_updated"
	EventScreeningSaved      = "screening_item_saved"
	EventAssessmentSaved     = "columbia_assessment_saved"
	EventAlertRaised         = "case_alert_raised"
	EventAlertAcknowledged   = "case_alert_acknowledged"
	EventReminderSent        = "diary_reminder_sent"
	EventOverdueMarked       = "diary_entry_overdue"
	EventEscalationSent      = "diary_escalation_sent"
)

// Event is a single audit trail row.
type Event struct {
	ID          uuid.UUID              `json:"id"`
	CaseID      uuid.UUID              `json:"case_id"`
	ActorUserID uuid.UUID              `json:"actor_user_id"`
	EventType   string                 `json:"event_type"`
	EventMeta   map[string]interface{} `json:"event_meta,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
