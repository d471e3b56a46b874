// Package casealert persists safety alerts raised by the disclosure
// pipeline and emergency alerts raised by suicide-risk assessments, and
// dispatches best-effort notifications for them.
package casealert

import (
	"time"

	"github.com/google/uuid"
)

// Alert types and severities raised by the risk pipeline.
const (
	TypeCriticalSafety = "CRITICAL_SAFETY"
	TypeHighSafety     = "HIGH_SAFETY"

	SeverityCritical = "critical"
	SeverityHigh     = "high"
)

// Alert is a persisted safety alert on a case. Every RED or ORANGE
// selection event produces a new row; alerts are not deduplicated.
type Alert struct {
	ID              uuid.UUID              `json:"id"`
	CaseID          uuid.UUID              `json:"case_id"`
	AlertType       string                 `json:"alert_type"`
	Severity        string                 `json:"severity"`
	Message         string                 `json:"message"`
	DisclosureScope string                 `json:"disclosure_scope"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Acknowledged    bool                   `json:"acknowledged"`
	AcknowledgedBy  *uuid.UUID             `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time             `json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// EmergencyAlert is an immediate-review alert raised when a suicide-risk
// assessment scores critical or high.
type EmergencyAlert struct {
	ID           uuid.UUID  `json:"id"`
	CaseID       uuid.UUID  `json:"case_id"`
	ClientID     uuid.UUID  `json:"client_id"`
	AlertType    string     `json:"alert_type"`
	Severity     string     `json:"severity"`
	AlertDetails string     `json:"alert_details"`
	Acknowledged bool       `json:"acknowledged"`
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	AcknowledgedBy *uuid.UUID `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Notification is the payload handed to the external notifier when an
// alert is created.
type Notification struct {
	CaseID    uuid.UUID `json:"caseId"`
	ItemCode  string    `json:"itemCode"`
	RiskLevel string    `json:"riskLevel"`
	Message   string    `json:"message"`
}
