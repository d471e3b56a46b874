// Package disclosure implements the sensitive-disclosure risk pipeline:
// classification of client-reported items into risk tiers, upsert-style
// persistence with soft deletes, the derived case flag, consent tracking,
// and safety-alert fan-out.
package disclosure

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the classification tier of a disclosure item code. The zero
// value means no flag.
type RiskLevel string

const (
	RiskRed    RiskLevel = "RED"
	RiskOrange RiskLevel = "ORANGE"
	RiskNone   RiskLevel = ""
)

// ConsentChoice is the three-valued consent state per party.
type ConsentChoice string

const (
	ConsentShare   ConsentChoice = "share"
	ConsentNoShare ConsentChoice = "no_share"
	ConsentUnset   ConsentChoice = "unset"
)

// Disclosure categories.
const (
	CategorySubstanceUse     = "substance_use"
	CategorySafetyTrauma     = "safety_trauma"
	CategoryStressors        = "stressors"
	CategoryMentalHealth     = "mental_health_screening"
)

// Audit events stamped on disclosure rows.
const (
	AuditAdded      = "added"
	AuditUpdated    = "updated"
	AuditDeselected = "deselected"
	AuditDiscarded  = "discarded"
)

// Origin sections recorded for provenance.
const (
	OriginSensitiveSection = "sensitive_section"
	OriginBHScreen         = "bh_screen"
	OriginColumbia         = "columbia_protocol"
)

var validCategories = map[string]bool{
	CategorySubstanceUse: true,
	CategorySafetyTrauma: true,
	CategoryStressors:    true,
	CategoryMentalHealth: true,
}

var validConsentChoices = map[ConsentChoice]bool{
	ConsentShare:   true,
	ConsentNoShare: true,
	ConsentUnset:   true,
}

// Disclosure is one client-reported sensitive item, unique per
// (case_id, category, item_code). Rows are never deleted; deselection and
// discard only flip state.
type Disclosure struct {
	ID              uuid.UUID     `json:"id"`
	CaseID          uuid.UUID     `json:"case_id"`
	Category        string        `json:"category"`
	ItemCode        string        `json:"item_code"`
	Selected        bool          `json:"selected"`
	RiskLevel       RiskLevel     `json:"risk_level,omitempty"`
	FreeText        string        `json:"free_text,omitempty"`
	ConsentAttorney ConsentChoice `json:"consent_attorney"`
	ConsentProvider ConsentChoice `json:"consent_provider"`
	ConsentTS       *time.Time    `json:"consent_ts,omitempty"`
	OriginSection   string        `json:"origin_section"`
	AuditEvent      string        `json:"audit_event"`
	CreatedBy       uuid.UUID     `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ConsentStatus summarizes whether consent is required for a case and
// whether each party has answered for every selected disclosure.
type ConsentStatus struct {
	Required           bool `json:"required"`
	HasAttorneyConsent bool `json:"has_attorney_consent"`
	HasProviderConsent bool `json:"has_provider_consent"`
}
