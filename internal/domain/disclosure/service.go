package disclosure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reconcile-care/liaison/internal/domain/audit"
)

// AlertCreator raises a safety alert for a flagged disclosure. Implemented
// by the casealert service; failures are reported back as warnings, never
// as pipeline errors.
type AlertCreator interface {
	CreateSafetyAlert(ctx context.Context, caseID uuid.UUID, itemCode string, risk RiskLevel) error
}

// saveDecision is the three-way branch of the save pipeline.
type saveDecision int

const (
	decisionUpdate saveDecision = iota
	decisionInsert
	decisionSkip
)

// SaveParams carries one disclosure toggle. ActorID is the authenticated
// user performing the save; services never read ambient session state.
type SaveParams struct {
	CaseID          uuid.UUID
	ActorID         uuid.UUID
	Category        string
	ItemCode        string
	Selected        bool
	FreeText        string
	ConsentAttorney ConsentChoice
	ConsentProvider ConsentChoice
	OriginSection   string
}

// SaveOutcome reports the result of a save. Warning carries best-effort
// failures (alert creation, notification) that must not fail the save.
type SaveOutcome struct {
	Disclosure *Disclosure `json:"disclosure,omitempty"`
	RiskLevel  RiskLevel   `json:"risk_level,omitempty"`
	Skipped    bool        `json:"skipped"`
	Warning    string      `json:"warning,omitempty"`
}

// ScreeningItemCodes accepted by SaveScreeningItem.
var validScreeningCodes = map[string]bool{
	"self_harm":        true,
	"suicide_thoughts": true,
	"depression":       true,
	"anxiety":          true,
}

var validScreeningResponses = map[string]bool{
	"yes":    true,
	"no":     true,
	"unsure": true,
}

// TxRunner executes fn as a single unit of work. When set on the service,
// the disclosure write and the case flag sync commit or roll back together.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo   Repository
	cases  CaseRepository
	alerts AlertCreator
	audit  audit.Recorder
	policy RiskPolicy
	logger zerolog.Logger
	tx     TxRunner
	now    func() time.Time
}

func NewService(repo Repository, cases CaseRepository, alerts AlertCreator, rec audit.Recorder, policy RiskPolicy, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cases:  cases,
		alerts: alerts,
		audit:  rec,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetTxRunner injects the transaction wrapper used for multi-write saves.
// Without one, writes run against the pool directly.
func (s *Service) SetTxRunner(tx TxRunner) { s.tx = tx }

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}

func (s *Service) validateSaveParams(p *SaveParams) error {
	if p.CaseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	if p.ActorID == uuid.Nil {
		return fmt.Errorf("actor_id is required")
	}
	if !validCategories[p.Category] {
		return fmt.Errorf("invalid category %q", p.Category)
	}
	p.ItemCode = NormalizeItemCode(p.ItemCode)
	if p.ItemCode == "" {
		return fmt.Errorf("item_code is required")
	}
	if p.ConsentAttorney == "" {
		p.ConsentAttorney = ConsentUnset
	}
	if p.ConsentProvider == "" {
		p.ConsentProvider = ConsentUnset
	}
	if !validConsentChoices[p.ConsentAttorney] {
		return fmt.Errorf("invalid consent_attorney %q", p.ConsentAttorney)
	}
	if !validConsentChoices[p.ConsentProvider] {
		return fmt.Errorf("invalid consent_provider %q", p.ConsentProvider)
	}
	if p.OriginSection == "" {
		p.OriginSection = OriginSensitiveSection
	}
	return nil
}

// SaveDisclosure runs the save pipeline: classify, upsert-or-skip, recompute
// the case flag, and raise a safety alert for flagged selections. Storage
// errors propagate; alert failures surface only as the outcome warning.
func (s *Service) SaveDisclosure(ctx context.Context, p SaveParams) (*SaveOutcome, error) {
	if err := s.validateSaveParams(&p); err != nil {
		return nil, err
	}

	risk := s.policy.ComputeRiskLevel(p.ItemCode)

	existing, err := s.repo.GetByKey(ctx, p.CaseID, p.Category, p.ItemCode)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	decision := decisionSkip
	switch {
	case existing != nil:
		decision = decisionUpdate
	case p.Selected:
		decision = decisionInsert
	}

	outcome := &SaveOutcome{RiskLevel: risk}

	err = s.inTx(ctx, func(ctx context.Context) error {
		switch decision {
		case decisionUpdate:
			existing.Selected = p.Selected
			existing.FreeText = p.FreeText
			existing.ConsentAttorney = p.ConsentAttorney
			existing.ConsentProvider = p.ConsentProvider
			if p.ConsentAttorney != ConsentUnset || p.ConsentProvider != ConsentUnset {
				ts := s.now()
				existing.ConsentTS = &ts
			} else {
				existing.ConsentTS = nil
			}
			if p.Selected {
				existing.RiskLevel = risk
				existing.AuditEvent = AuditUpdated
			} else {
				existing.RiskLevel = RiskNone
				existing.AuditEvent = AuditDeselected
			}
			if err := s.repo.Update(ctx, existing); err != nil {
				return err
			}
			outcome.Disclosure = existing

		case decisionInsert:
			d := &Disclosure{
				CaseID:          p.CaseID,
				Category:        p.Category,
				ItemCode:        p.ItemCode,
				Selected:        true,
				RiskLevel:       risk,
				FreeText:        p.FreeText,
				ConsentAttorney: p.ConsentAttorney,
				ConsentProvider: p.ConsentProvider,
				OriginSection:   p.OriginSection,
				AuditEvent:      AuditAdded,
				CreatedBy:       p.ActorID,
			}
			if err := s.repo.Insert(ctx, d); err != nil {
				return err
			}
			outcome.Disclosure = d

		case decisionSkip:
			// Deselecting a row that never existed: nothing to persist.
			outcome.Skipped = true
		}

		return s.syncCaseFlag(ctx, p.CaseID)
	})
	if err != nil {
		return nil, err
	}

	if p.Selected && risk != RiskNone {
		s.raiseAlert(ctx, outcome, p.CaseID, p.ItemCode, risk)
	}

	return outcome, nil
}

// syncCaseFlag recomputes has_sensitive_disclosures as "any selected row
// exists" and writes it unconditionally. This is the flag's single sync
// point; no other code writes it.
func (s *Service) syncCaseFlag(ctx context.Context, caseID uuid.UUID) error {
	flag, err := s.repo.AnySelected(ctx, caseID)
	if err != nil {
		return err
	}
	return s.cases.SetSensitiveFlag(ctx, caseID, flag)
}

func (s *Service) raiseAlert(ctx context.Context, outcome *SaveOutcome, caseID uuid.UUID, itemCode string, risk RiskLevel) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.CreateSafetyAlert(ctx, caseID, itemCode, risk); err != nil {
		outcome.Warning = fmt.Sprintf("safety alert creation failed: %v", err)
		s.logger.Error().Err(err).
			Str("case_id", caseID.String()).
			Str("item_code", itemCode).
			Str("risk_level", string(risk)).
			Msg("safety alert creation failed")
	}
}

// DiscardSection flips every disclosure the actor created for the case to
// selected=false / discarded, resyncs the case flag, and records an audit
// event. Rows created by other actors are untouched.
func (s *Service) DiscardSection(ctx context.Context, caseID, actorID uuid.UUID) (int64, error) {
	if caseID == uuid.Nil {
		return 0, fmt.Errorf("case_id is required")
	}
	if actorID == uuid.Nil {
		return 0, fmt.Errorf("actor_id is required")
	}

	var count int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.repo.DiscardByActor(ctx, caseID, actorID)
		if err != nil {
			return err
		}
		return s.syncCaseFlag(ctx, caseID)
	})
	if err != nil {
		return count, err
	}

	s.recordAudit(ctx, caseID, actorID, audit.EventDisclosureDiscarded, map[string]interface{}{
		"event":     "sensitive_skipped",
		"discarded": count,
	})

	return count, nil
}

// CheckConsentRequired reports whether consent is needed for the case and
// whether every selected disclosure has a non-unset answer per party.
func (s *Service) CheckConsentRequired(ctx context.Context, caseID uuid.UUID) (*ConsentStatus, error) {
	if caseID == uuid.Nil {
		return nil, fmt.Errorf("case_id is required")
	}

	selected, err := s.repo.ListSelected(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if len(selected) == 0 {
		return &ConsentStatus{Required: false, HasAttorneyConsent: true, HasProviderConsent: true}, nil
	}

	status := &ConsentStatus{Required: true, HasAttorneyConsent: true, HasProviderConsent: true}
	for _, d := range selected {
		if d.ConsentAttorney == ConsentUnset {
			status.HasAttorneyConsent = false
		}
		if d.ConsentProvider == ConsentUnset {
			status.HasProviderConsent = false
		}
	}
	return status, nil
}

// UpdateAllConsent bulk-sets both consent fields across every selected
// disclosure for the case. Per-item granularity is intentionally lost.
func (s *Service) UpdateAllConsent(ctx context.Context, caseID, actorID uuid.UUID, attorney, provider ConsentChoice) error {
	if caseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	if actorID == uuid.Nil {
		return fmt.Errorf("actor_id is required")
	}
	if !validConsentChoices[attorney] {
		return fmt.Errorf("invalid consent_attorney %q", attorney)
	}
	if !validConsentChoices[provider] {
		return fmt.Errorf("invalid consent_provider %q", provider)
	}

	if err := s.repo.UpdateConsentSelected(ctx, caseID, attorney, provider); err != nil {
		return err
	}

	s.recordAudit(ctx, caseID, actorID, audit.EventConsentUpdated, map[string]interface{}{
		"consent_attorney": string(attorney),
		"consent_provider": string(provider),
	})

	return nil
}

// ListSelected returns the active disclosures for a case.
func (s *Service) ListSelected(ctx context.Context, caseID uuid.UUID) ([]*Disclosure, error) {
	if caseID == uuid.Nil {
		return nil, fmt.Errorf("case_id is required")
	}
	return s.repo.ListSelected(ctx, caseID)
}

// SaveScreeningItem persists a behavioral-health screening response. Only
// concerning responses (yes/unsure) are stored; a "no" is never persisted.
func (s *Service) SaveScreeningItem(ctx context.Context, caseID, actorID uuid.UUID, itemCode, response string) (*SaveOutcome, error) {
	if caseID == uuid.Nil {
		return nil, fmt.Errorf("case_id is required")
	}
	if actorID == uuid.Nil {
		return nil, fmt.Errorf("actor_id is required")
	}
	itemCode = NormalizeItemCode(itemCode)
	if !validScreeningCodes[itemCode] {
		return nil, fmt.Errorf("invalid screening item_code %q", itemCode)
	}
	if !validScreeningResponses[response] {
		return nil, fmt.Errorf("invalid screening response %q", response)
	}

	if response == "no" {
		return &SaveOutcome{Skipped: true}, nil
	}

	risk := s.policy.ComputeRiskLevel(itemCode)

	d := &Disclosure{
		CaseID:          caseID,
		Category:        CategorySafetyTrauma,
		ItemCode:        itemCode,
		Selected:        true,
		RiskLevel:       risk,
		FreeText:        fmt.Sprintf("Behavioral health screening response: %s", response),
		ConsentAttorney: ConsentUnset,
		ConsentProvider: ConsentUnset,
		OriginSection:   OriginBHScreen,
		AuditEvent:      AuditAdded,
		CreatedBy:       actorID,
	}
	if err := s.repo.Upsert(ctx, d); err != nil {
		return nil, err
	}

	if err := s.syncCaseFlag(ctx, caseID); err != nil {
		return nil, err
	}

	outcome := &SaveOutcome{Disclosure: d, RiskLevel: risk}
	if risk == RiskRed {
		s.raiseAlert(ctx, outcome, caseID, itemCode, risk)
	}

	s.recordAudit(ctx, caseID, actorID, audit.EventScreeningSaved, map[string]interface{}{
		"item_code": itemCode,
		"response":  response,
	})

	return outcome, nil
}

// SaveAssessment upserts an assessment-derived disclosure with an explicit
// risk level that bypasses the item-code policy. Used by the Columbia
// Protocol flow, which derives risk from the answer ladder.
func (s *Service) SaveAssessment(ctx context.Context, caseID, actorID uuid.UUID, itemCode string, risk RiskLevel, freeText string) (*Disclosure, error) {
	if caseID == uuid.Nil {
		return nil, fmt.Errorf("case_id is required")
	}
	if actorID == uuid.Nil {
		return nil, fmt.Errorf("actor_id is required")
	}
	itemCode = NormalizeItemCode(itemCode)
	if itemCode == "" {
		return nil, fmt.Errorf("item_code is required")
	}

	d := &Disclosure{
		CaseID:          caseID,
		Category:        CategoryMentalHealth,
		ItemCode:        itemCode,
		Selected:        true,
		RiskLevel:       risk,
		FreeText:        freeText,
		ConsentAttorney: ConsentUnset,
		ConsentProvider: ConsentUnset,
		OriginSection:   OriginColumbia,
		AuditEvent:      AuditAdded,
		CreatedBy:       actorID,
	}
	if err := s.repo.Upsert(ctx, d); err != nil {
		return nil, err
	}

	if err := s.syncCaseFlag(ctx, caseID); err != nil {
		return nil, err
	}

	return d, nil
}

// recordAudit appends a trail event, logging failures without failing the
// caller's operation.
func (s *Service) recordAudit(ctx context.Context, caseID, actorID uuid.UUID, eventType string, meta map[string]interface{}) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &audit.Event{
		CaseID:      caseID,
		ActorUserID: actorID,
		EventType:   eventType,
		EventMeta:   meta,
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("case_id", caseID.String()).
			Str("event_type", eventType).
			Msg("audit record failed")
	}
}
