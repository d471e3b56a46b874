package disclosure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reconcile-care/liaison/internal/domain/audit"
)

// -- Mock Repositories --

type disclosureKey struct {
	caseID   uuid.UUID
	category string
	itemCode string
}

type mockRepo struct {
	records map[disclosureKey]*Disclosure
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[disclosureKey]*Disclosure)}
}

func (m *mockRepo) key(d *Disclosure) disclosureKey {
	return disclosureKey{caseID: d.CaseID, category: d.Category, itemCode: d.ItemCode}
}

func (m *mockRepo) GetByKey(_ context.Context, caseID uuid.UUID, category, itemCode string) (*Disclosure, error) {
	d, ok := m.records[disclosureKey{caseID: caseID, category: category, itemCode: itemCode}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) Insert(_ context.Context, d *Disclosure) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()
	cp := *d
	m.records[m.key(d)] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, d *Disclosure) error {
	for k, existing := range m.records {
		if existing.ID == d.ID {
			d.UpdatedAt = time.Now()
			cp := *d
			m.records[k] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockRepo) Upsert(_ context.Context, d *Disclosure) error {
	k := m.key(d)
	if existing, ok := m.records[k]; ok {
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
	} else {
		d.ID = uuid.New()
		d.CreatedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	cp := *d
	m.records[k] = &cp
	return nil
}

func (m *mockRepo) ListSelected(_ context.Context, caseID uuid.UUID) ([]*Disclosure, error) {
	var out []*Disclosure
	for _, d := range m.records {
		if d.CaseID == caseID && d.Selected {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) AnySelected(_ context.Context, caseID uuid.UUID) (bool, error) {
	for _, d := range m.records {
		if d.CaseID == caseID && d.Selected {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) DiscardByActor(_ context.Context, caseID, actorID uuid.UUID) (int64, error) {
	var count int64
	for _, d := range m.records {
		if d.CaseID == caseID && d.CreatedBy == actorID {
			d.Selected = false
			d.AuditEvent = AuditDiscarded
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) UpdateConsentSelected(_ context.Context, caseID uuid.UUID, attorney, provider ConsentChoice) error {
	now := time.Now()
	for _, d := range m.records {
		if d.CaseID == caseID && d.Selected {
			d.ConsentAttorney = attorney
			d.ConsentProvider = provider
			d.ConsentTS = &now
		}
	}
	return nil
}

type mockCaseRepo struct {
	flags  map[uuid.UUID]bool
	writes int
}

func newMockCaseRepo() *mockCaseRepo {
	return &mockCaseRepo{flags: make(map[uuid.UUID]bool)}
}

func (m *mockCaseRepo) SetSensitiveFlag(_ context.Context, caseID uuid.UUID, flag bool) error {
	m.flags[caseID] = flag
	m.writes++
	return nil
}

type alertCall struct {
	caseID   uuid.UUID
	itemCode string
	risk     RiskLevel
}

type mockAlertCreator struct {
	calls      []alertCall
	shouldFail bool
}

func (m *mockAlertCreator) CreateSafetyAlert(_ context.Context, caseID uuid.UUID, itemCode string, risk RiskLevel) error {
	m.calls = append(m.calls, alertCall{caseID: caseID, itemCode: itemCode, risk: risk})
	if m.shouldFail {
		return errors.New("alert insert failed")
	}
	return nil
}

type mockRecorder struct {
	events []*audit.Event
}

func (m *mockRecorder) Record(_ context.Context, e *audit.Event) error {
	m.events = append(m.events, e)
	return nil
}

type testEnv struct {
	svc    *Service
	repo   *mockRepo
	cases  *mockCaseRepo
	alerts *mockAlertCreator
	audit  *mockRecorder
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:   newMockRepo(),
		cases:  newMockCaseRepo(),
		alerts: &mockAlertCreator{},
		audit:  &mockRecorder{},
	}
	env.svc = NewService(env.repo, env.cases, env.alerts, env.audit, DefaultRiskPolicy(), zerolog.Nop())
	return env
}

// -- Save Pipeline --

func TestSaveDisclosure_RedCreatesAlert(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorID := uuid.New()

	outcome, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   caseID,
		ActorID:  actorID,
		Category: CategorySafetyTrauma,
		ItemCode: "suicide_thoughts",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("SaveDisclosure() error: %v", err)
	}

	if outcome.RiskLevel != RiskRed {
		t.Errorf("expected RED, got %q", outcome.RiskLevel)
	}
	if outcome.Disclosure == nil || outcome.Disclosure.RiskLevel != RiskRed {
		t.Errorf("expected persisted RED row, got %+v", outcome.Disclosure)
	}
	if outcome.Disclosure.AuditEvent != AuditAdded {
		t.Errorf("expected audit_event added, got %q", outcome.Disclosure.AuditEvent)
	}
	if !env.cases.flags[caseID] {
		t.Error("expected has_sensitive_disclosures=true")
	}
	if len(env.alerts.calls) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(env.alerts.calls))
	}
	if env.alerts.calls[0].risk != RiskRed || env.alerts.calls[0].itemCode != "suicide_thoughts" {
		t.Errorf("unexpected alert call: %+v", env.alerts.calls[0])
	}
}

func TestSaveDisclosure_RunsWriteInTx(t *testing.T) {
	env := newTestEnv()
	var txCalls int
	env.svc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		txCalls++
		return fn(ctx)
	})

	outcome, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   uuid.New(),
		ActorID:  uuid.New(),
		Category: CategorySafetyTrauma,
		ItemCode: "domestic_violence",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("SaveDisclosure: %v", err)
	}
	if txCalls != 1 {
		t.Errorf("expected 1 tx invocation, got %d", txCalls)
	}
	if outcome.Disclosure == nil {
		t.Error("expected persisted disclosure")
	}
}

func TestSaveDisclosure_TxFailureAborts(t *testing.T) {
	env := newTestEnv()
	env.svc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return errors.New("commit failed")
	})

	_, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   uuid.New(),
		ActorID:  uuid.New(),
		Category: CategorySafetyTrauma,
		ItemCode: "domestic_violence",
		Selected: true,
	})
	if err == nil || err.Error() != "commit failed" {
		t.Fatalf("expected commit error, got %v", err)
	}
	if len(env.alerts.calls) != 0 {
		t.Errorf("alert must not fire when the write fails, got %d", len(env.alerts.calls))
	}
}

func TestSaveDisclosure_OrangeStalking(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()

	outcome, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   caseID,
		ActorID:  uuid.New(),
		Category: CategorySafetyTrauma,
		ItemCode: "stalking",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("SaveDisclosure() error: %v", err)
	}

	if outcome.RiskLevel != RiskOrange {
		t.Errorf("expected ORANGE, got %q", outcome.RiskLevel)
	}
	if len(env.alerts.calls) != 1 || env.alerts.calls[0].risk != RiskOrange {
		t.Errorf("expected one ORANGE alert, got %+v", env.alerts.calls)
	}
}

func TestSaveDisclosure_UnmappedNoAlert(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()

	outcome, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   caseID,
		ActorID:  uuid.New(),
		Category: CategoryStressors,
		ItemCode: "back_pain",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("SaveDisclosure() error: %v", err)
	}

	if outcome.RiskLevel != RiskNone {
		t.Errorf("expected no risk, got %q", outcome.RiskLevel)
	}
	if len(env.alerts.calls) != 0 {
		t.Errorf("expected no alerts, got %d", len(env.alerts.calls))
	}
	if !env.cases.flags[caseID] {
		t.Error("case flag should be true for the only selected item")
	}
}

func TestSaveDisclosure_DeselectLastClearsFlag(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorID := uuid.New()

	params := SaveParams{
		CaseID:   caseID,
		ActorID:  actorID,
		Category: CategoryStressors,
		ItemCode: "back_pain",
		Selected: true,
	}
	if _, err := env.svc.SaveDisclosure(context.Background(), params); err != nil {
		t.Fatalf("select error: %v", err)
	}
	if !env.cases.flags[caseID] {
		t.Fatal("expected flag true after select")
	}

	params.Selected = false
	outcome, err := env.svc.SaveDisclosure(context.Background(), params)
	if err != nil {
		t.Fatalf("deselect error: %v", err)
	}
	if env.cases.flags[caseID] {
		t.Error("expected flag false after deselecting last item")
	}
	if outcome.Disclosure.AuditEvent != AuditDeselected {
		t.Errorf("expected audit_event deselected, got %q", outcome.Disclosure.AuditEvent)
	}
	if outcome.Disclosure.RiskLevel != RiskNone {
		t.Errorf("risk must clear on deselect, got %q", outcome.Disclosure.RiskLevel)
	}
}

func TestSaveDisclosure_RoundTripSingleRow(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorID := uuid.New()

	params := SaveParams{
		CaseID:   caseID,
		ActorID:  actorID,
		Category: CategorySafetyTrauma,
		ItemCode: "harassment",
		Selected: true,
	}

	for _, selected := range []bool{true, false, true} {
		params.Selected = selected
		if _, err := env.svc.SaveDisclosure(context.Background(), params); err != nil {
			t.Fatalf("SaveDisclosure(selected=%v) error: %v", selected, err)
		}
	}

	if len(env.repo.records) != 1 {
		t.Fatalf("expected exactly 1 row after round trip, got %d", len(env.repo.records))
	}
	d, err := env.repo.GetByKey(context.Background(), caseID, CategorySafetyTrauma, "harassment")
	if err != nil {
		t.Fatalf("GetByKey() error: %v", err)
	}
	if !d.Selected || d.AuditEvent != AuditUpdated {
		t.Errorf("expected reselected row with audit_event updated, got selected=%v event=%q", d.Selected, d.AuditEvent)
	}
	if d.RiskLevel != RiskOrange {
		t.Errorf("expected ORANGE restored on reselect, got %q", d.RiskLevel)
	}
}

func TestSaveDisclosure_NeverInsertsDeselectedRow(t *testing.T) {
	env := newTestEnv()

	outcome, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   uuid.New(),
		ActorID:  uuid.New(),
		Category: CategoryStressors,
		ItemCode: "job_loss",
		Selected: false,
	})
	if err != nil {
		t.Fatalf("SaveDisclosure() error: %v", err)
	}
	if !outcome.Skipped {
		t.Error("expected skip outcome")
	}
	if len(env.repo.records) != 0 {
		t.Errorf("expected no rows, got %d", len(env.repo.records))
	}
}

func TestSaveDisclosure_AlertFailureIsWarningNotError(t *testing.T) {
	env := newTestEnv()
	env.alerts.shouldFail = true
	caseID := uuid.New()

	outcome, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   caseID,
		ActorID:  uuid.New(),
		Category: CategorySafetyTrauma,
		ItemCode: "self_harm",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("disclosure save must succeed despite alert failure, got: %v", err)
	}
	if outcome.Warning == "" {
		t.Error("expected warning describing alert failure")
	}
	if outcome.Disclosure == nil {
		t.Error("expected the disclosure to be persisted")
	}
}

func TestSaveDisclosure_ConsentTimestamp(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorID := uuid.New()
	params := SaveParams{
		CaseID:   caseID,
		ActorID:  actorID,
		Category: CategorySubstanceUse,
		ItemCode: "alcohol_use",
		Selected: true,
	}
	if _, err := env.svc.SaveDisclosure(context.Background(), params); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	// Update with consent set stamps the timestamp.
	params.ConsentAttorney = ConsentShare
	outcome, err := env.svc.SaveDisclosure(context.Background(), params)
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if outcome.Disclosure.ConsentTS == nil {
		t.Error("expected consent_ts set when consent is non-unset")
	}

	// Update with both unset clears it.
	params.ConsentAttorney = ConsentUnset
	outcome, err = env.svc.SaveDisclosure(context.Background(), params)
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if outcome.Disclosure.ConsentTS != nil {
		t.Error("expected consent_ts nil when both consents are unset")
	}
}

func TestSaveDisclosure_NormalizesItemCode(t *testing.T) {
	env := newTestEnv()

	outcome, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   uuid.New(),
		ActorID:  uuid.New(),
		Category: CategorySafetyTrauma,
		ItemCode: "Suicide Thoughts",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("SaveDisclosure() error: %v", err)
	}
	if outcome.Disclosure.ItemCode != "suicide_thoughts" {
		t.Errorf("expected normalized code, got %q", outcome.Disclosure.ItemCode)
	}
	if outcome.RiskLevel != RiskRed {
		t.Errorf("normalized code must classify RED, got %q", outcome.RiskLevel)
	}
}

func TestSaveDisclosure_Validation(t *testing.T) {
	env := newTestEnv()
	base := SaveParams{
		CaseID:   uuid.New(),
		ActorID:  uuid.New(),
		Category: CategoryStressors,
		ItemCode: "x",
		Selected: true,
	}

	tests := []struct {
		name   string
		mutate func(*SaveParams)
	}{
		{"missing case", func(p *SaveParams) { p.CaseID = uuid.Nil }},
		{"missing actor", func(p *SaveParams) { p.ActorID = uuid.Nil }},
		{"bad category", func(p *SaveParams) { p.Category = "diet" }},
		{"empty item code", func(p *SaveParams) { p.ItemCode = "  " }},
		{"bad consent", func(p *SaveParams) { p.ConsentAttorney = "maybe" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if _, err := env.svc.SaveDisclosure(context.Background(), p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// -- Discard --

func TestDiscardSection_ActorScoped(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorA := uuid.New()
	actorB := uuid.New()

	for _, setup := range []struct {
		actor uuid.UUID
		code  string
	}{
		{actorA, "stalking"},
		{actorA, "back_pain"},
		{actorB, "harassment"},
	} {
		_, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
			CaseID:   caseID,
			ActorID:  setup.actor,
			Category: CategorySafetyTrauma,
			ItemCode: setup.code,
			Selected: true,
		})
		if err != nil {
			t.Fatalf("setup save error: %v", err)
		}
	}

	count, err := env.svc.DiscardSection(context.Background(), caseID, actorA)
	if err != nil {
		t.Fatalf("DiscardSection() error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 discarded rows, got %d", count)
	}

	// Actor B's row must remain selected, so the case flag stays true.
	remaining, _ := env.repo.ListSelected(context.Background(), caseID)
	if len(remaining) != 1 || remaining[0].ItemCode != "harassment" {
		t.Errorf("expected only actor B's row selected, got %+v", remaining)
	}
	if !env.cases.flags[caseID] {
		t.Error("case flag must stay true while another actor's row is selected")
	}

	if len(env.audit.events) == 0 {
		t.Fatal("expected an audit event for the discard")
	}
	last := env.audit.events[len(env.audit.events)-1]
	if last.EventType != audit.EventDisclosureDiscarded || last.ActorUserID != actorA {
		t.Errorf("unexpected audit event: %+v", last)
	}
}

func TestDiscardSection_LastSelectedClearsFlag(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorID := uuid.New()

	_, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   caseID,
		ActorID:  actorID,
		Category: CategoryStressors,
		ItemCode: "job_loss",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("setup error: %v", err)
	}

	if _, err := env.svc.DiscardSection(context.Background(), caseID, actorID); err != nil {
		t.Fatalf("DiscardSection() error: %v", err)
	}
	if env.cases.flags[caseID] {
		t.Error("expected case flag false after discarding all rows")
	}
}

// -- Consent --

func TestCheckConsentRequired_NoSelectedRows(t *testing.T) {
	env := newTestEnv()

	status, err := env.svc.CheckConsentRequired(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("CheckConsentRequired() error: %v", err)
	}
	if status.Required || !status.HasAttorneyConsent || !status.HasProviderConsent {
		t.Errorf("expected not-required with consents satisfied, got %+v", status)
	}
}

func TestCheckConsentRequired_UnsetConsents(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()

	_, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   caseID,
		ActorID:  uuid.New(),
		Category: CategorySafetyTrauma,
		ItemCode: "stalking",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("setup error: %v", err)
	}

	status, err := env.svc.CheckConsentRequired(context.Background(), caseID)
	if err != nil {
		t.Fatalf("CheckConsentRequired() error: %v", err)
	}
	if !status.Required {
		t.Error("expected consent required with a selected row")
	}
	if status.HasAttorneyConsent || status.HasProviderConsent {
		t.Errorf("expected unsatisfied consents, got %+v", status)
	}
}

func TestUpdateAllConsent(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorID := uuid.New()

	_, err := env.svc.SaveDisclosure(context.Background(), SaveParams{
		CaseID:   caseID,
		ActorID:  actorID,
		Category: CategorySafetyTrauma,
		ItemCode: "stalking",
		Selected: true,
	})
	if err != nil {
		t.Fatalf("setup error: %v", err)
	}

	if err := env.svc.UpdateAllConsent(context.Background(), caseID, actorID, ConsentShare, ConsentNoShare); err != nil {
		t.Fatalf("UpdateAllConsent() error: %v", err)
	}

	status, err := env.svc.CheckConsentRequired(context.Background(), caseID)
	if err != nil {
		t.Fatalf("CheckConsentRequired() error: %v", err)
	}
	if !status.HasAttorneyConsent || !status.HasProviderConsent {
		t.Errorf("expected satisfied consents after bulk update, got %+v", status)
	}

	last := env.audit.events[len(env.audit.events)-1]
	if last.EventType != audit.EventConsentUpdated {
		t.Errorf("expected consent_updated audit event, got %q", last.EventType)
	}
	if last.EventMeta["consent_attorney"] != "share" {
		t.Errorf("unexpected audit meta: %+v", last.EventMeta)
	}
}

// -- Screening --

func TestSaveScreeningItem_NoResponseNotPersisted(t *testing.T) {
	env := newTestEnv()

	outcome, err := env.svc.SaveScreeningItem(context.Background(), uuid.New(), uuid.New(), "depression", "no")
	if err != nil {
		t.Fatalf("SaveScreeningItem() error: %v", err)
	}
	if !outcome.Skipped {
		t.Error("expected skip for a no response")
	}
	if len(env.repo.records) != 0 {
		t.Errorf("no rows should persist for a no response, got %d", len(env.repo.records))
	}
}

func TestSaveScreeningItem_YesSelfHarmRaisesAlert(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()

	outcome, err := env.svc.SaveScreeningItem(context.Background(), caseID, uuid.New(), "self_harm", "yes")
	if err != nil {
		t.Fatalf("SaveScreeningItem() error: %v", err)
	}
	if outcome.RiskLevel != RiskRed {
		t.Errorf("expected RED, got %q", outcome.RiskLevel)
	}
	if outcome.Disclosure.OriginSection != OriginBHScreen {
		t.Errorf("expected bh_screen origin, got %q", outcome.Disclosure.OriginSection)
	}
	if len(env.alerts.calls) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(env.alerts.calls))
	}
	if !env.cases.flags[caseID] {
		t.Error("expected case flag true")
	}
}

func TestSaveScreeningItem_UnsureDepressionNoAlert(t *testing.T) {
	env := newTestEnv()

	outcome, err := env.svc.SaveScreeningItem(context.Background(), uuid.New(), uuid.New(), "depression", "unsure")
	if err != nil {
		t.Fatalf("SaveScreeningItem() error: %v", err)
	}
	if outcome.RiskLevel != RiskNone {
		t.Errorf("depression is unmapped, got %q", outcome.RiskLevel)
	}
	if len(env.alerts.calls) != 0 {
		t.Errorf("expected no alerts, got %d", len(env.alerts.calls))
	}
	if !outcome.Disclosure.Selected {
		t.Error("unsure responses persist as selected")
	}
}

func TestSaveScreeningItem_RejectsUnknownCode(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.SaveScreeningItem(context.Background(), uuid.New(), uuid.New(), "sleep_quality", "yes"); err == nil {
		t.Error("expected error for unknown screening code")
	}
}

// -- Assessment --

func TestSaveAssessment_ExplicitRiskBypassesPolicy(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()

	d, err := env.svc.SaveAssessment(context.Background(), caseID, uuid.New(), "columbia_protocol", RiskRed, `{"score":6}`)
	if err != nil {
		t.Fatalf("SaveAssessment() error: %v", err)
	}
	if d.RiskLevel != RiskRed {
		t.Errorf("expected explicit RED, got %q", d.RiskLevel)
	}
	if d.Category != CategoryMentalHealth || d.OriginSection != OriginColumbia {
		t.Errorf("unexpected provenance: %+v", d)
	}
	if !env.cases.flags[caseID] {
		t.Error("expected case flag true")
	}
	// The assessment path does not raise a standard safety alert.
	if len(env.alerts.calls) != 0 {
		t.Errorf("expected no safety alerts from assessment save, got %d", len(env.alerts.calls))
	}
}

func TestSaveAssessment_UpsertsSingleRow(t *testing.T) {
	env := newTestEnv()
	caseID := uuid.New()
	actorID := uuid.New()

	if _, err := env.svc.SaveAssessment(context.Background(), caseID, actorID, "columbia_protocol", RiskOrange, "first"); err != nil {
		t.Fatalf("first save error: %v", err)
	}
	if _, err := env.svc.SaveAssessment(context.Background(), caseID, actorID, "columbia_protocol", RiskRed, "second"); err != nil {
		t.Fatalf("second save error: %v", err)
	}

	if len(env.repo.records) != 1 {
		t.Fatalf("expected a single upserted row, got %d", len(env.repo.records))
	}
	d, _ := env.repo.GetByKey(context.Background(), caseID, CategoryMentalHealth, "columbia_protocol")
	if d.RiskLevel != RiskRed || d.FreeText != "second" {
		t.Errorf("expected latest assessment to win, got %+v", d)
	}
}
