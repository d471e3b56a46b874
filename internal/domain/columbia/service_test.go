package columbia

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reconcile-care/liaison/internal/domain/audit"
	"github.com/reconcile-care/liaison/internal/domain/casealert"
	"github.com/reconcile-care/liaison/internal/domain/disclosure"
)

type mockSaver struct {
	calls []savedAssessment
	fail  bool
}

type savedAssessment struct {
	caseID   uuid.UUID
	itemCode string
	risk     disclosure.RiskLevel
	freeText string
}

func (m *mockSaver) SaveAssessment(_ context.Context, caseID, actorID uuid.UUID, itemCode string, risk disclosure.RiskLevel, freeText string) (*disclosure.Disclosure, error) {
	if m.fail {
		return nil, errors.New("save failed")
	}
	m.calls = append(m.calls, savedAssessment{caseID, itemCode, risk, freeText})
	return &disclosure.Disclosure{
		ID:        uuid.New(),
		CaseID:    caseID,
		Category:  disclosure.CategoryMentalHealth,
		ItemCode:  itemCode,
		Selected:  true,
		RiskLevel: risk,
		FreeText:  freeText,
		CreatedBy: actorID,
	}, nil
}

type mockAlerter struct {
	alerts []*casealert.EmergencyAlert
	fail   bool
}

func (m *mockAlerter) CreateEmergencyAlert(_ context.Context, a *casealert.EmergencyAlert) error {
	if m.fail {
		return errors.New("alert insert failed")
	}
	m.alerts = append(m.alerts, a)
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
	saver  *mockSaver
	alerts *mockAlerter
	audit  *mockRecorder
}

func newTestEnv() *testEnv {
	saver := &mockSaver{}
	alerts := &mockAlerter{}
	rec := &mockRecorder{}
	svc := NewService(saver, alerts, rec, zerolog.Nop())
	svc.SetClock(func() time.Time { return time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC) })
	return &testEnv{svc: svc, saver: saver, alerts: alerts, audit: rec}
}

func TestSubmit_CriticalRaisesEmergencyAlert(t *testing.T) {
	env := newTestEnv()
	caseID, clientID, actorID := uuid.New(), uuid.New(), uuid.New()

	out, err := env.svc.Submit(context.Background(), actorID, Submission{
		CaseID:   caseID,
		ClientID: clientID,
		Answers:  yesThrough(6),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Result.Level != LevelCritical || out.Result.Score != 6 {
		t.Fatalf("got %s/%d, want critical/6", out.Result.Level, out.Result.Score)
	}
	if !out.EmergencyAlerted {
		t.Fatal("expected emergency alert")
	}

	if len(env.saver.calls) != 1 {
		t.Fatalf("expected 1 saved assessment, got %d", len(env.saver.calls))
	}
	saved := env.saver.calls[0]
	if saved.itemCode != ItemCode || saved.risk != disclosure.RiskRed {
		t.Fatalf("saved %s/%s, want %s/RED", saved.itemCode, saved.risk, ItemCode)
	}
	var record assessmentRecord
	if err := json.Unmarshal([]byte(saved.freeText), &record); err != nil {
		t.Fatalf("free text is not valid JSON: %v", err)
	}
	if record.Score != 6 || record.RiskLevel != LevelCritical || record.Timestamp == "" {
		t.Fatalf("unexpected record %+v", record)
	}

	if len(env.alerts.alerts) != 1 {
		t.Fatalf("expected 1 emergency alert, got %d", len(env.alerts.alerts))
	}
	a := env.alerts.alerts[0]
	if a.AlertType != "suicidal_ideation" || a.Severity != casealert.SeverityCritical {
		t.Fatalf("unexpected alert %s/%s", a.AlertType, a.Severity)
	}
	if a.ClientID != clientID || a.CreatedBy != actorID {
		t.Fatal("alert missing client or actor")
	}
	if a.AlertDetails != "Columbia Protocol Score: 6/6 - Risk Level: CRITICAL" {
		t.Fatalf("unexpected details %q", a.AlertDetails)
	}

	if len(env.audit.events) != 1 || env.audit.events[0].EventType != audit.EventAssessmentSaved {
		t.Fatal("expected assessment audit event")
	}
}

func TestSubmit_HighScoreFourAlerts(t *testing.T) {
	env := newTestEnv()

	out, err := env.svc.Submit(context.Background(), uuid.New(), Submission{
		CaseID:   uuid.New(),
		ClientID: uuid.New(),
		Answers:  yesThrough(4),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.EmergencyAlerted {
		t.Fatal("high level should raise an emergency alert")
	}
	if got := env.alerts.alerts[0].AlertDetails; !strings.Contains(got, "4/6") || !strings.Contains(got, "HIGH") {
		t.Fatalf("unexpected details %q", got)
	}
	// Severity is critical even for high, matching the intake policy.
	if env.alerts.alerts[0].Severity != casealert.SeverityCritical {
		t.Fatalf("unexpected severity %s", env.alerts.alerts[0].Severity)
	}
}

func TestSubmit_ModerateFlagsOrangeWithoutAlert(t *testing.T) {
	env := newTestEnv()

	out, err := env.svc.Submit(context.Background(), uuid.New(), Submission{
		CaseID:   uuid.New(),
		ClientID: uuid.New(),
		Answers:  yesThrough(3),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.EmergencyAlerted || len(env.alerts.alerts) != 0 {
		t.Fatal("moderate level must not raise an emergency alert")
	}
	if env.saver.calls[0].risk != disclosure.RiskOrange {
		t.Fatalf("got risk %s, want ORANGE", env.saver.calls[0].risk)
	}
}

func TestSubmit_NegativeScreenStoredWithoutRisk(t *testing.T) {
	env := newTestEnv()

	out, err := env.svc.Submit(context.Background(), uuid.New(), Submission{
		CaseID:  uuid.New(),
		Answers: Answers{"q1": AnswerNo},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Result.Level != LevelNone {
		t.Fatalf("got %s, want none", out.Result.Level)
	}
	if len(env.saver.calls) != 1 {
		t.Fatal("negative screens are still recorded")
	}
	if env.saver.calls[0].risk != disclosure.RiskNone {
		t.Fatalf("got risk %q, want none", env.saver.calls[0].risk)
	}
	if len(env.alerts.alerts) != 0 {
		t.Fatal("no alert expected")
	}
}

func TestSubmit_AlertFailureIsWarningNotError(t *testing.T) {
	env := newTestEnv()
	env.alerts.fail = true

	out, err := env.svc.Submit(context.Background(), uuid.New(), Submission{
		CaseID:   uuid.New(),
		ClientID: uuid.New(),
		Answers:  yesThrough(6),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Warning == "" || out.EmergencyAlerted {
		t.Fatalf("expected warning without alert, got %+v", out)
	}
	if len(env.saver.calls) != 1 {
		t.Fatal("assessment must persist despite the alert failure")
	}
	if env.audit.events[0].EventMeta["emergency_alerted"] != false {
		t.Fatal("audit meta should record the failed alert")
	}
}

func TestSubmit_MissingClientAtEmergencyLevel(t *testing.T) {
	env := newTestEnv()

	out, err := env.svc.Submit(context.Background(), uuid.New(), Submission{
		CaseID:  uuid.New(),
		Answers: yesThrough(5),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Warning == "" || out.EmergencyAlerted {
		t.Fatal("expected warning when client_id is missing")
	}
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.Submit(context.Background(), uuid.New(), Submission{Answers: yesThrough(1)}); err == nil {
		t.Fatal("expected error for missing case id")
	}
	if _, err := env.svc.Submit(context.Background(), uuid.Nil, Submission{CaseID: uuid.New(), Answers: yesThrough(1)}); err == nil {
		t.Fatal("expected error for missing actor id")
	}
	if _, err := env.svc.Submit(context.Background(), uuid.New(), Submission{CaseID: uuid.New(), Answers: Answers{}}); err == nil {
		t.Fatal("expected error for empty answers")
	}

	env2 := newTestEnv()
	env2.saver.fail = true
	if _, err := env2.svc.Submit(context.Background(), uuid.New(), Submission{CaseID: uuid.New(), Answers: yesThrough(1)}); err == nil {
		t.Fatal("expected save failure to propagate")
	}
}
