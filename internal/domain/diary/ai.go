package diary

import (
	"context"

	"github.com/google/uuid"

	"github.com/reconcile-care/liaison/internal/platform/assistant"
)

// Assistant wraps the AI helper with entry-shaped inputs. All results
// are advisory suggestions, never applied without an RN confirming.
type Assistant struct {
	client *assistant.Client
	repo   Repository
}

func NewAssistant(client *assistant.Client, repo Repository) *Assistant {
	return &Assistant{client: client, repo: repo}
}

func (a *Assistant) Enabled() bool { return a.client.Enabled() }

func toInput(e *Entry) assistant.EntryInput {
	return assistant.EntryInput{
		Title:       e.Title,
		Description: e.Description,
		EntryDate:   e.ScheduledDate,
		EntryTime:   e.ScheduledTime,
		Priority:    e.Priority,
		Label:       e.EntryType,
		Status:      e.CompletionStatus,
	}
}

// Categorize asks for a label, priority and risk-flag suggestion for a
// draft entry.
func (a *Assistant) Categorize(ctx context.Context, e *Entry) (*assistant.Categorization, error) {
	return a.client.CategorizeEntry(ctx, toInput(e))
}

// SuggestTasks proposes follow-up tasks from an RN's open entries.
func (a *Assistant) SuggestTasks(ctx context.Context, rnID uuid.UUID) ([]assistant.TaskSuggestion, error) {
	entries, _, err := a.repo.List(ctx, Filter{RNID: rnID, Status: StatusPending, Limit: 50})
	if err != nil {
		return nil, err
	}
	inputs := make([]assistant.EntryInput, 0, len(entries))
	for _, e := range entries {
		inputs = append(inputs, toInput(e))
	}
	return a.client.SuggestTasks(ctx, inputs)
}

// Summarize answers a free-text question over an RN's recent entries.
func (a *Assistant) Summarize(ctx context.Context, rnID uuid.UUID, query string) (string, error) {
	entries, _, err := a.repo.List(ctx, Filter{RNID: rnID, Limit: 100})
	if err != nil {
		return "", err
	}
	inputs := make([]assistant.EntryInput, 0, len(entries))
	for _, e := range entries {
		inputs = append(inputs, toInput(e))
	}
	return a.client.GenerateSummary(ctx, inputs, query)
}
