// Package assistant calls the diary assistant service for entry
// categorization, task suggestions, and workload summaries.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Actions understood by the assistant service.
const (
	ActionCategorizeEntry = "categorize_entry"
	ActionSuggestTasks    = "suggest_tasks"
	ActionGenerateSummary = "generate_summary"
)

// EntryInput is the slice of a diary entry the assistant needs to reason
// about. Free text is sent as written, so callers must not include client
// identifiers beyond what the entry itself carries.
type EntryInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	EntryDate   string `json:"entry_date,omitempty"`
	EntryTime   string `json:"entry_time,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Label       string `json:"label,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Categorization is the assistant's advisory read of a single entry.
type Categorization struct {
	SuggestedLabel    string   `json:"suggested_label"`
	SuggestedPriority string   `json:"suggested_priority"`
	RiskFlags         []string `json:"risk_flags"`
	Reasoning         string   `json:"reasoning"`
}

// TaskSuggestion is one proposed follow-up task.
type TaskSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Label       string `json:"label"`
}

// ErrUnavailable is returned when the assistant is not configured. Callers
// treat assistant output as advisory and degrade gracefully.
var ErrUnavailable = errors.New("assistant not configured")

// Client talks to the assistant HTTP endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether the client has an endpoint to call.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type assistantRequest struct {
	Action    string       `json:"action"`
	EntryData *EntryInput  `json:"entryData,omitempty"`
	Entries   []EntryInput `json:"entries,omitempty"`
	Query     string       `json:"query,omitempty"`
}

// CategorizeEntry asks the assistant to label and flag a single entry.
func (c *Client) CategorizeEntry(ctx context.Context, entry EntryInput) (*Categorization, error) {
	var out Categorization
	if err := c.call(ctx, assistantRequest{Action: ActionCategorizeEntry, EntryData: &entry}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SuggestTasks asks the assistant for follow-up tasks given recent entries.
func (c *Client) SuggestTasks(ctx context.Context, entries []EntryInput) ([]TaskSuggestion, error) {
	var out struct {
		Suggestions []TaskSuggestion `json:"suggestions"`
	}
	if err := c.call(ctx, assistantRequest{Action: ActionSuggestTasks, Entries: entries}, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// GenerateSummary asks the assistant for a prose summary of the given
// entries, optionally steered by a query.
func (c *Client) GenerateSummary(ctx context.Context, entries []EntryInput, query string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.call(ctx, assistantRequest{Action: ActionGenerateSummary, Entries: entries, Query: query}, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

func (c *Client) call(ctx context.Context, reqBody assistantRequest, out interface{}) error {
	if !c.Enabled() {
		return ErrUnavailable
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal assistant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build assistant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call assistant %s: %w", reqBody.Action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("assistant returned status %d: %s", resp.StatusCode, string(detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode assistant response: %w", err)
	}
	return nil
}
