package jira

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/strata/internal/tracker"
	"github.com/steveyegge/strata/internal/types"
)

func init() {
	tracker.Register("jira", newTracker)
}

// Tracker adapts Client to tracker.Client. Issue IDs are keys ("PROJ-123")
// or browse URLs.
type Tracker struct {
	client *Client
}

// NewTracker wraps an existing client.
func NewTracker(client *Client) *Tracker {
	return &Tracker{client: client}
}

func newTracker(cfg *tracker.Config) (tracker.Client, error) {
	jiraURL, err := cfg.GetRequired("url")
	if err != nil {
		return nil, err
	}
	token, err := cfg.GetRequired("api-token")
	if err != nil {
		return nil, err
	}
	client := NewClient(jiraURL, cfg.Get("username"), token).
		WithRateLimit(cfg.RequestsPerSecond, cfg.Burst)
	return NewTracker(client), nil
}

// Name implements tracker.Client.
func (t *Tracker) Name() string { return "jira" }

// IssueKey extracts an issue key from "PROJ-1" or ".../browse/PROJ-1".
func IssueKey(issueID string) (string, error) {
	key := strings.TrimSpace(issueID)
	if idx := strings.LastIndex(key, "/browse/"); idx >= 0 {
		key = key[idx+len("/browse/"):]
	}
	key = strings.TrimSuffix(key, "/")
	dash := strings.LastIndex(key, "-")
	if dash <= 0 || dash == len(key)-1 {
		return "", fmt.Errorf("invalid Jira issue key %q", issueID)
	}
	return strings.ToUpper(key), nil
}

// statusOf maps a Jira status onto open/closed. The "done" status category
// is authoritative; custom workflows name their final states freely.
func statusOf(s *StatusField) (normalized, raw string) {
	if s == nil {
		return "", ""
	}
	if s.StatusCategory != nil && s.StatusCategory.Key == "done" {
		return string(types.ExternalClosed), s.Name
	}
	return string(types.NormalizeExternalStatus(s.Name)), s.Name
}

// FetchIssueState implements tracker.Client.
func (t *Tracker) FetchIssueState(ctx context.Context, issueID string) (*tracker.IssueState, error) {
	key, err := IssueKey(issueID)
	if err != nil {
		return nil, err
	}
	issue, err := t.client.GetIssue(ctx, key)
	if err != nil {
		return nil, err
	}
	status, raw := statusOf(issue.Fields.Status)
	return &tracker.IssueState{
		ID:        issue.Key,
		Body:      DescriptionToPlainText(issue.Fields.Description),
		Status:    status,
		RawStatus: raw,
		URL:       t.client.URL + "/browse/" + issue.Key,
	}, nil
}

// PostComment implements tracker.Client.
func (t *Tracker) PostComment(ctx context.Context, issueID, text string) error {
	key, err := IssueKey(issueID)
	if err != nil {
		return err
	}
	return t.client.AddComment(ctx, key, text)
}

// UpdateBody implements tracker.Client.
func (t *Tracker) UpdateBody(ctx context.Context, issueID, body string) error {
	key, err := IssueKey(issueID)
	if err != nil {
		return err
	}
	return t.client.UpdateIssue(ctx, key, map[string]interface{}{
		"description": PlainTextToADF(body),
	})
}

// UpdateStatus implements tracker.Client by picking the first available
// transition whose target status maps onto the requested one.
func (t *Tracker) UpdateStatus(ctx context.Context, issueID, status string) error {
	key, err := IssueKey(issueID)
	if err != nil {
		return err
	}
	if status != string(types.ExternalOpen) && status != string(types.ExternalClosed) {
		return fmt.Errorf("unsupported Jira status %q", status)
	}
	transitions, err := t.client.GetTransitions(ctx, key)
	if err != nil {
		return err
	}
	for _, tr := range transitions {
		to := tr.To
		if got, _ := statusOf(&to); got == status {
			return t.client.DoTransition(ctx, key, tr.ID)
		}
	}
	return fmt.Errorf("no transition on %s leads to a %s status", key, status)
}
