package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/steveyegge/strata/internal/tracker"
)

func init() {
	tracker.Register("github", newTracker)
}

// Tracker adapts Client to tracker.Client. Issue IDs are issue numbers,
// with or without a leading '#'.
type Tracker struct {
	client *Client
}

// NewTracker wraps an existing client.
func NewTracker(client *Client) *Tracker {
	return &Tracker{client: client}
}

func newTracker(cfg *tracker.Config) (tracker.Client, error) {
	token, err := cfg.GetRequired("token")
	if err != nil {
		return nil, err
	}
	owner, err := cfg.GetRequired("owner")
	if err != nil {
		return nil, err
	}
	repo, err := cfg.GetRequired("repo")
	if err != nil {
		return nil, err
	}

	client := NewClient(token, owner, repo)
	if apiURL := cfg.Get("api-url"); apiURL != "" {
		client = client.WithBaseURL(strings.TrimSuffix(apiURL, "/"))
	}
	client = client.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst)
	return NewTracker(client), nil
}

// Name implements tracker.Client.
func (t *Tracker) Name() string { return "github" }

// ParseIssueNumber accepts "42" or "#42".
func ParseIssueNumber(issueID string) (int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(issueID), "#")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid GitHub issue number %q", issueID)
	}
	return n, nil
}

// FetchIssueState implements tracker.Client.
func (t *Tracker) FetchIssueState(ctx context.Context, issueID string) (*tracker.IssueState, error) {
	n, err := ParseIssueNumber(issueID)
	if err != nil {
		return nil, err
	}
	issue, err := t.client.FetchIssueByNumber(ctx, n)
	if err != nil {
		return nil, err
	}
	return &tracker.IssueState{
		ID:        strconv.Itoa(issue.Number),
		Body:      issue.Body,
		Status:    issue.State,
		RawStatus: issue.State,
		URL:       issue.HTMLURL,
	}, nil
}

// PostComment implements tracker.Client.
func (t *Tracker) PostComment(ctx context.Context, issueID, text string) error {
	n, err := ParseIssueNumber(issueID)
	if err != nil {
		return err
	}
	_, err = t.client.CreateComment(ctx, n, text)
	return err
}

// UpdateBody implements tracker.Client.
func (t *Tracker) UpdateBody(ctx context.Context, issueID, body string) error {
	n, err := ParseIssueNumber(issueID)
	if err != nil {
		return err
	}
	_, err = t.client.UpdateIssue(ctx, n, map[string]interface{}{"body": body})
	return err
}

// UpdateStatus implements tracker.Client.
func (t *Tracker) UpdateStatus(ctx context.Context, issueID, status string) error {
	n, err := ParseIssueNumber(issueID)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{}
	switch status {
	case "closed":
		updates["state"] = "closed"
		updates["state_reason"] = "completed"
	case "open":
		updates["state"] = "open"
	default:
		return fmt.Errorf("unsupported GitHub state %q", status)
	}
	_, err = t.client.UpdateIssue(ctx, n, updates)
	return err
}
