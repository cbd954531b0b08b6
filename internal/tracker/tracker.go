// Package tracker defines the narrow interface the sync engine uses to talk to
// an external issue tracker, and a registry of tracker adapters.
package tracker

import "context"

// IssueState is a snapshot of one external issue.
type IssueState struct {
	ID        string
	Body      string
	Status    string // normalized: "open" or "closed"
	RawStatus string // tracker-native status name
	URL       string
}

// Client is implemented by every tracker adapter (GitHub, Jira).
// Implementations own retry and rate limiting; callers never retry.
type Client interface {
	// Name returns the lowercase tracker name (e.g. "github").
	Name() string

	// FetchIssueState returns the body and status of the issue.
	FetchIssueState(ctx context.Context, issueID string) (*IssueState, error)

	// PostComment adds a comment to the issue.
	PostComment(ctx context.Context, issueID, text string) error

	// UpdateBody replaces the issue body.
	UpdateBody(ctx context.Context, issueID, body string) error

	// UpdateStatus moves the issue to "open" or "closed".
	UpdateStatus(ctx context.Context, issueID, status string) error
}
