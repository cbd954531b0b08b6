// Package github provides a small client for the GitHub REST API and the
// "github" tracker adapter built on it.
//
// Only the calls the sync engine needs are implemented: reading an issue,
// patching its body or state, and commenting on it.
package github

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetryElapsed bounds the total time spent retrying one request.
	MaxRetryElapsed = 30 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 50 * 1024 * 1024
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string       // GitHub personal access token
	Owner      string       // Repository owner (user or org)
	Repo       string       // Repository name
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // Optional custom HTTP client

	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID          int        `json:"id"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"`                  // "open" or "closed"
	StateReason string     `json:"state_reason,omitempty"` // "completed", "not_planned", "reopened"
	UpdatedAt   *time.Time `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	HTMLURL     string     `json:"html_url"`
}

// Comment represents an issue comment.
type Comment struct {
	ID      int    `json:"id"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode  int
	Body        string
	RateLimited bool
}

func (e *APIError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error: %s (status %d)", e.Body, e.StatusCode)
}

// Temporary reports whether the request is worth retrying.
func (e *APIError) Temporary() bool {
	return e.RateLimited || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
