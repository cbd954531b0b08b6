// Package trackertest provides an in-memory tracker.Client for tests.
package trackertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/steveyegge/strata/internal/tracker"
)

// Fake is an in-memory tracker. Set the *Err fields to inject failures.
type Fake struct {
	mu       sync.Mutex
	issues   map[string]*tracker.IssueState
	Comments map[string][]string
	Calls    []string

	FetchErr   error
	CommentErr error
	BodyErr    error
	StatusErr  error
}

// New returns an empty fake tracker.
func New() *Fake {
	return &Fake{
		issues:   make(map[string]*tracker.IssueState),
		Comments: make(map[string][]string),
	}
}

// SetIssue stores an issue.
func (f *Fake) SetIssue(id, body, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues[id] = &tracker.IssueState{ID: id, Body: body, Status: status, RawStatus: status}
}

// Issue returns a copy of the stored issue, or nil.
func (f *Fake) Issue(id string) *tracker.IssueState {
	f.mu.Lock()
	defer f.mu.Unlock()
	is, ok := f.issues[id]
	if !ok {
		return nil
	}
	cp := *is
	return &cp
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

// Name implements tracker.Client.
func (f *Fake) Name() string { return "fake" }

// FetchIssueState implements tracker.Client.
func (f *Fake) FetchIssueState(_ context.Context, id string) (*tracker.IssueState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fetch " + id)
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	is, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s not found", id)
	}
	cp := *is
	return &cp, nil
}

// PostComment implements tracker.Client.
func (f *Fake) PostComment(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("comment " + id)
	if f.CommentErr != nil {
		return f.CommentErr
	}
	f.Comments[id] = append(f.Comments[id], text)
	return nil
}

// UpdateBody implements tracker.Client.
func (f *Fake) UpdateBody(_ context.Context, id, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("body " + id)
	if f.BodyErr != nil {
		return f.BodyErr
	}
	is, ok := f.issues[id]
	if !ok {
		return fmt.Errorf("issue %s not found", id)
	}
	is.Body = body
	return nil
}

// UpdateStatus implements tracker.Client.
func (f *Fake) UpdateStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("status " + id)
	if f.StatusErr != nil {
		return f.StatusErr
	}
	is, ok := f.issues[id]
	if !ok {
		return fmt.Errorf("issue %s not found", id)
	}
	is.Status = status
	is.RawStatus = status
	return nil
}

// CallCount returns how many calls started with prefix (e.g. "body").
func (f *Fake) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
