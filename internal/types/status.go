package types

import "strings"

// IncrementStatus is the lifecycle status recorded in an increment's spec frontmatter.
type IncrementStatus string

// Increment status constants
const (
	IncrementPlanning  IncrementStatus = "planning"
	IncrementActive    IncrementStatus = "active"
	IncrementPaused    IncrementStatus = "paused"
	IncrementCompleted IncrementStatus = "completed"
	IncrementAbandoned IncrementStatus = "abandoned"
)

// ExternalStatus is the normalized status of an external issue.
type ExternalStatus string

// External status constants
const (
	ExternalOpen   ExternalStatus = "open"
	ExternalClosed ExternalStatus = "closed"
)

// NormalizeIncrementStatus lowercases and maps common aliases.
func NormalizeIncrementStatus(s string) IncrementStatus {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "in-progress", "in_progress", "in progress", "active":
		return IncrementActive
	case "done", "complete", "completed", "closed":
		return IncrementCompleted
	case "on-hold", "on_hold", "paused", "blocked":
		return IncrementPaused
	case "cancelled", "canceled", "abandoned":
		return IncrementAbandoned
	default:
		return IncrementStatus(v)
	}
}

// NormalizeExternalStatus maps tracker state names onto open/closed.
func NormalizeExternalStatus(s string) ExternalStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "closed", "done", "resolved", "complete", "completed":
		return ExternalClosed
	case "":
		return ""
	default:
		return ExternalOpen
	}
}

// Severity classifies a detected status discrepancy.
type Severity string

// Severity constants
const (
	SeverityConflict      Severity = "conflict"
	SeverityInformational Severity = "informational"
)

// Recommendation is the advised action for a status conflict. It is never applied automatically.
type Recommendation string

// Recommendation constants
const (
	RecommendNone                  Recommendation = "none"
	RecommendCompleteLocally       Recommendation = "complete-locally"
	RecommendCloseExternally       Recommendation = "close-externally"
	RecommendCloseExternallyReason Recommendation = "close-externally-with-reason"
)

// Conflict is a status divergence between the increment and the external issue.
type Conflict struct {
	External       ExternalStatus  `json:"external"`
	Local          IncrementStatus `json:"local"`
	Severity       Severity        `json:"severity"`
	Recommendation Recommendation  `json:"recommendation"`
	Message        string          `json:"message"`
}

// IsConflict reports whether the entry requires attention (informational entries do not).
func (c Conflict) IsConflict() bool {
	return c.Severity == SeverityConflict
}
