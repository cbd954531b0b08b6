package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config keys.
const (
	KeyTracker           = "tracker"
	KeyRequestsPerSecond = "tracker-limits.requests-per-second"
	KeyBurst             = "tracker-limits.burst"
	KeyIncrementsDir     = "increments-dir"
	KeyLivingDocsDir     = "living-docs-dir"
	KeyProjectRoot       = "project-root"
	KeyMinContentBytes   = "validation.min-content-bytes"
	KeyPropagateAfter    = "sync.propagate-after-pull"
	KeyStampOrigin       = "sync.stamp-origin"
	KeyReopenComment     = "sync.reopen-comment"
	KeyParallelism       = "sync.parallelism"
	KeyBatchDelay        = "sync.batch-delay"
	KeyIncrements        = "increments"
)

func registerDefaults() {
	if v == nil {
		return
	}
	v.SetDefault(KeyTracker, "github")
	v.SetDefault(KeyRequestsPerSecond, 5.0)
	v.SetDefault(KeyBurst, 5)
	v.SetDefault(KeyIncrementsDir, ".specweave/increments")
	v.SetDefault(KeyLivingDocsDir, ".specweave/docs/internal/specs")
	v.SetDefault(KeyProjectRoot, "")
	v.SetDefault(KeyMinContentBytes, 50)
	v.SetDefault(KeyPropagateAfter, true)
	v.SetDefault(KeyStampOrigin, true)
	v.SetDefault(KeyReopenComment, true)
	v.SetDefault(KeyParallelism, 4)
	v.SetDefault(KeyBatchDelay, "0s")
}

// Target binds one increment to its external issue.
type Target struct {
	Path       string `mapstructure:"path" validate:"required"`
	Issue      string `mapstructure:"issue" validate:"required"`
	LivingDocs string `mapstructure:"living-docs"`
}

// SyncSettings is the validated view of the sync configuration.
type SyncSettings struct {
	Tracker           string        `validate:"required,oneof=github jira"`
	RequestsPerSecond float64       `validate:"gte=0"`
	Burst             int           `validate:"gte=0"`
	IncrementsDir     string        `validate:"required"`
	LivingDocsDir     string        `validate:"required"`
	ProjectRoot       string        `validate:"omitempty,dir"`
	MinContentBytes   int           `validate:"gte=0"`
	PropagateAfter    bool
	StampOrigin       bool
	ReopenComment     bool
	Parallelism       int           `validate:"gte=1,lte=64"`
	BatchDelay        time.Duration `validate:"gte=0"`
	Increments        []Target      `validate:"dive"`
}

var validate = validator.New()

// GetSyncSettings reads and validates the sync configuration.
func GetSyncSettings() (SyncSettings, error) {
	s := SyncSettings{
		Tracker:           strings.ToLower(strings.TrimSpace(GetString(KeyTracker))),
		RequestsPerSecond: GetFloat64(KeyRequestsPerSecond),
		Burst:             GetInt(KeyBurst),
		IncrementsDir:     GetString(KeyIncrementsDir),
		LivingDocsDir:     GetString(KeyLivingDocsDir),
		ProjectRoot:       GetString(KeyProjectRoot),
		MinContentBytes:   GetInt(KeyMinContentBytes),
		PropagateAfter:    GetBool(KeyPropagateAfter),
		StampOrigin:       GetBool(KeyStampOrigin),
		ReopenComment:     GetBool(KeyReopenComment),
		Parallelism:       GetInt(KeyParallelism),
		BatchDelay:        GetDuration(KeyBatchDelay),
	}
	if v != nil && v.IsSet(KeyIncrements) {
		if err := v.UnmarshalKey(KeyIncrements, &s.Increments); err != nil {
			return s, fmt.Errorf("invalid %s: %w", KeyIncrements, err)
		}
	}
	if err := validate.Struct(&s); err != nil {
		return s, fmt.Errorf("invalid sync configuration: %w", err)
	}
	return s, nil
}

// ResolveRoot returns ProjectRoot, or the working directory when unset.
func (s SyncSettings) ResolveRoot() string {
	if s.ProjectRoot != "" {
		return s.ProjectRoot
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
