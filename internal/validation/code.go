// Package validation checks that tasks claimed as done still have code behind them.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/steveyegge/strata/internal/types"
)

// DefaultMinContentBytes is the trimmed size a file must exceed to count as real work.
const DefaultMinContentBytes = 50

// Reader is the subset of the document store the validator needs.
type Reader interface {
	ReadText(path string) (string, error)
	Exists(path string) bool
}

// Failure explains why a task's evidence was rejected.
type Failure struct {
	TaskID string
	Path   string
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("task %s: %s: %s", f.TaskID, f.Path, f.Reason)
}

// CodeValidator decides whether declared file paths still back a task.
// Relative paths resolve against Root.
type CodeValidator struct {
	Files           Reader
	Root            string
	MinContentBytes int
}

// NewCodeValidator returns a validator with the default threshold.
func NewCodeValidator(files Reader, root string) *CodeValidator {
	return &CodeValidator{Files: files, Root: root, MinContentBytes: DefaultMinContentBytes}
}

// Validate reports whether every declared path exists with meaningful content.
// A task with no declared paths passes.
func (v *CodeValidator) Validate(task *types.Task) bool {
	return v.Check(task) == nil
}

// Check returns the first unmet path, or nil when the task's evidence holds.
func (v *CodeValidator) Check(task *types.Task) *Failure {
	if task == nil {
		return nil
	}
	for _, p := range task.FilePaths {
		path := v.resolve(p)
		if !v.Files.Exists(path) {
			return &Failure{TaskID: task.ID, Path: p, Reason: "file not found"}
		}
		text, err := v.Files.ReadText(path)
		if err != nil {
			return &Failure{TaskID: task.ID, Path: p, Reason: fmt.Sprintf("unreadable: %v", err)}
		}
		if n := len(strings.TrimSpace(text)); n <= v.minBytes() {
			return &Failure{TaskID: task.ID, Path: p, Reason: fmt.Sprintf("only %d bytes of content (stub)", n)}
		}
	}
	return nil
}

func (v *CodeValidator) minBytes() int {
	if v.MinContentBytes < 0 {
		return 0
	}
	return v.MinContentBytes
}

func (v *CodeValidator) resolve(p string) string {
	if filepath.IsAbs(p) || v.Root == "" {
		return p
	}
	return filepath.Join(v.Root, p)
}
