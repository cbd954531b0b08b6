package layersync

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for programmer errors: empty ids or paths,
// or an engine missing a collaborator. Every other failure is reported in
// the SyncResult.
var ErrInvalidArgument = errors.New("invalid argument")

// TransportError wraps a failed tracker call. It aborts the rest of the run.
type TransportError struct {
	Op      string // fetch, comment, update-body, update-status
	IssueID string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tracker %s failed for issue %s: %v", e.Op, e.IssueID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func invalidArg(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
