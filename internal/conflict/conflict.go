// Package conflict classifies status divergences between an increment and its
// external issue. Status conflicts are advisory: nothing here changes state.
package conflict

import (
	"fmt"

	"github.com/steveyegge/strata/internal/types"
)

type pair struct {
	external types.ExternalStatus
	local    types.IncrementStatus
}

type rule struct {
	severity       types.Severity
	recommendation types.Recommendation
	message        string
}

// rules is the closed set of classified pairings. Anything else is consistent.
var rules = map[pair]rule{
	{types.ExternalClosed, types.IncrementActive}: {
		severity:       types.SeverityConflict,
		recommendation: types.RecommendCompleteLocally,
		message:        "external issue is closed but the increment is still active; complete the increment locally",
	},
	{types.ExternalOpen, types.IncrementCompleted}: {
		severity:       types.SeverityConflict,
		recommendation: types.RecommendCloseExternally,
		message:        "increment is completed but the external issue is still open; close the external issue",
	},
	{types.ExternalOpen, types.IncrementPaused}: {
		severity:       types.SeverityInformational,
		recommendation: types.RecommendNone,
		message:        "increment is paused while the external issue stays open",
	},
	{types.ExternalOpen, types.IncrementAbandoned}: {
		severity:       types.SeverityConflict,
		recommendation: types.RecommendCloseExternallyReason,
		message:        "increment was abandoned but the external issue is still open; close it with a reason",
	},
}

// Detect classifies a local/external status pair. Consistent pairs yield no entries.
// Inputs are normalized first, so "Done" and "closed" are the same external status.
func Detect(local, external string) []types.Conflict {
	p := pair{
		external: types.NormalizeExternalStatus(external),
		local:    types.NormalizeIncrementStatus(local),
	}
	r, ok := rules[p]
	if !ok {
		return nil
	}
	return []types.Conflict{{
		External:       p.external,
		Local:          p.local,
		Severity:       r.severity,
		Recommendation: r.recommendation,
		Message:        r.message,
	}}
}

// Action is a concrete, human-approved step that would resolve a conflict.
type Action struct {
	Conflict types.Conflict
	// Local is the increment status to write, if any.
	Local types.IncrementStatus
	// External is the tracker status to set, if any.
	External types.ExternalStatus
	// Comment accompanies an external change.
	Comment string
}

// Describe renders the action for confirmation prompts.
func (a Action) Describe() string {
	switch {
	case a.Local != "":
		return fmt.Sprintf("set increment status to %q", a.Local)
	case a.External != "":
		return fmt.Sprintf("set external issue status to %q", a.External)
	default:
		return "no action"
	}
}

// Advise turns conflicts into proposed actions. Callers must ask a human
// before executing any of them.
func Advise(conflicts []types.Conflict) []Action {
	var actions []Action
	for _, c := range conflicts {
		switch c.Recommendation {
		case types.RecommendCompleteLocally:
			actions = append(actions, Action{Conflict: c, Local: types.IncrementCompleted})
		case types.RecommendCloseExternally:
			actions = append(actions, Action{Conflict: c, External: types.ExternalClosed,
				Comment: "Closing: the increment is completed."})
		case types.RecommendCloseExternallyReason:
			actions = append(actions, Action{Conflict: c, External: types.ExternalClosed,
				Comment: "Closing: the increment was abandoned and will not be implemented."})
		}
	}
	return actions
}
