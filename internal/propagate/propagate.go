// Package propagate derives acceptance criterion completion from task completion.
// Propagation only ever moves upward (tasks to ACs) and only from false to true.
package propagate

import (
	"sort"

	"github.com/steveyegge/strata/internal/types"
)

// Result is the outcome of one propagation pass.
type Result struct {
	// Transitions lists AC ids that become completed, in document order.
	Transitions []string
	// Satisfied lists User Stories whose ACs are all completed after the pass.
	// It is advisory; no story is mutated.
	Satisfied []string
	// Skipped counts entries ignored because they had no id.
	Skipped int
}

// linkTasks groups linked tasks by the AC ids they satisfy. Unlinked tasks
// never take part in propagation.
func linkTasks(set *types.TaskSet) (map[string][]*types.Task, int) {
	byAC := make(map[string][]*types.Task)
	skipped := 0
	if set == nil {
		return byAC, 0
	}
	for _, t := range set.Linked() {
		if t == nil || t.ID == "" {
			skipped++
			continue
		}
		for _, acID := range t.Satisfies {
			if acID == "" {
				continue
			}
			byAC[acID] = append(byAC[acID], t)
		}
	}
	return byAC, skipped
}

func allCompleted(tasks []*types.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Completed {
			return false
		}
	}
	return true
}

// Propagate returns the ACs that become completed because every task linked
// to them is completed. Inputs are not modified. ACs with no linked tasks are
// never completed, and completed ACs are never reported or reverted.
func Propagate(set *types.TaskSet, acs []*types.AcceptanceCriterion) Result {
	byAC, skipped := linkTasks(set)
	res := Result{Skipped: skipped}

	completed := make(map[string]bool)
	seen := make(map[string]bool)
	for _, ac := range acs {
		if ac == nil || ac.ID == "" {
			res.Skipped++
			continue
		}
		if ac.Completed {
			completed[ac.ID] = true
			continue
		}
		if allCompleted(byAC[ac.ID]) {
			completed[ac.ID] = true
			if !seen[ac.ID] {
				seen[ac.ID] = true
				res.Transitions = append(res.Transitions, ac.ID)
			}
		}
	}

	// Satisfied is computed against the post-pass state.
	projected := make([]*types.AcceptanceCriterion, 0, len(acs))
	for _, ac := range acs {
		if ac == nil || ac.ID == "" {
			continue
		}
		cp := *ac
		cp.Completed = completed[ac.ID]
		projected = append(projected, &cp)
	}
	for _, us := range types.GroupByStory(projected) {
		if us.Satisfied() {
			res.Satisfied = append(res.Satisfied, us.ID)
		}
	}
	sort.Strings(res.Satisfied)
	return res
}
