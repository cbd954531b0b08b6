package propagate

import (
	"sort"

	"github.com/steveyegge/strata/internal/types"
)

// ACCoverage summarizes the tasks linked to one AC.
type ACCoverage struct {
	ID             string   `json:"id"`
	StoryID        string   `json:"story_id"`
	Completed      bool     `json:"completed"`
	Tasks          []string `json:"tasks,omitempty"`
	CompletedTasks int      `json:"completed_tasks"`
}

// Coverage reports how well tasks cover the acceptance criteria.
type Coverage struct {
	ACs []ACCoverage `json:"acs"`
	// Orphaned ACs have no linked task and can never auto-complete.
	Orphaned []string `json:"orphaned,omitempty"`
	// Unknown are AC ids referenced by tasks but absent from the spec.
	Unknown []string `json:"unknown,omitempty"`
	// Inconsistent ACs are checked although some linked task is still open.
	Inconsistent []string `json:"inconsistent,omitempty"`
	// UnlinkedTasks have no User Story and are excluded from propagation.
	UnlinkedTasks []string `json:"unlinked_tasks,omitempty"`
}

// Percent returns the share of ACs that have at least one linked task.
func (c Coverage) Percent() float64 {
	if len(c.ACs) == 0 {
		return 0
	}
	covered := len(c.ACs) - len(c.Orphaned)
	return float64(covered) * 100 / float64(len(c.ACs))
}

// Analyze builds the coverage report for an increment.
func Analyze(set *types.TaskSet, acs []*types.AcceptanceCriterion) Coverage {
	byAC, _ := linkTasks(set)
	var cov Coverage
	known := make(map[string]bool)

	for _, ac := range acs {
		if ac == nil || ac.ID == "" || known[ac.ID] {
			continue
		}
		known[ac.ID] = true
		entry := ACCoverage{ID: ac.ID, StoryID: ac.StoryID, Completed: ac.Completed}
		for _, t := range byAC[ac.ID] {
			entry.Tasks = append(entry.Tasks, t.ID)
			if t.Completed {
				entry.CompletedTasks++
			}
		}
		switch {
		case len(entry.Tasks) == 0:
			cov.Orphaned = append(cov.Orphaned, ac.ID)
		case ac.Completed && entry.CompletedTasks < len(entry.Tasks):
			cov.Inconsistent = append(cov.Inconsistent, ac.ID)
		}
		cov.ACs = append(cov.ACs, entry)
	}

	for acID := range byAC {
		if !known[acID] {
			cov.Unknown = append(cov.Unknown, acID)
		}
	}
	sort.Strings(cov.Unknown)

	if set != nil {
		for _, t := range set.Unlinked {
			cov.UnlinkedTasks = append(cov.UnlinkedTasks, t.ID)
		}
	}
	return cov
}
