package layersync

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/steveyegge/strata/internal/debug"
	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/propagate"
	"github.com/steveyegge/strata/internal/types"
)

// PropagateCompletion completes every AC whose linked tasks are all
// completed, in spec.md and in the living docs. It never unchecks an AC and
// never contacts the tracker.
func (e *Engine) PropagateCompletion(ctx context.Context, incrementPath, livingDocsPath string) (*types.SyncResult, error) {
	if err := e.check(false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(incrementPath) == "" {
		return nil, invalidArg("increment path is required")
	}

	_, r := e.begin(ctx, types.DirectionPropagate, attribute.String("strata.increment", incrementPath))

	r.enter(types.PhaseParsing)
	inc := r.loadIncrement(incrementPath)
	if inc == nil {
		return r.finish(), nil
	}
	finder := r.loadFinder(livingDocsPath)

	r.propagate(inc, finder)
	r.flush()
	return r.finish(), nil
}

// propagate runs one upward pass over the current workset text. When called
// standalone it owns the DIFFING and APPLYING phases; after a pull the
// phases are already recorded.
func (r *run) propagate(inc *incrementDocs, finder FileFinder) {
	standalone := r.res.Direction == types.DirectionPropagate
	if !standalone {
		// Re-read what APPLYING and REOPENING left behind.
		spec, _ := r.ws.read(inc.specPath)
		tasks, _ := r.ws.read(inc.tasksPath)
		r.parseIncrement(inc, spec, tasks)
	}

	if standalone {
		r.enter(types.PhaseDiffing)
	}
	result := propagate.Propagate(inc.tasks, inc.acs)
	r.res.Satisfied = result.Satisfied
	if result.Skipped > 0 {
		r.warn("%d task(s) without an id were ignored during propagation", result.Skipped)
	}

	var changes []pending
	for _, id := range result.Transitions {
		targets := []types.Layer{types.LayerIncrement}
		livPath, livState, livFound := r.livingState(finder, types.KindAC, id)
		if livFound && !livState {
			targets = append(targets, types.LayerLivingDocs)
		}
		p := pending{
			change: types.SyncChange{
				Kind:      types.KindAC,
				ID:        id,
				Completed: true,
				Origin:    types.LayerIncrement,
				Targets:   targets,
			},
			livingPath: livPath,
		}
		r.record(p)
		changes = append(changes, p)
	}

	if standalone {
		r.enter(types.PhaseApplying)
	}
	if len(changes) == 0 {
		return
	}
	r.applyChanges(inc, changes, types.LayerIncrement)
	for _, p := range changes {
		r.res.ACsPropagated++
		debug.LogEvent(debug.EventACPropagated, p.change.ID, r.res.RunID, "all linked tasks completed")
	}
	for _, story := range result.Satisfied {
		r.e.msg("User Story %s has every acceptance criterion completed", story)
	}
}

// checklistIDs returns the ids of a text's checklist in document order.
func checklistIDs(text string, pattern entity.IDPattern) []string {
	entries := entity.ParseChecklist(text, pattern)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
