package layersync

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/types"
)

// RunIncrementToExternal pushes the increment's AC and task state to the
// living docs and then to the external issue body. The increment is the
// source of truth; checklist lines missing from the issue are not added.
func (e *Engine) RunIncrementToExternal(ctx context.Context, incrementPath, livingDocsPath, issueID string) (*types.SyncResult, error) {
	if err := e.check(true); err != nil {
		return nil, err
	}
	if strings.TrimSpace(incrementPath) == "" {
		return nil, invalidArg("increment path is required")
	}
	if strings.TrimSpace(issueID) == "" {
		return nil, invalidArg("issue id is required")
	}

	ctx, r := e.begin(ctx, types.DirectionPush,
		attribute.String("strata.issue", issueID),
		attribute.String("strata.increment", incrementPath))

	r.enter(types.PhaseFetching)
	e.msg("Fetching issue %s from %s...", issueID, e.Tracker.Name())
	state, err := e.Tracker.FetchIssueState(ctx, issueID)
	if err != nil {
		r.transportFailure("fetch", issueID, err)
		return r.finish(), nil
	}

	r.enter(types.PhaseParsing)
	inc := r.loadIncrement(incrementPath)
	if inc == nil {
		return r.finish(), nil
	}
	finder := r.loadFinder(livingDocsPath)
	externalState := r.checklist(state.Body)

	r.enter(types.PhaseDiffing)
	r.detectStatus(incrementPath, state.Status)
	changes := r.diffFromIncrement(inc, finder, externalState)

	r.enter(types.PhaseApplying)
	updates := r.applyChanges(inc, changes, types.LayerIncrement)
	r.flush()

	if len(updates) > 0 {
		body := entity.ApplyChecklistState(state.Body, updates)
		if body != state.Body && !e.Options.DryRun {
			if err := e.Tracker.UpdateBody(ctx, issueID, body); err != nil {
				r.transportFailure("update-body", issueID, err)
				return r.finish(), nil
			}
		}
		for _, p := range changes {
			if p.targets(types.LayerExternal) {
				r.markApplied(p.key())
			}
		}
	}
	return r.finish(), nil
}

// localEntity is one AC or task as the increment records it.
type localEntity struct {
	kind      types.EntityKind
	id        string
	completed bool
}

// localEntities lists the increment's ACs, then its tasks, in document
// order. Checklist-style tasks in tasks.md follow the task blocks.
func (r *run) localEntities(inc *incrementDocs) []localEntity {
	var out []localEntity
	for _, ac := range inc.acs {
		out = append(out, localEntity{types.KindAC, ac.ID, ac.Completed})
	}
	seen := make(map[string]bool)
	for _, t := range inc.tasks.All() {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, localEntity{types.KindTask, t.ID, t.Completed})
	}
	if inc.hasTasks {
		text, _ := r.ws.read(inc.tasksPath)
		state := r.checklist(text)
		for _, id := range checklistIDs(text, entity.PatternTask) {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, localEntity{types.KindTask, id, state[id]})
		}
	}
	return out
}

// diffFromIncrement compares every local entity with the living docs and
// the issue body. Entities the issue does not list are only synced to the
// living docs.
func (r *run) diffFromIncrement(inc *incrementDocs, finder FileFinder, external map[string]bool) []pending {
	var out []pending
	for _, ent := range r.localEntities(inc) {
		livPath, livState, livFound := r.livingState(finder, ent.kind, ent.id)
		extState, extFound := external[ent.id]
		if livFound && extFound {
			r.contentConflict(ent.id, types.LayerIncrement, ent.completed,
				types.LayerLivingDocs, livState, types.LayerExternal, extState)
		}

		var targets []types.Layer
		if livFound && livState != ent.completed {
			targets = append(targets, types.LayerLivingDocs)
		}
		if extFound && extState != ent.completed {
			targets = append(targets, types.LayerExternal)
		}
		if len(targets) == 0 {
			continue
		}
		p := pending{
			change: types.SyncChange{
				Kind:      ent.kind,
				ID:        ent.id,
				Completed: ent.completed,
				Origin:    types.LayerIncrement,
				Targets:   targets,
			},
			livingPath: livPath,
		}
		r.record(p)
		out = append(out, p)
	}
	return out
}
