package layersync

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/steveyegge/strata/internal/debug"
	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/types"
	"github.com/steveyegge/strata/internal/validation"
)

// RunExternalToIncrement pulls checkbox state from the external issue into
// the living docs and the increment. Tasks the issue claims are done are
// then checked against their declared files and reopened when the evidence
// is missing.
//
// Only invalid arguments produce an error; everything else is reported in
// the result. livingDocsPath may be empty to skip the living-docs layer.
func (e *Engine) RunExternalToIncrement(ctx context.Context, issueID, incrementPath, livingDocsPath string) (*types.SyncResult, error) {
	if err := e.check(true); err != nil {
		return nil, err
	}
	if strings.TrimSpace(issueID) == "" {
		return nil, invalidArg("issue id is required")
	}
	if strings.TrimSpace(incrementPath) == "" {
		return nil, invalidArg("increment path is required")
	}

	ctx, r := e.begin(ctx, types.DirectionPull,
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
	external := entity.ParseChecklist(state.Body, entity.PatternAny)
	finder := r.loadFinder(livingDocsPath)

	r.enter(types.PhaseDiffing)
	r.detectStatus(incrementPath, state.Status)
	changes := r.diffFromExternal(inc, finder, issueID, external)

	r.enter(types.PhaseApplying)
	r.applyChanges(inc, changes, types.LayerExternal)
	r.flush()

	if failures := r.validateClaims(inc, external); len(failures) > 0 {
		r.enter(types.PhaseReopening)
		if !r.reopen(ctx, inc, finder, issueID, failures) {
			return r.finish(), nil
		}
	}

	if e.Options.PropagateAfterPull {
		r.propagate(inc, finder)
		r.flush()
	}
	return r.finish(), nil
}

// diffFromExternal compares each checklist entry of the issue against the
// increment and the living docs. The issue wins; local layers that already
// agree are left alone.
func (r *run) diffFromExternal(inc *incrementDocs, finder FileFinder, issueID string, entries []entity.ChecklistEntry) []pending {
	var out []pending
	seen := make(map[string]bool)
	for _, entry := range entries {
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true

		incState, incFound := r.incrementState(inc, entry.Kind, entry.ID)
		livPath, livState, livFound := r.livingState(finder, entry.Kind, entry.ID)
		if !incFound && !livFound {
			r.warn("%s is listed in issue %s but not found locally", entry.ID, issueID)
			continue
		}
		if incFound && livFound {
			r.contentConflict(entry.ID, types.LayerExternal, entry.Completed,
				types.LayerIncrement, incState, types.LayerLivingDocs, livState)
		}

		var targets []types.Layer
		if incFound && incState != entry.Completed {
			targets = append(targets, types.LayerIncrement)
		}
		if livFound && livState != entry.Completed {
			targets = append(targets, types.LayerLivingDocs)
		}
		if len(targets) == 0 {
			continue
		}
		p := pending{
			change: types.SyncChange{
				Kind:      entry.Kind,
				ID:        entry.ID,
				Completed: entry.Completed,
				Origin:    types.LayerExternal,
				Targets:   targets,
			},
			livingPath: livPath,
		}
		r.record(p)
		out = append(out, p)
	}
	return out
}

// validateClaims checks the file evidence of every task the issue marks
// completed.
func (r *run) validateClaims(inc *incrementDocs, entries []entity.ChecklistEntry) []*validation.Failure {
	v := r.e.validator()
	var failures []*validation.Failure
	for _, entry := range entries {
		if entry.Kind != types.KindTask || !entry.Completed {
			continue
		}
		task := inc.tasks.Find(entry.ID)
		if task == nil {
			continue
		}
		if f := v.Check(task); f != nil {
			debug.Logf("Debug: validation failed: %v\n", f)
			failures = append(failures, f)
		}
	}
	return failures
}

// reopen marks tasks incomplete again in tasks.md and the living docs and
// tells the issue why. It returns false when the comment could not be posted.
func (r *run) reopen(ctx context.Context, inc *incrementDocs, finder FileFinder, issueID string, failures []*validation.Failure) bool {
	for _, f := range failures {
		reason := fmt.Sprintf("code validation failed (%s: %s)", f.Path, f.Reason)
		key := entityKey{types.KindTask, f.TaskID}

		if text, err := r.ws.read(inc.tasksPath); err == nil {
			next, _ := entity.ReopenTask(text, f.TaskID, r.today, reason)
			next = entity.ApplyChecklistState(next, map[string]bool{f.TaskID: false})
			if r.ws.update(inc.tasksPath, next) {
				r.touch(inc.tasksPath, key)
			}
		}
		if path, completed, found := r.livingState(finder, types.KindTask, f.TaskID); found && completed {
			text, _ := r.ws.read(path)
			if r.ws.update(path, entity.ApplyChecklistState(text, map[string]bool{f.TaskID: false})) {
				r.touch(path, key)
			}
		}

		r.res.TasksReopened++
		r.res.Reopened = append(r.res.Reopened, f.TaskID)
		debug.LogEvent(debug.EventTaskReopened, f.TaskID, r.res.RunID, reason)
		r.warn("reopened %s: %s", f.TaskID, reason)
	}
	r.flush()

	if !r.e.Options.ReopenComment || r.e.Options.DryRun {
		return true
	}
	if err := r.e.Tracker.PostComment(ctx, issueID, reopenNote(failures)); err != nil {
		r.transportFailure("comment", issueID, err)
		return false
	}
	return true
}

// reopenNote is the comment posted on the issue after reopening.
func reopenNote(failures []*validation.Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reopened %d task(s) after code validation:\n\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(&b, "- %s: `%s` %s\n", f.TaskID, f.Path, f.Reason)
	}
	b.WriteString("\nThe tasks stay open until the declared files exist with real content.\n")
	return b.String()
}
