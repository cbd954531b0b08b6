package layersync

import (
	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/types"
)

// pending is a change waiting for APPLYING, with the living-doc file it
// lands in when it targets that layer.
type pending struct {
	change     types.SyncChange
	livingPath string
}

func (p pending) key() entityKey {
	return entityKey{p.change.Kind, p.change.ID}
}

func (p pending) targets(l types.Layer) bool {
	for _, t := range p.change.Targets {
		if t == l {
			return true
		}
	}
	return false
}

// record adds a diffed change to the result.
func (r *run) record(p pending) {
	r.res.Changes = append(r.res.Changes, p.change)
	r.e.msg("%s", p.change)
}

// applyChanges renders the increment and living-doc parts of changes into
// the workset and returns the checkbox updates destined for the external
// issue. Nothing is written until flush.
func (r *run) applyChanges(inc *incrementDocs, changes []pending, initiator types.Layer) map[string]bool {
	specUpdates := make(map[string]bool)
	taskUpdates := make(map[string]bool)
	var taskOrder []string
	living := make(map[string]map[string]bool)
	kinds := make(map[string]types.EntityKind)
	external := make(map[string]bool)

	for _, p := range changes {
		c := p.change
		kinds[c.ID] = c.Kind
		if p.targets(types.LayerIncrement) {
			if c.Kind == types.KindAC {
				specUpdates[c.ID] = c.Completed
			} else {
				taskUpdates[c.ID] = c.Completed
				taskOrder = append(taskOrder, c.ID)
			}
		}
		if p.targets(types.LayerLivingDocs) && p.livingPath != "" {
			if living[p.livingPath] == nil {
				living[p.livingPath] = make(map[string]bool)
			}
			living[p.livingPath][c.ID] = c.Completed
		}
		if p.targets(types.LayerExternal) {
			external[c.ID] = c.Completed
		}
	}

	if len(specUpdates) > 0 && inc.hasSpec {
		text, err := r.ws.read(inc.specPath)
		if err == nil && r.ws.update(inc.specPath, entity.ApplyChecklistState(text, specUpdates)) {
			for id := range specUpdates {
				r.touch(inc.specPath, entityKey{types.KindAC, id})
			}
		}
	}

	if len(taskUpdates) > 0 && inc.hasTasks {
		text, err := r.ws.read(inc.tasksPath)
		if err == nil {
			next := text
			for _, id := range taskOrder {
				next, _ = entity.SetTaskCompleted(next, id, taskUpdates[id], r.today)
			}
			next = entity.ApplyChecklistState(next, taskUpdates)
			if r.ws.update(inc.tasksPath, next) {
				for _, id := range taskOrder {
					r.touch(inc.tasksPath, entityKey{types.KindTask, id})
				}
			}
		}
	}

	r.applyLiving(living, kinds, initiator)
	return external
}
