// Package layersync keeps an external issue, the living-doc User Story files
// and an increment's spec.md/tasks.md in step.
//
// Each entry point is one blocking run with its own phase sequence
// (FETCHING, PARSING, DIFFING, APPLYING, REOPENING, REPORTING). Runs re-derive
// everything from document content; nothing is carried between runs except
// the optional parse cache, which is keyed by content.
package layersync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/strata/internal/cache"
	"github.com/steveyegge/strata/internal/conflict"
	"github.com/steveyegge/strata/internal/debug"
	"github.com/steveyegge/strata/internal/docstore"
	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/increment"
	"github.com/steveyegge/strata/internal/livingdocs"
	"github.com/steveyegge/strata/internal/telemetry"
	"github.com/steveyegge/strata/internal/tracker"
	"github.com/steveyegge/strata/internal/types"
	"github.com/steveyegge/strata/internal/validation"
)

const scopeName = "github.com/steveyegge/strata/layersync"

// FileFinder locates the living-doc file that holds an entity.
type FileFinder interface {
	FindDocumentForEntity(kind types.EntityKind, id string) (string, bool)
}

// FinderFactory builds a FileFinder for a living-docs directory.
type FinderFactory func(livingDocsPath string) (FileFinder, error)

// Options tune a run. The zero value does no dry run and no extras.
type Options struct {
	// DryRun computes the result without writing documents or calling
	// mutating tracker operations.
	DryRun bool
	// StampOrigin adds an **Origin** badge to living-doc files a run writes.
	StampOrigin bool
	// PropagateAfterPull runs a propagation pass at the end of a pull.
	PropagateAfterPull bool
	// ReopenComment posts a comment on the issue when tasks are reopened.
	ReopenComment bool
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{StampOrigin: true, PropagateAfterPull: true, ReopenComment: true}
}

// Engine runs the sync pipelines. Its fields are read-only during a run, so
// one Engine may serve concurrent runs on different increments.
type Engine struct {
	Tracker   tracker.Client
	Store     docstore.Store
	Validator *validation.CodeValidator
	Cache     *cache.Cache
	NewFinder FinderFactory
	Options   Options

	Now      func() time.Time
	NewRunID func() string

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)
}

// NewEngine creates an engine with default options, a code validator over
// store and a filesystem-backed living-docs finder.
func NewEngine(client tracker.Client, store docstore.Store) *Engine {
	return &Engine{
		Tracker:   client,
		Store:     store,
		Validator: validation.NewCodeValidator(store, ""),
		Options:   DefaultOptions(),
	}
}

// LoadLivingDocs indexes a living-docs directory on disk.
func LoadLivingDocs(livingDocsPath string) (FileFinder, error) {
	return livingdocs.Load(os.DirFS(livingDocsPath), livingDocsPath)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) runID() string {
	if e.NewRunID != nil {
		return e.NewRunID()
	}
	return uuid.NewString()
}

func (e *Engine) check(needTracker bool) error {
	if e.Store == nil {
		return invalidArg("engine has no document store")
	}
	if needTracker && e.Tracker == nil {
		return invalidArg("engine has no tracker client")
	}
	return nil
}

func (e *Engine) validator() *validation.CodeValidator {
	if e.Validator != nil {
		return e.Validator
	}
	return validation.NewCodeValidator(e.Store, "")
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}

// entityKey identifies an AC or task across layers.
type entityKey struct {
	kind types.EntityKind
	id   string
}

// run is the state of one invocation.
type run struct {
	e       *Engine
	res     *types.SyncResult
	ws      *workset
	span    trace.Span
	start   time.Time
	today   time.Time
	applied map[entityKey]bool
	touched map[string][]entityKey
}

func (e *Engine) begin(ctx context.Context, dir types.Direction, attrs ...attribute.KeyValue) (context.Context, *run) {
	res := types.NewSyncResult(dir)
	res.RunID = e.runID()
	res.DryRun = e.Options.DryRun

	attrs = append(attrs,
		attribute.String("strata.run.id", res.RunID),
		attribute.String("strata.direction", string(dir)),
		attribute.Bool("strata.dry_run", res.DryRun),
	)
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "layersync."+string(dir), trace.WithAttributes(attrs...))

	r := &run{
		e:       e,
		res:     res,
		ws:      newWorkset(e.Store),
		span:    span,
		start:   time.Now(),
		today:   e.now(),
		applied: make(map[entityKey]bool),
		touched: make(map[string][]entityKey),
	}
	debug.LogEvent(debug.EventSyncStart, "", res.RunID, string(dir))
	debug.Logf("Debug: sync %s started (run %s)\n", dir, res.RunID)
	return ctx, r
}

// enter records a phase transition.
func (r *run) enter(p types.Phase) {
	r.res.Phases = append(r.res.Phases, p)
	r.span.AddEvent(string(p))
	debug.LogEvent(debug.EventSyncPhase, "", r.res.RunID, string(p))
}

func (r *run) finish() *types.SyncResult {
	r.enter(types.PhaseReporting)
	r.res.Duration = time.Since(r.start)

	r.span.SetAttributes(
		attribute.Int("strata.acs_updated", r.res.ACsUpdated),
		attribute.Int("strata.tasks_updated", r.res.TasksUpdated),
		attribute.Int("strata.tasks_reopened", r.res.TasksReopened),
		attribute.Int("strata.acs_propagated", r.res.ACsPropagated),
	)
	if !r.res.Success && len(r.res.Errors) > 0 {
		r.span.SetStatus(codes.Error, r.res.Errors[0])
	}
	r.span.End()

	debug.LogEvent(debug.EventSyncDone, "", r.res.RunID,
		fmt.Sprintf("success=%t acs=%d tasks=%d reopened=%d propagated=%d",
			r.res.Success, r.res.ACsUpdated, r.res.TasksUpdated, r.res.TasksReopened, r.res.ACsPropagated))
	return r.res
}

// warn records a warning in the result and forwards it to the UI callback.
func (r *run) warn(format string, args ...interface{}) {
	r.res.AddWarning(format, args...)
	r.e.warn(format, args...)
}

// transportFailure records a tracker failure. The caller must stop the run.
func (r *run) transportFailure(op, issueID string, err error) {
	terr := &TransportError{Op: op, IssueID: issueID, Err: err}
	r.res.AddError(terr)
	r.span.RecordError(terr)
	debug.LogEvent(debug.EventTransportError, issueID, r.res.RunID, terr.Error())
	r.e.warn("%v", terr)
}

// markApplied counts an entity the first time one of its targets is written.
func (r *run) markApplied(k entityKey) {
	if r.applied[k] {
		return
	}
	r.applied[k] = true
	switch k.kind {
	case types.KindAC:
		r.res.ACsUpdated++
	case types.KindTask:
		r.res.TasksUpdated++
	}
}

// touch notes that path now carries a change to k.
func (r *run) touch(path string, k entityKey) {
	r.touched[path] = append(r.touched[path], k)
}

// flush writes every modified document and counts the entities they carry.
// Write failures are recorded and do not stop the remaining writes.
func (r *run) flush() {
	written, failed := r.ws.flush(r.e.Options.DryRun)
	for path, err := range failed {
		r.res.AddError(fmt.Errorf("failed to write %s: %w", path, err))
		delete(r.touched, path)
	}
	for _, path := range written {
		if !r.e.Options.DryRun {
			debug.Logf("Debug: wrote %s\n", path)
		}
	}
	paths := make([]string, 0, len(r.touched))
	for p := range r.touched {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, k := range r.touched[p] {
			r.markApplied(k)
		}
	}
	r.touched = make(map[string][]entityKey)
}

// incrementDocs is the parsed increment layer.
type incrementDocs struct {
	dir       string
	specPath  string
	tasksPath string
	hasSpec   bool
	hasTasks  bool
	acs       []*types.AcceptanceCriterion
	tasks     *types.TaskSet
}

type parsedTasks struct {
	set   *types.TaskSet
	diags []types.Diagnostic
}

type parsedACs struct {
	acs   []*types.AcceptanceCriterion
	diags []types.Diagnostic
}

// loadIncrement reads and parses spec.md and tasks.md. It returns nil, with
// an error recorded, when the increment has neither file.
func (r *run) loadIncrement(dir string) *incrementDocs {
	inc := &incrementDocs{
		dir:       dir,
		specPath:  increment.SpecPath(dir),
		tasksPath: increment.TasksPath(dir),
		tasks:     types.NewTaskSet(),
	}

	spec, err := r.ws.read(inc.specPath)
	switch {
	case err == nil:
		inc.hasSpec = true
	case errors.Is(err, docstore.ErrNotFound):
		r.warn("increment %s has no %s", dir, increment.SpecFile)
	default:
		r.res.AddError(err)
	}

	tasks, err := r.ws.read(inc.tasksPath)
	switch {
	case err == nil:
		inc.hasTasks = true
	case errors.Is(err, docstore.ErrNotFound):
		r.warn("increment %s has no %s", dir, increment.TasksFile)
	default:
		r.res.AddError(err)
	}

	if !inc.hasSpec && !inc.hasTasks {
		r.res.AddError(fmt.Errorf("no %s or %s in %s", increment.SpecFile, increment.TasksFile, dir))
		return nil
	}
	r.parseIncrement(inc, spec, tasks)
	return inc
}

// parseIncrement (re)parses the increment from the given texts.
func (r *run) parseIncrement(inc *incrementDocs, spec, tasks string) {
	r.res.Diagnostics = nil
	if inc.hasSpec {
		p := entity.Parser{Path: inc.specPath, Now: r.e.Now}
		parsed := cache.Memo(r.e.Cache, "acs:"+inc.specPath, spec, func() parsedACs {
			acs, diags := p.ParseAcceptanceCriteria(spec)
			return parsedACs{acs, diags}
		})
		inc.acs = parsed.acs
		r.diagnose(parsed.diags)
	}
	if inc.hasTasks {
		p := entity.Parser{Path: inc.tasksPath, Now: r.e.Now}
		parsed := cache.Memo(r.e.Cache, "tasks:"+inc.tasksPath, tasks, func() parsedTasks {
			set, diags := p.ParseTasks(tasks)
			return parsedTasks{set, diags}
		})
		inc.tasks = parsed.set
		r.diagnose(parsed.diags)
	}
}

func (r *run) diagnose(diags []types.Diagnostic) {
	for _, d := range diags {
		r.res.Diagnostics = append(r.res.Diagnostics, d)
		debug.Logf("Debug: skipped: %s\n", d)
	}
}

// checklist returns the checklist state of text, memoized by content.
func (r *run) checklist(text string) map[string]bool {
	return cache.Memo(r.e.Cache, "checklist", text, func() map[string]bool {
		return entity.ChecklistState(text, entity.PatternAny)
	})
}

// incrementState reports an entity's completion in the increment layer.
// Tasks are looked up as task blocks first, then as checklist lines in tasks.md.
func (r *run) incrementState(inc *incrementDocs, kind types.EntityKind, id string) (bool, bool) {
	switch kind {
	case types.KindAC:
		for _, ac := range inc.acs {
			if ac.ID == id {
				return ac.Completed, true
			}
		}
	case types.KindTask:
		if t := inc.tasks.Find(id); t != nil {
			return t.Completed, true
		}
		if inc.hasTasks {
			text, _ := r.ws.read(inc.tasksPath)
			if c, ok := r.checklist(text)[id]; ok {
				return c, true
			}
		}
	}
	return false, false
}

// loadFinder builds the living-docs finder. An empty path disables the layer.
func (r *run) loadFinder(livingDocsPath string) FileFinder {
	if livingDocsPath == "" {
		return nil
	}
	factory := r.e.NewFinder
	if factory == nil {
		factory = LoadLivingDocs
	}
	finder, err := factory(livingDocsPath)
	if err != nil {
		r.warn("living docs unavailable: %v", err)
		return nil
	}
	return finder
}

// livingState reports where an entity lives in the living docs and its
// current checkbox state there.
func (r *run) livingState(finder FileFinder, kind types.EntityKind, id string) (path string, completed, found bool) {
	if finder == nil {
		return "", false, false
	}
	path, ok := finder.FindDocumentForEntity(kind, id)
	if !ok {
		return "", false, false
	}
	text, err := r.ws.read(path)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			r.warn("cannot read living doc %s: %v", path, err)
		}
		return path, false, false
	}
	completed, found = r.checklist(text)[id]
	return path, completed, found
}

// applyLiving renders updates into each living-doc file, stamping the origin
// of the initiating layer when enabled.
func (r *run) applyLiving(updates map[string]map[string]bool, kinds map[string]types.EntityKind, initiator types.Layer) {
	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		text, err := r.ws.read(path)
		if err != nil {
			r.warn("cannot read living doc %s: %v", path, err)
			continue
		}
		next := entity.ApplyChecklistState(text, updates[path])
		if next == text {
			continue
		}
		next = r.stampOrigin(path, next, initiator)
		r.ws.update(path, next)
		for id := range updates[path] {
			r.touch(path, entityKey{kinds[id], id})
		}
	}
}

// stampOrigin adds the initiator's badge to an unbadged document. A document
// already badged with the other origin is left alone and reported.
func (r *run) stampOrigin(path, text string, initiator types.Layer) string {
	if !r.e.Options.StampOrigin {
		return text
	}
	want := types.OriginFor(initiator)
	stamped, existing, changed := entity.StampOrigin(text, want)
	if !changed && existing != want {
		r.warn("%s has origin %q; not changing it to %q", path, existing, want)
		debug.LogEvent(debug.EventOriginConflict, path, r.res.RunID,
			fmt.Sprintf("existing=%s wanted=%s", existing, want))
	}
	return stamped
}

// contentConflict reports that the two layers the initiator overwrites
// disagreed with each other, so one of their values is being discarded.
func (r *run) contentConflict(id string, initiator types.Layer, want bool, a types.Layer, aState bool, b types.Layer, bState bool) {
	if aState == bState {
		return
	}
	r.warn("%s: %s had %s and %s had %s; %s value %s wins",
		id, a, mark(aState), b, mark(bState), initiator, mark(want))
}

func mark(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}

// detectStatus records advisory status conflicts between the increment and
// the external issue.
func (r *run) detectStatus(dir, externalStatus string) {
	meta, err := increment.ReadMeta(r.e.Store, dir)
	if err != nil {
		r.warn("cannot read increment status: %v", err)
		return
	}
	if meta.Status == "" || externalStatus == "" {
		return
	}
	for _, c := range conflict.Detect(string(meta.Status), externalStatus) {
		r.res.Conflicts = append(r.res.Conflicts, c)
		if c.IsConflict() {
			r.warn("status conflict (%s/%s): %s", c.External, c.Local, c.Message)
		} else {
			r.e.msg("%s", c.Message)
		}
	}
}
