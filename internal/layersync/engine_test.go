package layersync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/steveyegge/strata/internal/cache"
	"github.com/steveyegge/strata/internal/debug"
	"github.com/steveyegge/strata/internal/docstore"
	"github.com/steveyegge/strata/internal/tracker/trackertest"
	"github.com/steveyegge/strata/internal/types"
	"github.com/steveyegge/strata/internal/validation"
)

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "layersync-events-*")
	if err != nil {
		panic(err)
	}
	debug.SetEventLogPath(filepath.Join(tmp, "events.log"))
	code := m.Run()
	_ = os.RemoveAll(tmp)
	os.Exit(code)
}

const specMD = `---
status: active
---
# Login

## Acceptance Criteria

- [ ] AC-US1-01: user can log in
- [ ] AC-US1-02: user can log out
`

const tasksMD = `# Tasks

### T-001: Add login (P1)
**AC**: AC-US1-01
**Files**: src/login.go

### T-002: Add logout (P1)
**AC**: AC-US1-02
`

const livingMD = `# US-001: User login

Users sign in with their email.

## Acceptance Criteria

- [ ] AC-US1-01: user can log in
- [ ] AC-US1-02: user can log out

## Tasks

- [ ] T-001: Add login
- [ ] T-002: Add logout
`

const realCode = `package src

// Login checks the credentials and opens a session for the user.
func Login(user, password string) error {
	return nil
}
`

type fixture struct {
	t      *testing.T
	root   string
	inc    string
	living string
	fake   *trackertest.Fake
	engine *Engine
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		t:      t,
		root:   root,
		inc:    filepath.Join(root, "increments", "0001-login"),
		living: filepath.Join(root, "living"),
		fake:   trackertest.New(),
	}
	for rel, content := range files {
		f.write(rel, content)
	}
	if err := os.MkdirAll(f.living, 0o755); err != nil {
		t.Fatal(err)
	}

	store := docstore.NewFS()
	e := NewEngine(f.fake, store)
	e.Validator = validation.NewCodeValidator(store, root)
	e.Cache = cache.New(64)
	e.Now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	e.NewRunID = func() string { return "run-test" }
	f.engine = e
	return f
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.root, filepath.FromSlash(rel))
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	p := f.path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) read(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.path(rel))
	if err != nil {
		f.t.Fatal(err)
	}
	return string(data)
}

func standardFiles() map[string]string {
	return map[string]string{
		"increments/0001-login/spec.md":  specMD,
		"increments/0001-login/tasks.md": tasksMD,
		"living/us-001-login.md":         livingMD,
	}
}

func hasWarning(res *types.SyncResult, substr string) bool {
	for _, w := range res.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestPropagateCompletion(t *testing.T) {
	files := standardFiles()
	files["increments/0001-login/tasks.md"] = `### T-001: Add login (P1)
**AC**: AC-US1-01
**Completed**: 2025-01-01

### T-002: Add logout (P1)
**AC**: AC-US1-02
`
	files["increments/0001-login/spec.md"] = `# Login

- [ ] AC-US1-01: user can log in
- [x] AC-US1-02: user can log out
`
	f := newFixture(t, files)

	res, err := f.engine.PropagateCompletion(context.Background(), f.inc, f.living)
	if err != nil {
		t.Fatalf("PropagateCompletion: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}

	spec := f.read("increments/0001-login/spec.md")
	if !strings.Contains(spec, "- [x] AC-US1-01: user can log in\n") {
		t.Errorf("AC-US1-01 not completed in spec.md:\n%s", spec)
	}
	if !strings.Contains(spec, "- [x] AC-US1-02: user can log out\n") {
		t.Errorf("AC-US1-02 must never be unchecked by propagation:\n%s", spec)
	}
	if res.ACsPropagated != 1 {
		t.Errorf("ACsPropagated = %d, want 1", res.ACsPropagated)
	}

	living := f.read("living/us-001-login.md")
	if !strings.Contains(living, "- [x] AC-US1-01: user can log in") {
		t.Errorf("living doc not updated:\n%s", living)
	}
	if !strings.Contains(living, "**Origin**: internal") {
		t.Errorf("living doc not stamped with internal origin:\n%s", living)
	}

	want := []types.Phase{types.PhaseParsing, types.PhaseDiffing, types.PhaseApplying, types.PhaseReporting}
	if diff := cmp.Diff(want, res.Phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
	if len(f.fake.Calls) != 0 {
		t.Errorf("propagation contacted the tracker: %v", f.fake.Calls)
	}
}

func TestPropagateCompletionWithoutTracker(t *testing.T) {
	f := newFixture(t, standardFiles())
	f.engine.Tracker = nil

	res, err := f.engine.PropagateCompletion(context.Background(), f.inc, "")
	if err != nil {
		t.Fatalf("PropagateCompletion: %v", err)
	}
	if !res.Success || res.ACsPropagated != 0 {
		t.Errorf("result = %+v, want success with nothing propagated", res)
	}
}

func TestPullReopensUnbackedTask(t *testing.T) {
	f := newFixture(t, standardFiles())
	f.fake.SetIssue("42", "## Tasks\n\n- [x] T-001: Add login\n", "open")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}
	if res.TasksReopened != 1 {
		t.Errorf("TasksReopened = %d, want 1", res.TasksReopened)
	}
	if diff := cmp.Diff([]string{"T-001"}, res.Reopened); diff != "" {
		t.Errorf("Reopened mismatch (-want +got):\n%s", diff)
	}

	tasks := f.read("increments/0001-login/tasks.md")
	if strings.Contains(tasks, "**Completed**") {
		t.Errorf("tasks.md still marks T-001 completed:\n%s", tasks)
	}
	if !strings.Contains(tasks, "**Reopened**: 2025-03-01 - code validation failed (src/login.go: file not found)") {
		t.Errorf("tasks.md has no reopen note:\n%s", tasks)
	}

	living := f.read("living/us-001-login.md")
	if !strings.Contains(living, "- [ ] T-001: Add login") {
		t.Errorf("living doc still shows T-001 done:\n%s", living)
	}

	comments := f.fake.Comments["42"]
	if len(comments) != 1 || !strings.Contains(comments[0], "T-001") {
		t.Errorf("comments = %q, want one reopen note", comments)
	}

	want := []types.Phase{
		types.PhaseFetching, types.PhaseParsing, types.PhaseDiffing,
		types.PhaseApplying, types.PhaseReopening, types.PhaseReporting,
	}
	if diff := cmp.Diff(want, res.Phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
}

func TestPullAcceptsBackedTaskAndPropagates(t *testing.T) {
	files := standardFiles()
	files["src/login.go"] = realCode
	f := newFixture(t, files)
	f.fake.SetIssue("42", "- [x] T-001: Add login\n", "open")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}
	if res.TasksReopened != 0 {
		t.Errorf("TasksReopened = %d, want 0", res.TasksReopened)
	}
	if res.TasksUpdated != 1 {
		t.Errorf("TasksUpdated = %d, want 1", res.TasksUpdated)
	}

	tasks := f.read("increments/0001-login/tasks.md")
	if !strings.Contains(tasks, "**Completed**: 2025-03-01") {
		t.Errorf("tasks.md missing completion:\n%s", tasks)
	}
	spec := f.read("increments/0001-login/spec.md")
	if !strings.Contains(spec, "- [x] AC-US1-01") {
		t.Errorf("propagation after pull did not complete AC-US1-01:\n%s", spec)
	}
	if res.ACsPropagated != 1 {
		t.Errorf("ACsPropagated = %d, want 1", res.ACsPropagated)
	}
	if len(f.fake.Comments["42"]) != 0 {
		t.Errorf("unexpected comments: %q", f.fake.Comments["42"])
	}
}

func TestPullPreservesLivingDocBytes(t *testing.T) {
	living := `# US-001: User login

Some   prose with  odd spacing.

## Acceptance Criteria

- [x] AC-US1-01: user can log in
- [ ] AC-US1-02: user can log out

Trailing paragraph.
`
	files := standardFiles()
	files["living/us-001-login.md"] = living
	f := newFixture(t, files)
	f.engine.Options.StampOrigin = false
	f.engine.Options.PropagateAfterPull = false
	f.fake.SetIssue("42", "- [x] AC-US1-02: user can log out\n", "open")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}

	want := strings.Replace(living, "- [ ] AC-US1-02", "- [x] AC-US1-02", 1)
	if got := f.read("living/us-001-login.md"); got != want {
		t.Errorf("living doc mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
	if res.ACsUpdated != 1 {
		t.Errorf("ACsUpdated = %d, want 1", res.ACsUpdated)
	}
}

func TestPullFetchFailure(t *testing.T) {
	f := newFixture(t, standardFiles())
	f.fake.FetchErr = errors.New("connection refused")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement returned error for a transport failure: %v", err)
	}
	if res.Success {
		t.Error("Success = true after fetch failure")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "connection refused") {
		t.Errorf("Errors = %q", res.Errors)
	}
	want := []types.Phase{types.PhaseFetching, types.PhaseReporting}
	if diff := cmp.Diff(want, res.Phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
	if got := f.read("increments/0001-login/spec.md"); got != specMD {
		t.Error("spec.md changed after a failed fetch")
	}
}

func TestPullCommentFailure(t *testing.T) {
	f := newFixture(t, standardFiles())
	f.fake.SetIssue("42", "- [x] T-001: Add login\n", "open")
	f.fake.CommentErr = errors.New("rate limited")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement: %v", err)
	}
	if res.Success {
		t.Error("Success = true after comment failure")
	}
	if res.TasksReopened != 1 {
		t.Errorf("TasksReopened = %d, want 1 (reopen happens before the comment)", res.TasksReopened)
	}
	if !strings.Contains(f.read("increments/0001-login/tasks.md"), "**Reopened**") {
		t.Error("tasks.md was not reopened")
	}
}

func TestPullWarnsOnDiscardedLocalValue(t *testing.T) {
	files := standardFiles()
	files["increments/0001-login/spec.md"] = strings.Replace(specMD, "- [ ] AC-US1-01", "- [x] AC-US1-01", 1)
	f := newFixture(t, files)
	f.engine.Options.PropagateAfterPull = false
	f.fake.SetIssue("42", "- [ ] AC-US1-01: user can log in\n", "open")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement: %v", err)
	}
	if !hasWarning(res, "external value [ ] wins") {
		t.Errorf("missing content conflict warning: %q", res.Warnings)
	}
	if !strings.Contains(f.read("increments/0001-login/spec.md"), "- [ ] AC-US1-01") {
		t.Error("external value did not win in spec.md")
	}
}

func TestPullKeepsExistingOrigin(t *testing.T) {
	files := standardFiles()
	files["living/us-001-login.md"] = strings.Replace(livingMD,
		"# US-001: User login\n", "# US-001: User login\n**Origin**: internal\n", 1)
	f := newFixture(t, files)
	f.fake.SetIssue("42", "- [x] AC-US1-02: user can log out\n", "open")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement: %v", err)
	}
	if !res.Success {
		t.Fatalf("origin mismatch must not fail the run: %v", res.Errors)
	}
	if !hasWarning(res, `origin "internal"`) {
		t.Errorf("missing origin warning: %q", res.Warnings)
	}
	living := f.read("living/us-001-login.md")
	if strings.Contains(living, "**Origin**: external") {
		t.Errorf("origin badge was changed:\n%s", living)
	}
	if !strings.Contains(living, "- [x] AC-US1-02") {
		t.Errorf("checkbox update was skipped:\n%s", living)
	}
}

func TestPullUnknownEntityWarns(t *testing.T) {
	f := newFixture(t, standardFiles())
	f.fake.SetIssue("42", "- [x] AC-US9-01: something else\n", "open")

	res, err := f.engine.RunExternalToIncrement(context.Background(), "42", f.inc, f.living)
	if err != nil {
		t.Fatalf("RunExternalToIncrement: %v", err)
	}
	if !hasWarning(res, "AC-US9-01 is listed in issue 42 but not found locally") {
		t.Errorf("warnings = %q", res.Warnings)
	}
	if len(res.Changes) != 0 {
		t.Errorf("Changes = %v, want none", res.Changes)
	}
}

func TestPushUpdatesExternalBody(t *testing.T) {
	files := standardFiles()
	files["increments/0001-login/spec.md"] = strings.Replace(specMD, "- [ ] AC-US1-01", "- [x] AC-US1-01", 1)
	f := newFixture(t, files)
	body := "## Acceptance Criteria\n\n- [ ] AC-US1-01: user can log in\n- [ ] AC-US1-02: user can log out\n"
	f.fake.SetIssue("42", body, "open")

	res, err := f.engine.RunIncrementToExternal(context.Background(), f.inc, f.living, "42")
	if err != nil {
		t.Fatalf("RunIncrementToExternal: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %v", res.Errors)
	}

	wantBody := strings.Replace(body, "- [ ] AC-US1-01", "- [x] AC-US1-01", 1)
	if got := f.fake.Issue("42").Body; got != wantBody {
		t.Errorf("issue body mismatch (-want +got):\n%s", cmp.Diff(wantBody, got))
	}
	if res.ACsUpdated != 1 {
		t.Errorf("ACsUpdated = %d, want 1", res.ACsUpdated)
	}
	living := f.read("living/us-001-login.md")
	if !strings.Contains(living, "- [x] AC-US1-01") {
		t.Errorf("living doc not updated:\n%s", living)
	}

	// A second push finds nothing to do.
	res, err = f.engine.RunIncrementToExternal(context.Background(), f.inc, f.living, "42")
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if len(res.Changes) != 0 || res.ACsUpdated != 0 {
		t.Errorf("second push changes = %v, ACsUpdated = %d", res.Changes, res.ACsUpdated)
	}
	if n := f.fake.CallCount("body"); n != 1 {
		t.Errorf("UpdateBody called %d times, want 1", n)
	}
}

func TestPushTransportErrorKeepsPartialCounts(t *testing.T) {
	files := standardFiles()
	files["increments/0001-login/spec.md"] = strings.Replace(specMD, "- [ ] AC-US1-01", "- [x] AC-US1-01", 1)
	files["increments/0001-login/tasks.md"] = tasksMD + "\n### T-003: Docs (P2)\n**Completed**: 2025-02-01\n"
	f := newFixture(t, files)
	f.fake.SetIssue("42", "- [ ] T-003: Docs\n", "open")
	f.fake.BodyErr = errors.New("502 bad gateway")

	res, err := f.engine.RunIncrementToExternal(context.Background(), f.inc, f.living, "42")
	if err != nil {
		t.Fatalf("RunIncrementToExternal: %v", err)
	}
	if res.Success {
		t.Error("Success = true after UpdateBody failure")
	}
	if len(res.Errors) == 0 || !strings.Contains(res.Errors[0], "update-body") {
		t.Errorf("Errors = %q", res.Errors)
	}
	// AC-US1-01 reached the living docs before the tracker call failed.
	if res.ACsUpdated != 1 {
		t.Errorf("ACsUpdated = %d, want 1", res.ACsUpdated)
	}
	if res.TasksUpdated != 0 {
		t.Errorf("TasksUpdated = %d, want 0", res.TasksUpdated)
	}
}

func TestPushDryRun(t *testing.T) {
	files := standardFiles()
	files["increments/0001-login/spec.md"] = strings.Replace(specMD, "- [ ] AC-US1-01", "- [x] AC-US1-01", 1)
	f := newFixture(t, files)
	f.engine.Options.DryRun = true
	f.fake.SetIssue("42", "- [ ] AC-US1-01: user can log in\n", "open")

	res, err := f.engine.RunIncrementToExternal(context.Background(), f.inc, f.living, "42")
	if err != nil {
		t.Fatalf("RunIncrementToExternal: %v", err)
	}
	if !res.DryRun || res.ACsUpdated != 1 || len(res.Changes) != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := f.read("living/us-001-login.md"); got != livingMD {
		t.Error("dry run wrote the living doc")
	}
	if n := f.fake.CallCount("body"); n != 0 {
		t.Errorf("dry run called UpdateBody %d times", n)
	}
}

func TestStatusConflictReported(t *testing.T) {
	files := standardFiles()
	files["increments/0001-login/spec.md"] = strings.Replace(specMD, "status: active", "status: completed", 1)
	f := newFixture(t, files)
	f.fake.SetIssue("42", "", "open")

	res, err := f.engine.RunIncrementToExternal(context.Background(), f.inc, f.living, "42")
	if err != nil {
		t.Fatalf("RunIncrementToExternal: %v", err)
	}
	if res.ConflictCount() != 1 {
		t.Fatalf("ConflictCount = %d, want 1 (%+v)", res.ConflictCount(), res.Conflicts)
	}
	if got := res.Conflicts[0].Recommendation; got != types.RecommendCloseExternally {
		t.Errorf("Recommendation = %q", got)
	}
	if n := f.fake.CallCount("status"); n != 0 {
		t.Errorf("conflict resolution must not be automatic, UpdateStatus called %d times", n)
	}
}

func TestDiagnosticsSurfaced(t *testing.T) {
	files := standardFiles()
	files["increments/0001-login/tasks.md"] = tasksMD + "\n### T-009: Missing priority\n**AC**: AC-US1-02\n"
	f := newFixture(t, files)

	res, err := f.engine.PropagateCompletion(context.Background(), f.inc, f.living)
	if err != nil {
		t.Fatalf("PropagateCompletion: %v", err)
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %v, want 1", res.Diagnostics)
	}
	if !strings.Contains(res.Diagnostics[0].Message, "T-009") {
		t.Errorf("diagnostic = %v", res.Diagnostics[0])
	}
}

func TestMissingIncrementFiles(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.PropagateCompletion(context.Background(), f.inc, "")
	if err != nil {
		t.Fatalf("PropagateCompletion: %v", err)
	}
	if res.Success {
		t.Error("Success = true for an increment with no documents")
	}

	f.write("increments/0001-login/spec.md", specMD)
	res, err = f.engine.PropagateCompletion(context.Background(), f.inc, "")
	if err != nil {
		t.Fatalf("PropagateCompletion: %v", err)
	}
	if !res.Success || !hasWarning(res, "no tasks.md") {
		t.Errorf("success=%v warnings=%q", res.Success, res.Warnings)
	}
}

func TestInvalidArguments(t *testing.T) {
	f := newFixture(t, standardFiles())
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"pull without issue", func() error {
			_, err := f.engine.RunExternalToIncrement(ctx, " ", f.inc, "")
			return err
		}},
		{"pull without increment", func() error {
			_, err := f.engine.RunExternalToIncrement(ctx, "42", "", "")
			return err
		}},
		{"push without issue", func() error {
			_, err := f.engine.RunIncrementToExternal(ctx, f.inc, "", "")
			return err
		}},
		{"propagate without increment", func() error {
			_, err := f.engine.PropagateCompletion(ctx, "", "")
			return err
		}},
		{"engine without store", func() error {
			_, err := (&Engine{}).PropagateCompletion(ctx, f.inc, "")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSyncAll(t *testing.T) {
	files := standardFiles()
	files["increments/0002-logout/spec.md"] = "- [x] AC-US2-01: user sees logout\n"
	f := newFixture(t, files)
	f.fake.SetIssue("42", "- [ ] AC-US1-01: user can log in\n", "open")
	f.fake.SetIssue("43", "- [ ] AC-US2-01: user sees logout\n", "open")
	second := filepath.Join(f.root, "increments", "0002-logout")

	targets := []Target{
		{IncrementPath: f.inc, LivingDocsPath: f.living, IssueID: "42"},
		{IncrementPath: second, IssueID: "43"},
	}
	out, err := f.engine.SyncAll(context.Background(), targets, BulkOptions{Parallelism: 2})
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if out.Succeeded != 2 || out.Failed != 0 {
		t.Errorf("succeeded=%d failed=%d", out.Succeeded, out.Failed)
	}
	if len(out.Results) != 2 || out.Results[1].ACsUpdated != 1 {
		t.Errorf("results = %+v", out.Results)
	}
	if got := f.fake.Issue("43").Body; got != "- [x] AC-US2-01: user sees logout\n" {
		t.Errorf("issue 43 body = %q", got)
	}

	_, err = f.engine.SyncAll(context.Background(), append(targets, targets[0]), BulkOptions{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("duplicate target err = %v, want ErrInvalidArgument", err)
	}
}

func TestSyncAllCountsFailures(t *testing.T) {
	f := newFixture(t, standardFiles())
	f.fake.SetIssue("42", "", "open")

	targets := []Target{
		{IncrementPath: f.inc, IssueID: "42"},
		{IncrementPath: filepath.Join(f.root, "increments", "missing"), IssueID: "404"},
	}
	out, err := f.engine.SyncAll(context.Background(), targets, BulkOptions{Parallelism: 1, BatchDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if out.Succeeded != 1 || out.Failed != 1 {
		t.Errorf("succeeded=%d failed=%d", out.Succeeded, out.Failed)
	}
}
