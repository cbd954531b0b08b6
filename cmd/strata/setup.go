package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/strata/internal/cache"
	"github.com/steveyegge/strata/internal/config"
	"github.com/steveyegge/strata/internal/debug"
	"github.com/steveyegge/strata/internal/docstore"
	"github.com/steveyegge/strata/internal/increment"
	"github.com/steveyegge/strata/internal/layersync"
	"github.com/steveyegge/strata/internal/telemetry"
	"github.com/steveyegge/strata/internal/tracker"
	"github.com/steveyegge/strata/internal/types"
	"github.com/steveyegge/strata/internal/ui"
	"github.com/steveyegge/strata/internal/validation"
)

// parseCacheEntries bounds the in-process parse cache.
const parseCacheEntries = 256

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// project bundles what every sync command needs.
type project struct {
	settings config.SyncSettings
	root     string
	store    docstore.Store
}

func loadProject() (*project, error) {
	settings, err := config.GetSyncSettings()
	if err != nil {
		return nil, err
	}
	p := &project{
		settings: settings,
		root:     settings.ResolveRoot(),
		store:    telemetry.WrapStore(docstore.NewFS()),
	}
	debug.SetEventLogPath(filepath.Join(p.root, config.ProjectDir, "events.log"))
	return p, nil
}

// abs resolves a configured path against the project root.
func (p *project) abs(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

// livingDocs returns the living-docs directory, or "" when it does not exist.
func (p *project) livingDocs() string {
	dir := p.abs(p.settings.LivingDocsDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		debug.Logf("Debug: no living docs at %s\n", dir)
		return ""
	}
	return dir
}

// resolveIncrement accepts a path or an increment id such as "0001" or
// "0001-login" found under the increments directory.
func (p *project) resolveIncrement(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("increment is required")
	}
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return filepath.Abs(arg)
	}
	base := p.abs(p.settings.IncrementsDir)
	if info, err := os.Stat(filepath.Join(base, arg)); err == nil && info.IsDir() {
		return filepath.Join(base, arg), nil
	}
	dirs, err := increment.Discover(os.DirFS(base), base)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, d := range dirs {
		if strings.HasPrefix(filepath.Base(d), arg) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no increment matching %q in %s", arg, base)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("increment %q is ambiguous: %s", arg, strings.Join(matches, ", "))
	}
}

// issueFor returns the explicit issue, else the one recorded in the
// increment's metadata, else the configured target.
func (p *project) issueFor(incDir, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	meta, err := increment.ReadMeta(p.store, incDir)
	if err != nil {
		return "", err
	}
	if meta.Issue != "" {
		return meta.Issue, nil
	}
	for _, t := range p.settings.Increments {
		if filepath.Clean(p.abs(t.Path)) == filepath.Clean(incDir) {
			return t.Issue, nil
		}
	}
	return "", fmt.Errorf("increment %s is not linked to an issue (use --issue)", filepath.Base(incDir))
}

// newTracker builds the configured tracker client.
func (p *project) newTracker() (tracker.Client, error) {
	client, err := tracker.New(p.settings.Tracker, &tracker.Config{
		Prefix:            p.settings.Tracker,
		Source:            config.Source{},
		RequestsPerSecond: p.settings.RequestsPerSecond,
		Burst:             p.settings.Burst,
	})
	if err != nil {
		return nil, err
	}
	return telemetry.WrapTracker(client), nil
}

// newEngine wires an engine for this project. The tracker is only built
// when the command talks to it.
func (p *project) newEngine(withTracker bool) (*layersync.Engine, error) {
	var client tracker.Client
	if withTracker {
		var err error
		if client, err = p.newTracker(); err != nil {
			return nil, err
		}
	}
	e := layersync.NewEngine(client, p.store)
	e.Validator = &validation.CodeValidator{
		Files:           p.store,
		Root:            p.root,
		MinContentBytes: p.settings.MinContentBytes,
	}
	e.Cache = cache.New(parseCacheEntries)
	e.Options = layersync.Options{
		DryRun:             dryRun,
		StampOrigin:        p.settings.StampOrigin,
		PropagateAfterPull: p.settings.PropagateAfter,
		ReopenComment:      p.settings.ReopenComment,
	}
	if !quietFlag && !jsonOutput {
		e.OnMessage = func(msg string) { debug.Logf("%s\n", msg) }
		e.OnWarning = func(msg string) { debug.Logf("%s %s\n", ui.RenderIcon(ui.OutcomeConflict), msg) }
	}
	return e, nil
}

// printResult reports a run and returns an error when it failed, so the
// process exits non-zero.
func printResult(res *types.SyncResult) error {
	if jsonOutput {
		outputJSON(res)
	} else if !quietFlag || !res.Success {
		fmt.Print(ui.RenderSyncResult(res))
	}
	if !res.Success {
		return fmt.Errorf("sync %s failed with %d error(s)", res.Direction, len(res.Errors))
	}
	return nil
}
