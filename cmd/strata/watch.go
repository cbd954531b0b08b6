package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/steveyegge/strata/internal/increment"
	"github.com/steveyegge/strata/internal/layersync"
	"github.com/steveyegge/strata/internal/ui"
)

const watchDebounce = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:     "watch <increment>",
	GroupID: "sync",
	Short:   "Propagate AC completion whenever tasks.md changes",
	Long: `Watch an increment folder and run propagation after every write to
tasks.md. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, incDir, _, err := prepareSync(args[0], false)
		if err != nil {
			return err
		}
		e, err := p.newEngine(false)
		if err != nil {
			return err
		}
		living := p.livingDocs()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		// Editors often replace files, so watch the folder rather than the file.
		if err := watcher.Add(incDir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", incDir, err)
		}

		runs := make(chan struct{}, 1)
		var debounceTimer *time.Timer
		trigger := func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case runs <- struct{}{}:
				default:
				}
			})
		}

		runWatchPass(e, incDir, living)
		fmt.Fprintf(os.Stderr, "\nWatching %s... (Press Ctrl+C to exit)\n", increment.TasksPath(incDir))

		for {
			select {
			case <-rootCtx.Done():
				fmt.Fprintf(os.Stderr, "\nStopped watching.\n")
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) == increment.TasksFile && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					trigger()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "%s watcher error: %v\n", ui.RenderIcon(ui.OutcomeFailed), err)
			case <-runs:
				runWatchPass(e, incDir, living)
			}
		}
	},
}

// runWatchPass propagates once and prints only runs that changed something.
func runWatchPass(e *layersync.Engine, incDir, living string) {
	res, err := e.PropagateCompletion(rootCtx, incDir, living)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderIcon(ui.OutcomeFailed), err)
		return
	}
	if jsonOutput {
		outputJSON(res)
		return
	}
	if res.ACsPropagated > 0 || !res.Success || len(res.Diagnostics) > 0 {
		fmt.Print(ui.RenderSyncResult(res))
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
