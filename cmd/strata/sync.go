package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/strata/internal/debug"
	"github.com/steveyegge/strata/internal/increment"
	"github.com/steveyegge/strata/internal/layersync"
	"github.com/steveyegge/strata/internal/types"
	"github.com/steveyegge/strata/internal/ui"
)

var (
	issueFlag     string
	directionFlag string
)

var pullCmd = &cobra.Command{
	Use:     "pull <increment>",
	GroupID: "sync",
	Short:   "Pull checkbox state from the external issue",
	Long: `Pull AC and task checkboxes from the external issue into the living docs
and the increment. Tasks the issue marks done are checked against the files
they declare; tasks without real code behind them are reopened and a note is
posted on the issue.

Examples:
  strata pull 0001
  strata pull .specweave/increments/0001-login --issue 42
  strata pull 0001 --dry-run --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, incDir, issue, err := prepareSync(args[0], true)
		if err != nil {
			return err
		}
		e, err := p.newEngine(true)
		if err != nil {
			return err
		}
		res, err := e.RunExternalToIncrement(rootCtx, issue, incDir, p.livingDocs())
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var pushCmd = &cobra.Command{
	Use:     "push <increment>",
	GroupID: "sync",
	Short:   "Push increment state to the living docs and the external issue",
	Long: `Push AC and task checkboxes from spec.md/tasks.md to the living docs and the
external issue body. The increment is the source of truth.

Examples:
  strata push 0001
  strata push 0001 --issue PROJ-7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, incDir, issue, err := prepareSync(args[0], true)
		if err != nil {
			return err
		}
		e, err := p.newEngine(true)
		if err != nil {
			return err
		}
		res, err := e.RunIncrementToExternal(rootCtx, incDir, p.livingDocs(), issue)
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var propagateCmd = &cobra.Command{
	Use:     "propagate <increment>",
	GroupID: "sync",
	Short:   "Complete ACs whose linked tasks are all done",
	Long: `Mark an acceptance criterion completed in spec.md and the living docs when
every task linked to it is completed. Never unchecks an AC and never talks to
the tracker.`,
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
		res, err := e.PropagateCompletion(rootCtx, incDir, p.livingDocs())
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var syncAllCmd = &cobra.Command{
	Use:     "sync --all",
	GroupID: "sync",
	Short:   "Sync every configured increment",
	Long: `Run one pipeline for every increment listed under "increments" in the
config, or every discovered increment linked to an issue.

Increments run with bounded parallelism (sync.parallelism) and an optional
pause between batches (sync.batch-delay).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); !all {
			return fmt.Errorf("use --all, or pull/push for a single increment")
		}
		dir, ok := directions[directionFlag]
		if !ok {
			return fmt.Errorf("invalid --direction %q (want pull, push or propagate)", directionFlag)
		}

		p, err := loadProject()
		if err != nil {
			return err
		}
		targets, err := bulkTargets(p, dir != types.DirectionPropagate)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			debug.PrintlnNormal("No increments to sync.")
			return nil
		}

		e, err := p.newEngine(dir != types.DirectionPropagate)
		if err != nil {
			return err
		}
		out, err := e.SyncAll(rootCtx, targets, layersync.BulkOptions{
			Direction:   dir,
			Parallelism: p.settings.Parallelism,
			BatchDelay:  p.settings.BatchDelay,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(out)
		} else {
			for _, res := range out.Results {
				if !res.Success || !quietFlag {
					fmt.Print(ui.RenderSyncResult(res))
					fmt.Println()
				}
			}
			fmt.Printf("%s %d succeeded, %d failed in %s\n",
				ui.RenderHeader("Bulk sync"), out.Succeeded, out.Failed, out.Duration.Round(1e6))
		}
		if out.Failed > 0 {
			return fmt.Errorf("%d increment(s) failed", out.Failed)
		}
		return nil
	},
}

var directions = map[string]types.Direction{
	"pull":      types.DirectionPull,
	"push":      types.DirectionPush,
	"propagate": types.DirectionPropagate,
}

// prepareSync resolves the increment and, when needed, its issue.
func prepareSync(arg string, needIssue bool) (*project, string, string, error) {
	p, err := loadProject()
	if err != nil {
		return nil, "", "", err
	}
	incDir, err := p.resolveIncrement(arg)
	if err != nil {
		return nil, "", "", err
	}
	if !needIssue {
		return p, incDir, "", nil
	}
	issue, err := p.issueFor(incDir, issueFlag)
	if err != nil {
		return nil, "", "", err
	}
	return p, incDir, issue, nil
}

// bulkTargets lists configured increments, or discovers linked ones.
func bulkTargets(p *project, needIssue bool) ([]layersync.Target, error) {
	living := p.livingDocs()
	var targets []layersync.Target
	if len(p.settings.Increments) > 0 {
		for _, t := range p.settings.Increments {
			ld := living
			if t.LivingDocs != "" {
				ld = p.abs(t.LivingDocs)
			}
			targets = append(targets, layersync.Target{
				IncrementPath:  p.abs(t.Path),
				LivingDocsPath: ld,
				IssueID:        t.Issue,
			})
		}
		return targets, nil
	}

	base := p.abs(p.settings.IncrementsDir)
	dirs, err := increment.Discover(os.DirFS(base), base)
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		issue, err := p.issueFor(d, "")
		if err != nil && needIssue {
			debug.Logf("Debug: skipping %s: %v\n", d, err)
			continue
		}
		targets = append(targets, layersync.Target{IncrementPath: d, LivingDocsPath: living, IssueID: issue})
	}
	return targets, nil
}

func init() {
	for _, c := range []*cobra.Command{pullCmd, pushCmd} {
		c.Flags().StringVar(&issueFlag, "issue", "", "External issue (default: from increment metadata)")
	}
	syncAllCmd.Flags().Bool("all", false, "Sync every configured or discovered increment")
	syncAllCmd.Flags().StringVar(&directionFlag, "direction", "push", "Pipeline to run: pull, push or propagate")

	rootCmd.AddCommand(pullCmd, pushCmd, propagateCmd, syncAllCmd)
}
