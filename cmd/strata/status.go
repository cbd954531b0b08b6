package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/steveyegge/strata/internal/conflict"
	"github.com/steveyegge/strata/internal/increment"
	"github.com/steveyegge/strata/internal/tracker"
	"github.com/steveyegge/strata/internal/ui"
)

var (
	statusApply bool
	statusYes   bool
)

var statusCmd = &cobra.Command{
	Use:     "status <increment>",
	GroupID: "views",
	Short:   "Compare the increment status with the external issue",
	Long: `Detect status conflicts between an increment and its external issue, such as
a closed issue for an active increment.

Conflicts are only reported. With --apply, each recommended action is shown
and applied after confirmation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, incDir, issue, err := prepareSync(args[0], true)
		if err != nil {
			return err
		}
		client, err := p.newTracker()
		if err != nil {
			return err
		}
		state, err := client.FetchIssueState(rootCtx, issue)
		if err != nil {
			return fmt.Errorf("failed to fetch issue %s: %w", issue, err)
		}
		meta, err := increment.ReadMeta(p.store, incDir)
		if err != nil {
			return err
		}

		conflicts := conflict.Detect(string(meta.Status), state.Status)
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"increment": meta.ID,
				"issue":     issue,
				"local":     meta.Status,
				"external":  state.Status,
				"conflicts": conflicts,
			})
		} else {
			fmt.Printf("%s %s  %s %s\n", ui.RenderAccent(meta.ID), meta.Status, ui.RenderAccent(issue), state.Status)
			if len(conflicts) == 0 {
				fmt.Printf("%s statuses are consistent\n", ui.RenderIcon(ui.OutcomeInfo))
			} else {
				fmt.Print(ui.RenderConflicts(conflicts))
			}
		}

		if !statusApply {
			return nil
		}
		for _, action := range conflict.Advise(conflicts) {
			ok, err := confirmAction(action)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("%s skipped: %s\n", ui.RenderIcon(ui.OutcomeSkipped), action.Describe())
				continue
			}
			if err := applyAction(p, client, incDir, issue, action); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", ui.RenderIcon(ui.OutcomeUpdated), action.Describe())
		}
		return nil
	},
}

func confirmAction(action conflict.Action) (bool, error) {
	if statusYes {
		return true, nil
	}
	if !ui.IsTerminal() {
		return false, fmt.Errorf("refusing to apply %q without a terminal (use --yes)", action.Describe())
	}
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(action.Conflict.Message).
				Description(action.Describe() + "?").
				Affirmative("Apply").
				Negative("Skip").
				Value(&ok),
		),
	).WithTheme(huh.ThemeDracula())
	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

func applyAction(p *project, client tracker.Client, incDir, issue string, action conflict.Action) error {
	if dryRun {
		fmt.Fprintf(os.Stderr, "dry run: would %s\n", action.Describe())
		return nil
	}
	if action.Local != "" {
		path := increment.SpecPath(incDir)
		spec, err := p.store.ReadText(path)
		if err != nil {
			return err
		}
		if next, changed := increment.SetStatus(spec, action.Local); changed {
			if err := p.store.WriteText(path, next); err != nil {
				return err
			}
		}
	}
	if action.External != "" {
		if action.Comment != "" {
			if err := client.PostComment(rootCtx, issue, action.Comment); err != nil {
				return fmt.Errorf("failed to comment on issue %s: %w", issue, err)
			}
		}
		if err := client.UpdateStatus(rootCtx, issue, string(action.External)); err != nil {
			return fmt.Errorf("failed to update issue %s: %w", issue, err)
		}
	}
	return nil
}

func init() {
	statusCmd.Flags().StringVar(&issueFlag, "issue", "", "External issue (default: from increment metadata)")
	statusCmd.Flags().BoolVar(&statusApply, "apply", false, "Offer to apply the recommended actions")
	statusCmd.Flags().BoolVarP(&statusYes, "yes", "y", false, "Apply without prompting")
	rootCmd.AddCommand(statusCmd)
}
