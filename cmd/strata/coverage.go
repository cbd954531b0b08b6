package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/strata/internal/docstore"
	"github.com/steveyegge/strata/internal/entity"
	"github.com/steveyegge/strata/internal/increment"
	"github.com/steveyegge/strata/internal/propagate"
	"github.com/steveyegge/strata/internal/types"
	"github.com/steveyegge/strata/internal/ui"
)

var coverageCmd = &cobra.Command{
	Use:     "coverage <increment>",
	GroupID: "views",
	Short:   "Show how tasks cover the acceptance criteria",
	Long: `Report, per acceptance criterion, the linked tasks and how many are done.
Also lists ACs no task covers, tasks that reference unknown ACs, checked ACs
whose tasks are still open, and tasks without a User Story.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, incDir, _, err := prepareSync(args[0], false)
		if err != nil {
			return err
		}
		cov, diags, err := loadCoverage(p.store, incDir)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"coverage":    cov,
				"percent":     cov.Percent(),
				"diagnostics": diags,
			})
			return nil
		}
		fmt.Print(ui.RenderCoverage(cov))
		for _, d := range diags {
			fmt.Printf("%s %s\n", ui.RenderIcon(ui.OutcomeSkipped), ui.RenderMuted(d.String()))
		}
		return nil
	},
}

// loadCoverage parses an increment and analyzes AC coverage.
func loadCoverage(store docstore.Store, incDir string) (propagate.Coverage, []types.Diagnostic, error) {
	spec, err := store.ReadText(increment.SpecPath(incDir))
	if err != nil {
		return propagate.Coverage{}, nil, err
	}
	tasks, err := store.ReadText(increment.TasksPath(incDir))
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return propagate.Coverage{}, nil, err
	}

	acs, diags := entity.Parser{Path: increment.SpecPath(incDir)}.ParseAcceptanceCriteria(spec)
	set, taskDiags := entity.Parser{Path: increment.TasksPath(incDir)}.ParseTasks(tasks)
	return propagate.Analyze(set, acs), append(diags, taskDiags...), nil
}

func init() {
	rootCmd.AddCommand(coverageCmd)
}
