package ui

import (
	"fmt"
	"strings"

	"github.com/steveyegge/strata/internal/propagate"
	"github.com/steveyegge/strata/internal/types"
)

const maxMessageWidth = 120

// RenderSyncResult formats a run for the terminal.
func RenderSyncResult(res *types.SyncResult) string {
	var b strings.Builder

	title := fmt.Sprintf("Sync %s", res.Direction)
	if res.DryRun {
		title += " (dry run)"
	}
	icon := RenderIcon(OutcomeUpdated)
	if !res.Success {
		icon = RenderIcon(OutcomeFailed)
	}
	fmt.Fprintf(&b, "%s %s %s\n", icon, RenderHeader(title), RenderMuted(res.Duration.Round(1e6).String()))
	b.WriteString(RenderSeparator())
	b.WriteString("\n")

	counts := []struct {
		label string
		n     int
	}{
		{"ACs updated", res.ACsUpdated},
		{"Tasks updated", res.TasksUpdated},
		{"Tasks reopened", res.TasksReopened},
		{"ACs propagated", res.ACsPropagated},
	}
	for _, c := range counts {
		n := fmt.Sprintf("%d", c.n)
		if c.n > 0 {
			n = RenderAccent(n)
		}
		fmt.Fprintf(&b, "  %-16s %s\n", c.label+":", n)
	}

	if len(res.Changes) > 0 {
		fmt.Fprintf(&b, "\n%s\n", RenderHeader("Changes"))
		for _, c := range res.Changes {
			fmt.Fprintf(&b, "  %s%s\n", TreeChild, c)
		}
	}
	if len(res.Reopened) > 0 {
		fmt.Fprintf(&b, "\n%s\n", RenderHeader("Reopened"))
		for _, id := range res.Reopened {
			fmt.Fprintf(&b, "  %s %s\n", RenderIcon(OutcomeReopened), id)
		}
	}
	if len(res.Satisfied) > 0 {
		fmt.Fprintf(&b, "\n%s %s\n", RenderIcon(OutcomeUpdated), "Satisfied stories: "+strings.Join(res.Satisfied, ", "))
	}
	if len(res.Conflicts) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderConflicts(res.Conflicts))
	}
	if len(res.Diagnostics) > 0 {
		fmt.Fprintf(&b, "\n%s\n", RenderHeader("Skipped blocks"))
		for _, d := range res.Diagnostics {
			fmt.Fprintf(&b, "  %s %s\n", RenderIcon(OutcomeSkipped), RenderMuted(d.String()))
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "%s %s\n", RenderIcon(OutcomeConflict), TruncateSimple(w, maxMessageWidth))
	}
	for _, e := range res.Errors {
		fmt.Fprintf(&b, "%s %s\n", RenderIcon(OutcomeFailed), RenderOutcome(OutcomeFailed, e))
	}
	return b.String()
}

// RenderConflicts lists status conflicts with their recommendations.
func RenderConflicts(conflicts []types.Conflict) string {
	var b strings.Builder
	b.WriteString(RenderHeader("Status conflicts"))
	b.WriteString("\n")
	for _, c := range conflicts {
		icon := RenderIcon(OutcomeInfo)
		if c.IsConflict() {
			icon = RenderIcon(OutcomeConflict)
		}
		fmt.Fprintf(&b, "  %s external=%s local=%s\n", icon, c.External, c.Local)
		fmt.Fprintf(&b, "    %s%s\n", TreeLast, WrapText(c.Message, Width()-8, "       "))
		if c.Recommendation != types.RecommendNone {
			fmt.Fprintf(&b, "    %s%s\n", TreeIndent, RenderMuted("recommendation: "+string(c.Recommendation)))
		}
	}
	return b.String()
}

// RenderCoverage formats the AC coverage report.
func RenderCoverage(cov propagate.Coverage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", RenderHeader("AC coverage"), RenderMuted(fmt.Sprintf("%.0f%%", cov.Percent())))
	b.WriteString(RenderSeparator())
	b.WriteString("\n")

	story := ""
	for _, ac := range cov.ACs {
		if ac.StoryID != story {
			story = ac.StoryID
			fmt.Fprintf(&b, "%s\n", RenderAccent(story))
		}
		icon := RenderIcon(OutcomeSkipped)
		switch {
		case ac.Completed:
			icon = RenderIcon(OutcomeUpdated)
		case len(ac.Tasks) > 0 && ac.CompletedTasks == len(ac.Tasks):
			icon = RenderIcon(OutcomeConflict)
		}
		tasks := RenderMuted("no tasks")
		if len(ac.Tasks) > 0 {
			tasks = fmt.Sprintf("%d/%d tasks (%s)", ac.CompletedTasks, len(ac.Tasks), strings.Join(ac.Tasks, ", "))
		}
		fmt.Fprintf(&b, "  %s %s %s\n", icon, ac.ID, tasks)
	}

	sections := []struct {
		title string
		ids   []string
		warn  bool
	}{
		{"Orphaned ACs", cov.Orphaned, true},
		{"Unknown AC references", cov.Unknown, true},
		{"Checked but incomplete", cov.Inconsistent, true},
		{"Unlinked tasks", cov.UnlinkedTasks, false},
	}
	for _, s := range sections {
		if len(s.ids) == 0 {
			continue
		}
		icon := RenderIcon(OutcomeInfo)
		if s.warn {
			icon = RenderIcon(OutcomeConflict)
		}
		fmt.Fprintf(&b, "\n%s %s: %s\n", icon, s.title, strings.Join(s.ids, ", "))
	}
	return b.String()
}
