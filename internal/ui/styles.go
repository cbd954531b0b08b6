// Package ui provides terminal styling for strata CLI output.
//
// Colors follow the Ayu theme with adaptive light/dark variants. Every
// styled element of a sync report maps to an Outcome, so a reopened task
// looks the same in a pull report, a watch pass and a bulk summary.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Outcome is what happened to an entity, a run or a check.
type Outcome int

const (
	OutcomeUpdated  Outcome = iota // checkbox or body written, run succeeded
	OutcomeReopened                // task reopened, soft warning
	OutcomeConflict                // status conflict needing a human
	OutcomeFailed                  // transport or write error
	OutcomeSkipped                 // diagnostic, nothing done
	OutcomeInfo                    // informational only
)

// Ayu palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorOrange = lipgloss.AdaptiveColor{Light: "#fa8d3e", Dark: "#ff8f40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

type outcomeStyle struct {
	style lipgloss.Style
	icon  string
	ascii string
}

var outcomeStyles = map[Outcome]outcomeStyle{
	OutcomeUpdated:  {lipgloss.NewStyle().Foreground(colorGreen), "✓", "+"},
	OutcomeReopened: {lipgloss.NewStyle().Foreground(colorYellow), "↺", "!"},
	OutcomeConflict: {lipgloss.NewStyle().Foreground(colorOrange), "⚠", "!"},
	OutcomeFailed:   {lipgloss.NewStyle().Foreground(colorRed), "✗", "x"},
	OutcomeSkipped:  {lipgloss.NewStyle().Foreground(colorMuted), "-", "-"},
	OutcomeInfo:     {lipgloss.NewStyle().Foreground(colorBlue), "ℹ", "i"},
}

var (
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	accentStyle = lipgloss.NewStyle().Foreground(colorBlue)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
)

// Tree characters for nested report lines.
const (
	TreeChild  = "⎿ "
	TreeLast   = "└─ "
	TreeIndent = "  "
)

const separator = "──────────────────────────────────────────"

func styleFor(o Outcome) outcomeStyle {
	if s, ok := outcomeStyles[o]; ok {
		return s
	}
	return outcomeStyles[OutcomeInfo]
}

// Icon returns the glyph for o, or its ASCII form when emoji are off.
func Icon(o Outcome) string {
	s := styleFor(o)
	if !ShouldUseEmoji() {
		return s.ascii
	}
	return s.icon
}

// RenderIcon renders the icon for o in its outcome color.
func RenderIcon(o Outcome) string {
	return styleFor(o).style.Render(Icon(o))
}

// RenderOutcome renders text in the color of o.
func RenderOutcome(o Outcome, s string) string {
	return styleFor(o).style.Render(s)
}

func RenderMuted(s string) string {
	return mutedStyle.Render(s)
}

func RenderAccent(s string) string {
	return accentStyle.Render(s)
}

// RenderHeader renders a report section header in uppercase.
func RenderHeader(s string) string {
	return headerStyle.Render(strings.ToUpper(s))
}

func RenderSeparator() string {
	return mutedStyle.Render(separator)
}
