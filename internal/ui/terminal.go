package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func init() {
	applyColorProfile()
}

// applyColorProfile strips color when it is disabled and keeps ANSI color
// when CLICOLOR_FORCE asks for it on a non-terminal.
func applyColorProfile() {
	switch {
	case !ShouldUseColor():
		lipgloss.SetColorProfile(termenv.Ascii)
	case !IsTerminal():
		lipgloss.SetColorProfile(termenv.ANSI)
	}
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions, falling
// back to whether stdout is a terminal.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons may be printed.
func ShouldUseEmoji() bool {
	if os.Getenv("STRATA_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// Width returns the terminal width, or DefaultWidth when stdout is not a
// terminal.
func Width() int {
	if !IsTerminal() {
		return DefaultWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}
