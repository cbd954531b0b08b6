package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func skipOnTerminal(t *testing.T) {
	t.Helper()
	if IsTerminal() {
		t.Skip("stdout is a terminal")
	}
}

func TestShouldUseColorPrecedence(t *testing.T) {
	skipOnTerminal(t)

	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"no env on a pipe", nil, false},
		{"CLICOLOR_FORCE on a pipe", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"CLICOLOR_FORCE=0 is not forcing", map[string]string{"CLICOLOR_FORCE": "0"}, false},
		{"NO_COLOR beats CLICOLOR_FORCE", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"empty NO_COLOR still beats CLICOLOR_FORCE", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "1"}, false},
		{"CLICOLOR=0 beats CLICOLOR_FORCE", map[string]string{"CLICOLOR": "0", "CLICOLOR_FORCE": "1"}, false},
		{"CLICOLOR=1 alone does not force", map[string]string{"CLICOLOR": "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
				unsetEnv(t, k)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyColorProfile(t *testing.T) {
	skipOnTerminal(t)
	orig := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(orig) })

	unsetEnv(t, "CLICOLOR")
	unsetEnv(t, "CLICOLOR_FORCE")
	t.Setenv("NO_COLOR", "1")
	applyColorProfile()
	if got := lipgloss.ColorProfile(); got != termenv.Ascii {
		t.Fatalf("profile with NO_COLOR = %v, want Ascii", got)
	}
	if out := RenderOutcome(OutcomeFailed, "boom"); out != "boom" {
		t.Errorf("RenderOutcome with Ascii profile = %q, want plain text", out)
	}

	unsetEnv(t, "NO_COLOR")
	t.Setenv("CLICOLOR_FORCE", "1")
	applyColorProfile()
	if got := lipgloss.ColorProfile(); got != termenv.ANSI {
		t.Fatalf("profile with CLICOLOR_FORCE = %v, want ANSI", got)
	}
	if out := RenderOutcome(OutcomeFailed, "boom"); !strings.Contains(out, "\x1b[") {
		t.Errorf("RenderOutcome with forced color = %q, want an escape sequence", out)
	}
}

func TestWidthFallsBackOffTerminal(t *testing.T) {
	skipOnTerminal(t)
	if got := Width(); got != DefaultWidth {
		t.Errorf("Width() = %d, want DefaultWidth (%d)", got, DefaultWidth)
	}
}

func TestIconFallsBackToASCII(t *testing.T) {
	t.Setenv("STRATA_NO_EMOJI", "1")
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeUpdated, "+"},
		{OutcomeReopened, "!"},
		{OutcomeConflict, "!"},
		{OutcomeFailed, "x"},
		{OutcomeSkipped, "-"},
		{Outcome(99), "i"},
	}
	for _, tt := range tests {
		if got := Icon(tt.outcome); got != tt.want {
			t.Errorf("Icon(%d) = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}
