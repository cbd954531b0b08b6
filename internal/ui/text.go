package ui

import (
	"strings"
	"unicode/utf8"
)

// DefaultWidth is the wrap width used when the terminal size is unknown.
const DefaultWidth = 80

// TruncateSimple cuts text to maxLen runes with a "..." suffix.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// WrapText wraps text at word boundaries to fit within maxWidth, keeping
// existing line breaks. Continuation lines are prefixed with indent.
func WrapText(text string, maxWidth int, indent string) string {
	if maxWidth <= 0 {
		maxWidth = DefaultWidth
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, maxWidth, indent)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, maxWidth int, indent string) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}

	var b strings.Builder
	width := 0
	for _, word := range strings.Fields(line) {
		n := utf8.RuneCountInString(word)
		switch {
		case width == 0:
			// First word goes in even when too long.
			b.WriteString(word)
			width = n
		case width+1+n <= maxWidth:
			b.WriteString(" ")
			b.WriteString(word)
			width += 1 + n
		default:
			b.WriteString("\n")
			b.WriteString(indent)
			b.WriteString(word)
			width = utf8.RuneCountInString(indent) + n
		}
	}
	return b.String()
}
