package entity

import (
	"strings"
	"time"

	"github.com/steveyegge/strata/internal/timeparsing"
)

// ApplyChecklistState sets the checkbox of every checklist line whose id is in
// updates. Only the mark byte changes; an id with no occurrence is ignored and
// duplicate occurrences are all updated. An already checked "X" stays as is.
func ApplyChecklistState(text string, updates map[string]bool) string {
	if len(updates) == 0 {
		return text
	}
	var buf []byte
	for _, tok := range Lex(text) {
		if tok.Kind != TokenChecklist {
			continue
		}
		want, ok := updates[tok.ID]
		if !ok || want == tok.Checked {
			continue
		}
		if buf == nil {
			buf = []byte(text)
		}
		if want {
			buf[tok.MarkOffset] = 'x'
		} else {
			buf[tok.MarkOffset] = ' '
		}
	}
	if buf == nil {
		return text
	}
	return string(buf)
}

// taskBlock locates a task heading and the tokens that belong to it.
type taskBlock struct {
	heading int // index of the heading token
	end     int // index one past the last block token
}

func findTaskBlock(tokens []Token, id string) (taskBlock, bool) {
	for i, tok := range tokens {
		if tok.Kind != TokenTaskHeading || tok.ID != id {
			continue
		}
		end := i + 1
		for end < len(tokens) && !tokens[end].Kind.IsHeading() {
			end++
		}
		return taskBlock{heading: i, end: end}, true
	}
	return taskBlock{}, false
}

// metadataIndex returns the index of the first metadata token with key, or -1.
func (b taskBlock) metadataIndex(tokens []Token, key string) int {
	for i := b.heading + 1; i < b.end; i++ {
		if tokens[i].Kind == TokenMetadata && strings.EqualFold(tokens[i].Key, key) {
			return i
		}
	}
	return -1
}

// insertionPoint is where a new metadata line goes: after the last metadata
// line of the block, or right after the heading.
func (b taskBlock) insertionPoint(tokens []Token) int {
	at := b.heading
	for i := b.heading + 1; i < b.end; i++ {
		if tokens[i].Kind == TokenMetadata {
			at = i
		}
	}
	return at + 1
}

func newlineStyle(tokens []Token) string {
	for _, t := range tokens {
		if t.Newline != "" {
			return t.Newline
		}
	}
	return "\n"
}

// insertLine inserts raw as a new line at index at.
func insertLine(tokens []Token, at int, raw string) []Token {
	nl := newlineStyle(tokens)
	line := Token{Kind: TokenMetadata, Raw: raw, Newline: nl}
	if at == len(tokens) {
		// Appending after an unterminated final line.
		last := &tokens[len(tokens)-1]
		if last.Newline == "" {
			last.Newline = nl
			line.Newline = ""
		}
	}
	out := make([]Token, 0, len(tokens)+1)
	out = append(out, tokens[:at]...)
	out = append(out, line)
	return append(out, tokens[at:]...)
}

func removeLine(tokens []Token, at int) []Token {
	if at == len(tokens)-1 && tokens[at].Newline == "" && at > 0 {
		// Keep the file's missing final newline.
		tokens[at-1].Newline = ""
	}
	return append(tokens[:at:at], tokens[at+1:]...)
}

func replaceValue(tok *Token, value string) {
	indent := tok.Raw[:len(tok.Raw)-len(strings.TrimLeft(tok.Raw, " \t"))]
	tok.Raw = indent + "**" + tok.Key + "**: " + value
	tok.Value = value
}

// Values written into a **Status** line.
const (
	statusDone    = "[x] completed"
	statusPending = "[ ] pending"
)

// setStatusLine rewrites a **Status** checkbox line of the block, if there is
// one, and reports whether it changed.
func setStatusLine(tokens []Token, block taskBlock, completed bool) bool {
	idx := block.metadataIndex(tokens, KeyStatus)
	if idx < 0 || IsCheckedStatus(tokens[idx].Value) == completed {
		return false
	}
	if completed {
		replaceValue(&tokens[idx], statusDone)
	} else {
		replaceValue(&tokens[idx], statusPending)
	}
	return true
}

// SetTaskCompleted marks a task block done or not done. Blocks carrying a
// **Status** checkbox have that line flipped; other blocks get a
// **Completed**: date line written or removed. It reports whether text
// changed. Text without the task is returned unchanged.
func SetTaskCompleted(text, taskID string, completed bool, date time.Time) (string, bool) {
	tokens := Lex(text)
	block, ok := findTaskBlock(tokens, taskID)
	if !ok {
		return text, false
	}
	idx := block.metadataIndex(tokens, KeyCompleted)
	if block.metadataIndex(tokens, KeyStatus) >= 0 {
		changed := setStatusLine(tokens, block, completed)
		if !completed && idx >= 0 {
			tokens = removeLine(tokens, idx)
			changed = true
		}
		if !changed {
			return text, false
		}
		return Join(tokens), true
	}

	if completed {
		switch {
		case idx >= 0 && IsCompletedValue(tokens[idx].Value):
			return text, false
		case idx >= 0:
			replaceValue(&tokens[idx], timeparsing.FormatDate(date))
		default:
			tokens = insertLine(tokens, block.insertionPoint(tokens), "**"+KeyCompleted+"**: "+timeparsing.FormatDate(date))
		}
		return Join(tokens), true
	}

	if idx < 0 {
		return text, false
	}
	tokens = removeLine(tokens, idx)
	return Join(tokens), true
}

// ReopenTask clears a task's completion and records why in a **Reopened** line.
// An existing **Reopened** line is replaced rather than duplicated.
func ReopenTask(text, taskID string, date time.Time, reason string) (string, bool) {
	tokens := Lex(text)
	block, ok := findTaskBlock(tokens, taskID)
	if !ok {
		return text, false
	}
	setStatusLine(tokens, block, false)
	if idx := block.metadataIndex(tokens, KeyCompleted); idx >= 0 {
		tokens = removeLine(tokens, idx)
		block.end--
	}
	note := timeparsing.FormatDate(date) + " - " + reason
	if idx := block.metadataIndex(tokens, KeyReopened); idx >= 0 {
		replaceValue(&tokens[idx], note)
	} else {
		tokens = insertLine(tokens, block.insertionPoint(tokens), "**"+KeyReopened+"**: "+note)
	}
	out := Join(tokens)
	return out, out != text
}
