// Package entity lexes and parses the fixed markdown grammar shared by
// increment, living-doc and tracker bodies, and renders checkbox changes
// back into the source text without disturbing anything else.
package entity

import (
	"strconv"
	"strings"
)

// TokenKind classifies one source line.
type TokenKind int

// Token kinds
const (
	TokenText           TokenKind = iota // inert prose
	TokenBlank                           // empty or whitespace-only line
	TokenFrontmatter                     // line inside a leading YAML frontmatter block
	TokenCode                            // line inside a fenced code block
	TokenHeading                         // any other markdown heading
	TokenStoryHeading                    // "## US-001: ..." heading
	TokenTaskHeading                     // "### T-001: title (P1)"
	TokenBadTaskHeading                  // task heading missing its priority suffix
	TokenChecklist                       // "- [ ] AC-US1-01: ..." or "- [x] T-001: ..."
	TokenMetadata                        // "**Key**: value"
	TokenListItem                        // any other "- item" line
)

var tokenNames = map[TokenKind]string{
	TokenText:           "text",
	TokenBlank:          "blank",
	TokenFrontmatter:    "frontmatter",
	TokenCode:           "code",
	TokenHeading:        "heading",
	TokenStoryHeading:   "story-heading",
	TokenTaskHeading:    "task-heading",
	TokenBadTaskHeading: "bad-task-heading",
	TokenChecklist:      "checklist",
	TokenMetadata:       "metadata",
	TokenListItem:       "list-item",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsHeading reports whether the token ends a task block.
func (k TokenKind) IsHeading() bool {
	switch k {
	case TokenHeading, TokenStoryHeading, TokenTaskHeading, TokenBadTaskHeading:
		return true
	}
	return false
}

// Token is one line of source with its classification and extracted fields.
// Concatenating Raw+Newline over all tokens reproduces the input exactly.
type Token struct {
	Kind    TokenKind
	Line    int    // 1-based
	Offset  int    // byte offset of Raw within the source
	Raw     string // line content without terminator
	Newline string // "\n", "\r\n" or "" for a final unterminated line

	Level int // heading level

	ID       string     // entity id for checklist, task and story headings
	IDKind   EntityKind // kind of ID for checklist tokens
	Title    string     // heading title / checklist description
	Priority int        // task heading priority

	Checked    bool
	MarkOffset int // absolute byte offset of the checkbox mark

	Key   string // metadata key
	Value string // metadata value, list item text
}

// EntityKind is the kind of id recognized by the lexer.
type EntityKind int

// Id kinds
const (
	IDNone EntityKind = iota
	IDAC
	IDTask
)

// Lex splits src into classified line tokens. It never fails: anything the
// grammar does not recognize becomes a text token.
func Lex(src string) []Token {
	l := &lexer{src: src}
	return l.run()
}

type lexer struct {
	src    string
	pos    int
	line   int
	tokens []Token

	inFrontmatter bool
	fence         string
}

func (l *lexer) run() []Token {
	if hasFrontmatter(l.src) {
		l.inFrontmatter = true
	}
	for l.pos < len(l.src) {
		raw, nl := l.next()
		l.tokens = append(l.tokens, l.classify(raw, nl))
	}
	return l.tokens
}

// next consumes one line and returns its content and terminator.
func (l *lexer) next() (string, string) {
	start := l.pos
	end := strings.IndexByte(l.src[start:], '\n')
	l.line++
	if end < 0 {
		l.pos = len(l.src)
		return l.src[start:], ""
	}
	end += start
	l.pos = end + 1
	if end > start && l.src[end-1] == '\r' {
		return l.src[start : end-1], "\r\n"
	}
	return l.src[start:end], "\n"
}

// hasFrontmatter reports whether src opens with a "---" line that a later
// "---" line closes. An unclosed opener is an ordinary line.
func hasFrontmatter(src string) bool {
	var rest string
	switch {
	case strings.HasPrefix(src, "---\n"):
		rest = src[4:]
	case strings.HasPrefix(src, "---\r\n"):
		rest = src[5:]
	default:
		return false
	}
	for rest != "" {
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}
		if strings.TrimRight(line, " \t\r") == "---" {
			return true
		}
	}
	return false
}

func (l *lexer) classify(raw, nl string) Token {
	tok := Token{
		Kind:    TokenText,
		Line:    l.line,
		Offset:  l.pos - len(nl) - len(raw),
		Raw:     raw,
		Newline: nl,
	}

	if l.inFrontmatter {
		tok.Kind = TokenFrontmatter
		if l.line > 1 && strings.TrimRight(raw, " \t") == "---" {
			l.inFrontmatter = false
		}
		return tok
	}

	trimmed := strings.TrimLeft(raw, " \t")

	if l.fence != "" {
		tok.Kind = TokenCode
		if strings.HasPrefix(trimmed, l.fence) {
			l.fence = ""
		}
		return tok
	}
	if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
		l.fence = trimmed[:3]
		tok.Kind = TokenCode
		return tok
	}

	switch {
	case strings.TrimSpace(raw) == "":
		tok.Kind = TokenBlank
	case trimmed[0] == '#':
		lexHeading(&tok, trimmed)
	case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
		lexListItem(&tok, raw, trimmed)
	case strings.HasPrefix(trimmed, "**"):
		lexMetadata(&tok, trimmed)
	}
	return tok
}

// lexHeading handles "#"-prefixed lines.
func lexHeading(tok *Token, s string) {
	level := 0
	for level < len(s) && s[level] == '#' {
		level++
	}
	if level > 6 || level == len(s) || s[level] != ' ' {
		return // "#tag" or "####### x" is prose
	}
	tok.Kind = TokenHeading
	tok.Level = level
	text := strings.TrimSpace(s[level:])
	tok.Title = text

	if id, rest, ok := scanTaskID(text); ok && strings.HasPrefix(rest, ":") {
		tok.ID = id
		title, prio, ok := splitPriority(strings.TrimSpace(rest[1:]))
		if !ok {
			tok.Kind = TokenBadTaskHeading
			tok.Title = strings.TrimSpace(rest[1:])
			return
		}
		tok.Kind = TokenTaskHeading
		tok.Title = title
		tok.Priority = prio
		return
	}

	if level == 2 || level == 3 {
		if id, ok := scanStoryHeading(text); ok {
			tok.Kind = TokenStoryHeading
			tok.ID = id
		}
	}
}

// splitPriority strips a trailing "(P<n>)" suffix.
func splitPriority(s string) (string, int, bool) {
	if !strings.HasSuffix(s, ")") {
		return s, 0, false
	}
	open := strings.LastIndex(s, "(P")
	if open < 0 {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[open+2 : len(s)-1])
	if err != nil || n < 0 {
		return s, 0, false
	}
	return strings.TrimSpace(s[:open]), n, true
}

// scanStoryHeading accepts "US-001: title", "US1 - title" and "User Story: US-001".
func scanStoryHeading(text string) (string, bool) {
	text = strings.TrimPrefix(text, "User Story:")
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "US") {
		return "", false
	}
	i := 2
	if i < len(text) && text[i] == '-' {
		i++
	}
	j := i
	for j < len(text) && isDigit(text[j]) {
		j++
	}
	if j == i {
		return "", false
	}
	if j < len(text) && isAlnum(text[j]) {
		return "", false
	}
	return NormalizeStoryID(text[:j]), true
}

// lexListItem handles "- " lines, recognizing the checklist grammar.
func lexListItem(tok *Token, raw, trimmed string) {
	tok.Kind = TokenListItem
	tok.Value = strings.TrimSpace(trimmed[2:])

	if trimmed[0] != '-' || len(trimmed) < 6 || trimmed[2] != '[' || trimmed[4] != ']' || trimmed[5] != ' ' {
		return
	}
	mark := trimmed[3]
	if mark != ' ' && mark != 'x' && mark != 'X' {
		return
	}
	rest := trimmed[6:]
	id, after, kind := scanEntityID(rest)
	if kind == IDNone || !strings.HasPrefix(after, ":") {
		return
	}
	tok.Kind = TokenChecklist
	tok.ID = id
	tok.IDKind = kind
	tok.Checked = mark != ' '
	tok.Title = strings.TrimSpace(after[1:])
	tok.MarkOffset = tok.Offset + (len(raw) - len(trimmed)) + 3
}

// lexMetadata handles "**Key**: value" lines.
func lexMetadata(tok *Token, s string) {
	end := strings.Index(s[2:], "**")
	if end <= 0 {
		return
	}
	key := s[2 : 2+end]
	rest := s[2+end+2:]
	// Both "**Key**: v" and "**Key:** v" appear in the wild.
	if strings.HasSuffix(key, ":") {
		key = strings.TrimSuffix(key, ":")
	} else if strings.HasPrefix(rest, ":") {
		rest = rest[1:]
	} else {
		return
	}
	tok.Kind = TokenMetadata
	tok.Key = strings.TrimSpace(key)
	tok.Value = strings.TrimSpace(rest)
}

// scanEntityID reads an AC or task id from the start of s.
func scanEntityID(s string) (id, rest string, kind EntityKind) {
	if id, rest, ok := scanACID(s); ok {
		return id, rest, IDAC
	}
	if id, rest, ok := scanTaskID(s); ok {
		return id, rest, IDTask
	}
	return "", s, IDNone
}

// scanACID matches AC-<alnum>-<NN>.
func scanACID(s string) (string, string, bool) {
	if !strings.HasPrefix(s, "AC-") {
		return "", s, false
	}
	i := 3
	j := i
	for j < len(s) && isAlnum(s[j]) {
		j++
	}
	if j == i || j >= len(s) || s[j] != '-' {
		return "", s, false
	}
	k := j + 1
	for k < len(s) && isDigit(s[k]) {
		k++
	}
	if k-(j+1) < 2 || (k < len(s) && isAlnum(s[k])) {
		return "", s, false
	}
	return s[:k], s[k:], true
}

// scanTaskID matches T-<NNN>.
func scanTaskID(s string) (string, string, bool) {
	if !strings.HasPrefix(s, "T-") {
		return "", s, false
	}
	i := 2
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i-2 < 3 || (i < len(s) && isAlnum(s[i])) {
		return "", s, false
	}
	return s[:i], s[i:], true
}

// IsACID reports whether s is exactly an acceptance criterion id.
func IsACID(s string) bool {
	id, rest, ok := scanACID(s)
	return ok && id == s && rest == ""
}

// IsTaskID reports whether s is exactly a task id.
func IsTaskID(s string) bool {
	id, rest, ok := scanTaskID(s)
	return ok && id == s && rest == ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// Join reassembles tokens into source text.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Raw)
		b.WriteString(t.Newline)
	}
	return b.String()
}
