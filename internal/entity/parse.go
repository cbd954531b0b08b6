package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/strata/internal/timeparsing"
	"github.com/steveyegge/strata/internal/types"
)

// Metadata keys understood inside a task block.
const (
	KeyAC            = "AC"
	KeyCompleted     = "Completed"
	KeyReopened      = "Reopened"
	KeyStatus        = "Status"
	KeyUserStory     = "User Story"
	KeyFiles         = "Files"
	KeyFilesAffected = "Files Affected"
	KeyOrigin        = "Origin"
)

// notCompletedValues are **Completed** values that mean the task is still open.
var notCompletedValues = map[string]bool{
	"":              true,
	"-":             true,
	"no":            true,
	"false":         true,
	"pending":       true,
	"not completed": true,
	"not yet":       true,
}

// IsCompletedValue reports whether a **Completed** metadata value marks the task done.
func IsCompletedValue(v string) bool {
	return !notCompletedValues[strings.ToLower(strings.TrimSpace(v))]
}

// IsCheckedStatus reports whether a **Status** value such as "[x] completed"
// starts with a checked box.
func IsCheckedStatus(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "[x]") || strings.HasPrefix(v, "[X]")
}

// IDPattern selects which ids ParseChecklist returns.
type IDPattern int

// Checklist id patterns
const (
	PatternAny IDPattern = iota
	PatternAC
	PatternTask
)

func (p IDPattern) matches(kind EntityKind) bool {
	switch p {
	case PatternAC:
		return kind == IDAC
	case PatternTask:
		return kind == IDTask
	default:
		return kind != IDNone
	}
}

// ChecklistEntry is one "- [ ] ID: description" line.
type ChecklistEntry struct {
	ID          string
	Kind        types.EntityKind
	Completed   bool
	Description string
	Line        int
}

// Parser extracts entities from one document. Path only labels diagnostics.
type Parser struct {
	Path string
	Now  func() time.Time
}

func (p Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Parser) diag(line int, format string, args ...interface{}) types.Diagnostic {
	return types.Diagnostic{Path: p.Path, Line: line, Message: fmt.Sprintf(format, args...)}
}

// ParseChecklist returns the checklist entries whose ids match pattern.
func ParseChecklist(text string, pattern IDPattern) []ChecklistEntry {
	var entries []ChecklistEntry
	for _, tok := range Lex(text) {
		if tok.Kind != TokenChecklist || !pattern.matches(tok.IDKind) {
			continue
		}
		entries = append(entries, ChecklistEntry{
			ID:          tok.ID,
			Kind:        kindOf(tok.IDKind),
			Completed:   tok.Checked,
			Description: tok.Title,
			Line:        tok.Line,
		})
	}
	return entries
}

// ChecklistState maps each checklist id to its checked state. The first occurrence wins.
func ChecklistState(text string, pattern IDPattern) map[string]bool {
	state := make(map[string]bool)
	for _, e := range ParseChecklist(text, pattern) {
		if _, seen := state[e.ID]; !seen {
			state[e.ID] = e.Completed
		}
	}
	return state
}

func kindOf(k EntityKind) types.EntityKind {
	if k == IDTask {
		return types.KindTask
	}
	return types.KindAC
}

// ParseAcceptanceCriteria extracts AC checklist lines.
func ParseAcceptanceCriteria(text string) []*types.AcceptanceCriterion {
	acs, _ := Parser{}.ParseAcceptanceCriteria(text)
	return acs
}

// ParseAcceptanceCriteria extracts AC checklist lines, reporting duplicate ids.
func (p Parser) ParseAcceptanceCriteria(text string) ([]*types.AcceptanceCriterion, []types.Diagnostic) {
	var (
		acs   []*types.AcceptanceCriterion
		diags []types.Diagnostic
		seen  = make(map[string]int)
	)
	for _, tok := range Lex(text) {
		if tok.Kind != TokenChecklist || tok.IDKind != IDAC {
			continue
		}
		if first, dup := seen[tok.ID]; dup {
			diags = append(diags, p.diag(tok.Line, "duplicate acceptance criterion %s (first at line %d)", tok.ID, first))
		} else {
			seen[tok.ID] = tok.Line
		}
		acs = append(acs, &types.AcceptanceCriterion{
			ID:          tok.ID,
			StoryID:     StoryFromACID(tok.ID),
			Description: tok.Title,
			Completed:   tok.Checked,
			Line:        tok.Raw,
			LineNumber:  tok.Line,
		})
	}
	return acs, diags
}

// ParseTasks extracts task blocks grouped by User Story.
func ParseTasks(text string) *types.TaskSet {
	set, _ := Parser{}.ParseTasks(text)
	return set
}

// ParseTasks extracts task blocks grouped by User Story. Malformed blocks
// are skipped and reported as diagnostics; the rest of the file still parses.
func (p Parser) ParseTasks(text string) (*types.TaskSet, []types.Diagnostic) {
	tp := &taskParser{Parser: p, set: types.NewTaskSet()}
	for _, tok := range Lex(text) {
		tp.feed(tok)
	}
	tp.finish()
	return tp.set, tp.diags
}

type taskParser struct {
	Parser
	set   *types.TaskSet
	diags []types.Diagnostic

	story         string // enclosing story heading
	cur           *types.Task
	explicitStory string
	inFileList    bool
	seen          map[string]int
}

func (tp *taskParser) feed(tok Token) {
	switch tok.Kind {
	case TokenStoryHeading:
		tp.finish()
		tp.story = tok.ID
	case TokenTaskHeading:
		tp.finish()
		tp.start(tok)
	case TokenBadTaskHeading:
		tp.finish()
		tp.diags = append(tp.diags, tp.diag(tok.Line, "task %s: heading missing priority suffix (P<n>), block skipped", tok.ID))
	case TokenHeading:
		tp.finish()
		if tok.Level <= 2 {
			tp.story = ""
		}
	case TokenMetadata:
		if tp.cur != nil {
			tp.metadata(tok)
		}
	case TokenListItem:
		if tp.cur != nil && tp.inFileList {
			if path := cleanPath(tok.Value); path != "" {
				tp.cur.FilePaths = append(tp.cur.FilePaths, path)
			}
		}
	case TokenBlank:
	default:
		tp.inFileList = false
	}
}

func (tp *taskParser) start(tok Token) {
	if tp.seen == nil {
		tp.seen = make(map[string]int)
	}
	if first, dup := tp.seen[tok.ID]; dup {
		tp.diags = append(tp.diags, tp.diag(tok.Line, "duplicate task %s (first at line %d)", tok.ID, first))
	} else {
		tp.seen[tok.ID] = tok.Line
	}
	tp.cur = &types.Task{
		ID:         tok.ID,
		Title:      tok.Title,
		Priority:   tok.Priority,
		LineNumber: tok.Line,
	}
	tp.explicitStory = ""
	tp.inFileList = false
}

func (tp *taskParser) metadata(tok Token) {
	tp.inFileList = false
	switch strings.ToLower(tok.Key) {
	case "ac", "acs", "acceptance criteria", "satisfies", "satisfies acs":
		tp.cur.Satisfies = append(tp.cur.Satisfies, splitACIDs(tok.Value)...)
	case "completed":
		if !IsCompletedValue(tok.Value) {
			return
		}
		tp.cur.Completed = true
		if t, err := timeparsing.Parse(tok.Value, tp.now()); err == nil {
			tp.cur.CompletedAt = &t
		}
	case "status":
		if IsCheckedStatus(tok.Value) {
			tp.cur.Completed = true
		}
	case "user story", "story":
		if fields := strings.Fields(tok.Value); len(fields) > 0 {
			tp.explicitStory = NormalizeStoryID(strings.Trim(fields[0], "[],"))
		}
	case "files", "files affected", "files modified", "implementation":
		for _, part := range strings.Split(tok.Value, ",") {
			if path := cleanPath(part); path != "" {
				tp.cur.FilePaths = append(tp.cur.FilePaths, path)
			}
		}
		tp.inFileList = true
	}
}

// finish closes the current block and files the task under its story.
func (tp *taskParser) finish() {
	t := tp.cur
	if t == nil {
		return
	}
	tp.cur = nil
	tp.inFileList = false

	switch {
	case tp.explicitStory != "":
		t.Story = types.Linked(tp.explicitStory)
	case tp.story != "":
		t.Story = types.Linked(tp.story)
	case len(t.Satisfies) > 0 && StoryFromACID(t.Satisfies[0]) != "":
		t.Story = types.Linked(StoryFromACID(t.Satisfies[0]))
	default:
		t.Story = types.Unlinked
	}
	tp.set.Add(t)
}

// splitACIDs pulls AC ids out of a metadata value such as "AC-US1-01, AC-US1-02".
func splitACIDs(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '`' || r == '[' || r == ']'
	})
	var ids []string
	for _, f := range fields {
		if IsACID(f) {
			ids = append(ids, f)
		}
	}
	return ids
}

// cleanPath strips markdown decoration and trailing notes from a file reference.
func cleanPath(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "`"); i >= 0 {
		if j := strings.Index(s[i+1:], "`"); j >= 0 {
			return strings.TrimSpace(s[i+1 : i+1+j])
		}
	}
	for _, sep := range []string{" (", " - ", " # "} {
		if i := strings.Index(s, sep); i > 0 {
			s = s[:i]
		}
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "none") || s == "-" || s == "N/A" {
		return ""
	}
	return s
}
