// Package types defines the entities shared by the three synchronization layers.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Layer identifies one of the three representations kept in sync.
type Layer string

// Layer constants
const (
	LayerExternal   Layer = "external"    // issue tracker (GitHub, Jira)
	LayerLivingDocs Layer = "living-docs" // User Story files
	LayerIncrement  Layer = "increment"   // spec.md + tasks.md, source of truth
)

// IsValid checks if the layer value is one of the three known layers
func (l Layer) IsValid() bool {
	switch l {
	case LayerExternal, LayerLivingDocs, LayerIncrement:
		return true
	}
	return false
}

// EntityKind distinguishes acceptance criteria from tasks.
type EntityKind string

// EntityKind constants
const (
	KindAC   EntityKind = "ac"
	KindTask EntityKind = "task"
)

// AcceptanceCriterion is a checkbox-tracked condition of satisfaction scoped to a User Story.
type AcceptanceCriterion struct {
	ID          string `json:"id"`       // AC-US1-01
	StoryID     string `json:"story_id"` // US1
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Origin      Layer  `json:"origin,omitempty"`
	Line        string `json:"-"` // raw source line, terminator excluded
	LineNumber  int    `json:"line,omitempty"`
}

// StoryRef links a task to its User Story. The zero value is Unlinked.
type StoryRef struct {
	id string
}

// Linked returns a reference to the given User Story.
func Linked(storyID string) StoryRef {
	return StoryRef{id: storyID}
}

// Unlinked is the reference carried by tasks with no User Story ancestor.
var Unlinked = StoryRef{}

// IsLinked reports whether the reference names a User Story.
func (r StoryRef) IsLinked() bool {
	return r.id != ""
}

// StoryID returns the linked story id and true, or "" and false for Unlinked.
func (r StoryRef) StoryID() (string, bool) {
	return r.id, r.id != ""
}

func (r StoryRef) String() string {
	if r.id == "" {
		return "unlinked"
	}
	return r.id
}

// Task is a unit of implementation work, optionally linked to ACs and file evidence.
type Task struct {
	ID          string     `json:"id"` // T-001
	Title       string     `json:"title"`
	Priority    int        `json:"priority"` // No omitempty: P0 is valid
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Satisfies   []string   `json:"satisfies,omitempty"`
	FilePaths   []string   `json:"file_paths,omitempty"`
	Story       StoryRef   `json:"-"`
	LineNumber  int        `json:"line,omitempty"`
}

// SatisfiesAC reports whether the task lists the AC id.
func (t *Task) SatisfiesAC(acID string) bool {
	for _, id := range t.Satisfies {
		if id == acID {
			return true
		}
	}
	return false
}

// TaskSet holds parsed tasks grouped by User Story plus the unlinked bucket.
type TaskSet struct {
	ByStory  map[string][]*Task
	Unlinked []*Task
	// Order lists story ids in order of first appearance.
	Order []string
}

// NewTaskSet returns an empty TaskSet.
func NewTaskSet() *TaskSet {
	return &TaskSet{ByStory: make(map[string][]*Task)}
}

// Add files the task under its story, or the unlinked bucket.
func (s *TaskSet) Add(t *Task) {
	storyID, ok := t.Story.StoryID()
	if !ok {
		s.Unlinked = append(s.Unlinked, t)
		return
	}
	if _, seen := s.ByStory[storyID]; !seen {
		s.Order = append(s.Order, storyID)
	}
	s.ByStory[storyID] = append(s.ByStory[storyID], t)
}

// Linked returns all tasks that have a User Story, in story order.
func (s *TaskSet) Linked() []*Task {
	var out []*Task
	for _, storyID := range s.Order {
		out = append(out, s.ByStory[storyID]...)
	}
	return out
}

// All returns every task, linked first, then unlinked.
func (s *TaskSet) All() []*Task {
	return append(s.Linked(), s.Unlinked...)
}

// Find returns the task with the given id or nil.
func (s *TaskSet) Find(id string) *Task {
	for _, t := range s.All() {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Len returns the number of tasks in the set.
func (s *TaskSet) Len() int {
	n := len(s.Unlinked)
	for _, tasks := range s.ByStory {
		n += len(tasks)
	}
	return n
}

// UserStory is a computed grouping of ACs sharing a story prefix. It is never persisted.
type UserStory struct {
	ID  string
	ACs []*AcceptanceCriterion
}

// Satisfied reports whether the story has ACs and all of them are completed.
func (u UserStory) Satisfied() bool {
	if len(u.ACs) == 0 {
		return false
	}
	for _, ac := range u.ACs {
		if !ac.Completed {
			return false
		}
	}
	return true
}

// GroupByStory groups ACs by their StoryID. Stories are sorted by id.
// ACs without a story id are dropped.
func GroupByStory(acs []*AcceptanceCriterion) []UserStory {
	byID := make(map[string]*UserStory)
	for _, ac := range acs {
		if ac == nil || ac.StoryID == "" {
			continue
		}
		us, ok := byID[ac.StoryID]
		if !ok {
			us = &UserStory{ID: ac.StoryID}
			byID[ac.StoryID] = us
		}
		us.ACs = append(us.ACs, ac)
	}
	stories := make([]UserStory, 0, len(byID))
	for _, us := range byID {
		stories = append(stories, *us)
	}
	sort.Slice(stories, func(i, j int) bool { return stories[i].ID < stories[j].ID })
	return stories
}

// SyncChange is a detected completion delta for one entity.
type SyncChange struct {
	Kind      EntityKind `json:"kind"`
	ID        string     `json:"id"`
	Completed bool       `json:"completed"`
	Origin    Layer      `json:"origin"`
	Targets   []Layer    `json:"targets"`
}

func (c SyncChange) String() string {
	mark := " "
	if c.Completed {
		mark = "x"
	}
	targets := make([]string, len(c.Targets))
	for i, t := range c.Targets {
		targets[i] = string(t)
	}
	return fmt.Sprintf("[%s] %s (%s -> %s)", mark, c.ID, c.Origin, strings.Join(targets, ", "))
}

// Diagnostic records a malformed block that was skipped during parsing.
type Diagnostic struct {
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Message)
}

// Origin records which side first authored a living-doc User Story.
// Once set it never changes.
type Origin string

// Origin constants
const (
	OriginInternal Origin = "internal" // created from an increment
	OriginExternal Origin = "external" // imported from the tracker
)

// OriginFor returns the origin a sync initiated from layer would stamp.
func OriginFor(initiator Layer) Origin {
	if initiator == LayerExternal {
		return OriginExternal
	}
	return OriginInternal
}
