package types

import (
	"errors"
	"testing"
)

func TestStoryRef(t *testing.T) {
	if Unlinked.IsLinked() {
		t.Error("Unlinked.IsLinked() = true, want false")
	}
	if id, ok := Unlinked.StoryID(); ok || id != "" {
		t.Errorf("Unlinked.StoryID() = (%q, %v), want (\"\", false)", id, ok)
	}
	ref := Linked("US1")
	if id, ok := ref.StoryID(); !ok || id != "US1" {
		t.Errorf("Linked(US1).StoryID() = (%q, %v), want (US1, true)", id, ok)
	}
	if ref.String() != "US1" || Unlinked.String() != "unlinked" {
		t.Errorf("String() = %q / %q", ref.String(), Unlinked.String())
	}
}

func TestTaskSet(t *testing.T) {
	set := NewTaskSet()
	set.Add(&Task{ID: "T-001", Story: Linked("US2")})
	set.Add(&Task{ID: "T-002"})
	set.Add(&Task{ID: "T-003", Story: Linked("US1")})
	set.Add(&Task{ID: "T-004", Story: Linked("US2")})

	if set.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", set.Len())
	}
	if len(set.Unlinked) != 1 || set.Unlinked[0].ID != "T-002" {
		t.Errorf("Unlinked = %v, want [T-002]", set.Unlinked)
	}

	var ids []string
	for _, task := range set.All() {
		ids = append(ids, task.ID)
	}
	want := []string{"T-001", "T-004", "T-003", "T-002"}
	if len(ids) != len(want) {
		t.Fatalf("All() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, ids[i], want[i])
		}
	}

	if set.Find("T-003") == nil || set.Find("T-999") != nil {
		t.Error("Find returned unexpected result")
	}
}

func TestGroupByStory(t *testing.T) {
	acs := []*AcceptanceCriterion{
		{ID: "AC-US2-01", StoryID: "US2", Completed: true},
		{ID: "AC-US1-01", StoryID: "US1", Completed: true},
		{ID: "AC-US1-02", StoryID: "US1"},
		{ID: "", StoryID: ""},
		nil,
	}
	stories := GroupByStory(acs)
	if len(stories) != 2 {
		t.Fatalf("got %d stories, want 2", len(stories))
	}
	if stories[0].ID != "US1" || len(stories[0].ACs) != 2 {
		t.Errorf("stories[0] = %s with %d ACs", stories[0].ID, len(stories[0].ACs))
	}
	if stories[0].Satisfied() {
		t.Error("US1 should not be satisfied")
	}
	if !stories[1].Satisfied() {
		t.Error("US2 should be satisfied")
	}
	if (UserStory{ID: "US9"}).Satisfied() {
		t.Error("story without ACs should never be satisfied")
	}
}

func TestNormalizeStatuses(t *testing.T) {
	tests := []struct {
		in   string
		want IncrementStatus
	}{
		{"Active", IncrementActive},
		{"in-progress", IncrementActive},
		{"done", IncrementCompleted},
		{"on-hold", IncrementPaused},
		{"cancelled", IncrementAbandoned},
		{"planning", IncrementPlanning},
	}
	for _, tt := range tests {
		if got := NormalizeIncrementStatus(tt.in); got != tt.want {
			t.Errorf("NormalizeIncrementStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	ext := map[string]ExternalStatus{
		"open":        ExternalOpen,
		"CLOSED":      ExternalClosed,
		"Done":        ExternalClosed,
		"In Progress": ExternalOpen,
		"":            "",
	}
	for in, want := range ext {
		if got := NormalizeExternalStatus(in); got != want {
			t.Errorf("NormalizeExternalStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSyncResultAddError(t *testing.T) {
	r := NewSyncResult(DirectionPull)
	if !r.Success {
		t.Fatal("new result should be successful")
	}
	r.AddError(errors.New("boom"))
	if r.Success || len(r.Errors) != 1 || r.Errors[0] != "boom" {
		t.Errorf("after AddError: success=%v errors=%v", r.Success, r.Errors)
	}
	r.Conflicts = []Conflict{{Severity: SeverityConflict}, {Severity: SeverityInformational}}
	if r.ConflictCount() != 1 {
		t.Errorf("ConflictCount() = %d, want 1", r.ConflictCount())
	}
}
