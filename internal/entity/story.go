package entity

import (
	"strconv"
	"strings"
)

// NormalizeStoryID canonicalizes User Story ids: "US-001", "us1" and "US01" all become "US1".
// Ids that are not US-numbered are returned trimmed and otherwise untouched.
func NormalizeStoryID(id string) string {
	id = strings.TrimSpace(id)
	upper := strings.ToUpper(id)
	if !strings.HasPrefix(upper, "US") {
		return id
	}
	digits := strings.TrimPrefix(upper[2:], "-")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 || digits == "" {
		return id
	}
	return "US" + strconv.Itoa(n)
}

// StoryFromACID extracts the story segment of an AC id: AC-US1-01 is US1.
func StoryFromACID(acID string) string {
	if !IsACID(acID) {
		return ""
	}
	rest := strings.TrimPrefix(acID, "AC-")
	i := strings.LastIndexByte(rest, '-')
	if i <= 0 {
		return ""
	}
	return NormalizeStoryID(rest[:i])
}
