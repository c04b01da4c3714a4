package hub

import (
	"strings"

	"educahub/internal/model"
)

// Record is an item a ListController can key, filter and replace.
type Record interface {
	RecordID() model.ID
	RecordTitle() string
	InCategory(category string) bool
}

// Matches reports whether r passes both predicates of f.
func Matches[T Record](r T, f model.Filter) bool {
	if f.Title != "" && !strings.Contains(strings.ToLower(r.RecordTitle()), strings.ToLower(f.Title)) {
		return false
	}
	if f.Category != "" && !r.InCategory(f.Category) {
		return false
	}
	return true
}

// ApplyFilter returns the items of source that match f, in source order.
// source is never modified; the result is always a fresh slice.
func ApplyFilter[T Record](source []T, f model.Filter) []T {
	out := make([]T, 0, len(source))
	for _, r := range source {
		if Matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}
