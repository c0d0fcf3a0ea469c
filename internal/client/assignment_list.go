package client

import "agt_platform/internal/domain/model"

// AssignmentList is an ordered, most-recent-first view of assignments keyed by id.
// It is never mutated; Merge and Replace return new lists.
type AssignmentList struct {
	items []model.Assignment
}

func NewAssignmentList(items []model.Assignment) AssignmentList {
	return AssignmentList{}.Replace(items)
}

// Merge replaces the entry with a.ID in place, or prepends a when absent.
func (l AssignmentList) Merge(a model.Assignment) AssignmentList {
	for i := range l.items {
		if l.items[i].ID == a.ID {
			next := make([]model.Assignment, len(l.items))
			copy(next, l.items)
			next[i] = a
			return AssignmentList{items: next}
		}
	}
	next := make([]model.Assignment, 0, len(l.items)+1)
	next = append(next, a)
	next = append(next, l.items...)
	return AssignmentList{items: next}
}

// Replace rebuilds the list from a fetched one. Later duplicates of an id are dropped.
func (l AssignmentList) Replace(items []model.Assignment) AssignmentList {
	seen := make(map[string]bool, len(items))
	next := make([]model.Assignment, 0, len(items))
	for _, a := range items {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		next = append(next, a)
	}
	return AssignmentList{items: next}
}

func (l AssignmentList) Get(id string) (model.Assignment, bool) {
	for _, a := range l.items {
		if a.ID == id {
			return a, true
		}
	}
	return model.Assignment{}, false
}

func (l AssignmentList) Len() int { return len(l.items) }

// Items returns a copy in display order.
func (l AssignmentList) Items() []model.Assignment {
	out := make([]model.Assignment, len(l.items))
	copy(out, l.items)
	return out
}
