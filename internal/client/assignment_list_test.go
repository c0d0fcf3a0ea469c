package client

import (
	"testing"

	"agt_platform/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func ids(l AssignmentList) []string {
	out := make([]string, 0, l.Len())
	for _, a := range l.Items() {
		out = append(out, a.ID)
	}
	return out
}

func TestAssignmentListMerge(t *testing.T) {
	base := NewAssignmentList([]model.Assignment{
		{ID: "c", Status: model.StatusUploaded},
		{ID: "b", Status: model.StatusGrading},
		{ID: "a", Status: model.StatusGraded},
	})

	tests := []struct {
		name    string
		in      model.Assignment
		wantIDs []string
	}{
		{"replace keeps position", model.Assignment{ID: "b", Status: model.StatusGraded}, []string{"c", "b", "a"}},
		{"new entry goes first", model.Assignment{ID: "d", Status: model.StatusUploaded}, []string{"d", "c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := base.Merge(tt.in)
			assert.Equal(t, tt.wantIDs, ids(merged))

			got, ok := merged.Get(tt.in.ID)
			assert.True(t, ok)
			assert.Equal(t, tt.in.Status, got.Status)

			// the receiver is untouched
			assert.Equal(t, []string{"c", "b", "a"}, ids(base))
			b, _ := base.Get("b")
			assert.Equal(t, model.StatusGrading, b.Status)
		})
	}
}

func TestAssignmentListMergeOnEmpty(t *testing.T) {
	var l AssignmentList
	l = l.Merge(model.Assignment{ID: "a"})
	assert.Equal(t, []string{"a"}, ids(l))
}

func TestAssignmentListReplace(t *testing.T) {
	l := NewAssignmentList([]model.Assignment{{ID: "x"}})
	l = l.Replace([]model.Assignment{{ID: "b"}, {ID: "a"}, {ID: "b", Status: model.StatusFailed}})
	assert.Equal(t, []string{"b", "a"}, ids(l))
	b, _ := l.Get("b")
	assert.Empty(t, b.Status)

	_, ok := l.Get("x")
	assert.False(t, ok)
}

func TestAssignmentListItemsIsACopy(t *testing.T) {
	l := NewAssignmentList([]model.Assignment{{ID: "a", Status: model.StatusUploaded}})
	items := l.Items()
	items[0].Status = model.StatusFailed

	a, _ := l.Get("a")
	assert.Equal(t, model.StatusUploaded, a.Status)
}
