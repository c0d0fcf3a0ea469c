package grader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicGrader(t *testing.T) {
	tests := []struct {
		filename string
		want     float64
	}{
		{"analysis.ipynb", 92},
		{"solution.py", 88},
		{"essay.pdf", 85},
		{"essay.docx", 85},
		{"diagram.PNG", 90},
		{"talk.webm", 87},
		{"notes.md", 80},
	}
	g := NewHeuristicGrader()
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			out, err := g.Grade(context.Background(), tt.filename, strings.NewReader("content"))
			require.NoError(t, err)
			assert.True(t, out.Success)
			assert.Equal(t, tt.want, out.Score)
			assert.NotEmpty(t, out.Feedback)
		})
	}
}

func TestHeuristicGraderEmptyAndCancelled(t *testing.T) {
	g := NewHeuristicGrader()

	out, err := g.Grade(context.Background(), "empty.py", strings.NewReader(""))
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "submission is empty", out.Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Grade(ctx, "solution.py", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
