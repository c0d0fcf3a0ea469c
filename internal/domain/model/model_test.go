package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentStatusTransitions(t *testing.T) {
	all := []AssignmentStatus{StatusUploaded, StatusGrading, StatusGraded, StatusFailed}
	allowed := map[AssignmentStatus][]AssignmentStatus{
		StatusUploaded: {StatusGrading},
		StatusGrading:  {StatusGraded, StatusFailed},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusGraded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusGrading.IsTerminal())
	assert.False(t, AssignmentStatus("archived").Valid())
}

func TestGradingOutcomeResolve(t *testing.T) {
	tests := []struct {
		name       string
		outcome    GradingOutcome
		wantStatus AssignmentStatus
		wantGrade  *float64
	}{
		{name: "in range", outcome: GradingOutcome{Success: true, Score: 87, Feedback: "Good"}, wantStatus: StatusGraded, wantGrade: ptr(87)},
		{name: "lower bound", outcome: GradingOutcome{Success: true, Score: 0}, wantStatus: StatusGraded, wantGrade: ptr(0)},
		{name: "upper bound", outcome: GradingOutcome{Success: true, Score: 100}, wantStatus: StatusGraded, wantGrade: ptr(100)},
		{name: "above range", outcome: GradingOutcome{Success: true, Score: 100.5}, wantStatus: StatusFailed},
		{name: "negative", outcome: GradingOutcome{Success: true, Score: -1}, wantStatus: StatusFailed},
		{name: "nan", outcome: GradingOutcome{Success: true, Score: math.NaN()}, wantStatus: StatusFailed},
		{name: "inf", outcome: GradingOutcome{Success: true, Score: math.Inf(1)}, wantStatus: StatusFailed},
		{name: "backend error", outcome: GradingOutcome{Success: false, Error: "model offline"}, wantStatus: StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.outcome.Resolve()
			assert.Equal(t, tt.wantStatus, res.Status)
			if tt.wantGrade == nil {
				assert.Nil(t, res.Grade)
				assert.Nil(t, res.Feedback)
				require.NotNil(t, res.Error)
				assert.Contains(t, *res.Error, "Grading failed")
				return
			}
			require.NotNil(t, res.Grade)
			assert.Equal(t, *tt.wantGrade, *res.Grade)
			assert.NotNil(t, res.Feedback)
			assert.Nil(t, res.Error)
		})
	}
}

func TestModalityOf(t *testing.T) {
	m, ok := ModalityOf("Essay.DOCX")
	assert.True(t, ok)
	assert.Equal(t, ModalityDocument, m)

	m, ok = ModalityOf("notebook.ipynb")
	assert.True(t, ok)
	assert.Equal(t, ModalityNotebook, m)

	_, ok = ModalityOf("malware.exe")
	assert.False(t, ok)
	_, ok = ModalityOf("README")
	assert.False(t, ok)
}

func TestNormalizeRole(t *testing.T) {
	tests := map[string]string{
		"student":    RoleUser,
		"user":       RoleUser,
		"Teacher":    RoleInstructor,
		"instructor": RoleInstructor,
		"admin":      RoleAdmin,
	}
	for in, want := range tests {
		got, ok := NormalizeRole(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeRole("superuser")
	assert.False(t, ok)

	assert.True(t, CanAccessAdminPage(RoleInstructor))
	assert.False(t, CanAccessAdminPage(RoleUser))
}

func TestNewCourseProgress(t *testing.T) {
	p := NewCourseProgress("c1", "u1", 1, 4)
	assert.Equal(t, 25.0, p.Percent)
	assert.Zero(t, NewCourseProgress("c1", "u1", 0, 0).Percent)
}

func ptr(f float64) *float64 { return &f }
