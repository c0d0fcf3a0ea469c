package model

import (
	"fmt"
	"math"
)

// GradingOutcome is what a grading backend reports for one assignment.
type GradingOutcome struct {
	Success  bool    `json:"success"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// GradingResultPayload is the body of the grading callback.
type GradingResultPayload struct {
	AssignmentID string `json:"assignment_id"`
	GradingOutcome
}

// Resolution is the terminal state an outcome resolves to.
type Resolution struct {
	Status   AssignmentStatus
	Grade    *float64
	Feedback *string
	Error    *string
}

// Resolve maps an outcome onto graded or failed. A success whose score is not a
// finite number in [MinGrade, MaxGrade] resolves to failed.
func (o GradingOutcome) Resolve() Resolution {
	if !o.Success {
		msg := o.Error
		if msg == "" {
			msg = "grading backend reported an unspecified error"
		}
		msg = "Grading failed: " + msg
		return Resolution{Status: StatusFailed, Error: &msg}
	}
	if math.IsNaN(o.Score) || math.IsInf(o.Score, 0) || o.Score < MinGrade || o.Score > MaxGrade {
		msg := fmt.Sprintf("Grading failed: score %v outside [%v, %v]", o.Score, MinGrade, MaxGrade)
		return Resolution{Status: StatusFailed, Error: &msg}
	}
	grade := o.Score
	feedback := o.Feedback
	return Resolution{Status: StatusGraded, Grade: &grade, Feedback: &feedback}
}
