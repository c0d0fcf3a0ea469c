package model

type CourseProgress struct {
	CourseID         string  `json:"course_id"`
	UserID           string  `json:"user_id"`
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	Percent          float64 `json:"percent"`
}

func NewCourseProgress(courseID, userID string, completed, total int) CourseProgress {
	p := CourseProgress{CourseID: courseID, UserID: userID, CompletedLessons: completed, TotalLessons: total}
	if total > 0 {
		p.Percent = float64(completed) * 100 / float64(total)
	}
	return p
}
