package model

import (
	"time"
)

type SectionStatus string
type LessonStatus string

const (
	SectionPrivate SectionStatus = "private"
	SectionPublic  SectionStatus = "public"

	LessonPrivate LessonStatus = "private"
	LessonPublic  LessonStatus = "public"
	LessonPreview LessonStatus = "preview" // visible without course access
)

type Course struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	Name        string          `json:"name" gorm:"type:text;not null;column:name"`
	Slug        string          `json:"slug" gorm:"type:text;not null;uniqueIndex;column:slug"`
	Description string          `json:"description" gorm:"type:text;not null;default:'';column:description"`
	CreatedAt   time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	Sections    []CourseSection `json:"sections,omitempty" gorm:"foreignKey:CourseID"`
}

func (Course) TableName() string { return "courses" }

type CourseSection struct {
	ID        string        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	CourseID  string        `json:"course_id" gorm:"type:uuid;not null;column:course_id"`
	Name      string        `json:"name" gorm:"type:text;not null;column:name"`
	Status    SectionStatus `json:"status" gorm:"type:text;not null;default:private;column:status"`
	Order     int           `json:"order" gorm:"not null;column:order"`
	CreatedAt time.Time     `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	Lessons   []Lesson      `json:"lessons,omitempty" gorm:"foreignKey:SectionID"`
}

func (CourseSection) TableName() string { return "course_sections" }

type Lesson struct {
	ID          string       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	SectionID   string       `json:"section_id" gorm:"type:uuid;not null;column:section_id"`
	Name        string       `json:"name" gorm:"type:text;not null;column:name"`
	Description *string      `json:"description,omitempty" gorm:"type:text;column:description"`
	VideoID     *string      `json:"video_id,omitempty" gorm:"type:text;column:video_id"`
	Status      LessonStatus `json:"status" gorm:"type:text;not null;default:private;column:status"`
	Order       int          `json:"order" gorm:"not null;column:order"`
	CreatedAt   time.Time    `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Lesson) TableName() string { return "lessons" }

type UserCourseAccess struct {
	UserID    string    `json:"user_id" gorm:"type:uuid;primaryKey;column:user_id"`
	CourseID  string    `json:"course_id" gorm:"type:uuid;primaryKey;column:course_id"`
	Role      string    `json:"role" gorm:"type:text;not null;default:user;column:role"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (UserCourseAccess) TableName() string { return "user_course_access" }

type UserLessonComplete struct {
	UserID    string    `json:"user_id" gorm:"type:uuid;primaryKey;column:user_id"`
	LessonID  string    `json:"lesson_id" gorm:"type:uuid;primaryKey;column:lesson_id"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (UserLessonComplete) TableName() string { return "user_lesson_complete" }
