package model

import (
	"path/filepath"
	"strings"
	"time"
)

type AssignmentStatus string

const (
	StatusUploaded AssignmentStatus = "uploaded"
	StatusGrading  AssignmentStatus = "grading"
	StatusGraded   AssignmentStatus = "graded"
	StatusFailed   AssignmentStatus = "failed"
)

const (
	MinGrade = 0.0
	MaxGrade = 100.0
)

// IsTerminal reports whether no further transition is possible.
func (s AssignmentStatus) IsTerminal() bool {
	return s == StatusGraded || s == StatusFailed
}

// CanTransitionTo encodes uploaded -> grading -> {graded | failed}.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	switch s {
	case StatusUploaded:
		return next == StatusGrading
	case StatusGrading:
		return next == StatusGraded || next == StatusFailed
	default:
		return false
	}
}

func (s AssignmentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusGrading, StatusGraded, StatusFailed:
		return true
	}
	return false
}

type Assignment struct {
	ID             string           `json:"id"`
	Filename       string           `json:"filename"`
	StorageKey     string           `json:"-"`
	ContentType    string           `json:"content_type,omitempty"`
	SizeBytes      int64            `json:"size_bytes,omitempty"`
	UploadedBy     *string          `json:"uploaded_by,omitempty"`
	Status         AssignmentStatus `json:"status"`
	SuggestedGrade *float64         `json:"suggested_grade,omitempty"` // only when graded
	Feedback       *string          `json:"feedback,omitempty"`        // only when graded
	Error          *string          `json:"error,omitempty"`           // only when failed
	GradingStarted *time.Time       `json:"grading_started_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Modality groups uploads by how they are graded.
type Modality string

const (
	ModalityNotebook Modality = "notebook"
	ModalityCode     Modality = "code"
	ModalityDocument Modality = "document"
	ModalityImage    Modality = "image"
	ModalityVideo    Modality = "video"
	ModalityText     Modality = "text"
)

var allowedExtensions = map[string]Modality{
	".ipynb": ModalityNotebook,
	".py":    ModalityCode,
	".pdf":   ModalityDocument,
	".docx":  ModalityDocument,
	".png":   ModalityImage,
	".jpg":   ModalityImage,
	".jpeg":  ModalityImage,
	".webp":  ModalityImage,
	".mp4":   ModalityVideo,
	".mov":   ModalityVideo,
	".webm":  ModalityVideo,
	".txt":   ModalityText,
	".md":    ModalityText,
	".csv":   ModalityText,
	".json":  ModalityText,
}

// ModalityOf returns the modality for filename and false when the extension is not accepted.
func ModalityOf(filename string) (Modality, bool) {
	m, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return m, ok
}
