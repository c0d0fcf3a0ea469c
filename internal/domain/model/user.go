package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser       = "user"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Values written over a user's profile when the account is deleted upstream.
const (
	DeletedEmail      = "redacted@deleted.com"
	DeletedName       = "Deleted User"
	DeletedExternalID = "deleted"
)

// NormalizeRole folds provider aliases onto internal roles. ok is false for unknown roles.
func NormalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleUser, "student":
		return RoleUser, true
	case RoleInstructor, "teacher":
		return RoleInstructor, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// CanAccessAdminPage gates the staff dashboards.
func CanAccessAdminPage(role string) bool {
	return role == RoleAdmin || role == RoleInstructor
}

type User struct {
	ID         string         `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	ExternalID string         `json:"external_id" gorm:"type:text;not null;column:external_id"`
	Email      string         `json:"email" gorm:"type:text;not null;column:email"`
	Name       string         `json:"name" gorm:"type:text;not null;column:name"`
	ImageURL   *string        `json:"image_url,omitempty" gorm:"type:text;column:image_url"`
	Role       string         `json:"role" gorm:"type:text;not null;default:user;column:role"`
	CreatedAt  time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`
}

func (User) TableName() string { return "users" }
