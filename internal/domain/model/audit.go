package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AuditGradingStarted  = "assignment.grading_started"
	AuditGradingRecorded = "assignment.grading_recorded"
	AuditGradingTimedOut = "assignment.grading_timed_out"
	AuditRoleChanged     = "user.role_changed"
	AuditUserDeleted     = "user.deleted"
	AuditCourseCreated   = "course.created"
	AuditAccessGranted   = "course.access_granted"

	AuditTargetAssignment = "assignment"
	AuditTargetUser       = "user"
	AuditTargetCourse     = "course"
)

type AuditLog struct {
	ID            string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	ActorUserID   *string        `json:"actor_user_id,omitempty" gorm:"type:uuid;column:actor_user_id"`
	Action        string         `json:"action" gorm:"type:text;not null;column:action"`
	TargetType    string         `json:"target_type" gorm:"type:text;not null;column:target_type"`
	TargetID      string         `json:"target_id" gorm:"type:text;not null;column:target_id"`
	EventMetadata datatypes.JSON `json:"event_metadata" gorm:"type:jsonb;not null;default:'{}';column:event_metadata"`
	CreatedAt     time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (AuditLog) TableName() string { return "audit_logs" }
