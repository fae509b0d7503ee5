package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types appended by the progress and enrollment services. The event
// log is append-only; consumers key off Type and the nullable refs.
const (
	EventLessonOpened       = "lesson_opened"
	EventVideoProgress      = "video_progress"
	EventTacticCompleted    = "tactic_completed"
	EventTacticUncompleted  = "tactic_uncompleted"
	EventAssessmentSubmit   = "assessment_submitted"
	EventLessonCompleted    = "lesson_completed"
	EventProgramCompleted   = "program_completed"
	EventContentUnlocked    = "content_unlocked"
	EventEnrollmentCreated  = "enrollment_created"
	EventEnrollmentPaused   = "enrollment_paused"
	EventEnrollmentResumed  = "enrollment_resumed"
	EventEnrollmentCanceled = "enrollment_canceled"
	EventCertificateIssued  = "certificate_issued"
)

type UserEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ProgramID *uuid.UUID     `gorm:"type:uuid;index" json:"program_id,omitempty"`
	Program   *Program       `gorm:"constraint:OnDelete:SET NULL;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
	LessonID  *uuid.UUID     `gorm:"type:uuid;index" json:"lesson_id,omitempty"`
	Lesson    *Lesson        `gorm:"constraint:OnDelete:SET NULL;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
	Type      string         `gorm:"column:type;not null;index" json:"type"`
	Data      datatypes.JSON `gorm:"type:jsonb;column:data" json:"data"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserEvent) TableName() string { return "user_event" }
