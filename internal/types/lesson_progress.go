package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lesson progress statuses.
const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

type LessonProgress struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_lesson,unique" json:"user_id"`
	User              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	LessonID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_lesson,unique" json:"lesson_id"`
	Lesson            *Lesson        `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
	EnrollmentID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	Enrollment        *Enrollment    `gorm:"constraint:OnDelete:CASCADE;foreignKey:EnrollmentID;references:ID" json:"enrollment,omitempty"`
	Status            string         `gorm:"column:status;not null;default:'not_started'" json:"status"`
	VideoWatchedPct   float64        `gorm:"column:video_watched_pct;not null;default:0" json:"video_watched_pct"`
	VideoGateMet      bool           `gorm:"column:video_gate_met;not null;default:false" json:"video_gate_met"`
	TacticsGateMet    bool           `gorm:"column:tactics_gate_met;not null;default:false" json:"tactics_gate_met"`
	AssessmentGateMet bool           `gorm:"column:assessment_gate_met;not null;default:false" json:"assessment_gate_met"`
	LastOpenedAt      *time.Time     `gorm:"column:last_opened_at" json:"last_opened_at,omitempty"`
	StartedAt         *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt       *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	TimeSpentSeconds  int            `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`
	Metadata          datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }
