package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrollment statuses.
const (
	EnrollmentActive    = "active"
	EnrollmentPaused    = "paused"
	EnrollmentCompleted = "completed"
	EnrollmentCanceled  = "canceled"
)

type Enrollment struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_program,unique" json:"user_id"`
	User        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ProgramID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_program,unique" json:"program_id"`
	Program     *Program       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
	Status      string         `gorm:"column:status;not null;default:'active';index" json:"status"`
	StartedAt   time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	PausedAt    *time.Time     `gorm:"column:paused_at" json:"paused_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CanceledAt  *time.Time     `gorm:"column:canceled_at" json:"canceled_at,omitempty"`
	ProgressPct float64        `gorm:"column:progress_pct;not null;default:0" json:"progress_pct"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Enrollment) TableName() string { return "enrollment" }
