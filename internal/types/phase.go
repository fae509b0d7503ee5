package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Drip kinds decide when a phase (or a lesson overriding its phase)
// becomes available to an enrolled user.
const (
	DripImmediate         = "immediate"
	DripOnDate            = "on_date"
	DripAfterEnrollment   = "after_enrollment"
	DripAfterPrerequisite = "after_prerequisite"
	DripHybrid            = "hybrid"
)

type Phase struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	Program    *Program       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
	Position   int            `gorm:"column:position;not null" json:"position"`
	Title      string         `gorm:"column:title;not null" json:"title"`
	Summary    string         `gorm:"column:summary" json:"summary"`
	DripKind   string         `gorm:"column:drip_kind;not null;default:'immediate'" json:"drip_kind"`
	DripConfig datatypes.JSON `gorm:"type:jsonb;column:drip_config" json:"drip_config"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Phase) TableName() string { return "phase" }
