package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Lesson struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PhaseID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"phase_id"`
	Phase            *Phase         `gorm:"constraint:OnDelete:CASCADE;foreignKey:PhaseID;references:ID" json:"phase,omitempty"`
	ProgramID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	Program          *Program       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
	Position         int            `gorm:"column:position;not null" json:"position"`
	Title            string         `gorm:"column:title;not null" json:"title"`
	Summary          string         `gorm:"column:summary" json:"summary"`
	Body             string         `gorm:"column:body;type:text" json:"body"`
	VideoRequiredPct float64        `gorm:"column:video_required_pct;not null;default:80" json:"video_required_pct"`
	EstimatedMinutes int            `gorm:"column:estimated_minutes;not null;default:0" json:"estimated_minutes"`
	DripKind         *string        `gorm:"column:drip_kind" json:"drip_kind,omitempty"`
	DripConfig       datatypes.JSON `gorm:"type:jsonb;column:drip_config" json:"drip_config"`
	Metadata         datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Lesson) TableName() string { return "lesson" }
