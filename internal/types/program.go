package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Program struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_org_program_slug,unique" json:"organization_id"`
	Organization      *Organization  `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	Slug              string         `gorm:"column:slug;not null;index:idx_org_program_slug,unique" json:"slug"`
	Summary           string         `gorm:"column:summary" json:"summary"`
	Description       string         `gorm:"column:description" json:"description"`
	CoverBucketKey    string         `gorm:"column:cover_bucket_key" json:"cover_bucket_key"`
	CoverURL          string         `gorm:"column:cover_url" json:"cover_url"`
	Published         bool           `gorm:"column:published;not null;default:false" json:"published"`
	PublishedAt       *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	SequentialLessons bool           `gorm:"column:sequential_lessons;not null;default:false" json:"sequential_lessons"`
	Metadata          datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Program) TableName() string { return "program" }
