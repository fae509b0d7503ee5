package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Resource kinds a lesson can attach.
const (
	ResourceKindVideo = "video"
	ResourceKindAudio = "audio"
	ResourceKindPDF   = "pdf"
	ResourceKindImage = "image"
	ResourceKindLink  = "link"
)

// Ingest statuses for uploaded resources.
const (
	IngestPending   = "pending"
	IngestRunning   = "running"
	IngestSucceeded = "succeeded"
	IngestFailed    = "failed"
	IngestSkipped   = "skipped"
)

type LessonResource struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"lesson_id"`
	Lesson       *Lesson        `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
	Kind         string         `gorm:"column:kind;not null;index" json:"kind"`
	Title        string         `gorm:"column:title;not null" json:"title"`
	BucketKey    string         `gorm:"column:bucket_key" json:"bucket_key"`
	URL          string         `gorm:"column:url" json:"url"`
	MimeType     string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes    int64          `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	DurationSecs float64        `gorm:"column:duration_secs;not null;default:0" json:"duration_secs"`
	IngestStatus string         `gorm:"column:ingest_status;not null;default:'pending'" json:"ingest_status"`
	IngestError  string         `gorm:"column:ingest_error" json:"ingest_error,omitempty"`
	Metadata     datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LessonResource) TableName() string { return "lesson_resource" }
