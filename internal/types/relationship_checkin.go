package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelationshipCheckin scores connection and communication 1..5 for a
// partner on a given day.
type RelationshipCheckin struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	PartnerName   string         `gorm:"column:partner_name;not null" json:"partner_name"`
	CheckinDate   string         `gorm:"column:checkin_date;not null" json:"checkin_date"`
	Connection    int            `gorm:"column:connection;not null;default:0" json:"connection"`
	Communication int            `gorm:"column:communication;not null;default:0" json:"communication"`
	Notes         string         `gorm:"column:notes" json:"notes"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RelationshipCheckin) TableName() string { return "relationship_checkin" }
