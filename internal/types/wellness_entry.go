package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WellnessEntry is one per user per calendar day. Mood, energy and stress
// are 1..5, sleep is hours.
type WellnessEntry struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_entry_date,unique" json:"user_id"`
	User       *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	EntryDate  string         `gorm:"column:entry_date;not null;index:idx_user_entry_date,unique" json:"entry_date"`
	Mood       int            `gorm:"column:mood;not null;default:0" json:"mood"`
	Energy     int            `gorm:"column:energy;not null;default:0" json:"energy"`
	Stress     int            `gorm:"column:stress;not null;default:0" json:"stress"`
	SleepHours float64        `gorm:"column:sleep_hours;not null;default:0" json:"sleep_hours"`
	Gratitude  string         `gorm:"column:gratitude" json:"gratitude"`
	Notes      string         `gorm:"column:notes" json:"notes"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (WellnessEntry) TableName() string { return "wellness_entry" }
