package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Property struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User                 *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Nickname             string         `gorm:"column:nickname;not null" json:"nickname"`
	Address              string         `gorm:"column:address" json:"address"`
	PurchasePriceCents   int64          `gorm:"column:purchase_price_cents;not null;default:0" json:"purchase_price_cents"`
	CurrentValueCents    int64          `gorm:"column:current_value_cents;not null;default:0" json:"current_value_cents"`
	MortgageBalanceCents int64          `gorm:"column:mortgage_balance_cents;not null;default:0" json:"mortgage_balance_cents"`
	Notes                string         `gorm:"column:notes" json:"notes"`
	Metadata             datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// EquityCents is the owner's stake: current value less what is still owed.
func (p *Property) EquityCents() int64 {
	return p.CurrentValueCents - p.MortgageBalanceCents
}

func (Property) TableName() string { return "property" }
