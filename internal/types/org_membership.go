package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership roles. Owners administer the org, coaches author and manage
// enrollments, members consume published content.
const (
	OrgRoleOwner  = "owner"
	OrgRoleCoach  = "coach"
	OrgRoleMember = "member"
)

type OrgMembership struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;not null;index:idx_org_user,unique" json:"organization_id"`
	Organization   *Organization  `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_org_user,unique" json:"user_id"`
	User           *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Role           string         `gorm:"column:role;not null;default:'member'" json:"role"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (OrgMembership) TableName() string { return "org_membership" }
