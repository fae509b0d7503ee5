package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Chat message roles and delivery statuses.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"

	ChatStatusComplete = "complete"
	ChatStatusPending  = "pending"
	ChatStatusFailed   = "failed"
)

type ChatMessage struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_thread_seq,unique" json:"thread_id"`
	Thread         *ChatThread    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ThreadID;references:ID" json:"thread,omitempty"`
	Seq            int            `gorm:"column:seq;not null;index:idx_thread_seq,unique" json:"seq"`
	Role           string         `gorm:"column:role;not null" json:"role"`
	Content        string         `gorm:"column:content;type:text" json:"content"`
	Status         string         `gorm:"column:status;not null;default:'complete'" json:"status"`
	IdempotencyKey *string        `gorm:"column:idempotency_key;index" json:"idempotency_key,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ChatMessage) TableName() string { return "chat_message" }
