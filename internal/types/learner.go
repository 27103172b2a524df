package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Learner struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email       string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	DisplayName string         `gorm:"column:display_name;not null" json:"display_name"`
	FocusArea   string         `gorm:"column:focus_area" json:"focus_area,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Learner) TableName() string { return "learner" }
