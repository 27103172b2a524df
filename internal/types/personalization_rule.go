package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PersonalizationRule is a stored cold-start/override rule. Kind selects one
// of the closed predicate kinds in internal/engine; Threshold, SkillID and
// Count parameterize it.
type PersonalizationRule struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Kind      string         `gorm:"column:kind;not null" json:"kind"`
	Threshold float64        `gorm:"column:threshold;not null;default:0" json:"threshold"`
	SkillID   string         `gorm:"column:skill_id" json:"skill_id,omitempty"`
	Count     int            `gorm:"column:count;not null;default:0" json:"count"`
	Action    string         `gorm:"column:action;not null" json:"action"`
	Priority  int            `gorm:"column:priority;not null;default:0;index" json:"priority"`
	Active    bool           `gorm:"column:active;not null;default:true;index" json:"active"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PersonalizationRule) TableName() string { return "personalization_rule" }
