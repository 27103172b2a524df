package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Skill IDs are opaque namespaced strings, e.g. "math:fractions:basic".
type Skill struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Subject   string         `gorm:"column:subject;index" json:"subject,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Skill) TableName() string { return "skill" }

// SkillPrerequisite is a directed edge skill -> prerequisite with a strength
// in [0,1]. Position fixes edge iteration order for a skill.
type SkillPrerequisite struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SkillID             string    `gorm:"column:skill_id;not null;index:idx_skill_prereq,unique,priority:1" json:"skill_id"`
	PrerequisiteSkillID string    `gorm:"column:prerequisite_skill_id;not null;index:idx_skill_prereq,unique,priority:2" json:"prerequisite_skill_id"`
	Strength            float64   `gorm:"column:strength;not null;default:0" json:"strength"`
	Position            int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt           time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SkillPrerequisite) TableName() string { return "skill_prerequisite" }
