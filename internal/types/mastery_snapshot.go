package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MasterySnapshot is the one row per (learner, skill) proficiency record.
// Mastery stays in [0,1]; the decayed current estimate is computed at read
// time from LastUpdate and HalfLifeDays.
type MasterySnapshot struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_mastery_learner_skill,unique,priority:1" json:"learner_id"`
	SkillID       string         `gorm:"column:skill_id;not null;index:idx_mastery_learner_skill,unique,priority:2" json:"skill_id"`
	Mastery       float64        `gorm:"column:mastery;not null;default:0" json:"mastery"`
	HalfLifeDays  float64        `gorm:"column:half_life_days;not null;default:7" json:"half_life_days"`
	PracticeCount int            `gorm:"column:practice_count;not null;default:0" json:"practice_count"`
	CorrectCount  int            `gorm:"column:correct_count;not null;default:0" json:"correct_count"`
	LastUpdate    time.Time      `gorm:"column:last_update;not null;default:now()" json:"last_update"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MasterySnapshot) TableName() string { return "mastery_snapshot" }
