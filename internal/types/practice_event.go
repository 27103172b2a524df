package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventTypePractice = "practice"
	EventTypeComplete = "complete"
)

// PracticeEvent rows are immutable and append-only.
type PracticeEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_practice_event_learner" json:"learner_id"`
	LessonID   *uuid.UUID     `gorm:"type:uuid;index" json:"lesson_id,omitempty"`
	SkillID    string         `gorm:"column:skill_id;index" json:"skill_id,omitempty"`
	Type       string         `gorm:"column:type;not null;index" json:"type"`
	Correct    bool           `gorm:"column:correct;not null;default:false" json:"correct"`
	TimeSpent  float64        `gorm:"column:time_spent;not null;default:0" json:"time_spent"`
	OccurredAt time.Time      `gorm:"column:occurred_at;not null;default:now();index" json:"occurred_at"`
	Data       datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (PracticeEvent) TableName() string { return "practice_event" }
