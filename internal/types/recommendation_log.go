package types

import (
	"time"

	"github.com/google/uuid"
)

// RecommendationLog is the audit row persisted for every returned
// recommendation, used for analytics and the acceptance feedback loop.
type RecommendationLog struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;index:idx_recommendation_log_learner" json:"learner_id"`
	LessonID  uuid.UUID `gorm:"type:uuid;not null;index" json:"lesson_id"`
	Score     float64   `gorm:"column:score;not null;default:0" json:"score"`
	Reason    string    `gorm:"column:reason;type:text;not null" json:"reason"`
	Sources   string    `gorm:"column:sources;not null" json:"sources"`
	Algorithm string    `gorm:"column:algorithm;not null;index" json:"algorithm"`
	ShownAt   time.Time `gorm:"column:shown_at;not null;default:now()" json:"shown_at"`
	Accepted  *bool     `gorm:"column:accepted" json:"accepted,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (RecommendationLog) TableName() string { return "recommendation_log" }
