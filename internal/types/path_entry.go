package types

import (
	"time"

	"github.com/google/uuid"
)

// PathEntry is one step of the ordered learning path for a (learner, course)
// pair. Position is a dense 1..N sequence by descending score; regeneration
// replaces the whole sequence.
type PathEntry struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID     uuid.UUID `gorm:"type:uuid;not null;index:idx_path_entry,unique,priority:1" json:"learner_id"`
	CourseID      uuid.UUID `gorm:"type:uuid;not null;index:idx_path_entry,unique,priority:2" json:"course_id"`
	LessonID      uuid.UUID `gorm:"type:uuid;not null;index:idx_path_entry,unique,priority:3" json:"lesson_id"`
	Score         float64   `gorm:"column:score;not null;default:0" json:"score"`
	Position      int       `gorm:"column:position;not null" json:"position"`
	Difficulty    string    `gorm:"column:difficulty;not null" json:"difficulty"`
	EstimatedTime int       `gorm:"column:estimated_time;not null;default:0" json:"estimated_time"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (PathEntry) TableName() string { return "path_entry" }
