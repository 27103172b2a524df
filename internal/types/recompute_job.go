package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"

	JobTypeRecomputeRecommendations = "recompute_recommendations"
)

// RecomputeJob is a queued asynchronous recomputation for one learner.
// Event ingestion enqueues; the jobs worker claims and runs.
type RecomputeJob struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_recompute_job_learner" json:"learner_id"`
	JobType    string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Status     string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Attempts   int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError  string         `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	Payload    datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload,omitempty"`
	RunAfter   time.Time      `gorm:"column:run_after;not null;default:now();index" json:"run_after"`
	StartedAt  *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (RecomputeJob) TableName() string { return "recompute_job" }
