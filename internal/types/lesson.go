package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Course struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Subject   string         `gorm:"column:subject;index" json:"subject,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }

type Lesson struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_lesson_course" json:"course_id"`
	Course         *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Index          int            `gorm:"column:index;not null;default:0" json:"index"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Difficulty     string         `gorm:"column:difficulty;not null;default:'beginner'" json:"difficulty"`
	EstimatedTime  int            `gorm:"column:estimated_time;not null;default:0" json:"estimated_time"`
	PrimarySkillID string         `gorm:"column:primary_skill_id;index" json:"primary_skill_id,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Lesson) TableName() string { return "lesson" }

// LessonSkill maps how strongly a lesson exercises a skill (weight > 0).
type LessonSkill struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LessonID  uuid.UUID `gorm:"type:uuid;not null;index:idx_lesson_skill,unique,priority:1" json:"lesson_id"`
	SkillID   string    `gorm:"column:skill_id;not null;index:idx_lesson_skill,unique,priority:2;index" json:"skill_id"`
	Weight    float64   `gorm:"column:weight;not null;default:1" json:"weight"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (LessonSkill) TableName() string { return "lesson_skill" }
