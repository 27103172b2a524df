package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/engine"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
)

const (
	// ReadinessBase is the required mastery for a prerequisite with zero
	// strength; ReadinessStrengthWeight raises it with edge strength, so
	// the required level spans [0.5, 0.8].
	ReadinessBase           = 0.5
	ReadinessStrengthWeight = 0.3
)

// ReadinessService answers whether a learner meets the prerequisite gates of
// a skill. Evaluation is one hop: each direct prerequisite is checked against
// current decayed mastery, never recursed.
type ReadinessService interface {
	CheckReadiness(ctx context.Context, learnerID uuid.UUID, skillID string) (bool, []string, error)
}

type readinessService struct {
	db          *gorm.DB
	log         *logger.Logger
	catalogRepo repos.CatalogRepo
	mastery     MasteryService
}

func NewReadinessService(db *gorm.DB, baseLog *logger.Logger, catalogRepo repos.CatalogRepo, mastery MasteryService) ReadinessService {
	return &readinessService{
		db:          db,
		log:         baseLog.With("service", "ReadinessService"),
		catalogRepo: catalogRepo,
		mastery:     mastery,
	}
}

func (s *readinessService) CheckReadiness(ctx context.Context, learnerID uuid.UUID, skillID string) (bool, []string, error) {
	edges, err := s.catalogRepo.PrerequisitesOf(ctx, nil, skillID)
	if err != nil {
		return false, nil, err
	}
	if len(edges) == 0 {
		return true, nil, nil
	}

	now := time.Now().UTC()
	var missing []string
	for _, edge := range edges {
		if edge.PrerequisiteSkillID == skillID {
			s.log.Warn("Ignoring self-prerequisite edge", "skill_id", skillID)
			continue
		}
		required := ReadinessBase + ReadinessStrengthWeight*engine.Clamp(edge.Strength, 0, 1)
		mastery, err := s.mastery.CurrentMastery(ctx, learnerID, edge.PrerequisiteSkillID, now)
		if err != nil {
			return false, nil, err
		}
		if mastery < required {
			missing = append(missing, edge.PrerequisiteSkillID)
		}
	}
	return len(missing) == 0, missing, nil
}
