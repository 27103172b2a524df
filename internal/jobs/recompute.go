package jobs

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/services"
	"github.com/skillforge/skillforge-backend/internal/types"
)

// RecomputeHandler refreshes a learner's peer set and rebuilds their hybrid
// recommendations after practice events invalidated the caches. Concurrent
// jobs for the same learner collapse into one computation.
type RecomputeHandler struct {
	log             *logger.Logger
	similarity      services.SimilarityService
	recommendations services.RecommendationService
	group           singleflight.Group
}

func NewRecomputeHandler(baseLog *logger.Logger, similarity services.SimilarityService, recommendations services.RecommendationService) *RecomputeHandler {
	return &RecomputeHandler{
		log:             baseLog.With("handler", types.JobTypeRecomputeRecommendations),
		similarity:      similarity,
		recommendations: recommendations,
	}
}

func (h *RecomputeHandler) Type() string {
	return types.JobTypeRecomputeRecommendations
}

func (h *RecomputeHandler) Run(ctx context.Context, job *types.RecomputeJob) error {
	_, err, shared := h.group.Do(job.LearnerID.String(), func() (any, error) {
		if _, err := h.similarity.RefreshPeers(ctx, job.LearnerID); err != nil {
			return nil, err
		}
		recs, err := h.recommendations.Recommend(ctx, job.LearnerID, services.DefaultRecommendationLimit, true, services.AlgorithmHybrid)
		if err != nil {
			return nil, err
		}
		h.log.Debug("Recomputed recommendations", "learner_id", job.LearnerID, "count", len(recs))
		return nil, nil
	})
	if shared {
		h.log.Debug("Recompute deduplicated", "learner_id", job.LearnerID)
	}
	return err
}
