package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	AlgorithmHybrid        = "hybrid"
	AlgorithmCollaborative = "collaborative"
	AlgorithmContentBased  = "content_based"
	AlgorithmRuleBased     = "rule_based"

	RecommendationCacheTTL = 5 * time.Minute
	PeerCacheTTL           = 10 * time.Minute
)

func recommendationCacheKey(learnerID uuid.UUID, algorithm string) string {
	return fmt.Sprintf("rec:%s:%s", learnerID, algorithm)
}

func peerCacheKey(learnerID uuid.UUID) string {
	return fmt.Sprintf("peers:%s", learnerID)
}

// learnerCacheKeys lists every cached artifact for a learner, for
// invalidation after a practice event.
func learnerCacheKeys(learnerID uuid.UUID) []string {
	return []string{
		recommendationCacheKey(learnerID, AlgorithmHybrid),
		recommendationCacheKey(learnerID, AlgorithmCollaborative),
		recommendationCacheKey(learnerID, AlgorithmContentBased),
		recommendationCacheKey(learnerID, AlgorithmRuleBased),
		peerCacheKey(learnerID),
	}
}
