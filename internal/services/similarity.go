package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/cache"
	"github.com/skillforge/skillforge-backend/internal/engine"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
)

// peerScanConcurrency bounds parallel mastery-vector loads during a refresh.
const peerScanConcurrency = 8

// PeerSimilarity is one neighbor of a learner with its cosine similarity.
type PeerSimilarity struct {
	LearnerID  uuid.UUID `json:"learner_id"`
	Similarity float64   `json:"similarity"`
}

// SimilarityService finds learners with similar mastery profiles and derives
// the collaborative recommendation signal from what those peers completed.
// Peer sets are cached; RefreshPeers is the recompute entry point the jobs
// worker calls.
type SimilarityService interface {
	SimilarLearners(ctx context.Context, learnerID uuid.UUID, k int) ([]PeerSimilarity, error)
	RefreshPeers(ctx context.Context, learnerID uuid.UUID) ([]PeerSimilarity, error)
	CollaborativeScores(ctx context.Context, learnerID uuid.UUID, exclude map[uuid.UUID]bool) ([]engine.ScoredLesson, error)
}

type similarityService struct {
	db          *gorm.DB
	log         *logger.Logger
	masteryRepo repos.MasteryRepo
	eventRepo   repos.PracticeEventRepo
	mastery     MasteryService
	cache       cache.Cache
	tuning      engine.Tuning
}

func NewSimilarityService(
	db *gorm.DB,
	baseLog *logger.Logger,
	masteryRepo repos.MasteryRepo,
	eventRepo repos.PracticeEventRepo,
	mastery MasteryService,
	c cache.Cache,
	tuning engine.Tuning,
) SimilarityService {
	return &similarityService{
		db:          db,
		log:         baseLog.With("service", "SimilarityService"),
		masteryRepo: masteryRepo,
		eventRepo:   eventRepo,
		mastery:     mastery,
		cache:       c,
		tuning:      tuning,
	}
}

func (s *similarityService) SimilarLearners(ctx context.Context, learnerID uuid.UUID, k int) ([]PeerSimilarity, error) {
	if k <= 0 {
		k = s.tuning.SimilarityTopK
	}

	raw, ok, err := s.cache.Get(ctx, peerCacheKey(learnerID))
	if err != nil {
		s.log.Warn("Peer cache read failed", "learner_id", learnerID, "error", err)
	} else if ok {
		var peers []PeerSimilarity
		if err := json.Unmarshal(raw, &peers); err == nil {
			return truncatePeers(peers, k), nil
		}
		s.log.Warn("Discarding undecodable peer cache entry", "learner_id", learnerID)
	}

	peers, err := s.RefreshPeers(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return truncatePeers(peers, k), nil
}

func (s *similarityService) RefreshPeers(ctx context.Context, learnerID uuid.UUID) ([]PeerSimilarity, error) {
	now := time.Now().UTC()
	target, err := s.mastery.MasteryVector(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}

	peers := []PeerSimilarity{}
	if len(target) > 0 {
		ids, err := s.masteryRepo.GetLearnerIDs(ctx, nil)
		if err != nil {
			return nil, err
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(peerScanConcurrency)
		for _, id := range ids {
			if id == learnerID {
				continue
			}
			id := id
			g.Go(func() error {
				vector, err := s.mastery.MasteryVector(gctx, id, now)
				if err != nil {
					return err
				}
				sim := engine.Cosine(target, vector)
				if sim > s.tuning.SimilarityThreshold {
					mu.Lock()
					peers = append(peers, PeerSimilarity{LearnerID: id, Similarity: sim})
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Similarity != peers[j].Similarity {
			return peers[i].Similarity > peers[j].Similarity
		}
		return peers[i].LearnerID.String() < peers[j].LearnerID.String()
	})
	peers = truncatePeers(peers, s.tuning.SimilarityTopK)

	// An empty peer set is cached too, so cold learners don't trigger a
	// full scan on every request.
	payload, err := json.Marshal(peers)
	if err == nil {
		if err := s.cache.Set(ctx, peerCacheKey(learnerID), payload, PeerCacheTTL); err != nil {
			s.log.Warn("Peer cache write failed", "learner_id", learnerID, "error", err)
		}
	}
	return peers, nil
}

func (s *similarityService) CollaborativeScores(ctx context.Context, learnerID uuid.UUID, exclude map[uuid.UUID]bool) ([]engine.ScoredLesson, error) {
	peers, err := s.SimilarLearners(ctx, learnerID, s.tuning.SimilarityTopK)
	if err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, nil
	}

	peerIDs := make([]uuid.UUID, 0, len(peers))
	for _, p := range peers {
		peerIDs = append(peerIDs, p.LearnerID)
	}
	lessonIDs, err := s.eventRepo.GetCompletedLessonIDsByLearners(ctx, nil, peerIDs)
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int)
	for _, id := range lessonIDs {
		counts[id]++
	}

	out := make([]engine.ScoredLesson, 0, len(counts))
	for lessonID, count := range counts {
		if exclude[lessonID] {
			continue
		}
		out = append(out, engine.ScoredLesson{
			LessonID: lessonID,
			Score:    math.Min(1, float64(count)/s.tuning.PeerCompletionDivisor),
			Reason:   fmt.Sprintf("completed by %d of %d learners with a similar profile", count, len(peers)),
		})
	}
	sortScored(out)
	return out, nil
}

func truncatePeers(peers []PeerSimilarity, k int) []PeerSimilarity {
	if k > 0 && len(peers) > k {
		return peers[:k]
	}
	return peers
}

func sortScored(items []engine.ScoredLesson) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].LessonID.String() < items[j].LessonID.String()
	})
}
