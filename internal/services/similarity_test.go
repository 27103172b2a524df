package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge/skillforge-backend/internal/cache"
	"github.com/skillforge/skillforge-backend/internal/engine"
)

type similarityFixture struct {
	masteryRepo *fakeMasteryRepo
	eventRepo   *fakeEventRepo
	cache       *cache.Memory
	service     SimilarityService
}

func newSimilarityFixture(t *testing.T) *similarityFixture {
	t.Helper()
	log := testLogger(t)
	f := &similarityFixture{
		masteryRepo: newFakeMasteryRepo(),
		eventRepo:   &fakeEventRepo{},
		cache:       cache.NewMemory(),
	}
	mastery := NewMasteryService(nil, log, f.masteryRepo, &fakeEventRepo{}, &fakeJobRepo{}, cache.NewMemory(), engine.DefaultTuning())
	f.service = NewSimilarityService(nil, log, f.masteryRepo, f.eventRepo, mastery, f.cache, engine.DefaultTuning())
	return f
}

func TestSimilarLearnersFindsMatchingProfile(t *testing.T) {
	f := newSimilarityFixture(t)
	target := uuid.New()
	twin := uuid.New()
	stranger := uuid.New()
	now := time.Now().UTC()

	f.masteryRepo.seed(target, "math:fractions", 0.8, 7, now)
	f.masteryRepo.seed(target, "math:decimals", 0.4, 7, now)
	f.masteryRepo.seed(twin, "math:fractions", 0.8, 7, now)
	f.masteryRepo.seed(twin, "math:decimals", 0.4, 7, now)
	// No shared skills with the target.
	f.masteryRepo.seed(stranger, "music:rhythm", 0.9, 7, now)

	peers, err := f.service.SimilarLearners(context.Background(), target, 10)
	if err != nil {
		t.Fatalf("SimilarLearners failed: %v", err)
	}
	if len(peers) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(peers))
	}
	if peers[0].LearnerID != twin {
		t.Errorf("expected the twin profile, got %s", peers[0].LearnerID)
	}
	if !almostEqual(peers[0].Similarity, 1.0) {
		t.Errorf("identical profiles should have similarity 1, got %f", peers[0].Similarity)
	}
}

func TestSimilarLearnersNoHistory(t *testing.T) {
	f := newSimilarityFixture(t)

	peers, err := f.service.SimilarLearners(context.Background(), uuid.New(), 10)
	if err != nil {
		t.Fatalf("SimilarLearners failed: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected no peers for a learner without history, got %d", len(peers))
	}
}

func TestSimilarLearnersServedFromCache(t *testing.T) {
	f := newSimilarityFixture(t)
	target := uuid.New()
	twin := uuid.New()
	now := time.Now().UTC()

	f.masteryRepo.seed(target, "math:fractions", 0.8, 7, now)
	f.masteryRepo.seed(twin, "math:fractions", 0.8, 7, now)

	first, err := f.service.SimilarLearners(context.Background(), target, 10)
	if err != nil {
		t.Fatalf("SimilarLearners failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(first))
	}

	// New peers appearing after the cache fill are not seen until refresh.
	f.masteryRepo.seed(uuid.New(), "math:fractions", 0.8, 7, now)
	second, err := f.service.SimilarLearners(context.Background(), target, 10)
	if err != nil {
		t.Fatalf("SimilarLearners failed: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected cached peer set of 1, got %d", len(second))
	}

	refreshed, err := f.service.RefreshPeers(context.Background(), target)
	if err != nil {
		t.Fatalf("RefreshPeers failed: %v", err)
	}
	if len(refreshed) != 2 {
		t.Fatalf("expected 2 peers after refresh, got %d", len(refreshed))
	}
}

func TestCollaborativeScoresFromPeerCompletions(t *testing.T) {
	f := newSimilarityFixture(t)
	target := uuid.New()
	peerA := uuid.New()
	peerB := uuid.New()
	now := time.Now().UTC()

	for _, id := range []uuid.UUID{target, peerA, peerB} {
		f.masteryRepo.seed(id, "math:fractions", 0.8, 7, now)
	}

	lessonBoth := uuid.New()
	lessonOne := uuid.New()
	f.eventRepo.complete(peerA, lessonBoth)
	f.eventRepo.complete(peerB, lessonBoth)
	f.eventRepo.complete(peerA, lessonOne)

	scores, err := f.service.CollaborativeScores(context.Background(), target, nil)
	if err != nil {
		t.Fatalf("CollaborativeScores failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scored lessons, got %d", len(scores))
	}
	if scores[0].LessonID != lessonBoth {
		t.Errorf("lesson completed by more peers must rank first")
	}
	if !almostEqual(scores[0].Score, 0.2) || !almostEqual(scores[1].Score, 0.1) {
		t.Errorf("expected scores 0.2 and 0.1, got %f and %f", scores[0].Score, scores[1].Score)
	}
}

func TestCollaborativeScoresHonorsExclusions(t *testing.T) {
	f := newSimilarityFixture(t)
	target := uuid.New()
	peer := uuid.New()
	now := time.Now().UTC()
	f.masteryRepo.seed(target, "math:fractions", 0.8, 7, now)
	f.masteryRepo.seed(peer, "math:fractions", 0.8, 7, now)

	lessonID := uuid.New()
	f.eventRepo.complete(peer, lessonID)

	scores, err := f.service.CollaborativeScores(context.Background(), target, map[uuid.UUID]bool{lessonID: true})
	if err != nil {
		t.Fatalf("CollaborativeScores failed: %v", err)
	}
	if len(scores) != 0 {
		t.Fatalf("excluded lesson must not be scored, got %d entries", len(scores))
	}
}
