package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/skillforge/skillforge-backend/internal/pkg/errors"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
	"github.com/skillforge/skillforge-backend/internal/types"
)

const epsilon = 0.001

func almostEqual(a, b float64) bool {
	diff := a - b
	return diff > -epsilon && diff < epsilon
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

// In-memory repo fakes. They ignore the tx argument; services pass nil
// outside explicit transactions anyway.

type fakeMasteryRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]map[string]*types.MasterySnapshot
	locks map[string]chan struct{}
}

func newFakeMasteryRepo() *fakeMasteryRepo {
	return &fakeMasteryRepo{
		rows:  make(map[uuid.UUID]map[string]*types.MasterySnapshot),
		locks: make(map[string]chan struct{}),
	}
}

// rowLock mimics a FOR UPDATE row lock: acquired by the locking read,
// released by the next Upsert for the same key.
func (f *fakeMasteryRepo) rowLock(learnerID uuid.UUID, skillID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := learnerID.String() + "|" + skillID
	if f.locks[key] == nil {
		f.locks[key] = make(chan struct{}, 1)
	}
	return f.locks[key]
}

func (f *fakeMasteryRepo) GetByLearnerAndSkill(_ context.Context, _ *gorm.DB, learnerID uuid.UUID, skillID string) (*types.MasterySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[learnerID][skillID]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeMasteryRepo) GetByLearnerAndSkillForUpdate(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, skillID string) (*types.MasterySnapshot, error) {
	f.rowLock(learnerID, skillID) <- struct{}{}
	return f.GetByLearnerAndSkill(ctx, tx, learnerID, skillID)
}

func (f *fakeMasteryRepo) GetByLearner(_ context.Context, _ *gorm.DB, learnerID uuid.UUID) ([]*types.MasterySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.MasterySnapshot
	for _, row := range f.rows[learnerID] {
		copied := *row
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeMasteryRepo) GetByLearnerAndSkills(_ context.Context, _ *gorm.DB, learnerID uuid.UUID, skillIDs []string) ([]*types.MasterySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.MasterySnapshot
	for _, id := range skillIDs {
		if row, ok := f.rows[learnerID][id]; ok {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMasteryRepo) CreateIfAbsent(_ context.Context, _ *gorm.DB, row *types.MasterySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[row.LearnerID][row.SkillID]; ok {
		return nil
	}
	if f.rows[row.LearnerID] == nil {
		f.rows[row.LearnerID] = make(map[string]*types.MasterySnapshot)
	}
	copied := *row
	f.rows[row.LearnerID][row.SkillID] = &copied
	return nil
}

func (f *fakeMasteryRepo) Upsert(_ context.Context, _ *gorm.DB, row *types.MasterySnapshot) error {
	f.mu.Lock()
	if f.rows[row.LearnerID] == nil {
		f.rows[row.LearnerID] = make(map[string]*types.MasterySnapshot)
	}
	copied := *row
	f.rows[row.LearnerID][row.SkillID] = &copied
	f.mu.Unlock()

	select {
	case <-f.rowLock(row.LearnerID, row.SkillID):
	default:
	}
	return nil
}

func (f *fakeMasteryRepo) GetLearnerIDs(_ context.Context, _ *gorm.DB) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id := range f.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeMasteryRepo) seed(learnerID uuid.UUID, skillID string, mastery, halfLife float64, lastUpdate time.Time) {
	_ = f.Upsert(context.Background(), nil, &types.MasterySnapshot{
		ID:           uuid.New(),
		LearnerID:    learnerID,
		SkillID:      skillID,
		Mastery:      mastery,
		HalfLifeDays: halfLife,
		LastUpdate:   lastUpdate,
	})
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*types.PracticeEvent
}

func (f *fakeEventRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.PracticeEvent) ([]*types.PracticeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, rows...)
	return rows, nil
}

func (f *fakeEventRepo) CountByLearner(_ context.Context, _ *gorm.DB, learnerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.events {
		if e.LearnerID == learnerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeEventRepo) GetCompletedLessonIDs(_ context.Context, _ *gorm.DB, learnerID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, e := range f.events {
		if e.LearnerID == learnerID && e.Type == types.EventTypeComplete && e.LessonID != nil && !seen[*e.LessonID] {
			seen[*e.LessonID] = true
			ids = append(ids, *e.LessonID)
		}
	}
	return ids, nil
}

func (f *fakeEventRepo) GetCompletedLessonIDsByLearners(_ context.Context, _ *gorm.DB, learnerIDs []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	include := map[uuid.UUID]bool{}
	for _, id := range learnerIDs {
		include[id] = true
	}
	type pair struct {
		learner uuid.UUID
		lesson  uuid.UUID
	}
	seen := map[pair]bool{}
	var ids []uuid.UUID
	for _, e := range f.events {
		if !include[e.LearnerID] || e.Type != types.EventTypeComplete || e.LessonID == nil {
			continue
		}
		p := pair{learner: e.LearnerID, lesson: *e.LessonID}
		if seen[p] {
			continue
		}
		seen[p] = true
		ids = append(ids, *e.LessonID)
	}
	return ids, nil
}

func (f *fakeEventRepo) CountCompletionsByLesson(_ context.Context, _ *gorm.DB) (map[uuid.UUID]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type pair struct {
		learner uuid.UUID
		lesson  uuid.UUID
	}
	seen := map[pair]bool{}
	counts := make(map[uuid.UUID]int64)
	for _, e := range f.events {
		if e.Type != types.EventTypeComplete || e.LessonID == nil {
			continue
		}
		p := pair{learner: e.LearnerID, lesson: *e.LessonID}
		if seen[p] {
			continue
		}
		seen[p] = true
		counts[*e.LessonID]++
	}
	return counts, nil
}

func (f *fakeEventRepo) complete(learnerID, lessonID uuid.UUID) {
	id := lessonID
	_, _ = f.Create(context.Background(), nil, []*types.PracticeEvent{{
		ID:         uuid.New(),
		LearnerID:  learnerID,
		LessonID:   &id,
		Type:       types.EventTypeComplete,
		OccurredAt: time.Now().UTC(),
	}})
}

type fakeCatalogRepo struct {
	prereqs      map[string][]*types.SkillPrerequisite
	lessonSkills map[uuid.UUID][]*types.LessonSkill
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		prereqs:      make(map[string][]*types.SkillPrerequisite),
		lessonSkills: make(map[uuid.UUID][]*types.LessonSkill),
	}
}

func (f *fakeCatalogRepo) PrerequisitesOf(_ context.Context, _ *gorm.DB, skillID string) ([]*types.SkillPrerequisite, error) {
	edges := append([]*types.SkillPrerequisite{}, f.prereqs[skillID]...)
	sort.Slice(edges, func(i, j int) bool { return edges[i].Position < edges[j].Position })
	return edges, nil
}

func (f *fakeCatalogRepo) SkillsOfLesson(_ context.Context, _ *gorm.DB, lessonID uuid.UUID) ([]*types.LessonSkill, error) {
	return f.lessonSkills[lessonID], nil
}

func (f *fakeCatalogRepo) SkillsOfLessons(_ context.Context, _ *gorm.DB, lessonIDs []uuid.UUID) (map[uuid.UUID][]*types.LessonSkill, error) {
	out := make(map[uuid.UUID][]*types.LessonSkill)
	for _, id := range lessonIDs {
		if rows, ok := f.lessonSkills[id]; ok {
			out[id] = rows
		}
	}
	return out, nil
}

func (f *fakeCatalogRepo) CreateSkills(_ context.Context, _ *gorm.DB, _ []*types.Skill) error {
	return nil
}

func (f *fakeCatalogRepo) CreatePrerequisites(_ context.Context, _ *gorm.DB, rows []*types.SkillPrerequisite) error {
	for _, row := range rows {
		f.prereqs[row.SkillID] = append(f.prereqs[row.SkillID], row)
	}
	return nil
}

func (f *fakeCatalogRepo) CreateLessonSkills(_ context.Context, _ *gorm.DB, rows []*types.LessonSkill) error {
	for _, row := range rows {
		f.lessonSkills[row.LessonID] = append(f.lessonSkills[row.LessonID], row)
	}
	return nil
}

func (f *fakeCatalogRepo) addPrereq(skillID, prereqID string, strength float64) {
	f.prereqs[skillID] = append(f.prereqs[skillID], &types.SkillPrerequisite{
		ID:                  uuid.New(),
		SkillID:             skillID,
		PrerequisiteSkillID: prereqID,
		Strength:            strength,
		Position:            len(f.prereqs[skillID]),
	})
}

func (f *fakeCatalogRepo) mapSkill(lessonID uuid.UUID, skillID string, weight float64) {
	f.lessonSkills[lessonID] = append(f.lessonSkills[lessonID], &types.LessonSkill{
		ID:       uuid.New(),
		LessonID: lessonID,
		SkillID:  skillID,
		Weight:   weight,
	})
}

type fakeLessonRepo struct {
	lessons []*types.Lesson
}

func (f *fakeLessonRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Lesson, error) {
	for _, l := range f.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (f *fakeLessonRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	for _, id := range ids {
		for _, l := range f.lessons {
			if l.ID == id {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (f *fakeLessonRepo) GetByCourseID(_ context.Context, _ *gorm.DB, courseID uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	for _, l := range f.lessons {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (f *fakeLessonRepo) GetAll(_ context.Context, _ *gorm.DB, limit int) ([]*types.Lesson, error) {
	out := append([]*types.Lesson{}, f.lessons...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLessonRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.Lesson) ([]*types.Lesson, error) {
	f.lessons = append(f.lessons, rows...)
	return rows, nil
}

type fakeRecLogRepo struct {
	mu   sync.Mutex
	rows []*types.RecommendationLog
}

func (f *fakeRecLogRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.RecommendationLog) ([]*types.RecommendationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
	return rows, nil
}

func (f *fakeRecLogRepo) GetRecentByLearner(_ context.Context, _ *gorm.DB, learnerID uuid.UUID, limit int) ([]*types.RecommendationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.RecommendationLog
	for _, row := range f.rows {
		if row.LearnerID == learnerID {
			out = append(out, row)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRecLogRepo) MarkAccepted(_ context.Context, _ *gorm.DB, id uuid.UUID, accepted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			value := accepted
			row.Accepted = &value
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type fakePathRepo struct {
	paths map[string][]*types.PathEntry
}

func newFakePathRepo() *fakePathRepo {
	return &fakePathRepo{paths: make(map[string][]*types.PathEntry)}
}

func pathKey(learnerID, courseID uuid.UUID) string {
	return learnerID.String() + "|" + courseID.String()
}

func (f *fakePathRepo) ReplaceForLearnerCourse(_ context.Context, _ *gorm.DB, learnerID, courseID uuid.UUID, entries []*types.PathEntry) error {
	f.paths[pathKey(learnerID, courseID)] = append([]*types.PathEntry{}, entries...)
	return nil
}

func (f *fakePathRepo) GetByLearnerCourse(_ context.Context, _ *gorm.DB, learnerID, courseID uuid.UUID) ([]*types.PathEntry, error) {
	entries := append([]*types.PathEntry{}, f.paths[pathKey(learnerID, courseID)]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	return entries, nil
}

type fakeRuleRepo struct {
	rules []*types.PersonalizationRule
}

func (f *fakeRuleRepo) GetActive(_ context.Context, _ *gorm.DB) ([]*types.PersonalizationRule, error) {
	var out []*types.PersonalizationRule
	for _, rule := range f.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (f *fakeRuleRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.PersonalizationRule) ([]*types.PersonalizationRule, error) {
	f.rules = append(f.rules, rows...)
	return rows, nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs []*types.RecomputeJob
}

func (f *fakeJobRepo) Enqueue(_ context.Context, _ *gorm.DB, job *types.RecomputeJob) (*types.RecomputeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.Status == "" {
		job.Status = types.JobStatusPending
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = time.Now().UTC()
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func (f *fakeJobRepo) ExistsPending(_ context.Context, _ *gorm.DB, learnerID uuid.UUID, jobType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.LearnerID == learnerID && job.JobType == jobType && job.Status == types.JobStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobRepo) ClaimNextRunnable(_ context.Context, _ *gorm.DB, policy repos.RunnablePolicy) (*types.RecomputeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, job := range f.jobs {
		if job.Status == types.JobStatusPending && !job.RunAfter.After(now) && job.Attempts < policy.MaxAttempts {
			job.Status = types.JobStatusRunning
			job.Attempts++
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ID != id {
			continue
		}
		if status, ok := updates["status"].(string); ok {
			job.Status = status
		}
		if lastErr, ok := updates["last_error"].(string); ok {
			job.LastError = lastErr
		}
		if runAfter, ok := updates["run_after"].(time.Time); ok {
			job.RunAfter = runAfter
		}
		return nil
	}
	return apperrors.ErrNotFound
}

type fakeLearnerRepo struct {
	learners map[uuid.UUID]*types.Learner
}

func newFakeLearnerRepo() *fakeLearnerRepo {
	return &fakeLearnerRepo{learners: make(map[uuid.UUID]*types.Learner)}
}

func (f *fakeLearnerRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Learner, error) {
	return f.learners[id], nil
}

func (f *fakeLearnerRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.Learner) ([]*types.Learner, error) {
	for _, row := range rows {
		f.learners[row.ID] = row
	}
	return rows, nil
}

type fakeCourseRepo struct {
	courses map[uuid.UUID]*types.Course
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: make(map[uuid.UUID]*types.Course)}
}

func (f *fakeCourseRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Course, error) {
	return f.courses[id], nil
}

func (f *fakeCourseRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.Course) ([]*types.Course, error) {
	for _, row := range rows {
		f.courses[row.ID] = row
	}
	return rows, nil
}
