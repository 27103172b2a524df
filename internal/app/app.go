package app

import (
	"gorm.io/gorm"

	"github.com/skillforge/skillforge-backend/internal/cache"
	"github.com/skillforge/skillforge-backend/internal/clients/redis"
	"github.com/skillforge/skillforge-backend/internal/db"
	"github.com/skillforge/skillforge-backend/internal/jobs"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/repos"
	"github.com/skillforge/skillforge-backend/internal/services"
	"github.com/skillforge/skillforge-backend/internal/utils"
)

// Repos groups the repository layer.
type Repos struct {
	Learner           repos.LearnerRepo
	Course            repos.CourseRepo
	Lesson            repos.LessonRepo
	Catalog           repos.CatalogRepo
	Mastery           repos.MasteryRepo
	PracticeEvent     repos.PracticeEventRepo
	RecommendationLog repos.RecommendationLogRepo
	Path              repos.PathRepo
	Rule              repos.RuleRepo
	RecomputeJob      repos.RecomputeJobRepo
}

// Services groups the service layer.
type Services struct {
	Mastery        services.MasteryService
	Readiness      services.ReadinessService
	Similarity     services.SimilarityService
	Content        services.ContentService
	Rule           services.RuleService
	Recommendation services.RecommendationService
	Path           services.PathService
}

// App is the composition root: config, connections, repos, services and the
// background job worker, wired once at startup.
type App struct {
	Log      *logger.Logger
	Config   Config
	DB       *gorm.DB
	Cache    cache.Cache
	Repos    Repos
	Services Services
	Worker   *jobs.Worker
}

func New() (*App, error) {
	mode := utils.GetEnv("APP_MODE", "dev", nil)
	log, err := logger.New(mode)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, err
	}
	gormDB := pg.DB()

	// Redis when configured and reachable; in-process cache otherwise.
	var c cache.Cache
	c, err = redis.NewCache(log)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory cache", "error", err)
		c = cache.NewMemory()
	}

	r := Repos{
		Learner:           repos.NewLearnerRepo(gormDB, log),
		Course:            repos.NewCourseRepo(gormDB, log),
		Lesson:            repos.NewLessonRepo(gormDB, log),
		Catalog:           repos.NewCatalogRepo(gormDB, log),
		Mastery:           repos.NewMasteryRepo(gormDB, log),
		PracticeEvent:     repos.NewPracticeEventRepo(gormDB, log),
		RecommendationLog: repos.NewRecommendationLogRepo(gormDB, log),
		Path:              repos.NewPathRepo(gormDB, log),
		Rule:              repos.NewRuleRepo(gormDB, log),
		RecomputeJob:      repos.NewRecomputeJobRepo(gormDB, log),
	}

	mastery := services.NewMasteryService(gormDB, log, r.Mastery, r.PracticeEvent, r.RecomputeJob, c, cfg.Tuning)
	readiness := services.NewReadinessService(gormDB, log, r.Catalog, mastery)
	similarity := services.NewSimilarityService(gormDB, log, r.Mastery, r.PracticeEvent, mastery, c, cfg.Tuning)
	content := services.NewContentService(gormDB, log, r.Catalog, mastery, readiness, cfg.Tuning)
	rule := services.NewRuleService(gormDB, log, r.Rule, r.PracticeEvent, mastery)
	recommendation := services.NewRecommendationService(gormDB, log, r.Lesson, r.PracticeEvent, r.RecommendationLog, similarity, content, rule, c, cfg.Tuning)
	path := services.NewPathService(gormDB, log, r.Learner, r.Course, r.Lesson, r.Catalog, r.Path, mastery, readiness, cfg.Tuning)

	registry := jobs.NewRegistry()
	registry.Register(jobs.NewRecomputeHandler(log, similarity, recommendation))
	worker := jobs.NewWorker(gormDB, log, r.RecomputeJob, registry)

	return &App{
		Log:    log,
		Config: cfg,
		DB:     gormDB,
		Cache:  c,
		Repos:  r,
		Services: Services{
			Mastery:        mastery,
			Readiness:      readiness,
			Similarity:     similarity,
			Content:        content,
			Rule:           rule,
			Recommendation: recommendation,
			Path:           path,
		},
		Worker: worker,
	}, nil
}

func (a *App) Close() {
	a.Log.Sync()
}
