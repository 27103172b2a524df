package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skillforge/skillforge-backend/internal/engine"
	"github.com/skillforge/skillforge-backend/internal/pkg/logger"
	"github.com/skillforge/skillforge-backend/internal/utils"
)

// Config is the process configuration. Engine tuning loads from env vars and
// may be overridden as a whole by a YAML file pointed to by TUNING_FILE.
type Config struct {
	Mode   string
	Tuning engine.Tuning
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Mode:   utils.GetEnv("APP_MODE", "dev", log),
		Tuning: tuningFromEnv(log),
	}

	if path := utils.GetEnv("TUNING_FILE", "", log); path != "" {
		if err := applyTuningFile(path, &cfg.Tuning); err != nil {
			return Config{}, err
		}
		log.Info("Applied tuning file", "path", path)
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return Config{}, fmt.Errorf("tuning: %w", err)
	}
	return cfg, nil
}

func tuningFromEnv(log *logger.Logger) engine.Tuning {
	t := engine.DefaultTuning()
	t.UpdateRule = utils.GetEnv("MASTERY_UPDATE_RULE", t.UpdateRule, log)
	t.Slip = utils.GetEnvAsFloat("BKT_SLIP", t.Slip, log)
	t.Guess = utils.GetEnvAsFloat("BKT_GUESS", t.Guess, log)
	t.Alpha = utils.GetEnvAsFloat("EMA_ALPHA", t.Alpha, log)
	t.HalfLifeRate = utils.GetEnvAsFloat("HALF_LIFE_RATE", t.HalfLifeRate, log)

	t.WeakThreshold = utils.GetEnvAsFloat("WEAK_THRESHOLD", t.WeakThreshold, log)
	t.WeakCap = utils.GetEnvAsInt("WEAK_CAP", t.WeakCap, log)
	t.ContentDivisor = utils.GetEnvAsFloat("CONTENT_DIVISOR", t.ContentDivisor, log)
	t.ReadinessPenalty = utils.GetEnvAsFloat("READINESS_PENALTY", t.ReadinessPenalty, log)

	t.SimilarityThreshold = utils.GetEnvAsFloat("SIMILARITY_THRESHOLD", t.SimilarityThreshold, log)
	t.SimilarityTopK = utils.GetEnvAsInt("SIMILARITY_TOP_K", t.SimilarityTopK, log)
	t.PeerCompletionDivisor = utils.GetEnvAsFloat("PEER_COMPLETION_DIVISOR", t.PeerCompletionDivisor, log)

	t.Fusion.Collaborative = utils.GetEnvAsFloat("FUSION_COLLABORATIVE", t.Fusion.Collaborative, log)
	t.Fusion.Content = utils.GetEnvAsFloat("FUSION_CONTENT", t.Fusion.Content, log)
	t.Fusion.Rule = utils.GetEnvAsFloat("FUSION_RULE", t.Fusion.Rule, log)

	t.InvalidationDelta = utils.GetEnvAsFloat("INVALIDATION_DELTA", t.InvalidationDelta, log)
	t.BeginnerEventThreshold = utils.GetEnvAsInt("BEGINNER_EVENT_THRESHOLD", t.BeginnerEventThreshold, log)

	t.StrongThreshold = utils.GetEnvAsFloat("STRONG_THRESHOLD", t.StrongThreshold, log)
	t.FocusBonus = utils.GetEnvAsFloat("FOCUS_BONUS", t.FocusBonus, log)
	t.MasteredPenalty = utils.GetEnvAsFloat("MASTERED_PENALTY", t.MasteredPenalty, log)
	t.PathReadinessPenalty = utils.GetEnvAsFloat("PATH_READINESS_PENALTY", t.PathReadinessPenalty, log)
	return t
}

func applyTuningFile(path string, t *engine.Tuning) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return fmt.Errorf("parse tuning file: %w", err)
	}
	return nil
}
