package engine

import (
	"sort"

	"github.com/google/uuid"
)

const (
	SourceCollaborative = "collaborative"
	SourceContentBased  = "content_based"
	SourceRuleBased     = "rule_based"

	// DefaultWeakThreshold marks a skill as weak below this mastery.
	DefaultWeakThreshold = 0.6
	// DefaultWeakCap bounds the weak-skill set.
	DefaultWeakCap = 20
	// DefaultContentDivisor normalizes raw content scores into [0,1].
	DefaultContentDivisor = 5.0
	// DefaultReadinessPenalty multiplies scores of lessons whose primary
	// skill has unmet prerequisites.
	DefaultReadinessPenalty = 0.2
)

// WeakSkill is one entry of a learner's weak-skill ranking.
type WeakSkill struct {
	SkillID string
	Mastery float64
}

// WeakSkills returns the skills below threshold ordered ascending by mastery
// (weakest first), capped. Ties break on skill id so the ranking is stable.
func WeakSkills(vector map[string]float64, threshold float64, cap int) []WeakSkill {
	out := make([]WeakSkill, 0, len(vector))
	for id, m := range vector {
		if m < threshold {
			out = append(out, WeakSkill{SkillID: id, Mastery: m})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mastery != out[j].Mastery {
			return out[i].Mastery < out[j].Mastery
		}
		return out[i].SkillID < out[j].SkillID
	})
	if cap > 0 && len(out) > cap {
		out = out[:cap]
	}
	return out
}

// RankWeight weights weak-skill contributions so earlier (weaker) ranks count
// more: (n - rank) / n for rank in [0, n).
func RankWeight(rank, n int) float64 {
	if n <= 0 || rank < 0 || rank >= n {
		return 0
	}
	return float64(n-rank) / float64(n)
}

// ScoredLesson is one entry of a single-signal ranked list.
type ScoredLesson struct {
	LessonID uuid.UUID `json:"lesson_id"`
	Score    float64   `json:"score"`
	Reason   string    `json:"reason"`
}

// FusionWeights are the hybrid blend weights for the three signals.
type FusionWeights struct {
	Collaborative float64 `yaml:"collaborative"`
	Content       float64 `yaml:"content"`
	Rule          float64 `yaml:"rule"`
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Collaborative: 0.4, Content: 0.4, Rule: 0.2}
}

// FusedLesson accumulates weighted contributions from every signal that
// scored the lesson, with source attribution.
type FusedLesson struct {
	LessonID uuid.UUID `json:"lesson_id"`
	Score    float64   `json:"score"`
	Reason   string    `json:"reason"`
	Sources  []string  `json:"sources"`
}

// Fuse merges the three ranked lists by lesson id with a weighted sum and
// returns the result sorted descending by fused score. A lesson present in
// multiple lists accumulates contributions and records every source.
func Fuse(w FusionWeights, collaborative, content, rule []ScoredLesson) []FusedLesson {
	type acc struct {
		score   float64
		reasons []string
		sources []string
	}
	merged := make(map[uuid.UUID]*acc)
	add := func(list []ScoredLesson, weight float64, source string) {
		for _, sl := range list {
			a, ok := merged[sl.LessonID]
			if !ok {
				a = &acc{}
				merged[sl.LessonID] = a
			}
			a.score += sl.Score * weight
			if sl.Reason != "" {
				a.reasons = append(a.reasons, source+": "+sl.Reason)
			}
			a.sources = append(a.sources, source)
		}
	}
	add(collaborative, w.Collaborative, SourceCollaborative)
	add(content, w.Content, SourceContentBased)
	add(rule, w.Rule, SourceRuleBased)

	out := make([]FusedLesson, 0, len(merged))
	for id, a := range merged {
		out = append(out, FusedLesson{
			LessonID: id,
			Score:    Clamp(a.score, 0, 1),
			Reason:   joinReasons(a.reasons),
			Sources:  a.sources,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].LessonID.String() < out[j].LessonID.String()
	})
	return out
}

// TopN truncates a fused ranking to at most n entries.
func TopN(items []FusedLesson, n int) []FusedLesson {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

func joinReasons(reasons []string) string {
	switch len(reasons) {
	case 0:
		return ""
	case 1:
		return reasons[0]
	}
	s := reasons[0]
	for _, r := range reasons[1:] {
		s += "; " + r
	}
	return s
}
