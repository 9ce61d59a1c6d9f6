package model

import (
	"fmt"
	"math"
	"strings"
)

// Weights sets how much each signal contributes to the total score. They must sum to 1.
type Weights struct {
	Mutual   float64 `yaml:"mutual"`
	Interest float64 `yaml:"interest"`
	Activity float64 `yaml:"activity"`
}

// Caps are the signal counts at which the mutual and activity components saturate.
type Caps struct {
	Mutual   float64 `yaml:"mutual"`
	Activity float64 `yaml:"activity"`
}

var (
	DefaultWeights = Weights{Mutual: 0.4, Interest: 0.4, Activity: 0.2}
	DefaultCaps    = Caps{Mutual: 5, Activity: 10}
)

const weightSumTolerance = 1e-9

// Validate fails unless every weight is non-negative and they sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"mutual": w.Mutual, "interest": w.Interest, "activity": w.Activity} {
		if v < 0 || math.IsNaN(v) {
			return &ConfigurationError{Field: "weights." + name, Reason: fmt.Sprintf("must be non-negative, got %v", v)}
		}
	}
	sum := w.Mutual + w.Interest + w.Activity
	if math.Abs(sum-1) > weightSumTolerance {
		return &ConfigurationError{Field: "weights", Reason: fmt.Sprintf("must sum to 1.0, got %v", sum)}
	}
	return nil
}

// Validate fails unless both caps are positive.
func (c Caps) Validate() error {
	if !(c.Mutual > 0) {
		return &ConfigurationError{Field: "caps.mutual", Reason: fmt.Sprintf("must be positive, got %v", c.Mutual)}
	}
	if !(c.Activity > 0) {
		return &ConfigurationError{Field: "caps.activity", Reason: fmt.Sprintf("must be positive, got %v", c.Activity)}
	}
	return nil
}

// Scorer combines similarity signals into one score.
type Scorer struct {
	Weights Weights
	Caps    Caps
}

// DefaultScorer uses DefaultWeights and DefaultCaps.
func DefaultScorer() Scorer { return Scorer{Weights: DefaultWeights, Caps: DefaultCaps} }

func (s Scorer) Validate() error {
	if err := s.Weights.Validate(); err != nil {
		return err
	}
	return s.Caps.Validate()
}

// Compose turns a Similarity into a ScoreBreakdown.
// Mutual connections and activity overlap are scaled against their caps and
// clipped at 1; the interest score is already a Jaccard ratio.
func (s Scorer) Compose(sim Similarity) ScoreBreakdown {
	mutual := math.Min(float64(sim.MutualCount)/s.Caps.Mutual, 1)
	activity := math.Min(float64(sim.ActivityOverlap)/s.Caps.Activity, 1)
	total := s.Weights.Mutual*mutual + s.Weights.Interest*sim.InterestScore + s.Weights.Activity*activity
	return ScoreBreakdown{
		Total:           total,
		MutualCount:     sim.MutualCount,
		CommonInterests: sim.CommonInterests,
		ActivityOverlap: sim.ActivityOverlap,
		InterestScore:   sim.InterestScore,
		MutualProfiles:  sim.MutualConnections,
	}
}

// Reason explains a breakdown, e.g. "Based on 1 mutual connection, 3 common interests".
func Reason(b ScoreBreakdown) string {
	var parts []string
	if b.MutualCount > 0 {
		parts = append(parts, plural(b.MutualCount, "mutual connection"))
	}
	if b.CommonInterests > 0 {
		parts = append(parts, plural(b.CommonInterests, "common interest"))
	}
	if b.ActivityOverlap > 0 {
		parts = append(parts, "similar activity patterns")
	}
	if len(parts) == 0 {
		return "Based on your network"
	}
	return "Based on " + strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
