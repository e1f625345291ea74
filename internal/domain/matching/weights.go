package matching

import (
	"fmt"
	"math"
)

const weightTolerance = 1e-9

// Weights are the per-dimension multipliers of the total score.
type Weights struct {
	Skill      float64 `json:"skill" koanf:"skill"`
	Experience float64 `json:"experience" koanf:"experience"`
	JobType    float64 `json:"job_type" koanf:"job_type"`
	Location   float64 `json:"location" koanf:"location"`
	Salary     float64 `json:"salary" koanf:"salary"`
}

// DefaultWeights returns the production weighting. Salary keeps its share
// even though it is scored neutrally for now.
func DefaultWeights() Weights {
	return Weights{
		Skill:      0.40,
		Experience: 0.20,
		JobType:    0.15,
		Location:   0.15,
		Salary:     0.10,
	}
}

// Sum adds all weights.
func (w Weights) Sum() float64 {
	return w.Skill + w.Experience + w.JobType + w.Location + w.Salary
}

// Validate checks every weight is in [0,1] and that they add up to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skill":      w.Skill,
		"experience": w.Experience,
		"job_type":   w.JobType,
		"location":   w.Location,
		"salary":     w.Salary,
	} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s weight %v out of [0,1]", ErrInvalidWeights, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1.0", ErrInvalidWeights, sum)
	}
	return nil
}
