package models

import "time"

// WeightCount is the number of model weights the scheduling algorithm
// expects. It is fixed by the algorithm version compiled into this service.
const WeightCount = 19

// Base daily quotas applied when a user first appears.
const (
	DefaultNewPerDay        = 20
	DefaultMaxReviewsPerDay = 200
)

// SchedulingParameters is the immutable per-user parameter set the card
// scheduler is compiled from. A settings edit produces a whole new value;
// nothing mutates one in place.
type SchedulingParameters struct {
	RequestRetention float64   `json:"request_retention"`
	MaximumInterval  int       `json:"maximum_interval"`
	Weights          []float64 `json:"weights"`
	EnableFuzz       bool      `json:"enable_fuzz"`
	EnableShortTerm  bool      `json:"enable_short_term"`
}

// LearningLimits are the user's base daily quotas before any per-deck
// scaling is applied.
type LearningLimits struct {
	NewPerDay        int `json:"new_per_day" db:"new_per_day"`
	MaxReviewsPerDay int `json:"max_reviews_per_day" db:"max_reviews_per_day"`
}

// UserSettings is the persisted settings row: scheduling parameters plus
// base learning limits. Weights are stored as a JSON array in a text column.
type UserSettings struct {
	UserID           int64     `json:"user_id" db:"user_id"`
	RequestRetention float64   `json:"request_retention" db:"request_retention"`
	MaximumInterval  int       `json:"maximum_interval" db:"maximum_interval"`
	Weights          []float64 `json:"weights" db:"-"`
	EnableFuzz       bool      `json:"enable_fuzz" db:"enable_fuzz"`
	EnableShortTerm  bool      `json:"enable_short_term" db:"enable_short_term"`
	NewPerDay        int       `json:"new_per_day" db:"new_per_day"`
	MaxReviewsPerDay int       `json:"max_reviews_per_day" db:"max_reviews_per_day"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Parameters extracts the scheduler parameter set from the settings row.
func (s *UserSettings) Parameters() SchedulingParameters {
	return SchedulingParameters{
		RequestRetention: s.RequestRetention,
		MaximumInterval:  s.MaximumInterval,
		Weights:          s.Weights,
		EnableFuzz:       s.EnableFuzz,
		EnableShortTerm:  s.EnableShortTerm,
	}
}

// Limits extracts the base daily quotas from the settings row.
func (s *UserSettings) Limits() LearningLimits {
	return LearningLimits{
		NewPerDay:        s.NewPerDay,
		MaxReviewsPerDay: s.MaxReviewsPerDay,
	}
}
