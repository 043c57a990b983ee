package models

import "time"

// DefaultDailyScaler is the per-deck quota multiplier applied when a deck
// does not override it.
const DefaultDailyScaler = 1.0

// Deck groups a user's cards and carries the per-deck daily quota scaler.
type Deck struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	DailyScaler float64   `json:"daily_scaler" db:"daily_scaler"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
