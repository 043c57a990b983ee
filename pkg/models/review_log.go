package models

import "time"

// ReviewLogEntry is the immutable audit record of one committed review.
// Entries are only ever appended; the daily quota counters are derived by
// counting them over a trailing window.
type ReviewLogEntry struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	CardID         int64      `json:"card_id" db:"card_id"`
	DeckID         int64      `json:"deck_id" db:"deck_id"`
	Rating         Rating     `json:"rating" db:"rating"`
	PrevState      CardState  `json:"prev_state" db:"prev_state"`
	NewState       CardState  `json:"new_state" db:"new_state"`
	PrevDue        *time.Time `json:"prev_due" db:"prev_due"`
	NewDue         time.Time  `json:"new_due" db:"new_due"`
	PrevStability  float64    `json:"prev_stability" db:"prev_stability"`
	NewStability   float64    `json:"new_stability" db:"new_stability"`
	PrevDifficulty float64    `json:"prev_difficulty" db:"prev_difficulty"`
	NewDifficulty  float64    `json:"new_difficulty" db:"new_difficulty"`
	ElapsedDays    int        `json:"elapsed_days" db:"elapsed_days"`
	ScheduledDays  int        `json:"scheduled_days" db:"scheduled_days"`
	ReviewedAt     time.Time  `json:"reviewed_at" db:"reviewed_at"`
}

// ReviewCounts holds how many new-card and review-card submissions a user
// made within the counting window, optionally scoped to one deck. The split
// follows the card's state before the review: a card reviewed out of StateNew
// counts as a new-card submission regardless of the state it landed in.
type ReviewCounts struct {
	NewCards    int `json:"new_cards" db:"new_cards"`
	ReviewCards int `json:"review_cards" db:"review_cards"`
}
