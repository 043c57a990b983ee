package models

import (
	"fmt"
	"time"
)

// CardState identifies which scheduling branch applies to a card.
type CardState int

const (
	// StateNew marks a card that has never been reviewed.
	StateNew CardState = iota
	// StateLearning marks a card in its initial short-term learning steps.
	StateLearning
	// StateReview marks a card in the long-term review cycle.
	StateReview
	// StateRelearning marks a forgotten card repeating short-term steps.
	StateRelearning
)

var stateNames = [...]string{
	StateNew:        "New",
	StateLearning:   "Learning",
	StateReview:     "Review",
	StateRelearning: "Relearning",
}

// String returns the state name, or "CardState(n)" for invalid values.
func (s CardState) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("CardState(%d)", int(s))
}

// IsValid reports whether s is one of the four defined states.
func (s CardState) IsValid() bool {
	return s >= StateNew && s <= StateRelearning
}

// IsNew reports whether the state belongs to the new-card daily quota
// category. Every other state charges the review quota.
func (s CardState) IsNew() bool {
	return s == StateNew
}

// Rating is the user's self-assessed recall quality on the 4-grade scale.
type Rating int

const (
	RatingAgain Rating = iota + 1 // complete failure to recall
	RatingHard                    // recalled with significant difficulty
	RatingGood                    // recalled with some effort
	RatingEasy                    // recalled effortlessly
)

var ratingNames = [...]string{
	RatingAgain: "Again",
	RatingHard:  "Hard",
	RatingGood:  "Good",
	RatingEasy:  "Easy",
}

// String returns the rating name, or "Rating(n)" for invalid values.
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// IsValid reports whether r is one of the four defined grades.
func (r Rating) IsValid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// Card is a flashcard together with its spaced-repetition schedule state.
// Due and LastReview are nil until the first review; Stability, Difficulty
// and Reps are zero while the card is in StateNew.
type Card struct {
	ID            int64      `json:"id" db:"id"`
	DeckID        int64      `json:"deck_id" db:"deck_id"`
	UserID        int64      `json:"user_id" db:"user_id"`
	Front         string     `json:"front" db:"front"`
	Back          string     `json:"back" db:"back"`
	State         CardState  `json:"state" db:"state"`
	Due           *time.Time `json:"due" db:"due"`
	Stability     float64    `json:"stability" db:"stability"`
	Difficulty    float64    `json:"difficulty" db:"difficulty"`
	ElapsedDays   int        `json:"elapsed_days" db:"elapsed_days"`
	ScheduledDays int        `json:"scheduled_days" db:"scheduled_days"`
	Reps          int        `json:"reps" db:"reps"`
	Lapses        int        `json:"lapses" db:"lapses"`
	LastReview    *time.Time `json:"last_review" db:"last_review"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsDue reports whether the card may be presented at the given time.
// New cards carry no due date and are always presentable (subject to the
// daily new-card quota).
func (c *Card) IsDue(now time.Time) bool {
	if c.State == StateNew {
		return true
	}
	return c.Due != nil && !c.Due.After(now)
}
