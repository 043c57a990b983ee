package study

import (
	"math"

	"github.com/example/flashdeck/pkg/models"
)

// DailyLimits holds the per-deck card budgets after the deck's daily scaler
// has been applied.
type DailyLimits struct {
	NewCardsLimit    int
	ReviewCardsLimit int
}

// Progress describes where the user stands against today's budgets. Seen
// counts cover the trailing 24 hours.
type Progress struct {
	NewCardsSeen     int `json:"new_cards_seen"`
	NewCardsLimit    int `json:"new_cards_limit"`
	ReviewCardsSeen  int `json:"review_cards_seen"`
	ReviewCardsLimit int `json:"review_cards_limit"`
	TotalRemaining   int `json:"total_remaining"`
}

// scaleLimits applies a deck's daily scaler to the user's base limits,
// truncating toward zero. A scaler below 1/limit therefore yields zero.
func scaleLimits(base models.LearningLimits, scaler float64) DailyLimits {
	return DailyLimits{
		NewCardsLimit:    int(math.Floor(float64(base.NewPerDay) * scaler)),
		ReviewCardsLimit: int(math.Floor(float64(base.MaxReviewsPerDay) * scaler)),
	}
}

// remainingQuota never goes negative, even when counted reviews exceed the
// limit after a scaler was lowered mid-day.
func remainingQuota(limit, seen int) int {
	return max(0, limit-seen)
}

func buildProgress(limits DailyLimits, counts models.ReviewCounts) Progress {
	return Progress{
		NewCardsSeen:     counts.NewCards,
		NewCardsLimit:    limits.NewCardsLimit,
		ReviewCardsSeen:  counts.ReviewCards,
		ReviewCardsLimit: limits.ReviewCardsLimit,
		TotalRemaining: remainingQuota(limits.NewCardsLimit, counts.NewCards) +
			remainingQuota(limits.ReviewCardsLimit, counts.ReviewCards),
	}
}
