package study

import (
	"fmt"
	"time"

	"github.com/example/flashdeck/internal/fsrs"
	"github.com/example/flashdeck/pkg/models"
)

// previewCard computes the four hypothetical schedules without touching the
// card. Repeated calls at the same instant return identical results.
func previewCard(sched *fsrs.Scheduler, card models.Card, now time.Time) (fsrs.SchedulePreview, error) {
	if !card.State.IsValid() {
		return fsrs.SchedulePreview{}, fmt.Errorf("%w: card %d has state %d", ErrInvalidCard, card.ID, int(card.State))
	}
	return sched.Preview(card, now)
}

// commitReview applies one rating and returns the updated card together with
// the audit entry describing the transition. The input card is left as read
// from storage so callers can still see the pre-review fields.
func commitReview(sched *fsrs.Scheduler, card models.Card, rating models.Rating, now time.Time) (models.Card, models.ReviewLogEntry, error) {
	if !rating.IsValid() {
		return models.Card{}, models.ReviewLogEntry{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if !card.State.IsValid() {
		return models.Card{}, models.ReviewLogEntry{}, fmt.Errorf("%w: card %d has state %d", ErrInvalidCard, card.ID, int(card.State))
	}

	next, err := sched.Next(card, rating, now)
	if err != nil {
		return models.Card{}, models.ReviewLogEntry{}, err
	}

	entry := models.ReviewLogEntry{
		UserID:         card.UserID,
		CardID:         card.ID,
		DeckID:         card.DeckID,
		Rating:         rating,
		PrevState:      card.State,
		NewState:       next.State,
		PrevDue:        card.Due,
		NewDue:         *next.Due,
		PrevStability:  card.Stability,
		NewStability:   next.Stability,
		PrevDifficulty: card.Difficulty,
		NewDifficulty:  next.Difficulty,
		ElapsedDays:    next.ElapsedDays,
		ScheduledDays:  next.ScheduledDays,
		ReviewedAt:     now,
	}
	return next, entry, nil
}
