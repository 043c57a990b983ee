package study

import (
	"github.com/example/flashdeck/internal/fsrs"
	"github.com/example/flashdeck/pkg/models"
)

// QueueItem pairs a card with the schedule each rating would produce, so the
// caller can show interval hints on the answer buttons without another call.
type QueueItem struct {
	Card    models.Card          `json:"card"`
	Preview fsrs.SchedulePreview `json:"preview"`
}

// QueueResult is the outcome of building a review queue. Exactly one of the
// concrete types below is returned; switch on it to render the session.
type QueueResult interface {
	queueResult()
}

// SubmitResult is the outcome of submitting one review.
type SubmitResult interface {
	submitResult()
}

// Ready carries a shuffled, quota-capped batch of cards to study now.
type Ready struct {
	Cards    []QueueItem `json:"cards"`
	Progress Progress    `json:"progress"`
}

// DailyLimitReached means both daily budgets are spent. It doubles as a
// submission outcome when the reviewed card's category has no quota left.
type DailyLimitReached struct {
	Progress Progress `json:"progress"`
}

// EmptyDeck means the scope holds no cards at all.
type EmptyDeck struct {
	Progress Progress `json:"progress"`
}

// AllCaughtUp means cards exist but none are currently due or new.
type AllCaughtUp struct {
	TotalCards int      `json:"total_cards"`
	Progress   Progress `json:"progress"`
}

// NotFound means the card vanished or changed owner between read and write.
type NotFound struct{}

// Committed reports a successfully stored review.
type Committed struct {
	Card models.Card `json:"card"`
}

func (Ready) queueResult()             {}
func (DailyLimitReached) queueResult() {}
func (EmptyDeck) queueResult()         {}
func (AllCaughtUp) queueResult()       {}

func (DailyLimitReached) submitResult() {}
func (NotFound) submitResult()          {}
func (Committed) submitResult()         {}
