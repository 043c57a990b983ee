package database

import (
	"context"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

// ScheduleUpdate carries the scheduling fields written back to a card after
// a committed review. Content fields are untouched by schedule writes.
type ScheduleUpdate struct {
	State         models.CardState
	Due           time.Time
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	LastReview    time.Time
}

// CardCounts is the per-state card tally for one deck or a whole account.
type CardCounts struct {
	Total      int `db:"total"`
	New        int `db:"new_count"`
	Learning   int `db:"learning_count"`
	Review     int `db:"review_count"`
	Relearning int `db:"relearning_count"`
	Due        int `db:"due_count"`
}

// CardStore is the card access surface the study service and the bot build
// on. A deckID of zero widens deck-scoped queries to the whole account.
type CardStore interface {
	Card(ctx context.Context, id, userID int64) (*models.Card, error)
	CardsByDeck(ctx context.Context, deckID, userID int64) ([]models.Card, error)
	NewCards(ctx context.Context, deckID, userID int64) ([]models.Card, error)
	DueCards(ctx context.Context, deckID, userID int64, asOf time.Time) ([]models.Card, error)
	CountCards(ctx context.Context, deckID, userID int64, asOf time.Time) (CardCounts, error)
	CreateCard(ctx context.Context, card *models.Card) error
	UpdateCard(ctx context.Context, card *models.Card) error
	UpdateSchedule(ctx context.Context, id, userID int64, upd ScheduleUpdate) (*models.Card, error)
	DeleteCard(ctx context.Context, id, userID int64) error
	ResetSchedules(ctx context.Context, userID int64) error
}

// DeckStore manages deck rows and the per-deck daily scaler.
type DeckStore interface {
	Deck(ctx context.Context, id, userID int64) (*models.Deck, error)
	DeckByName(ctx context.Context, userID int64, name string) (*models.Deck, error)
	DecksByUser(ctx context.Context, userID int64) ([]models.Deck, error)
	CreateDeck(ctx context.Context, deck *models.Deck) error
	UpdateDeck(ctx context.Context, deck *models.Deck) error
	SetDailyScaler(ctx context.Context, id, userID int64, scaler float64) error
	DeleteDeck(ctx context.Context, id, userID int64) error
}

// SettingsStore serves the per-user scheduling parameters and daily limits.
// Lookups for users without a settings row return ErrNotFound; callers are
// expected to treat that as a hard failure, not to substitute defaults.
type SettingsStore interface {
	Parameters(ctx context.Context, userID int64) (models.SchedulingParameters, error)
	LearningLimits(ctx context.Context, userID int64) (models.LearningLimits, error)
	Settings(ctx context.Context, userID int64) (*models.UserSettings, error)
	Upsert(ctx context.Context, settings *models.UserSettings) error
	ResetToDefault(ctx context.Context, userID int64) error
}

// ReviewLogStore is the append-only review audit trail. The daily quota
// counters are derived from it with CountsSince.
type ReviewLogStore interface {
	Append(ctx context.Context, entry *models.ReviewLogEntry) error
	CountsSince(ctx context.Context, userID, deckID int64, since time.Time) (models.ReviewCounts, error)
	RecentByUser(ctx context.Context, userID int64, limit int) ([]models.ReviewLogEntry, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

// UserStore manages account rows keyed by Telegram identity.
type UserStore interface {
	User(ctx context.Context, id int64) (*models.User, error)
	ByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	All(ctx context.Context) ([]models.User, error)
	DemoUsers(ctx context.Context) ([]models.User, error)
}
