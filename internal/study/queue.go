// Package study is the scheduling core: it builds daily review queues,
// commits rated reviews through the FSRS scheduler, and enforces per-deck
// daily quotas derived from the review audit trail.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/internal/fsrs"
	"github.com/example/flashdeck/pkg/models"
)

// quotaWindow is the trailing window the daily counters are computed over.
// The window trails the current instant; there is no midnight reset.
const quotaWindow = 24 * time.Hour

// CardSource is the slice of card storage the study flow reads and writes.
// The database repositories satisfy it.
type CardSource interface {
	Card(ctx context.Context, id, userID int64) (*models.Card, error)
	NewCards(ctx context.Context, deckID, userID int64) ([]models.Card, error)
	DueCards(ctx context.Context, deckID, userID int64, asOf time.Time) ([]models.Card, error)
	CountCards(ctx context.Context, deckID, userID int64, asOf time.Time) (database.CardCounts, error)
	UpdateSchedule(ctx context.Context, id, userID int64, upd database.ScheduleUpdate) (*models.Card, error)
}

// DeckSource supplies the deck whose daily scaler shapes the quotas.
type DeckSource interface {
	Deck(ctx context.Context, id, userID int64) (*models.Deck, error)
}

// SettingsSource resolves per-user parameters and base daily limits.
type SettingsSource interface {
	ParameterSource
	LearningLimits(ctx context.Context, userID int64) (models.LearningLimits, error)
}

// ReviewLog is the append-only audit trail the quota counters derive from.
type ReviewLog interface {
	Append(ctx context.Context, entry *models.ReviewLogEntry) error
	CountsSince(ctx context.Context, userID, deckID int64, since time.Time) (models.ReviewCounts, error)
}

// Config wires the service's collaborators. Cache, Logger, Rand and Now may
// be left nil; sensible defaults are filled in.
type Config struct {
	Cards    CardSource
	Decks    DeckSource
	Settings SettingsSource
	Logs     ReviewLog
	Cache    *ParamCache
	Logger   *slog.Logger
	Rand     *rand.Rand
	Now      func() time.Time
}

// Service exposes the study operations the bot drives: BuildQueue,
// SubmitReview and PreviewMetrics. It owns no card state of its own; every
// decision is derived from the stores on each call.
type Service struct {
	cards    CardSource
	decks    DeckSource
	settings SettingsSource
	logs     ReviewLog
	cache    *ParamCache
	logger   *slog.Logger
	now      func() time.Time

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

func NewService(cfg Config) *Service {
	s := &Service{
		cards:    cfg.Cards,
		decks:    cfg.Decks,
		settings: cfg.Settings,
		logs:     cfg.Logs,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		now:      cfg.Now,
		rng:      cfg.Rand,
	}
	if s.cache == nil {
		s.cache = NewParamCache(cfg.Settings)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// InvalidateParameters drops the user's cached scheduler. Call it after any
// settings change so the next operation compiles fresh parameters.
func (s *Service) InvalidateParameters(userID int64) {
	s.cache.Invalidate(userID)
}

// BuildQueue assembles the next study batch for the user, scoped to one deck
// or, with deckID zero, to the whole account. Cards beyond the remaining
// daily quotas are left for tomorrow; the returned batch is shuffled so new
// and due cards interleave.
func (s *Service) BuildQueue(ctx context.Context, userID, deckID int64) (QueueResult, error) {
	now := s.now()
	limits, counts, err := s.dailyState(ctx, userID, deckID, now)
	if err != nil {
		return nil, err
	}
	progress := buildProgress(limits, counts)
	newRemaining := remainingQuota(limits.NewCardsLimit, counts.NewCards)
	reviewRemaining := remainingQuota(limits.ReviewCardsLimit, counts.ReviewCards)
	if newRemaining == 0 && reviewRemaining == 0 {
		return DailyLimitReached{Progress: progress}, nil
	}

	var newCards, dueCards []models.Card
	if newRemaining > 0 {
		if newCards, err = s.cards.NewCards(ctx, deckID, userID); err != nil {
			return nil, err
		}
	}
	if reviewRemaining > 0 {
		if dueCards, err = s.cards.DueCards(ctx, deckID, userID, now); err != nil {
			return nil, err
		}
	}

	batch := s.assembleBatch(newCards, dueCards, newRemaining, reviewRemaining)
	if len(batch) == 0 {
		tally, err := s.cards.CountCards(ctx, deckID, userID, now)
		if err != nil {
			return nil, err
		}
		if tally.Total == 0 {
			return EmptyDeck{Progress: progress}, nil
		}
		return AllCaughtUp{TotalCards: tally.Total, Progress: progress}, nil
	}

	sched, err := s.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]QueueItem, 0, len(batch))
	for _, card := range batch {
		preview, err := previewCard(sched, card, now)
		if err != nil {
			return nil, err
		}
		items = append(items, QueueItem{Card: card, Preview: preview})
	}
	return Ready{Cards: items, Progress: progress}, nil
}

// SubmitReview commits one rating for a card. The quota is re-checked here
// against the card's pre-review category, so a queue that went stale while
// the user was away cannot overrun the budget. A zero reviewedAt means
// "now".
func (s *Service) SubmitReview(ctx context.Context, userID, cardID int64, rating models.Rating, reviewedAt time.Time) (SubmitResult, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if reviewedAt.IsZero() {
		reviewedAt = s.now()
	}

	card, err := s.cards.Card(ctx, cardID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return NotFound{}, nil
		}
		return nil, err
	}

	limits, counts, err := s.dailyState(ctx, userID, card.DeckID, reviewedAt)
	if err != nil {
		return nil, err
	}
	if card.State.IsNew() {
		if remainingQuota(limits.NewCardsLimit, counts.NewCards) == 0 {
			return DailyLimitReached{Progress: buildProgress(limits, counts)}, nil
		}
	} else if remainingQuota(limits.ReviewCardsLimit, counts.ReviewCards) == 0 {
		return DailyLimitReached{Progress: buildProgress(limits, counts)}, nil
	}

	sched, err := s.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, entry, err := commitReview(sched, *card, rating, reviewedAt)
	if err != nil {
		return nil, err
	}

	upd := database.ScheduleUpdate{
		State:         next.State,
		Due:           *next.Due,
		Stability:     next.Stability,
		Difficulty:    next.Difficulty,
		ElapsedDays:   next.ElapsedDays,
		ScheduledDays: next.ScheduledDays,
		Reps:          next.Reps,
		Lapses:        next.Lapses,
		LastReview:    *next.LastReview,
	}
	stored, err := s.cards.UpdateSchedule(ctx, cardID, userID, upd)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return NotFound{}, nil
		}
		return nil, err
	}

	// The review itself is already durable; a lost audit row only skews the
	// daily counters, so log and move on.
	if err := s.logs.Append(ctx, &entry); err != nil {
		s.logger.Warn("review log append failed",
			"user_id", userID, "card_id", cardID, "error", err)
	}
	return Committed{Card: *stored}, nil
}

// PreviewMetrics returns the four hypothetical schedules for a card so the
// caller can label rating buttons with the intervals they would produce.
func (s *Service) PreviewMetrics(ctx context.Context, userID int64, card models.Card) (fsrs.SchedulePreview, error) {
	sched, err := s.cache.Get(ctx, userID)
	if err != nil {
		return fsrs.SchedulePreview{}, err
	}
	return previewCard(sched, card, s.now())
}

// dailyState resolves the scaled limits and trailing-window counters for one
// user+deck scope. Both BuildQueue and SubmitReview derive their quota
// decisions from it.
func (s *Service) dailyState(ctx context.Context, userID, deckID int64, now time.Time) (DailyLimits, models.ReviewCounts, error) {
	base, err := s.settings.LearningLimits(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return DailyLimits{}, models.ReviewCounts{}, fmt.Errorf("%w: user %d: %w", ErrParametersUnavailable, userID, err)
		}
		return DailyLimits{}, models.ReviewCounts{}, err
	}

	scaler := models.DefaultDailyScaler
	if deckID != 0 {
		deck, err := s.decks.Deck(ctx, deckID, userID)
		if err != nil {
			return DailyLimits{}, models.ReviewCounts{}, err
		}
		scaler = deck.DailyScaler
	}

	counts, err := s.logs.CountsSince(ctx, userID, deckID, now.Add(-quotaWindow))
	if err != nil {
		return DailyLimits{}, models.ReviewCounts{}, err
	}
	return scaleLimits(base, scaler), counts, nil
}

// assembleBatch trims each category to its remaining quota with a uniform
// random pick, merges and shuffles. Only this method touches the rng.
func (s *Service) assembleBatch(newCards, dueCards []models.Card, newRemaining, reviewRemaining int) []models.Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(newCards) > newRemaining {
		newCards = sampleCards(s.rng, newCards, newRemaining)
	}
	if len(dueCards) > reviewRemaining {
		dueCards = sampleCards(s.rng, dueCards, reviewRemaining)
	}
	batch := make([]models.Card, 0, len(newCards)+len(dueCards))
	batch = append(batch, newCards...)
	batch = append(batch, dueCards...)
	s.rng.Shuffle(len(batch), func(i, j int) {
		batch[i], batch[j] = batch[j], batch[i]
	})
	return batch
}

func sampleCards(rng *rand.Rand, cards []models.Card, n int) []models.Card {
	out := make([]models.Card, 0, n)
	for _, i := range rng.Perm(len(cards))[:n] {
		out = append(out, cards[i])
	}
	return out
}
