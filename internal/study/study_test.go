package study

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/internal/fsrs"
	"github.com/example/flashdeck/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// fakeCards is an in-memory CardSource that counts fetches, so tests can
// assert which queries a code path actually ran.
type fakeCards struct {
	byID      map[int64]*models.Card
	fresh     []models.Card
	due       []models.Card
	tally     database.CardCounts
	updateErr error

	newCalls    int
	dueCalls    int
	countCalls  int
	updateCalls int
}

func (f *fakeCards) Card(_ context.Context, id, userID int64) (*models.Card, error) {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("card %d: %w", id, database.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCards) NewCards(_ context.Context, _, _ int64) ([]models.Card, error) {
	f.newCalls++
	return f.fresh, nil
}

func (f *fakeCards) DueCards(_ context.Context, _, _ int64, _ time.Time) ([]models.Card, error) {
	f.dueCalls++
	return f.due, nil
}

func (f *fakeCards) CountCards(_ context.Context, _, _ int64, _ time.Time) (database.CardCounts, error) {
	f.countCalls++
	return f.tally, nil
}

func (f *fakeCards) UpdateSchedule(_ context.Context, id, userID int64, upd database.ScheduleUpdate) (*models.Card, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("row %d: %w", id, database.ErrNotFound)
	}
	due := upd.Due
	last := upd.LastReview
	c.State = upd.State
	c.Due = &due
	c.Stability = upd.Stability
	c.Difficulty = upd.Difficulty
	c.ElapsedDays = upd.ElapsedDays
	c.ScheduledDays = upd.ScheduledDays
	c.Reps = upd.Reps
	c.Lapses = upd.Lapses
	c.LastReview = &last
	cp := *c
	return &cp, nil
}

type fakeDecks struct {
	byID  map[int64]*models.Deck
	calls int
}

func (f *fakeDecks) Deck(_ context.Context, id, userID int64) (*models.Deck, error) {
	f.calls++
	d, ok := f.byID[id]
	if !ok || d.UserID != userID {
		return nil, fmt.Errorf("deck %d: %w", id, database.ErrNotFound)
	}
	dp := *d
	return &dp, nil
}

type fakeSettings struct {
	params    models.SchedulingParameters
	limits    models.LearningLimits
	paramsErr error
	limitsErr error

	paramCalls int
	limitCalls int
}

func (f *fakeSettings) Parameters(_ context.Context, _ int64) (models.SchedulingParameters, error) {
	f.paramCalls++
	if f.paramsErr != nil {
		return models.SchedulingParameters{}, f.paramsErr
	}
	return f.params, nil
}

func (f *fakeSettings) LearningLimits(_ context.Context, _ int64) (models.LearningLimits, error) {
	f.limitCalls++
	if f.limitsErr != nil {
		return models.LearningLimits{}, f.limitsErr
	}
	return f.limits, nil
}

type fakeLogs struct {
	counts    models.ReviewCounts
	countsErr error
	appendErr error

	entries    []models.ReviewLogEntry
	lastSince  time.Time
	countCalls int
}

func (f *fakeLogs) Append(_ context.Context, entry *models.ReviewLogEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLogs) CountsSince(_ context.Context, _, _ int64, since time.Time) (models.ReviewCounts, error) {
	f.countCalls++
	f.lastSince = since
	if f.countsErr != nil {
		return models.ReviewCounts{}, f.countsErr
	}
	return f.counts, nil
}

// fixture bundles the fakes behind a service frozen at t0.
type fixture struct {
	cards    *fakeCards
	decks    *fakeDecks
	settings *fakeSettings
	logs     *fakeLogs
	svc      *Service
}

func newFixture(seed int64) *fixture {
	f := &fixture{
		cards: &fakeCards{byID: make(map[int64]*models.Card)},
		decks: &fakeDecks{byID: make(map[int64]*models.Deck)},
		settings: &fakeSettings{
			params: fsrs.DefaultParameters(),
			limits: models.LearningLimits{NewPerDay: 5, MaxReviewsPerDay: 10},
		},
		logs: &fakeLogs{},
	}
	f.svc = NewService(Config{
		Cards:    f.cards,
		Decks:    f.decks,
		Settings: f.settings,
		Logs:     f.logs,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Rand:     rand.New(rand.NewSource(seed)),
		Now:      func() time.Time { return t0 },
	})
	return f
}

func (f *fixture) addDeck(id int64, scaler float64) {
	f.decks.byID[id] = &models.Deck{ID: id, UserID: 1, Name: fmt.Sprintf("deck-%d", id), DailyScaler: scaler}
}

// addFresh seeds n never-reviewed cards starting at the given id.
func (f *fixture) addFresh(startID int64, deckID int64, n int) {
	for i := 0; i < n; i++ {
		card := models.Card{
			ID:     startID + int64(i),
			DeckID: deckID,
			UserID: 1,
			Front:  fmt.Sprintf("front %d", startID+int64(i)),
			State:  models.StateNew,
		}
		f.cards.fresh = append(f.cards.fresh, card)
		cp := card
		f.cards.byID[card.ID] = &cp
	}
	f.cards.tally.Total += n
	f.cards.tally.New += n
}

// addDue seeds n review-state cards that came due an hour before t0.
func (f *fixture) addDue(startID int64, deckID int64, n int) {
	due := t0.Add(-time.Hour)
	last := t0.Add(-5 * 24 * time.Hour)
	for i := 0; i < n; i++ {
		card := models.Card{
			ID:            startID + int64(i),
			DeckID:        deckID,
			UserID:        1,
			Front:         fmt.Sprintf("front %d", startID+int64(i)),
			State:         models.StateReview,
			Due:           &due,
			Stability:     5,
			Difficulty:    5,
			ScheduledDays: 5,
			Reps:          3,
			LastReview:    &last,
		}
		f.cards.due = append(f.cards.due, card)
		cp := card
		f.cards.byID[card.ID] = &cp
	}
	f.cards.tally.Total += n
	f.cards.tally.Review += n
	f.cards.tally.Due += n
}

func mustReady(t *testing.T, res QueueResult) Ready {
	t.Helper()
	ready, ok := res.(Ready)
	if !ok {
		t.Fatalf("queue result = %T, want Ready", res)
	}
	return ready
}
