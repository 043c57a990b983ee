package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

func TestCardCreateAndGet(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	repo := NewCardRepository()

	card := &models.Card{DeckID: deck.ID, UserID: user.ID, Front: "hola", Back: "hello"}
	if err := repo.CreateCard(ctx, card); err != nil {
		t.Fatalf("create: %v", err)
	}
	if card.ID == 0 {
		t.Fatal("create did not backfill the ID")
	}

	got, err := repo.Card(ctx, card.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Front != "hola" || got.Back != "hello" {
		t.Errorf("content = %q/%q, want hola/hello", got.Front, got.Back)
	}
	if got.State != models.StateNew {
		t.Errorf("State = %v, want New", got.State)
	}
	if got.Due != nil || got.LastReview != nil {
		t.Errorf("Due, LastReview = %v, %v, want nil for an unreviewed card", got.Due, got.LastReview)
	}
}

func TestCardNotFound(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	card := seedCard(t, deck.ID, user.ID, "hola")
	repo := NewCardRepository()

	if _, err := repo.Card(ctx, 9999, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
	// A card is invisible to anyone but its owner.
	if _, err := repo.Card(ctx, card.ID, user.ID+1); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong owner: err = %v, want ErrNotFound", err)
	}
}

func TestNewAndDueCardFiltering(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	user := seedUser(t, 100)
	deckA := seedDeck(t, user.ID, "a")
	deckB := seedDeck(t, user.ID, "b")
	repo := NewCardRepository()

	seedCard(t, deckA.ID, user.ID, "new-1")
	seedCard(t, deckA.ID, user.ID, "new-2")
	seedCard(t, deckB.ID, user.ID, "new-3")

	makeReview := func(deckID int64, front string, due time.Time) {
		card := seedCard(t, deckID, user.ID, front)
		_, err := repo.UpdateSchedule(ctx, card.ID, user.ID, ScheduleUpdate{
			State: models.StateReview, Due: due, Stability: 5, Difficulty: 5,
			ScheduledDays: 5, Reps: 1, LastReview: due.AddDate(0, 0, -5),
		})
		if err != nil {
			t.Fatalf("schedule %s: %v", front, err)
		}
	}
	makeReview(deckA.ID, "due-past", now.Add(-time.Hour))
	makeReview(deckA.ID, "due-future", now.Add(48*time.Hour))
	makeReview(deckB.ID, "due-other-deck", now.Add(-2*time.Hour))

	newA, err := repo.NewCards(ctx, deckA.ID, user.ID)
	if err != nil {
		t.Fatalf("new cards: %v", err)
	}
	if len(newA) != 2 {
		t.Errorf("deck A new cards = %d, want 2", len(newA))
	}

	newAll, err := repo.NewCards(ctx, 0, user.ID)
	if err != nil {
		t.Fatalf("new cards all decks: %v", err)
	}
	if len(newAll) != 3 {
		t.Errorf("all-deck new cards = %d, want 3", len(newAll))
	}

	dueA, err := repo.DueCards(ctx, deckA.ID, user.ID, now)
	if err != nil {
		t.Fatalf("due cards: %v", err)
	}
	if len(dueA) != 1 || dueA[0].Front != "due-past" {
		t.Errorf("deck A due cards = %+v, want only due-past", dueA)
	}

	dueAll, err := repo.DueCards(ctx, 0, user.ID, now)
	if err != nil {
		t.Fatalf("due cards all decks: %v", err)
	}
	if len(dueAll) != 2 {
		t.Errorf("all-deck due cards = %d, want 2", len(dueAll))
	}
	// Ordered by due date, oldest first.
	if len(dueAll) == 2 && dueAll[0].Front != "due-other-deck" {
		t.Errorf("due order = %s first, want due-other-deck", dueAll[0].Front)
	}
}

func TestUpdateSchedule(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	card := seedCard(t, deck.ID, user.ID, "hola")
	repo := NewCardRepository()

	reviewedAt := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	due := reviewedAt.Add(10 * time.Minute)
	got, err := repo.UpdateSchedule(ctx, card.ID, user.ID, ScheduleUpdate{
		State: models.StateLearning, Due: due, Stability: 3.1262, Difficulty: 5.3,
		ElapsedDays: 0, ScheduledDays: 0, Reps: 1, Lapses: 0, LastReview: reviewedAt,
	})
	if err != nil {
		t.Fatalf("update schedule: %v", err)
	}
	if got.State != models.StateLearning || got.Reps != 1 {
		t.Errorf("State, Reps = %v, %d, want Learning, 1", got.State, got.Reps)
	}
	if got.Due == nil || !got.Due.Equal(due) {
		t.Errorf("Due = %v, want %v", got.Due, due)
	}
	if got.LastReview == nil || !got.LastReview.Equal(reviewedAt) {
		t.Errorf("LastReview = %v, want %v", got.LastReview, reviewedAt)
	}
	if got.Front != "hola" {
		t.Errorf("schedule write touched content: Front = %q", got.Front)
	}
}

func TestUpdateScheduleWrongOwner(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	card := seedCard(t, deck.ID, user.ID, "hola")
	repo := NewCardRepository()

	_, err := repo.UpdateSchedule(ctx, card.ID, user.ID+1, ScheduleUpdate{
		State: models.StateReview, Due: time.Now(), Reps: 1, LastReview: time.Now(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// The row must be untouched.
	got, err := repo.Card(ctx, card.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != models.StateNew || got.Reps != 0 {
		t.Errorf("card changed by rejected write: state %v reps %d", got.State, got.Reps)
	}
}

func TestCountCards(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	repo := NewCardRepository()

	seedCard(t, deck.ID, user.ID, "new-1")
	seedCard(t, deck.ID, user.ID, "new-2")
	learning := seedCard(t, deck.ID, user.ID, "learning")
	review := seedCard(t, deck.ID, user.ID, "review")
	if _, err := repo.UpdateSchedule(ctx, learning.ID, user.ID, ScheduleUpdate{
		State: models.StateLearning, Due: now.Add(-time.Minute), Reps: 1, LastReview: now.Add(-11 * time.Minute),
	}); err != nil {
		t.Fatalf("schedule learning: %v", err)
	}
	if _, err := repo.UpdateSchedule(ctx, review.ID, user.ID, ScheduleUpdate{
		State: models.StateReview, Due: now.Add(72 * time.Hour), Reps: 2, LastReview: now,
	}); err != nil {
		t.Fatalf("schedule review: %v", err)
	}

	counts, err := repo.CountCards(ctx, deck.ID, user.ID, now)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	want := CardCounts{Total: 4, New: 2, Learning: 1, Review: 1, Due: 1}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}
}

func TestCountCardsEmpty(t *testing.T) {
	setupDB(t)
	user := seedUser(t, 100)
	counts, err := NewCardRepository().CountCards(context.Background(), 0, user.ID, time.Now())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts != (CardCounts{}) {
		t.Errorf("counts = %+v, want all zero", counts)
	}
}

func TestResetSchedules(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	card := seedCard(t, deck.ID, user.ID, "hola")
	repo := NewCardRepository()

	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	if _, err := repo.UpdateSchedule(ctx, card.ID, user.ID, ScheduleUpdate{
		State: models.StateReview, Due: now.AddDate(0, 0, 3), Stability: 7, Difficulty: 4,
		ScheduledDays: 3, Reps: 5, Lapses: 1, LastReview: now,
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := repo.ResetSchedules(ctx, user.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, err := repo.Card(ctx, card.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != models.StateNew || got.Due != nil || got.LastReview != nil ||
		got.Reps != 0 || got.Lapses != 0 || got.Stability != 0 {
		t.Errorf("card not pristine after reset: %+v", got)
	}
	if got.Front != "hola" {
		t.Errorf("reset touched content: Front = %q", got.Front)
	}
}

func TestDeleteCard(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	card := seedCard(t, deck.ID, user.ID, "hola")
	repo := NewCardRepository()

	if err := repo.DeleteCard(ctx, card.ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Card(ctx, card.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteCard(ctx, card.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
