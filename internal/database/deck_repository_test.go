package database

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/example/flashdeck/pkg/models"
)

func TestDeckCreateDefaultsScaler(t *testing.T) {
	setupDB(t)
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")

	if deck.ID == 0 {
		t.Fatal("create did not backfill the ID")
	}
	if deck.DailyScaler != models.DefaultDailyScaler {
		t.Errorf("DailyScaler = %v, want %v", deck.DailyScaler, models.DefaultDailyScaler)
	}

	got, err := NewDeckRepository().Deck(context.Background(), deck.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "spanish" || got.DailyScaler != 1.0 {
		t.Errorf("deck = %+v, want name spanish scaler 1.0", got)
	}
}

func TestDeckByName(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	seedDeck(t, user.ID, "spanish")
	repo := NewDeckRepository()

	got, err := repo.DeckByName(ctx, user.ID, "spanish")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if got.Name != "spanish" {
		t.Errorf("Name = %q, want spanish", got.Name)
	}
	if _, err := repo.DeckByName(ctx, user.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDecksByUserOrdered(t *testing.T) {
	setupDB(t)
	user := seedUser(t, 100)
	other := seedUser(t, 200)
	seedDeck(t, user.ID, "zoology")
	seedDeck(t, user.ID, "algebra")
	seedDeck(t, other.ID, "theirs")

	decks, err := NewDeckRepository().DecksByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(decks) != 2 || decks[0].Name != "algebra" || decks[1].Name != "zoology" {
		t.Errorf("decks = %+v, want [algebra zoology]", decks)
	}
}

func TestSetDailyScaler(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	repo := NewDeckRepository()

	if err := repo.SetDailyScaler(ctx, deck.ID, user.ID, 0.5); err != nil {
		t.Fatalf("set scaler: %v", err)
	}
	got, err := repo.Deck(ctx, deck.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DailyScaler != 0.5 {
		t.Errorf("DailyScaler = %v, want 0.5", got.DailyScaler)
	}
}

func TestSetDailyScalerRejectsBadValues(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	repo := NewDeckRepository()

	for _, scaler := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := repo.SetDailyScaler(ctx, deck.ID, user.ID, scaler); err == nil {
			t.Errorf("scaler %v accepted, want error", scaler)
		}
	}
	got, _ := repo.Deck(ctx, deck.ID, user.ID)
	if got.DailyScaler != 1.0 {
		t.Errorf("DailyScaler = %v after rejected writes, want 1.0", got.DailyScaler)
	}
}

func TestDeleteDeckRemovesCards(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	deck := seedDeck(t, user.ID, "spanish")
	keep := seedDeck(t, user.ID, "keep")
	card := seedCard(t, deck.ID, user.ID, "hola")
	kept := seedCard(t, keep.ID, user.ID, "kept")
	deckRepo := NewDeckRepository()
	cardRepo := NewCardRepository()

	if err := deckRepo.DeleteDeck(ctx, deck.ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := deckRepo.Deck(ctx, deck.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deck err = %v, want ErrNotFound", err)
	}
	if _, err := cardRepo.Card(ctx, card.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("card err = %v, want ErrNotFound", err)
	}
	if _, err := cardRepo.Card(ctx, kept.ID, user.ID); err != nil {
		t.Errorf("card in another deck disappeared: %v", err)
	}
}
