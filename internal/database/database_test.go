package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/flashdeck/pkg/models"
)

// setupDB points the package at a fresh sqlite file under t.TempDir and
// runs the schema init through the same Connect path production uses.
func setupDB(t *testing.T) {
	t.Helper()
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "flashdeck-test.db"))
	if err := Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func seedUser(t *testing.T, telegramID int64) *models.User {
	t.Helper()
	user := &models.User{TelegramID: telegramID, Username: "tester", FirstName: "Test"}
	if err := NewUserRepository().Upsert(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedDeck(t *testing.T, userID int64, name string) *models.Deck {
	t.Helper()
	deck := &models.Deck{UserID: userID, Name: name}
	if err := NewDeckRepository().CreateDeck(context.Background(), deck); err != nil {
		t.Fatalf("seed deck: %v", err)
	}
	return deck
}

func seedCard(t *testing.T, deckID, userID int64, front string) *models.Card {
	t.Helper()
	card := &models.Card{DeckID: deckID, UserID: userID, Front: front, Back: "back of " + front}
	if err := NewCardRepository().CreateCard(context.Background(), card); err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return card
}
