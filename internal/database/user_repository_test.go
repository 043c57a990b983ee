package database

import (
	"context"
	"errors"
	"testing"

	"github.com/example/flashdeck/pkg/models"
)

func TestUserUpsertInsertsThenRefreshes(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	repo := NewUserRepository()

	user := &models.User{TelegramID: 42, Username: "first", FirstName: "Ann", IsAdmin: true}
	if err := repo.Upsert(ctx, user); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("upsert did not backfill the ID")
	}

	// A returning user refreshes profile fields but keeps the flags.
	again := &models.User{TelegramID: 42, Username: "renamed", FirstName: "Ann"}
	if err := repo.Upsert(ctx, again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("ID changed across upserts: %d vs %d", again.ID, user.ID)
	}
	if again.Username != "renamed" {
		t.Errorf("Username = %q, want renamed", again.Username)
	}
	if !again.IsAdmin {
		t.Error("IsAdmin flag lost on re-upsert")
	}
}

func TestUserByTelegramID(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	seeded := seedUser(t, 42)
	repo := NewUserRepository()

	got, err := repo.ByTelegramID(ctx, 42)
	if err != nil {
		t.Fatalf("by telegram id: %v", err)
	}
	if got.ID != seeded.ID {
		t.Errorf("ID = %d, want %d", got.ID, seeded.ID)
	}
	if _, err := repo.ByTelegramID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDemoUsers(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	repo := NewUserRepository()

	regular := &models.User{TelegramID: 1, Username: "regular"}
	demo := &models.User{TelegramID: 2, Username: "demo", IsDemo: true}
	if err := repo.Upsert(ctx, regular); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, demo); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	demos, err := repo.DemoUsers(ctx)
	if err != nil {
		t.Fatalf("demo users: %v", err)
	}
	if len(demos) != 1 || demos[0].TelegramID != 2 {
		t.Errorf("demo users = %+v, want only telegram 2", demos)
	}
}
