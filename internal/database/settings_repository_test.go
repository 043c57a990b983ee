package database

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/example/flashdeck/internal/fsrs"
	"github.com/example/flashdeck/pkg/models"
)

func TestSettingsUpsertRoundTrip(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	repo := NewSettingsRepository()

	settings := DefaultSettings(user.ID)
	settings.RequestRetention = 0.85
	settings.NewPerDay = 7
	if err := repo.Upsert(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.Settings(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RequestRetention != 0.85 || got.NewPerDay != 7 {
		t.Errorf("settings = %+v, want retention 0.85 newPerDay 7", got)
	}
	if !reflect.DeepEqual(got.Weights, settings.Weights) {
		t.Errorf("weights did not round-trip: %v", got.Weights)
	}
}

func TestSettingsMissingIsNotFound(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	repo := NewSettingsRepository()

	if _, err := repo.Settings(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Settings err = %v, want ErrNotFound", err)
	}
	if _, err := repo.Parameters(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Parameters err = %v, want ErrNotFound", err)
	}
	if _, err := repo.LearningLimits(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("LearningLimits err = %v, want ErrNotFound", err)
	}
}

func TestSettingsExtractors(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	repo := NewSettingsRepository()

	settings := DefaultSettings(user.ID)
	settings.EnableFuzz = false
	settings.MaxReviewsPerDay = 55
	if err := repo.Upsert(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	params, err := repo.Parameters(ctx, user.ID)
	if err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if params.EnableFuzz {
		t.Error("EnableFuzz = true, want false")
	}
	if len(params.Weights) != models.WeightCount {
		t.Errorf("len(Weights) = %d, want %d", len(params.Weights), models.WeightCount)
	}

	limits, err := repo.LearningLimits(ctx, user.ID)
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if limits.MaxReviewsPerDay != 55 || limits.NewPerDay != models.DefaultNewPerDay {
		t.Errorf("limits = %+v, want maxReviews 55 newPerDay default", limits)
	}
}

func TestResetToDefault(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	user := seedUser(t, 100)
	repo := NewSettingsRepository()

	custom := DefaultSettings(user.ID)
	custom.RequestRetention = 0.7
	custom.NewPerDay = 1
	if err := repo.Upsert(ctx, custom); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := repo.ResetToDefault(ctx, user.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, err := repo.Settings(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := fsrs.DefaultParameters()
	if got.RequestRetention != want.RequestRetention || got.NewPerDay != models.DefaultNewPerDay {
		t.Errorf("settings = %+v, want defaults restored", got)
	}
}
