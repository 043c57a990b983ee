package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/flashdeck/internal/fsrs"
	"github.com/example/flashdeck/pkg/models"
)

// SettingsRepository handles database operations for user settings
type SettingsRepository struct{}

// NewSettingsRepository creates a new repository instance
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{}
}

// settingsRow adds the weights text column to the model for scanning.
type settingsRow struct {
	models.UserSettings
	WeightsJSON string `db:"weights"`
}

// Settings returns the full settings row for a user. A user without a row
// reports ErrNotFound; callers must not substitute defaults silently.
func (r *SettingsRepository) Settings(ctx context.Context, userID int64) (*models.UserSettings, error) {
	var row settingsRow
	query := DB.Rebind(`
		SELECT user_id, request_retention, maximum_interval, weights,
			enable_fuzz, enable_short_term, new_per_day, max_reviews_per_day,
			created_at, updated_at
		FROM user_settings WHERE user_id = ?
	`)
	err := DB.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settings for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if err := json.Unmarshal([]byte(row.WeightsJSON), &row.Weights); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	settings := row.UserSettings
	return &settings, nil
}

// Parameters returns just the scheduler parameter set.
func (r *SettingsRepository) Parameters(ctx context.Context, userID int64) (models.SchedulingParameters, error) {
	settings, err := r.Settings(ctx, userID)
	if err != nil {
		return models.SchedulingParameters{}, err
	}
	return settings.Parameters(), nil
}

// LearningLimits returns just the base daily quotas.
func (r *SettingsRepository) LearningLimits(ctx context.Context, userID int64) (models.LearningLimits, error) {
	settings, err := r.Settings(ctx, userID)
	if err != nil {
		return models.LearningLimits{}, err
	}
	return settings.Limits(), nil
}

// Upsert writes the full settings row, weights marshaled to a JSON array.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.UserSettings) error {
	weightsJSON, err := json.Marshal(settings.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	now := time.Now().UTC()
	query := DB.Rebind(`
		INSERT INTO user_settings (
			user_id, request_retention, maximum_interval, weights,
			enable_fuzz, enable_short_term, new_per_day, max_reviews_per_day,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			request_retention = EXCLUDED.request_retention,
			maximum_interval = EXCLUDED.maximum_interval,
			weights = EXCLUDED.weights,
			enable_fuzz = EXCLUDED.enable_fuzz,
			enable_short_term = EXCLUDED.enable_short_term,
			new_per_day = EXCLUDED.new_per_day,
			max_reviews_per_day = EXCLUDED.max_reviews_per_day,
			updated_at = EXCLUDED.updated_at
	`)
	_, err = DB.ExecContext(ctx, query,
		settings.UserID, settings.RequestRetention, settings.MaximumInterval,
		string(weightsJSON), settings.EnableFuzz, settings.EnableShortTerm,
		settings.NewPerDay, settings.MaxReviewsPerDay, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	settings.UpdatedAt = now
	return nil
}

// ResetToDefault restores the stock parameter set and quotas for a user.
func (r *SettingsRepository) ResetToDefault(ctx context.Context, userID int64) error {
	return r.Upsert(ctx, DefaultSettings(userID))
}

// DefaultSettings builds the settings row a fresh account starts with.
func DefaultSettings(userID int64) *models.UserSettings {
	p := fsrs.DefaultParameters()
	return &models.UserSettings{
		UserID:           userID,
		RequestRetention: p.RequestRetention,
		MaximumInterval:  p.MaximumInterval,
		Weights:          p.Weights,
		EnableFuzz:       p.EnableFuzz,
		EnableShortTerm:  p.EnableShortTerm,
		NewPerDay:        models.DefaultNewPerDay,
		MaxReviewsPerDay: models.DefaultMaxReviewsPerDay,
	}
}
