package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct{}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

const userColumns = `id, telegram_id, username, first_name, is_admin, is_demo, created_at, updated_at`

// User returns a user by internal ID.
func (r *UserRepository) User(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := DB.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	err := DB.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ByTelegramID returns a user by Telegram identity.
func (r *UserRepository) ByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	query := DB.Rebind("SELECT " + userColumns + " FROM users WHERE telegram_id = ?")
	err := DB.GetContext(ctx, &user, query, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("telegram user %d: %w", telegramID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return &user, nil
}

// Upsert inserts the user on first contact and refreshes the profile fields
// afterwards. Admin and demo flags are managed elsewhere and survive the
// upsert. The stored row is read back into the argument.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	query := DB.Rebind(`
		INSERT INTO users (telegram_id, username, first_name, is_admin, is_demo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			updated_at = EXCLUDED.updated_at
	`)
	_, err := DB.ExecContext(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.IsAdmin, user.IsDemo, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	stored, err := r.ByTelegramID(ctx, user.TelegramID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// All returns every user ordered by creation time.
func (r *UserRepository) All(ctx context.Context) ([]models.User, error) {
	var users []models.User
	query := "SELECT " + userColumns + " FROM users ORDER BY created_at"
	if err := DB.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// DemoUsers returns the accounts reset nightly to a pristine state.
func (r *UserRepository) DemoUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	query := DB.Rebind("SELECT " + userColumns + " FROM users WHERE is_demo = ?")
	if err := DB.SelectContext(ctx, &users, query, true); err != nil {
		return nil, fmt.Errorf("failed to get demo users: %w", err)
	}
	return users, nil
}
