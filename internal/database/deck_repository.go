package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

// DeckRepository handles database operations for decks
type DeckRepository struct{}

// NewDeckRepository creates a new repository instance
func NewDeckRepository() *DeckRepository {
	return &DeckRepository{}
}

const deckColumns = `id, user_id, name, description, daily_scaler, created_at, updated_at`

// Deck returns one deck owned by the given user.
func (r *DeckRepository) Deck(ctx context.Context, id, userID int64) (*models.Deck, error) {
	var deck models.Deck
	query := DB.Rebind("SELECT " + deckColumns + " FROM decks WHERE id = ? AND user_id = ?")
	err := DB.GetContext(ctx, &deck, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deck %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return &deck, nil
}

// DeckByName looks a deck up by its per-user unique name.
func (r *DeckRepository) DeckByName(ctx context.Context, userID int64, name string) (*models.Deck, error) {
	var deck models.Deck
	query := DB.Rebind("SELECT " + deckColumns + " FROM decks WHERE user_id = ? AND name = ?")
	err := DB.GetContext(ctx, &deck, query, userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deck %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck by name: %w", err)
	}
	return &deck, nil
}

// DecksByUser returns all decks of a user ordered by name.
func (r *DeckRepository) DecksByUser(ctx context.Context, userID int64) ([]models.Deck, error) {
	var decks []models.Deck
	query := DB.Rebind("SELECT " + deckColumns + " FROM decks WHERE user_id = ? ORDER BY name")
	if err := DB.SelectContext(ctx, &decks, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	return decks, nil
}

// CreateDeck inserts a new deck and backfills its generated ID. A zero
// DailyScaler falls back to the default of 1.0.
func (r *DeckRepository) CreateDeck(ctx context.Context, deck *models.Deck) error {
	if deck.DailyScaler == 0 {
		deck.DailyScaler = models.DefaultDailyScaler
	}
	if err := validateScaler(deck.DailyScaler); err != nil {
		return err
	}
	now := time.Now().UTC()
	deck.CreatedAt = now
	deck.UpdatedAt = now

	if DB.DriverName() == "postgres" {
		query := `
			INSERT INTO decks (user_id, name, description, daily_scaler, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		err := DB.QueryRowContext(ctx, query,
			deck.UserID, deck.Name, deck.Description, deck.DailyScaler,
			deck.CreatedAt, deck.UpdatedAt,
		).Scan(&deck.ID)
		if err != nil {
			return fmt.Errorf("failed to create deck: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO decks (user_id, name, description, daily_scaler, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := DB.ExecContext(ctx, query,
		deck.UserID, deck.Name, deck.Description, deck.DailyScaler,
		deck.CreatedAt, deck.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	deck.ID = id
	return nil
}

// UpdateDeck rewrites the deck's name, description and scaler.
func (r *DeckRepository) UpdateDeck(ctx context.Context, deck *models.Deck) error {
	if err := validateScaler(deck.DailyScaler); err != nil {
		return err
	}
	query := DB.Rebind(`
		UPDATE decks SET name = ?, description = ?, daily_scaler = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`)
	result, err := DB.ExecContext(ctx, query,
		deck.Name, deck.Description, deck.DailyScaler, time.Now().UTC(),
		deck.ID, deck.UserID)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}
	return requireRow(result, deck.ID)
}

// SetDailyScaler updates just the per-deck quota multiplier.
func (r *DeckRepository) SetDailyScaler(ctx context.Context, id, userID int64, scaler float64) error {
	if err := validateScaler(scaler); err != nil {
		return err
	}
	query := DB.Rebind("UPDATE decks SET daily_scaler = ?, updated_at = ? WHERE id = ? AND user_id = ?")
	result, err := DB.ExecContext(ctx, query, scaler, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to set daily scaler: %w", err)
	}
	return requireRow(result, id)
}

// DeleteDeck removes a deck together with its cards. Review logs are an
// audit trail and survive the deletion.
func (r *DeckRepository) DeleteDeck(ctx context.Context, id, userID int64) error {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM cards WHERE deck_id = ? AND user_id = ?"), id, userID); err != nil {
		return fmt.Errorf("failed to delete deck cards: %w", err)
	}
	result, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM decks WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deck deletion: %w", err)
	}
	return nil
}

func validateScaler(scaler float64) error {
	if math.IsNaN(scaler) || math.IsInf(scaler, 0) || scaler <= 0 {
		return fmt.Errorf("daily scaler %v must be a positive number", scaler)
	}
	return nil
}
