package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

// CardRepository handles database operations for cards
type CardRepository struct{}

// NewCardRepository creates a new repository instance
func NewCardRepository() *CardRepository {
	return &CardRepository{}
}

const cardColumns = `id, deck_id, user_id, front, back, state, due, stability, difficulty,
	elapsed_days, scheduled_days, reps, lapses, last_review, created_at, updated_at`

// Card returns one card owned by the given user.
func (r *CardRepository) Card(ctx context.Context, id, userID int64) (*models.Card, error) {
	var card models.Card
	query := DB.Rebind("SELECT " + cardColumns + " FROM cards WHERE id = ? AND user_id = ?")
	err := DB.GetContext(ctx, &card, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &card, nil
}

// CardsByDeck returns all of a user's cards, optionally scoped to one deck.
func (r *CardRepository) CardsByDeck(ctx context.Context, deckID, userID int64) ([]models.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE user_id = ?"
	args := []interface{}{userID}
	if deckID != 0 {
		query += " AND deck_id = ?"
		args = append(args, deckID)
	}
	query += " ORDER BY id"

	var cards []models.Card
	if err := DB.SelectContext(ctx, &cards, DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	return cards, nil
}

// NewCards returns the cards that have never been reviewed.
func (r *CardRepository) NewCards(ctx context.Context, deckID, userID int64) ([]models.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE user_id = ? AND state = ?"
	args := []interface{}{userID, models.StateNew}
	if deckID != 0 {
		query += " AND deck_id = ?"
		args = append(args, deckID)
	}
	query += " ORDER BY id"

	var cards []models.Card
	if err := DB.SelectContext(ctx, &cards, DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get new cards: %w", err)
	}
	return cards, nil
}

// DueCards returns the previously reviewed cards whose due date has passed.
func (r *CardRepository) DueCards(ctx context.Context, deckID, userID int64, asOf time.Time) ([]models.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE user_id = ? AND state != ? AND due IS NOT NULL AND due <= ?"
	args := []interface{}{userID, models.StateNew, asOf.UTC()}
	if deckID != 0 {
		query += " AND deck_id = ?"
		args = append(args, deckID)
	}
	query += " ORDER BY due"

	var cards []models.Card
	if err := DB.SelectContext(ctx, &cards, DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	return cards, nil
}

// CountCards tallies cards per state, plus how many are currently due.
func (r *CardRepository) CountCards(ctx context.Context, deckID, userID int64, asOf time.Time) (CardCounts, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN state = 0 THEN 1 ELSE 0 END), 0) AS new_count,
			COALESCE(SUM(CASE WHEN state = 1 THEN 1 ELSE 0 END), 0) AS learning_count,
			COALESCE(SUM(CASE WHEN state = 2 THEN 1 ELSE 0 END), 0) AS review_count,
			COALESCE(SUM(CASE WHEN state = 3 THEN 1 ELSE 0 END), 0) AS relearning_count,
			COALESCE(SUM(CASE WHEN state != 0 AND due IS NOT NULL AND due <= ? THEN 1 ELSE 0 END), 0) AS due_count
		FROM cards WHERE user_id = ?`
	args := []interface{}{asOf.UTC(), userID}
	if deckID != 0 {
		query += " AND deck_id = ?"
		args = append(args, deckID)
	}

	var counts CardCounts
	if err := DB.GetContext(ctx, &counts, DB.Rebind(query), args...); err != nil {
		return CardCounts{}, fmt.Errorf("failed to count cards: %w", err)
	}
	return counts, nil
}

// CreateCard inserts a new card and backfills its generated ID.
func (r *CardRepository) CreateCard(ctx context.Context, card *models.Card) error {
	now := time.Now().UTC()
	card.CreatedAt = now
	card.UpdatedAt = now

	if DB.DriverName() == "postgres" {
		query := `
			INSERT INTO cards (
				deck_id, user_id, front, back, state, due, stability, difficulty,
				elapsed_days, scheduled_days, reps, lapses, last_review, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id
		`
		err := DB.QueryRowContext(ctx, query,
			card.DeckID, card.UserID, card.Front, card.Back, card.State,
			utcPtr(card.Due), card.Stability, card.Difficulty,
			card.ElapsedDays, card.ScheduledDays, card.Reps, card.Lapses,
			utcPtr(card.LastReview), card.CreatedAt, card.UpdatedAt,
		).Scan(&card.ID)
		if err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO cards (
			deck_id, user_id, front, back, state, due, stability, difficulty,
			elapsed_days, scheduled_days, reps, lapses, last_review, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := DB.ExecContext(ctx, query,
		card.DeckID, card.UserID, card.Front, card.Back, card.State,
		utcPtr(card.Due), card.Stability, card.Difficulty,
		card.ElapsedDays, card.ScheduledDays, card.Reps, card.Lapses,
		utcPtr(card.LastReview), card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	card.ID = id
	return nil
}

// UpdateCard rewrites the card's content fields. Scheduling fields are only
// ever written through UpdateSchedule.
func (r *CardRepository) UpdateCard(ctx context.Context, card *models.Card) error {
	query := DB.Rebind(`
		UPDATE cards SET front = ?, back = ?, deck_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`)
	result, err := DB.ExecContext(ctx, query,
		card.Front, card.Back, card.DeckID, time.Now().UTC(), card.ID, card.UserID)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return requireRow(result, card.ID)
}

// UpdateSchedule applies a committed review outcome to the card, filtered by
// id and owner. A write that matches no row reports ErrNotFound.
func (r *CardRepository) UpdateSchedule(ctx context.Context, id, userID int64, upd ScheduleUpdate) (*models.Card, error) {
	query := DB.Rebind(`
		UPDATE cards SET
			state = ?, due = ?, stability = ?, difficulty = ?,
			elapsed_days = ?, scheduled_days = ?, reps = ?, lapses = ?,
			last_review = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`)
	result, err := DB.ExecContext(ctx, query,
		upd.State, upd.Due.UTC(), upd.Stability, upd.Difficulty,
		upd.ElapsedDays, upd.ScheduledDays, upd.Reps, upd.Lapses,
		upd.LastReview.UTC(), time.Now().UTC(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update card schedule: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return nil, err
	}
	return r.Card(ctx, id, userID)
}

// DeleteCard removes one card owned by the given user.
func (r *CardRepository) DeleteCard(ctx context.Context, id, userID int64) error {
	query := DB.Rebind("DELETE FROM cards WHERE id = ? AND user_id = ?")
	result, err := DB.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return requireRow(result, id)
}

// ResetSchedules returns every card of the user to the never-reviewed state.
// Used by the demo account reset.
func (r *CardRepository) ResetSchedules(ctx context.Context, userID int64) error {
	query := DB.Rebind(`
		UPDATE cards SET
			state = ?, due = NULL, stability = 0, difficulty = 0,
			elapsed_days = 0, scheduled_days = 0, reps = 0, lapses = 0,
			last_review = NULL, updated_at = ?
		WHERE user_id = ?
	`)
	if _, err := DB.ExecContext(ctx, query, models.StateNew, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to reset card schedules: %w", err)
	}
	return nil
}

// requireRow maps a zero-row write to ErrNotFound.
func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("row %d: %w", id, ErrNotFound)
	}
	return nil
}

// utcPtr normalizes an optional timestamp to UTC for storage.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
