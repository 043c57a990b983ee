package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/flashdeck/pkg/models"
)

// ReviewLogRepository handles the append-only review audit trail
type ReviewLogRepository struct{}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository() *ReviewLogRepository {
	return &ReviewLogRepository{}
}

const reviewLogColumns = `id, user_id, card_id, deck_id, rating, prev_state, new_state,
	prev_due, new_due, prev_stability, new_stability, prev_difficulty, new_difficulty,
	elapsed_days, scheduled_days, reviewed_at`

// Append inserts one audit entry and backfills its generated ID. Entries
// are never updated or individually removed.
func (r *ReviewLogRepository) Append(ctx context.Context, entry *models.ReviewLogEntry) error {
	if DB.DriverName() == "postgres" {
		query := `
			INSERT INTO review_logs (
				user_id, card_id, deck_id, rating, prev_state, new_state,
				prev_due, new_due, prev_stability, new_stability,
				prev_difficulty, new_difficulty, elapsed_days, scheduled_days, reviewed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id
		`
		err := DB.QueryRowContext(ctx, query,
			entry.UserID, entry.CardID, entry.DeckID, entry.Rating,
			entry.PrevState, entry.NewState, utcPtr(entry.PrevDue), entry.NewDue.UTC(),
			entry.PrevStability, entry.NewStability, entry.PrevDifficulty, entry.NewDifficulty,
			entry.ElapsedDays, entry.ScheduledDays, entry.ReviewedAt.UTC(),
		).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to append review log: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO review_logs (
			user_id, card_id, deck_id, rating, prev_state, new_state,
			prev_due, new_due, prev_stability, new_stability,
			prev_difficulty, new_difficulty, elapsed_days, scheduled_days, reviewed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := DB.ExecContext(ctx, query,
		entry.UserID, entry.CardID, entry.DeckID, entry.Rating,
		entry.PrevState, entry.NewState, utcPtr(entry.PrevDue), entry.NewDue.UTC(),
		entry.PrevStability, entry.NewStability, entry.PrevDifficulty, entry.NewDifficulty,
		entry.ElapsedDays, entry.ScheduledDays, entry.ReviewedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append review log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

// CountsSince tallies committed reviews in the window starting at since,
// split by the card's state before the review. A deckID of zero counts
// across all decks.
func (r *ReviewLogRepository) CountsSince(ctx context.Context, userID, deckID int64, since time.Time) (models.ReviewCounts, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN prev_state = 0 THEN 1 ELSE 0 END), 0) AS new_cards,
			COALESCE(SUM(CASE WHEN prev_state != 0 THEN 1 ELSE 0 END), 0) AS review_cards
		FROM review_logs WHERE user_id = ? AND reviewed_at >= ?`
	args := []interface{}{userID, since.UTC()}
	if deckID != 0 {
		query += " AND deck_id = ?"
		args = append(args, deckID)
	}

	var counts models.ReviewCounts
	if err := DB.GetContext(ctx, &counts, DB.Rebind(query), args...); err != nil {
		return models.ReviewCounts{}, fmt.Errorf("failed to count reviews: %w", err)
	}
	return counts, nil
}

// RecentByUser returns the latest audit entries, newest first.
func (r *ReviewLogRepository) RecentByUser(ctx context.Context, userID int64, limit int) ([]models.ReviewLogEntry, error) {
	var entries []models.ReviewLogEntry
	query := DB.Rebind("SELECT " + reviewLogColumns + " FROM review_logs WHERE user_id = ? ORDER BY reviewed_at DESC, id DESC LIMIT ?")
	if err := DB.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent reviews: %w", err)
	}
	return entries, nil
}

// DeleteByUser wipes a user's audit trail. Only the demo account reset
// calls this.
func (r *ReviewLogRepository) DeleteByUser(ctx context.Context, userID int64) error {
	query := DB.Rebind("DELETE FROM review_logs WHERE user_id = ?")
	if _, err := DB.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete review logs: %w", err)
	}
	return nil
}
