package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/vault-be/internal/models"
)

// TopScores returns the highest scores, bounded to limit.
func (s *Store) TopScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, score, COALESCE(display_name, ''), COALESCE(wallet, ''), last_updated
		FROM leaderboard
		ORDER BY score DESC, last_updated DESC NULLS LAST
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Score, &e.DisplayName, &e.Wallet, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAnnouncements returns the newest announcements first.
func (s *Store) ListAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, content, type, created_at
		FROM announcements
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query announcements: %w", err)
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		var (
			a   models.Announcement
			typ string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &typ, &a.At); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		a.Type = models.AnnouncementType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SubmitInterest appends an interest form row stamped with the server time.
func (s *Store) SubmitInterest(ctx context.Context, sub models.InterestSubmission) (models.InterestSubmission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	var at time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO interest_submissions (id, email, wallet_address)
		VALUES ($1, $2, $3)
		RETURNING submitted_at`,
		sub.ID, sub.Email, sub.WalletAddress).Scan(&at)
	if err != nil {
		return models.InterestSubmission{}, fmt.Errorf("insert interest submission: %w", mapConstraintError(err))
	}
	sub.SubmittedAt = at
	return sub, nil
}
